package config

import (
	"errors"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	Listen       string        `yaml:"listen"` // e.g. ":8080"
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type StoreConfig struct {
	SQLitePath  string `yaml:"sqlite_path"`  // default backend
	PostgresDSN string `yaml:"postgres_dsn"` // when set, postgres is used instead
	StatusPath  string `yaml:"status_path"`  // sync status JSON file
}

type DamaiConfig struct {
	BaseURL       string        `yaml:"base_url"` // https://mtop.damai.cn
	AppKey        string        `yaml:"app_key"`
	Referer       string        `yaml:"referer"`
	UserAgent     string        `yaml:"user_agent"`
	Cookie        string        `yaml:"cookie"`          // optional manual credential
	TokenWithTime string        `yaml:"token_with_time"` // optional manual _m_h5_tk value
	Timeout       time.Duration `yaml:"timeout"`
	PageSize      int           `yaml:"page_size"` // default 20
	MaxPages      int           `yaml:"max_pages"` // per-city safety cap, default 50
	DelayMin      time.Duration `yaml:"delay_min"` // inter-page throttle, default 500ms
	DelayMax      time.Duration `yaml:"delay_max"` // default 1500ms
	Weight        float64       `yaml:"weight"`    // share of overall progress, default 0.6
}

type TKingConfig struct {
	BaseURL      string        `yaml:"base_url"` // https://m3.tking.cn
	Src          string        `yaml:"src"`      // default m_web
	Ver          string        `yaml:"ver"`      // default 6.59.0
	DeviceID     string        `yaml:"device_id"`
	UserAgent    string        `yaml:"user_agent"`
	Timeout      time.Duration `yaml:"timeout"`
	PageSize     int           `yaml:"page_size"` // default 10
	MaxPages     int           `yaml:"max_pages"` // per-city safety cap, default 20
	Delay        time.Duration `yaml:"delay"`     // inter-page throttle, default 200ms
	TargetCities []string      `yaml:"target_cities"`
	Weight       float64       `yaml:"weight"` // default 0.25
}

type GlobalConfig struct {
	BaseURL    string        `yaml:"base_url"` // https://api-global.moretickets.com
	CategoryID string        `yaml:"category_id"`
	UserAgent  string        `yaml:"user_agent"`
	Timeout    time.Duration `yaml:"timeout"`
	PageSize   int           `yaml:"page_size"`  // default 20
	MaxOffset  int           `yaml:"max_offset"` // per-location cap, default 100
	Delay      time.Duration `yaml:"delay"`      // default 200ms
	Weight     float64       `yaml:"weight"`     // default 0.15
}

type EnrichConfig struct {
	BaseURL string        `yaml:"base_url"` // https://api.deepseek.com
	APIKey  string        `yaml:"api_key"`  // empty disables enrichment
	Model   string        `yaml:"model"`    // default deepseek-chat
	Timeout time.Duration `yaml:"timeout"`
}

type SyncConfig struct {
	// Locations whose display name contains one of these substrings are
	// excluded from every crawl (regions out of product scope).
	ExcludeLocations []string      `yaml:"exclude_locations"`
	Staleness        time.Duration `yaml:"staleness"` // running status older than this is abandoned, default 5m
	Cooldown         time.Duration `yaml:"cooldown"`  // after a completed run, default 4h
	Interval         time.Duration `yaml:"interval"`  // periodic auto-sync, 0 disables
}

type Config struct {
	Server ServerConfig `yaml:"server"`
	Store  StoreConfig  `yaml:"store"`
	Sync   SyncConfig   `yaml:"sync"`
	Damai  DamaiConfig  `yaml:"damai"`
	TKing  TKingConfig  `yaml:"tking"`
	Global GlobalConfig `yaml:"global"`
	Enrich EnrichConfig `yaml:"enrich"`
}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return Config{}, err
	}
	if c.Store.SQLitePath == "" && c.Store.PostgresDSN == "" {
		return c, errors.New("need an event store (sqlite_path or postgres_dsn)")
	}
	return c, nil
}
