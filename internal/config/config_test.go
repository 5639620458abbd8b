package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  listen: ":9090"
store:
  sqlite_path: "data/concerts.db"
sync:
  exclude_locations: ["香港", "澳门"]
  staleness: 5m
  cooldown: 4h
damai:
  page_size: 20
  delay_min: 500ms
  delay_max: 1500ms
  weight: 0.6
tking:
  target_cities: ["北京", "上海"]
enrich:
  api_key: "sk-test"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Listen != ":9090" {
		t.Errorf("listen = %q", cfg.Server.Listen)
	}
	if cfg.Sync.Cooldown != 4*time.Hour || cfg.Sync.Staleness != 5*time.Minute {
		t.Errorf("sync = %+v", cfg.Sync)
	}
	if len(cfg.Sync.ExcludeLocations) != 2 {
		t.Errorf("exclude = %v", cfg.Sync.ExcludeLocations)
	}
	if cfg.Damai.DelayMax != 1500*time.Millisecond || cfg.Damai.Weight != 0.6 {
		t.Errorf("damai = %+v", cfg.Damai)
	}
	if len(cfg.TKing.TargetCities) != 2 {
		t.Errorf("tking = %+v", cfg.TKing)
	}
	if cfg.Enrich.APIKey != "sk-test" {
		t.Errorf("enrich = %+v", cfg.Enrich)
	}
}

func TestLoadRequiresEventStore(t *testing.T) {
	path := writeConfig(t, "server:\n  listen: \":8080\"\n")
	if _, err := Load(path); err == nil {
		t.Fatal("config without a store backend must be rejected")
	}
}

func TestLoadPostgresOnly(t *testing.T) {
	path := writeConfig(t, "store:\n  postgres_dsn: \"postgres://u:p@localhost/concerts\"\n")
	if _, err := Load(path); err != nil {
		t.Fatalf("postgres_dsn alone must satisfy the store requirement: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yml")); err == nil {
		t.Fatal("want error for missing file")
	}
}
