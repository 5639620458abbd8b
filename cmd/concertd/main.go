package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/Leejhua/concert-calendar/internal/config"
	"github.com/Leejhua/concert-calendar/internal/enrich"
	"github.com/Leejhua/concert-calendar/internal/metrics"
	"github.com/Leejhua/concert-calendar/internal/server"
	"github.com/Leejhua/concert-calendar/internal/store"
	"github.com/Leejhua/concert-calendar/internal/syncer"
)

// Version is set at build time via -ldflags "-X main.Version=..."
var Version = "dev"

func main() {
	var (
		cfgPath = flag.String("config", "config.yml", "path to YAML config")
		addr    = flag.String("addr", "", "listen address (overrides config)")
		once    = flag.Bool("once", false, "run a single sync then exit")
	)
	flag.Parse()

	log.Printf("concertd %s starting...", Version)

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if *addr != "" {
		cfg.Server.Listen = *addr
	}

	statusPath := cfg.Store.StatusPath
	if statusPath == "" {
		statusPath = "data/sync-status.json"
	}
	status := store.NewStatusStore(statusPath)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	m := metrics.New(registry)

	var cls enrich.Classifier
	if cfg.Enrich.APIKey != "" {
		cls = enrich.NewDeepSeekClassifier(cfg.Enrich)
		log.Printf("artist classification enabled")
	} else {
		log.Printf("artist classification disabled: no api key")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	events, err := store.NewEventStore(ctx, cfg.Store)
	if err != nil {
		log.Fatalf("init event store: %v", err)
	}
	defer events.Close()

	sync := syncer.New(cfg, events, status, m, cls)

	if *once {
		res := sync.Run(ctx, sync.NewSession())
		if !res.Success {
			log.Fatalf("sync failed: %s", res.Message)
		}
		log.Printf("sync done: new=%d combined=%d", res.TotalNew, res.TotalCombined)
		return
	}

	if cfg.Sync.Interval > 0 {
		go func() {
			ticker := time.NewTicker(cfg.Sync.Interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if outcome, msg := sync.Trigger(""); outcome != syncer.TriggerStarted {
						log.Printf("periodic sync not started: %s", msg)
					}
				}
			}
		}()
		log.Printf("periodic sync every %s", cfg.Sync.Interval)
	}

	srv := server.New(cfg.Server, events, status, sync, registry)
	if err := srv.Start(ctx.Done()); err != nil {
		log.Fatalf("server: %v", err)
	}
}
