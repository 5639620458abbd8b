// Package source contains the per-upstream crawlers. Each source owns its
// own credentials and seen-id state for the duration of one crawl;
// pagination within a source is deliberately sequential and throttled.
package source

import (
	"context"

	"github.com/Leejhua/concert-calendar/internal/config"
	"github.com/Leejhua/concert-calendar/internal/model"
	"github.com/Leejhua/concert-calendar/internal/mtop"
)

// Progress receives a human-readable message and a monotonically
// non-decreasing percentage in [0,100] derived from locations consumed.
type Progress func(message string, pct int)

type Source interface {
	Name() string
	// Weight is this source's share of the aggregate progress, in (0,1].
	Weight() float64
	Crawl(ctx context.Context, progress Progress) ([]model.Event, error)
}

// Build assembles the three crawlers in merge-priority order: the primary
// ticketing platform first, then the mobile aggregator, then the global
// aggregator. The mtop session is owned by the primary source for this run.
func Build(cfg config.Config, sess *mtop.Session) []Source {
	return []Source{
		NewDamai(cfg.Damai, cfg.Sync.ExcludeLocations, sess),
		NewTKing(cfg.TKing, cfg.Sync.ExcludeLocations),
		NewGlobal(cfg.Global, cfg.Sync.ExcludeLocations),
	}
}
