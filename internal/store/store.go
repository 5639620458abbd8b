// Package store persists the canonical event list and the sync status
// record. Events are read and written as a whole collection; the backends
// upsert by id so a save never silently drops previously stored rows that
// are absent from the incoming list only because the caller already merged
// against LoadAll.
package store

import (
	"context"

	"github.com/Leejhua/concert-calendar/internal/config"
	"github.com/Leejhua/concert-calendar/internal/model"
)

type EventStore interface {
	LoadAll(ctx context.Context) ([]model.Event, error)
	SaveAll(ctx context.Context, events []model.Event) error
	Close() error
}

// NewEventStore picks the backend: postgres when a DSN is configured,
// otherwise the embedded sqlite file.
func NewEventStore(ctx context.Context, cfg config.StoreConfig) (EventStore, error) {
	if cfg.PostgresDSN != "" {
		return NewPostgres(ctx, cfg.PostgresDSN)
	}
	return NewSQLite(cfg.SQLitePath)
}
