package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Leejhua/concert-calendar/internal/model"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s := &PostgresStore{pool: pool}
	if err := s.createTables(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) createTables(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
	CREATE TABLE IF NOT EXISTS concerts(
	  id         TEXT PRIMARY KEY,
	  title      TEXT NOT NULL,
	  image      TEXT NOT NULL DEFAULT '',
	  date       TEXT NOT NULL DEFAULT '',
	  city       TEXT NOT NULL DEFAULT '',
	  venue      TEXT NOT NULL DEFAULT '',
	  price      TEXT NOT NULL DEFAULT '',
	  status     TEXT NOT NULL DEFAULT '',
	  category   TEXT NOT NULL DEFAULT '',
	  artist     TEXT NOT NULL DEFAULT '',
	  is_tribute BOOLEAN NOT NULL DEFAULT FALSE,
	  is_famous  BOOLEAN,
	  updated_at BIGINT NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) LoadAll(ctx context.Context) ([]model.Event, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, title, image, date, city, venue, price, status, category,
		       artist, is_tribute, is_famous, updated_at
		FROM concerts`)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	defer rows.Close()

	var out []model.Event
	for rows.Next() {
		var e model.Event
		if err := rows.Scan(&e.ID, &e.Title, &e.Image, &e.Date, &e.City, &e.Venue,
			&e.Price, &e.Status, &e.Category, &e.Artist, &e.IsTribute, &e.IsFamous, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PostgresStore) SaveAll(ctx context.Context, events []model.Event) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, e := range events {
		batch.Queue(`
			INSERT INTO concerts(id, title, image, date, city, venue, price, status,
			                     category, artist, is_tribute, is_famous, updated_at)
			VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
			ON CONFLICT (id) DO UPDATE SET
			  title=EXCLUDED.title, image=EXCLUDED.image, date=EXCLUDED.date,
			  city=EXCLUDED.city, venue=EXCLUDED.venue, price=EXCLUDED.price,
			  status=EXCLUDED.status, category=EXCLUDED.category,
			  artist=EXCLUDED.artist, is_tribute=EXCLUDED.is_tribute,
			  is_famous=EXCLUDED.is_famous, updated_at=EXCLUDED.updated_at`,
			e.ID, e.Title, e.Image, e.Date, e.City, e.Venue, e.Price, e.Status,
			e.Category, e.Artist, e.IsTribute, e.IsFamous, e.UpdatedAt)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upsert batch: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
