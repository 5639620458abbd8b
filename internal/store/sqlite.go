package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite" // CGO-free SQLite

	"github.com/Leejhua/concert-calendar/internal/model"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLiteStore, error) {
	// WAL + busy timeout to avoid "database is locked"
	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := createSQLiteTables(db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func createSQLiteTables(db *sql.DB) error {
	_, err := db.Exec(`
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
	  is_tribute INTEGER NOT NULL DEFAULT 0,
	  is_famous  INTEGER,
	  updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_concerts_city ON concerts(city);
	CREATE INDEX IF NOT EXISTS idx_concerts_date ON concerts(date);
	`)
	if err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) LoadAll(ctx context.Context) ([]model.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
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
		var tribute int
		var famous sql.NullInt64
		if err := rows.Scan(&e.ID, &e.Title, &e.Image, &e.Date, &e.City, &e.Venue,
			&e.Price, &e.Status, &e.Category, &e.Artist, &tribute, &famous, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.IsTribute = tribute != 0
		if famous.Valid {
			f := famous.Int64 != 0
			e.IsFamous = &f
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SaveAll(ctx context.Context, events []model.Event) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO concerts(id, title, image, date, city, venue, price, status,
		                     category, artist, is_tribute, is_famous, updated_at)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET
		  title=excluded.title, image=excluded.image, date=excluded.date,
		  city=excluded.city, venue=excluded.venue, price=excluded.price,
		  status=excluded.status, category=excluded.category,
		  artist=excluded.artist, is_tribute=excluded.is_tribute,
		  is_famous=excluded.is_famous, updated_at=excluded.updated_at`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, e := range events {
		tribute := 0
		if e.IsTribute {
			tribute = 1
		}
		var famous any
		if e.IsFamous != nil {
			f := 0
			if *e.IsFamous {
				f = 1
			}
			famous = f
		}
		if _, err := stmt.ExecContext(ctx, e.ID, e.Title, e.Image, e.Date, e.City, e.Venue,
			e.Price, e.Status, e.Category, e.Artist, tribute, famous, e.UpdatedAt); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("upsert event %s: %w", e.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
