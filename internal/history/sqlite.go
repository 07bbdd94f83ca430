package history

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/deckhand/deckhand/internal/api"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore initializes the SQLite database and creates the events
// table.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	query := `
	CREATE TABLE IF NOT EXISTS deployment_events (
		id TEXT PRIMARY KEY,
		app_name TEXT NOT NULL,
		type TEXT NOT NULL,
		detail TEXT NOT NULL DEFAULT '',
		occurred_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_events_app ON deployment_events(app_name, occurred_at);
	`
	if _, err := db.Exec(query); err != nil {
		return nil, fmt.Errorf("failed to create events table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) RecordEvent(ctx context.Context, event *api.Event) error {
	query := `
	INSERT INTO deployment_events (id, app_name, type, detail, occurred_at)
	VALUES (?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query, event.ID, event.AppName, event.Type, event.Detail, event.OccurredAt)
	return err
}

func (s *SQLiteStore) ListEvents(ctx context.Context, appName string, limit int) ([]*api.Event, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT id, app_name, type, detail, occurred_at FROM deployment_events`
	args := []any{}
	if appName != "" {
		query += ` WHERE app_name = ?`
		args = append(args, appName)
	}
	query += ` ORDER BY occurred_at DESC, id LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*api.Event
	for rows.Next() {
		var event api.Event
		if err := rows.Scan(&event.ID, &event.AppName, &event.Type, &event.Detail, &event.OccurredAt); err != nil {
			continue
		}
		events = append(events, &event)
	}
	return events, rows.Err()
}

func (s *SQLiteStore) Close() {
	s.db.Close()
}
