package history

import (
	"context"
	"fmt"

	"github.com/deckhand/deckhand/internal/api"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to PostgreSQL and creates the events table.
func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse connection string: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	store := &PostgresStore{pool: pool}
	if err := store.migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS deployment_events (
		id TEXT PRIMARY KEY,
		app_name TEXT NOT NULL,
		type TEXT NOT NULL,
		detail TEXT NOT NULL DEFAULT '',
		occurred_at TIMESTAMPTZ NOT NULL
	);
	`
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_events_app ON deployment_events(app_name, occurred_at)`)
	return err
}

func (s *PostgresStore) RecordEvent(ctx context.Context, event *api.Event) error {
	query := `
	INSERT INTO deployment_events (id, app_name, type, detail, occurred_at)
	VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.pool.Exec(ctx, query, event.ID, event.AppName, event.Type, event.Detail, event.OccurredAt)
	return err
}

func (s *PostgresStore) ListEvents(ctx context.Context, appName string, limit int) ([]*api.Event, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT id, app_name, type, detail, occurred_at FROM deployment_events`
	args := []any{}
	if appName != "" {
		query += ` WHERE app_name = $1 ORDER BY occurred_at DESC, id LIMIT $2`
		args = append(args, appName, limit)
	} else {
		query += ` ORDER BY occurred_at DESC, id LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
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

func (s *PostgresStore) Close() {
	s.pool.Close()
}
