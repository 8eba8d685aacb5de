package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/statushq/launchlog/internal/config"
)

// Open connects to Postgres and verifies the connection.
func Open(cfg config.DatabaseConfig) (*sql.DB, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("database url is required")
	}

	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetConnMaxLifetime(cfg.MaxLifetime())

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS events (
		id UUID PRIMARY KEY,
		title TEXT NOT NULL,
		slug TEXT NOT NULL UNIQUE,
		content TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'Backlogs',
		event_date TEXT NOT NULL DEFAULT '',
		is_public BOOLEAN NOT NULL DEFAULT false,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS tags (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		color TEXT NOT NULL DEFAULT '#6B7280'
	)`,
	`CREATE TABLE IF NOT EXISTS event_tags (
		event_id UUID NOT NULL REFERENCES events(id) ON DELETE CASCADE,
		tag_id UUID NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
		PRIMARY KEY (event_id, tag_id)
	)`,
	`CREATE TABLE IF NOT EXISTS event_statuses (
		display_name TEXT PRIMARY KEY,
		slug TEXT NOT NULL UNIQUE,
		sort_order INT NOT NULL DEFAULT 0,
		reserved BOOLEAN NOT NULL DEFAULT false
	)`,
	`CREATE TABLE IF NOT EXISTS newsletter_subscribers (
		id UUID PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		active BOOLEAN NOT NULL DEFAULT true,
		subscribed_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS app_settings (
		key TEXT PRIMARY KEY,
		value JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS event_email_history (
		id UUID PRIMARY KEY,
		event_id UUID NOT NULL REFERENCES events(id) ON DELETE CASCADE,
		status TEXT NOT NULL,
		subject TEXT NOT NULL,
		template TEXT NOT NULL,
		subscriber_count INT NOT NULL DEFAULT 0,
		sent_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_email_history_event_sent
		ON event_email_history (event_id, sent_at DESC)`,
	`CREATE TABLE IF NOT EXISTS event_publications (
		event_id UUID PRIMARY KEY REFERENCES events(id) ON DELETE CASCADE,
		email_sent BOOLEAN NOT NULL DEFAULT false,
		subject TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL DEFAULT '',
		template TEXT NOT NULL DEFAULT '',
		sent_at TIMESTAMPTZ,
		subscriber_count INT NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS email_templates (
		type TEXT PRIMARY KEY,
		subject TEXT NOT NULL,
		body TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`INSERT INTO event_statuses (display_name, slug, sort_order, reserved) VALUES
		('Backlogs', 'backlogs', 0, true),
		('Proposed', 'proposed', 1, false),
		('Upcoming', 'upcoming', 2, false),
		('Release', 'release', 3, false),
		('Archived', 'archived', 99, true)
		ON CONFLICT (display_name) DO NOTHING`,
}

// EnsureSchema creates missing tables and seeds the reserved statuses. Every
// statement is idempotent, so it is safe to run on each startup.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
