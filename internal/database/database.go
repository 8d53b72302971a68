package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect opens a pgx connection pool using the provided DSN.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.MaxConns = 8
	cfg.MaxConnIdleTime = 5 * time.Minute
	return pgxpool.NewWithConfig(ctx, cfg)
}

// EnsureSchema creates the tables if needed. Keeping the bootstrap in code
// makes the binary self-contained; the CRUD layer owns richer migrations.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	const stmt = `
CREATE TABLE IF NOT EXISTS notifications (
	id UUID PRIMARY KEY,
	received_at TIMESTAMPTZ NOT NULL,
	raw_content JSONB NOT NULL,
	status TEXT NOT NULL,
	audit_log TEXT[] NOT NULL DEFAULT '{}',
	book_id UUID
);
CREATE INDEX IF NOT EXISTS idx_notifications_status ON notifications(status, received_at);

CREATE TABLE IF NOT EXISTS titles (
	id UUID PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	maturity TEXT NOT NULL,
	audit_log TEXT[] NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS books (
	id UUID PRIMARY KEY,
	created_at TIMESTAMPTZ NOT NULL,
	article_count BIGINT NOT NULL DEFAULT 0,
	media_count BIGINT NOT NULL DEFAULT 0,
	size_bytes BIGINT NOT NULL DEFAULT 0,
	metadata JSONB NOT NULL DEFAULT '{}',
	check_result JSONB,
	name TEXT NOT NULL DEFAULT '',
	date TEXT NOT NULL DEFAULT '',
	flavour TEXT NOT NULL DEFAULT '',
	needs_processing BOOLEAN NOT NULL DEFAULT FALSE,
	has_error BOOLEAN NOT NULL DEFAULT FALSE,
	needs_file_operation BOOLEAN NOT NULL DEFAULT FALSE,
	location_kind TEXT NOT NULL,
	deletion_due_at TIMESTAMPTZ,
	audit_log TEXT[] NOT NULL DEFAULT '{}',
	title_id UUID REFERENCES titles(id)
);
CREATE INDEX IF NOT EXISTS idx_books_processing ON books(needs_processing, has_error, created_at);
CREATE INDEX IF NOT EXISTS idx_books_fileop ON books(needs_file_operation, has_error, location_kind, created_at);
CREATE INDEX IF NOT EXISTS idx_books_deletion ON books(location_kind, deletion_due_at);
CREATE INDEX IF NOT EXISTS idx_books_title ON books(title_id);

CREATE TABLE IF NOT EXISTS warehouses (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS collections (
	id UUID PRIMARY KEY,
	name TEXT NOT NULL,
	warehouse_id TEXT NOT NULL REFERENCES warehouses(id)
);

CREATE TABLE IF NOT EXISTS collection_titles (
	collection_id UUID NOT NULL REFERENCES collections(id),
	title_id UUID NOT NULL REFERENCES titles(id),
	subpath TEXT NOT NULL,
	PRIMARY KEY (collection_id, title_id, subpath)
);

CREATE TABLE IF NOT EXISTS locations (
	book_id UUID NOT NULL REFERENCES books(id),
	warehouse_id TEXT NOT NULL,
	path TEXT NOT NULL,
	filename TEXT NOT NULL,
	status TEXT NOT NULL,
	PRIMARY KEY (book_id, warehouse_id, path, status)
);
CREATE INDEX IF NOT EXISTS idx_locations_filename ON locations(filename);`
	_, err := pool.Exec(ctx, stmt)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
