// Package repository wraps all SQL used by the mill and shuttle workers.
package repository

import (
	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"

	"bookyard/internal/storage"
)

// Repository is the Postgres implementation of storage.Store.
type Repository struct {
	pool *pgxpool.Pool
	sb   sq.StatementBuilderType
}

var _ storage.Store = (*Repository)(nil)

// New constructs a repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{
		pool: pool,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}
