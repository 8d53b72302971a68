package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"bookyard/internal/model"
	"bookyard/internal/storage"
)

// TitleByName finds a title by exact name.
func (r *Repository) TitleByName(ctx context.Context, name string) (*model.Title, error) {
	var (
		t        model.Title
		auditLog []string
	)
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, maturity, audit_log FROM titles WHERE name=$1
	`, name)
	if err := row.Scan(&t.ID, &t.Name, &t.Maturity, &auditLog); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("select title: %w", err)
	}
	t.AuditLog = auditLog
	return &t, nil
}

// UpdateTitle persists the fields the workers may touch: name and audit log.
// Everything else belongs to the CRUD layer.
func (r *Repository) UpdateTitle(ctx context.Context, t *model.Title) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE titles SET name=$1, audit_log=$2 WHERE id=$3
	`, t.Name, []string(t.AuditLog), t.ID)
	if err != nil {
		return fmt.Errorf("update title: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// Destinations resolves every (warehouse, path) pair from the title's
// collection associations.
func (r *Repository) Destinations(ctx context.Context, titleID string) ([]model.Destination, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT c.warehouse_id, ct.subpath
		FROM collection_titles ct
		JOIN collections c ON c.id = ct.collection_id
		WHERE ct.title_id = $1
		ORDER BY c.warehouse_id, ct.subpath
	`, titleID)
	if err != nil {
		return nil, fmt.Errorf("query destinations: %w", err)
	}
	defer rows.Close()
	var out []model.Destination
	for rows.Next() {
		var d model.Destination
		if err := rows.Scan(&d.WarehouseID, &d.Path); err != nil {
			return nil, fmt.Errorf("scan destination: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate destinations: %w", err)
	}
	return out, nil
}
