package repository

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"bookyard/internal/model"
	"bookyard/internal/storage"
)

// LocationsByBook lists the book's location rows.
func (r *Repository) LocationsByBook(ctx context.Context, bookID string) ([]model.Location, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT book_id, warehouse_id, path, filename, status
		FROM locations WHERE book_id=$1
		ORDER BY warehouse_id, path, status
	`, bookID)
	if err != nil {
		return nil, fmt.Errorf("query locations: %w", err)
	}
	defer rows.Close()
	var out []model.Location
	for rows.Next() {
		var l model.Location
		if err := rows.Scan(&l.BookID, &l.WarehouseID, &l.Path, &l.Filename, &l.Status); err != nil {
			return nil, fmt.Errorf("scan location: %w", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate locations: %w", err)
	}
	return out, nil
}

// CreateLocation inserts a location row.
func (r *Repository) CreateLocation(ctx context.Context, loc model.Location) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO locations (book_id, warehouse_id, path, filename, status)
		VALUES ($1,$2,$3,$4,$5)
	`, loc.BookID, loc.WarehouseID, loc.Path, loc.Filename, loc.Status)
	if err != nil {
		return fmt.Errorf("insert location: %w", err)
	}
	return nil
}

// DeleteLocation removes the row matching the composite key.
func (r *Repository) DeleteLocation(ctx context.Context, loc model.Location) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM locations
		WHERE book_id=$1 AND warehouse_id=$2 AND path=$3 AND status=$4
	`, loc.BookID, loc.WarehouseID, loc.Path, loc.Status)
	if err != nil {
		return fmt.Errorf("delete location: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// PromoteLocation flips a target row to current.
func (r *Repository) PromoteLocation(ctx context.Context, loc model.Location) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE locations SET status=$1
		WHERE book_id=$2 AND warehouse_id=$3 AND path=$4 AND status=$5
	`, model.LocationCurrent, loc.BookID, loc.WarehouseID, loc.Path, model.LocationTarget)
	if err != nil {
		return fmt.Errorf("promote location: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// FilenamesLike lists filenames of every location starting with prefix,
// excluding the given book. The allocator's collision scan.
func (r *Repository) FilenamesLike(ctx context.Context, prefix, excludeBookID string) ([]string, error) {
	query, args, err := r.sb.
		Select("filename").
		From("locations").
		Where(sq.Like{"filename": prefix + "%"}).
		Where(sq.NotEq{"book_id": excludeBookID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build filename scan: %w", err)
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query filenames: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var fn string
		if err := rows.Scan(&fn); err != nil {
			return nil, fmt.Errorf("scan filename: %w", err)
		}
		out = append(out, fn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate filenames: %w", err)
	}
	return out, nil
}
