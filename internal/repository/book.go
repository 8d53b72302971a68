package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"bookyard/internal/model"
	"bookyard/internal/storage"
)

const bookColumns = `id, created_at, article_count, media_count, size_bytes,
	metadata, check_result, name, date, flavour,
	needs_processing, has_error, needs_file_operation,
	location_kind, deletion_due_at, audit_log, title_id`

// CreateBook inserts a book row.
func (r *Repository) CreateBook(ctx context.Context, b *model.Book) error {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO books (id, created_at, article_count, media_count, size_bytes,
			metadata, check_result, name, date, flavour,
			needs_processing, has_error, needs_file_operation,
			location_kind, deletion_due_at, audit_log, title_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
	`, b.ID, b.CreatedAt, b.ArticleCount, b.MediaCount, b.SizeBytes,
		b.Metadata, b.CheckResult, b.Name, b.Date, b.Flavour,
		b.NeedsProcessing, b.HasError, b.NeedsFileOperation,
		b.Kind, b.DeletionDueAt, []string(b.AuditLog), b.TitleID)
	if err != nil {
		return fmt.Errorf("insert book: %w", err)
	}
	return nil
}

// UpdateBook persists the book's mutable fields.
func (r *Repository) UpdateBook(ctx context.Context, b *model.Book) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE books
		SET metadata=$1, name=$2, date=$3, flavour=$4,
			needs_processing=$5, has_error=$6, needs_file_operation=$7,
			location_kind=$8, deletion_due_at=$9, audit_log=$10, title_id=$11
		WHERE id=$12
	`, b.Metadata, b.Name, b.Date, b.Flavour,
		b.NeedsProcessing, b.HasError, b.NeedsFileOperation,
		b.Kind, b.DeletionDueAt, []string(b.AuditLog), b.TitleID, b.ID)
	if err != nil {
		return fmt.Errorf("update book: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetBook returns a book by id.
func (r *Repository) GetBook(ctx context.Context, id string) (*model.Book, error) {
	row := r.pool.QueryRow(ctx, "SELECT "+bookColumns+" FROM books WHERE id=$1", id)
	b, err := scanBook(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select book: %w", err)
	}
	return b, nil
}

// NextBookNeedingProcessing claims the oldest book flagged for pipeline work.
func (r *Repository) NextBookNeedingProcessing(ctx context.Context) (*model.Book, error) {
	query, args, err := r.sb.
		Select(bookColumns).
		From("books").
		Where(sq.Eq{"needs_processing": true, "has_error": false}).
		OrderBy("created_at", "id").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build book claim: %w", err)
	}
	b, err := scanBook(r.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("claim book: %w", err)
	}
	return b, nil
}

// BooksNeedingFileOperation lists, oldest first, the books the reconciler
// should pick up.
func (r *Repository) BooksNeedingFileOperation(ctx context.Context) ([]*model.Book, error) {
	query, args, err := r.sb.
		Select(bookColumns).
		From("books").
		Where(sq.Eq{"needs_file_operation": true, "has_error": false}).
		Where(sq.NotEq{"location_kind": []model.LocationKind{model.KindToDelete, model.KindDeleted}}).
		OrderBy("created_at", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build reconcile scan: %w", err)
	}
	return r.queryBooks(ctx, query, args...)
}

// BooksDueForDeletion lists, oldest deadline first, to_delete books whose
// grace period has elapsed.
func (r *Repository) BooksDueForDeletion(ctx context.Context, now time.Time) ([]*model.Book, error) {
	query, args, err := r.sb.
		Select(bookColumns).
		From("books").
		Where(sq.Eq{"location_kind": model.KindToDelete, "has_error": false, "needs_file_operation": true}).
		Where(sq.LtOrEq{"deletion_due_at": now}).
		OrderBy("deletion_due_at", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build deletion scan: %w", err)
	}
	return r.queryBooks(ctx, query, args...)
}

// BooksByTitle lists the books attached to a title, oldest first.
func (r *Repository) BooksByTitle(ctx context.Context, titleID string) ([]*model.Book, error) {
	query, args, err := r.sb.
		Select(bookColumns).
		From("books").
		Where(sq.Eq{"title_id": titleID}).
		OrderBy("created_at", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build title books scan: %w", err)
	}
	return r.queryBooks(ctx, query, args...)
}

func (r *Repository) queryBooks(ctx context.Context, query string, args ...any) ([]*model.Book, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query books: %w", err)
	}
	defer rows.Close()
	var out []*model.Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate books: %w", err)
	}
	return out, nil
}

func scanBook(row pgx.Row) (*model.Book, error) {
	var (
		b        model.Book
		auditLog []string
	)
	if err := row.Scan(&b.ID, &b.CreatedAt, &b.ArticleCount, &b.MediaCount, &b.SizeBytes,
		&b.Metadata, &b.CheckResult, &b.Name, &b.Date, &b.Flavour,
		&b.NeedsProcessing, &b.HasError, &b.NeedsFileOperation,
		&b.Kind, &b.DeletionDueAt, &auditLog, &b.TitleID); err != nil {
		return nil, err
	}
	b.AuditLog = auditLog
	return &b, nil
}
