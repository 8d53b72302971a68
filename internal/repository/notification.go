package repository

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"bookyard/internal/model"
	"bookyard/internal/storage"
)

const notificationColumns = "id, received_at, raw_content, status, audit_log, book_id"

// CreateNotification inserts a pending notification row.
func (r *Repository) CreateNotification(ctx context.Context, n *model.Notification) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO notifications (id, received_at, raw_content, status, audit_log, book_id)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, n.ID, n.ReceivedAt, n.RawContent, n.Status, []string(n.AuditLog), n.BookID)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// NextPendingNotification claims the oldest pending notification.
func (r *Repository) NextPendingNotification(ctx context.Context) (*model.Notification, error) {
	query, args, err := r.sb.
		Select(notificationColumns).
		From("notifications").
		Where(sq.Eq{"status": model.NotificationPending}).
		OrderBy("received_at", "id").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build notification claim: %w", err)
	}
	n, err := scanNotification(r.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("claim notification: %w", err)
	}
	return n, nil
}

// UpdateNotification persists the notification's status, audit log and book
// back-reference.
func (r *Repository) UpdateNotification(ctx context.Context, n *model.Notification) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE notifications SET status=$1, audit_log=$2, book_id=$3 WHERE id=$4
	`, n.Status, []string(n.AuditLog), n.BookID, n.ID)
	if err != nil {
		return fmt.Errorf("update notification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func scanNotification(row pgx.Row) (*model.Notification, error) {
	var (
		n        model.Notification
		auditLog []string
	)
	if err := row.Scan(&n.ID, &n.ReceivedAt, &n.RawContent, &n.Status, &auditLog, &n.BookID); err != nil {
		return nil, err
	}
	n.AuditLog = auditLog
	return &n, nil
}
