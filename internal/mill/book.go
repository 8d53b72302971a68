package mill

import (
	"context"
	"log/slog"

	"bookyard/internal/model"
)

// ProcessBook walks one book through QA, title matching and placement. Books
// with the error flag set are excluded from every automated transition until
// an operator clears them.
func (m *Mill) ProcessBook(ctx context.Context, b *model.Book) {
	if b.HasError {
		return
	}
	if !m.runQA(ctx, b) {
		return
	}
	title, ok := m.matchTitle(ctx, b)
	if !ok {
		return
	}
	m.plan(ctx, b, title)
}

// markBookError flags the book as needing manual intervention and records why
// in its audit log.
func (m *Mill) markBookError(ctx context.Context, b *model.Book, msg string) {
	b.HasError = true
	b.NeedsProcessing = false
	b.AuditLog.Append("%s", msg)
	if err := m.store.UpdateBook(ctx, b); err != nil {
		m.logger.Error("persist book error flag",
			slog.String("book_id", b.ID), slog.String("error", err.Error()))
		return
	}
	m.logger.Warn("book errored", slog.String("book_id", b.ID), slog.String("reason", msg))
}
