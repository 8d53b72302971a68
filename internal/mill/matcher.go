package mill

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"bookyard/internal/model"
	"bookyard/internal/storage"
)

// matchTitle finds the logical title the book belongs to. A missing title is
// not an error: the book is parked in a passive resting state and only moves
// again when a matching title appears and processing is re-triggered.
func (m *Mill) matchTitle(ctx context.Context, b *model.Book) (*model.Title, bool) {
	if b.Name == "" {
		m.markBookError(ctx, b, "title match failed: book has no name")
		return nil, false
	}

	title, err := m.store.TitleByName(ctx, b.Name)
	if errors.Is(err, storage.ErrNotFound) {
		b.NeedsProcessing = false
		b.HasError = false
		b.NeedsFileOperation = false
		b.AuditLog.Append("no title named %q, awaiting title", b.Name)
		if uerr := m.store.UpdateBook(ctx, b); uerr != nil {
			m.logger.Error("park unmatched book",
				slog.String("book_id", b.ID), slog.String("error", uerr.Error()))
			return nil, false
		}
		m.logger.Info("book awaiting title",
			slog.String("book_id", b.ID), slog.String("name", b.Name))
		return nil, false
	}
	if err != nil {
		m.markBookError(ctx, b, fmt.Sprintf("title match failed: %v", err))
		return nil, false
	}
	return title, true
}
