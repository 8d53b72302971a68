package shuttle

import (
	"context"
	"fmt"
	"log/slog"

	"bookyard/internal/model"
)

// SweepBook physically deletes the files of a book past its deletion
// deadline and retires it. The row survives for audit; only the files and
// location pointers go.
//
// Returns true when the book was skipped over an inaccessible warehouse.
func (s *Shuttle) SweepBook(ctx context.Context, b *model.Book) (skipped bool) {
	log := s.logger.With(slog.String("book_id", b.ID))

	locs, err := s.store.LocationsByBook(ctx, b.ID)
	if err != nil {
		s.markBookError(ctx, b, fmt.Sprintf("sweep failed: list locations: %v", err))
		return false
	}
	if !s.allResolvable(locs) {
		booksSkippedTotal.Inc()
		log.Debug("skipping book, warehouse inaccessible")
		return true
	}

	removed := 0
	for _, l := range locs {
		if l.Status != model.LocationCurrent {
			continue
		}
		path, _ := s.locationPath(l)
		if err := deleteFile(path); err != nil {
			s.markBookError(ctx, b, fmt.Sprintf("sweep failed: %v", err))
			return false
		}
		if err := s.store.DeleteLocation(ctx, l); err != nil {
			s.markBookError(ctx, b, fmt.Sprintf("sweep failed: drop location: %v", err))
			return false
		}
		removed++
		filesDeletedTotal.Inc()
	}

	b.Kind = model.KindDeleted
	b.NeedsFileOperation = false
	b.AuditLog.Append("swept: %d file(s) deleted, book retired", removed)
	if err := s.store.UpdateBook(ctx, b); err != nil {
		log.Error("retire book", slog.String("error", err.Error()))
		return false
	}
	log.Info("book swept", slog.Int("files", removed))
	return false
}
