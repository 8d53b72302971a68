package shuttle

import (
	"context"
	"fmt"
	"log/slog"

	"bookyard/internal/model"
)

// ReconcileBook mutates the filesystem until the book's current locations
// match its targets, in three ordered phases: duplicate-copy while targets
// outnumber currents, then pairwise move, then delete leftover currents. The
// original file is never deleted before every target holds a live copy.
//
// Returns true when the book was skipped over an inaccessible warehouse.
func (s *Shuttle) ReconcileBook(ctx context.Context, b *model.Book) (skipped bool) {
	log := s.logger.With(slog.String("book_id", b.ID))

	locs, err := s.store.LocationsByBook(ctx, b.ID)
	if err != nil {
		s.markBookError(ctx, b, fmt.Sprintf("reconcile failed: list locations: %v", err))
		return false
	}
	if !s.allResolvable(locs) {
		booksSkippedTotal.Inc()
		log.Debug("skipping book, warehouse inaccessible")
		return true
	}

	var currents, targets []model.Location
	for _, l := range locs {
		switch l.Status {
		case model.LocationCurrent:
			currents = append(currents, l)
		case model.LocationTarget:
			targets = append(targets, l)
		}
	}

	if len(currents) == 0 {
		s.markBookError(ctx, b, "reconcile failed: no current location to work from")
		return false
	}
	if len(targets) == 0 {
		b.NeedsFileOperation = false
		b.AuditLog.Append("nothing to reconcile")
		if err := s.store.UpdateBook(ctx, b); err != nil {
			log.Error("clear file operation flag", slog.String("error", err.Error()))
		}
		return false
	}

	copied, moved, deleted := 0, 0, 0

	// Phase 1: grow the live-copy count until one move per target remains.
	for len(targets) > len(currents) {
		src, dst := currents[0], targets[0]
		srcPath, _ := s.locationPath(src)
		dstPath, _ := s.locationPath(dst)
		if err := copyFile(srcPath, dstPath); err != nil {
			s.markBookError(ctx, b, fmt.Sprintf("reconcile failed: copy to %s/%s: %v", dst.WarehouseID, dst.Path, err))
			return false
		}
		if err := s.store.PromoteLocation(ctx, dst); err != nil {
			s.markBookError(ctx, b, fmt.Sprintf("reconcile failed: promote target: %v", err))
			return false
		}
		dst.Status = model.LocationCurrent
		currents = append(currents, dst)
		targets = targets[1:]
		copied++
		filesCopiedTotal.Inc()
	}

	// Phase 2: pairwise rename currents onto the remaining targets.
	for len(currents) > 0 && len(targets) > 0 {
		src, dst := currents[0], targets[0]
		srcPath, _ := s.locationPath(src)
		dstPath, _ := s.locationPath(dst)
		if srcPath != dstPath {
			if err := moveFile(srcPath, dstPath); err != nil {
				s.markBookError(ctx, b, fmt.Sprintf("reconcile failed: move to %s/%s: %v", dst.WarehouseID, dst.Path, err))
				return false
			}
		}
		if err := s.store.DeleteLocation(ctx, src); err != nil {
			s.markBookError(ctx, b, fmt.Sprintf("reconcile failed: drop stale location: %v", err))
			return false
		}
		if err := s.store.PromoteLocation(ctx, dst); err != nil {
			s.markBookError(ctx, b, fmt.Sprintf("reconcile failed: promote target: %v", err))
			return false
		}
		currents = currents[1:]
		targets = targets[1:]
		moved++
		filesMovedTotal.Inc()
	}

	// Phase 3: more sources than destinations; drop the extras, absence
	// tolerated.
	for _, extra := range currents {
		path, _ := s.locationPath(extra)
		if err := deleteFile(path); err != nil {
			s.markBookError(ctx, b, fmt.Sprintf("reconcile failed: delete extra copy: %v", err))
			return false
		}
		if err := s.store.DeleteLocation(ctx, extra); err != nil {
			s.markBookError(ctx, b, fmt.Sprintf("reconcile failed: drop extra location: %v", err))
			return false
		}
		deleted++
		filesDeletedTotal.Inc()
	}

	b.NeedsFileOperation = false
	b.AuditLog.Append("reconciled: %d copied, %d moved, %d deleted", copied, moved, deleted)
	if err := s.store.UpdateBook(ctx, b); err != nil {
		log.Error("clear file operation flag", slog.String("error", err.Error()))
		return false
	}
	log.Info("book reconciled",
		slog.Int("copied", copied), slog.Int("moved", moved), slog.Int("deleted", deleted))
	return false
}
