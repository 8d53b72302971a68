package mill

import (
	"context"
	"fmt"
	"log/slog"

	"bookyard/internal/model"
	"bookyard/internal/naming"
)

// plan decides where the book's files must ultimately live. Re-running it on
// an already-placed book is a no-op: the candidate target set is compared
// structurally against the current locations before anything is created.
func (m *Mill) plan(ctx context.Context, b *model.Book, title *model.Title) {
	if b.Date == "" {
		m.markBookError(ctx, b, "placement failed: book has no date")
		return
	}

	b.TitleID = &title.ID
	if b.Name != title.Name {
		old := title.Name
		title.Name = b.Name
		title.AuditLog.Append("renamed from %q to %q after book %s", old, b.Name, b.ID)
		if err := m.store.UpdateTitle(ctx, title); err != nil {
			m.markBookError(ctx, b, fmt.Sprintf("placement failed: rename title: %v", err))
			return
		}
	}

	kind := model.KindStaging
	dests := []model.Destination{m.opts.Staging}
	if title.Maturity == model.MaturityRobust {
		kind = model.KindProd
		var err error
		dests, err = m.store.Destinations(ctx, title.ID)
		if err != nil {
			m.markBookError(ctx, b, fmt.Sprintf("placement failed: resolve destinations: %v", err))
			return
		}
	}

	// The target filename is computed once and shared by every destination.
	prefix, err := naming.BasePattern(b.Name, b.Flavour, b.Date)
	if err != nil {
		m.markBookError(ctx, b, fmt.Sprintf("placement failed: %v", err))
		return
	}
	taken, err := m.store.FilenamesLike(ctx, prefix, b.ID)
	if err != nil {
		m.markBookError(ctx, b, fmt.Sprintf("placement failed: collision scan: %v", err))
		return
	}
	filename, err := naming.Allocate(b.Name, b.Flavour, b.Date, taken)
	if err != nil {
		m.markBookError(ctx, b, fmt.Sprintf("placement failed: %v", err))
		return
	}

	candidates := make([]model.Location, 0, len(dests))
	for _, d := range dests {
		candidates = append(candidates, model.Location{
			BookID:      b.ID,
			WarehouseID: d.WarehouseID,
			Path:        d.Path,
			Filename:    filename,
			Status:      model.LocationTarget,
		})
	}

	locs, err := m.store.LocationsByBook(ctx, b.ID)
	if err != nil {
		m.markBookError(ctx, b, fmt.Sprintf("placement failed: list locations: %v", err))
		return
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

	b.Kind = kind
	b.NeedsProcessing = false

	if samePlaces(candidates, currents) {
		b.NeedsFileOperation = false
		b.AuditLog.Append("already placed as %s, no file operation needed", filename)
		if err := m.store.UpdateBook(ctx, b); err != nil {
			m.logger.Error("update planned book",
				slog.String("book_id", b.ID), slog.String("error", err.Error()))
			return
		}
		m.logger.Info("book already placed", slog.String("book_id", b.ID))
	} else {
		// Converge the target rows instead of blindly inserting, so a
		// re-triggered plan after a partial pass cannot duplicate keys.
		for _, stale := range targets {
			if !containsPlace(candidates, stale) {
				if err := m.store.DeleteLocation(ctx, stale); err != nil {
					m.markBookError(ctx, b, fmt.Sprintf("placement failed: drop stale target: %v", err))
					return
				}
			}
		}
		created := 0
		for _, cand := range candidates {
			if containsPlace(targets, cand) {
				continue
			}
			if err := m.store.CreateLocation(ctx, cand); err != nil {
				m.markBookError(ctx, b, fmt.Sprintf("placement failed: create target: %v", err))
				return
			}
			created++
		}
		b.NeedsFileOperation = true
		b.AuditLog.Append("planned %d target location(s) as %s in %s", len(candidates), filename, kind)
		if err := m.store.UpdateBook(ctx, b); err != nil {
			m.logger.Error("update planned book",
				slog.String("book_id", b.ID), slog.String("error", err.Error()))
			return
		}
		booksPlannedTotal.Inc()
		m.logger.Info("book planned",
			slog.String("book_id", b.ID),
			slog.String("filename", filename),
			slog.Int("targets", len(candidates)),
			slog.String("kind", string(kind)))
	}

	if kind == model.KindProd {
		if err := m.applyRetention(ctx, title); err != nil {
			m.logger.Error("retention", slog.String("title_id", title.ID), slog.String("error", err.Error()))
		}
	}
}

// samePlaces reports set equality over (warehouse, path, filename) tuples.
func samePlaces(a, b []model.Location) bool {
	if len(a) != len(b) {
		return false
	}
	for _, l := range a {
		if !containsPlace(b, l) {
			return false
		}
	}
	return true
}

func containsPlace(list []model.Location, loc model.Location) bool {
	for _, l := range list {
		if l.SamePlace(loc) {
			return true
		}
	}
	return false
}
