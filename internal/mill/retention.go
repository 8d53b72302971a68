package mill

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"bookyard/internal/model"
	"bookyard/internal/naming"
)

// keepPeriods is how many of the most recent periods keep their best book in
// production.
const keepPeriods = 2

// applyRetention demotes superseded production books of one title to
// pending-deletion. Within each flavour the newest two periods keep their
// most recent book; everything else older than the minimum age is marked.
// Idempotent: marked books fail the filter on the next run.
func (m *Mill) applyRetention(ctx context.Context, title *model.Title) error {
	books, err := m.store.BooksByTitle(ctx, title.ID)
	if err != nil {
		return fmt.Errorf("list title books: %w", err)
	}

	now := time.Now().UTC()
	cutoff := now.Add(-m.opts.RetentionMinAge)
	flavours := map[string][]*model.Book{}
	for _, b := range books {
		if b.Kind != model.KindProd || b.HasError || b.NeedsFileOperation {
			continue
		}
		if b.CreatedAt.After(cutoff) {
			continue
		}
		flavours[b.Flavour] = append(flavours[b.Flavour], b)
	}

	marked := 0
	for _, group := range flavours {
		periods := map[string][]*model.Book{}
		for _, b := range group {
			periods[b.Period()] = append(periods[b.Period()], b)
		}
		ordered := make([]string, 0, len(periods))
		for p := range periods {
			ordered = append(ordered, p)
		}
		sort.Sort(sort.Reverse(sort.StringSlice(ordered)))

		for i, p := range ordered {
			batch := periods[p]
			if i < keepPeriods {
				keep := m.bestBook(ctx, batch)
				for _, b := range batch {
					if b.ID == keep.ID {
						continue
					}
					if err := m.markForDeletion(ctx, b, title, now); err != nil {
						return err
					}
					marked++
				}
			} else {
				for _, b := range batch {
					if err := m.markForDeletion(ctx, b, title, now); err != nil {
						return err
					}
					marked++
				}
			}
		}
	}

	if marked > 0 {
		if err := m.store.UpdateTitle(ctx, title); err != nil {
			return fmt.Errorf("update title audit: %w", err)
		}
		m.logger.Info("retention applied",
			slog.String("title_id", title.ID), slog.Int("marked", marked))
	}
	return nil
}

// bestBook picks the book to keep in a period group: the most recently
// created, ties broken by the filename suffix counter.
func (m *Mill) bestBook(ctx context.Context, batch []*model.Book) *model.Book {
	best := batch[0]
	bestSuffix := m.bookSuffix(ctx, best)
	for _, b := range batch[1:] {
		suffix := m.bookSuffix(ctx, b)
		if b.CreatedAt.After(best.CreatedAt) ||
			(b.CreatedAt.Equal(best.CreatedAt) && naming.Less(bestSuffix, suffix)) {
			best, bestSuffix = b, suffix
		}
	}
	return best
}

// bookSuffix extracts the allocator suffix from the book's current filename.
func (m *Mill) bookSuffix(ctx context.Context, b *model.Book) string {
	base, err := naming.BasePattern(b.Name, b.Flavour, b.Date)
	if err != nil {
		return ""
	}
	locs, err := m.store.LocationsByBook(ctx, b.ID)
	if err != nil {
		return ""
	}
	for _, l := range locs {
		if l.Status != model.LocationCurrent {
			continue
		}
		if suffix, ok := naming.SuffixOf(l.Filename, base); ok {
			return suffix
		}
	}
	return ""
}

func (m *Mill) markForDeletion(ctx context.Context, b *model.Book, title *model.Title, now time.Time) error {
	due := now.Add(m.opts.DeletionDelay)
	b.Kind = model.KindToDelete
	b.DeletionDueAt = &due
	b.NeedsFileOperation = true
	b.AuditLog.Append("retention: superseded in production, deletion due %s", due.Format(time.RFC3339))
	title.AuditLog.Append("retention: book %s (%s %s) marked for deletion", b.ID, b.Flavour, b.Period())
	if err := m.store.UpdateBook(ctx, b); err != nil {
		return fmt.Errorf("mark book %s for deletion: %w", b.ID, err)
	}
	retentionMarkedTotal.Inc()
	return nil
}
