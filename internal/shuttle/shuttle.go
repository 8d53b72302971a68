// Package shuttle is the only component that touches the filesystem. Its
// polling worker reconciles books whose target locations differ from reality
// and sweeps the files of books past their deletion deadline.
package shuttle

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"bookyard/internal/model"
	"bookyard/internal/storage"
	"bookyard/internal/warehouse"
)

var (
	shuttlePassesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bookyard_shuttle_passes_total",
		Help: "Number of shuttle polling passes",
	})
	filesCopiedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bookyard_shuttle_files_copied_total",
		Help: "Files duplicated to additional locations",
	})
	filesMovedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bookyard_shuttle_files_moved_total",
		Help: "Files moved between locations",
	})
	filesDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bookyard_shuttle_files_deleted_total",
		Help: "Files removed from disk",
	})
	booksSkippedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bookyard_shuttle_books_skipped_total",
		Help: "Books skipped over an inaccessible warehouse",
	})
	bookErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bookyard_shuttle_book_errors_total",
		Help: "Books flagged with an error during file operations",
	})
	shuttlePassDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bookyard_shuttle_pass_duration_seconds",
		Help:    "Duration of one shuttle pass",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
	})
)

// Shuttle performs the physical file work for one book at a time.
type Shuttle struct {
	store    storage.Store
	resolver warehouse.Resolver
	logger   *slog.Logger
}

// New constructs a Shuttle.
func New(store storage.Store, resolver warehouse.Resolver, logger *slog.Logger) *Shuttle {
	return &Shuttle{
		store:    store,
		resolver: resolver,
		logger:   logger.With(slog.String("component", "shuttle")),
	}
}

// markBookError flags the book and records the failure; files already moved
// stay where they are, each physical step being independently best-effort.
func (s *Shuttle) markBookError(ctx context.Context, b *model.Book, msg string) {
	b.HasError = true
	b.AuditLog.Append("%s", msg)
	if err := s.store.UpdateBook(ctx, b); err != nil {
		s.logger.Error("persist book error flag",
			slog.String("book_id", b.ID), slog.String("error", err.Error()))
		return
	}
	bookErrorsTotal.Inc()
	s.logger.Warn("book errored", slog.String("book_id", b.ID), slog.String("reason", msg))
}
