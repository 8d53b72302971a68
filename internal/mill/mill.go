// Package mill drives the notification-to-book pipeline: intake validation,
// QA, title matching, placement planning and the retention policy. One
// polling worker claims work items one at a time; a failure is attributed to
// the single offending entity and never aborts the batch.
package mill

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"bookyard/internal/model"
	"bookyard/internal/storage"
)

var (
	millPassesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bookyard_mill_passes_total",
		Help: "Number of mill polling passes",
	})
	notificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookyard_mill_notifications_total",
		Help: "Notifications processed by terminal status",
	}, []string{"status"})
	booksPlannedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bookyard_mill_books_planned_total",
		Help: "Books that received target locations",
	})
	retentionMarkedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bookyard_mill_retention_marked_total",
		Help: "Books marked to_delete by the retention policy",
	})
	millPassDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bookyard_mill_pass_duration_seconds",
		Help:    "Duration of one mill pass",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
	})
)

// Options carries the pipeline knobs the mill needs beyond the store.
type Options struct {
	// Staging is the shared destination for books of non-robust titles.
	Staging model.Destination
	// RetentionMinAge is how old a prod book must be before the retention
	// policy considers it.
	RetentionMinAge time.Duration
	// DeletionDelay is the grace period granted to books marked to_delete.
	DeletionDelay time.Duration
}

// Mill runs the pipeline stages against a Store.
type Mill struct {
	store  storage.Store
	opts   Options
	logger *slog.Logger
}

// New constructs a Mill.
func New(store storage.Store, opts Options, logger *slog.Logger) *Mill {
	return &Mill{
		store:  store,
		opts:   opts,
		logger: logger.With(slog.String("component", "mill")),
	}
}
