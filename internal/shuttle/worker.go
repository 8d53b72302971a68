package shuttle

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"bookyard/internal/storage"
)

// Worker is the shuttle's polling loop: reconcile, then sweep, one book at a
// time.
type Worker struct {
	shuttle     *Shuttle
	store       storage.Store
	interval    time.Duration
	passTimeout time.Duration
	logger      *slog.Logger

	mu     sync.Mutex // guards against overlapping passes
	cancel context.CancelFunc
}

// NewWorker constructs the shuttle worker.
func NewWorker(s *Shuttle, store storage.Store, interval, passTimeout time.Duration, logger *slog.Logger) *Worker {
	return &Worker{
		shuttle:     s,
		store:       store,
		interval:    interval,
		passTimeout: passTimeout,
		logger:      logger.With(slog.String("component", "shuttle-worker")),
	}
}

// Start launches the background polling goroutine.
func (w *Worker) Start(ctx context.Context) {
	wCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	go w.run(wCtx)
	w.logger.Info("shuttle started", slog.String("interval", w.interval.String()))
}

// Stop halts the background loop.
func (w *Worker) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.logger.Info("shuttle stopped")
}

func (w *Worker) run(ctx context.Context) {
	w.RunOnce(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce reconciles every eligible book, then sweeps every book past its
// deletion deadline. Skipped or errored books never abort the pass.
func (w *Worker) RunOnce(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	start := time.Now()
	if w.passTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.passTimeout)
		defer cancel()
	}

	books, err := w.store.BooksNeedingFileOperation(ctx)
	if err != nil {
		w.logger.Error("list books for reconciliation", slog.String("error", err.Error()))
	}
	for _, b := range books {
		if ctx.Err() != nil {
			break
		}
		w.shuttle.ReconcileBook(ctx, b)
	}

	due, err := w.store.BooksDueForDeletion(ctx, time.Now().UTC())
	if err != nil {
		w.logger.Error("list books due for deletion", slog.String("error", err.Error()))
	}
	for _, b := range due {
		if ctx.Err() != nil {
			break
		}
		w.shuttle.SweepBook(ctx, b)
	}

	shuttlePassesTotal.Inc()
	shuttlePassDuration.Observe(time.Since(start).Seconds())
}
