package mill

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"bookyard/internal/storage"
)

// Worker is the mill's polling loop. It claims pending notifications and
// books flagged for re-processing, strictly one item at a time.
type Worker struct {
	mill        *Mill
	store       storage.Store
	interval    time.Duration
	passTimeout time.Duration
	logger      *slog.Logger

	mu     sync.Mutex // guards against overlapping passes
	cancel context.CancelFunc
}

// NewWorker constructs the mill worker.
func NewWorker(m *Mill, store storage.Store, interval, passTimeout time.Duration, logger *slog.Logger) *Worker {
	return &Worker{
		mill:        m,
		store:       store,
		interval:    interval,
		passTimeout: passTimeout,
		logger:      logger.With(slog.String("component", "mill-worker")),
	}
}

// Start launches the background polling goroutine.
func (w *Worker) Start(ctx context.Context) {
	wCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	go w.run(wCtx)
	w.logger.Info("mill started", slog.String("interval", w.interval.String()))
}

// Stop halts the background loop.
func (w *Worker) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.logger.Info("mill stopped")
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

// RunOnce drains pending notifications, then books left flagged for
// processing. The pass deadline is transient: leftover work is picked up on
// the next tick.
func (w *Worker) RunOnce(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	start := time.Now()
	if w.passTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.passTimeout)
		defer cancel()
	}

	lastID := ""
	for ctx.Err() == nil {
		n, err := w.store.NextPendingNotification(ctx)
		if errors.Is(err, storage.ErrNotFound) {
			break
		}
		if err != nil {
			w.logger.Error("claim notification", slog.String("error", err.Error()))
			break
		}
		if n.ID == lastID {
			// The claim did not advance; bail out rather than spin.
			w.logger.Error("notification stuck pending", slog.String("notification_id", n.ID))
			break
		}
		lastID = n.ID
		w.mill.ProcessNotification(ctx, n)
	}

	lastID = ""
	for ctx.Err() == nil {
		b, err := w.store.NextBookNeedingProcessing(ctx)
		if errors.Is(err, storage.ErrNotFound) {
			break
		}
		if err != nil {
			w.logger.Error("claim book", slog.String("error", err.Error()))
			break
		}
		if b.ID == lastID {
			w.logger.Error("book stuck in processing", slog.String("book_id", b.ID))
			break
		}
		lastID = b.ID
		w.mill.ProcessBook(ctx, b)
	}

	millPassesTotal.Inc()
	millPassDuration.Observe(time.Since(start).Seconds())
}
