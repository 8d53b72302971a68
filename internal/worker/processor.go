// Package worker consumes producer events from the asynq queue and persists
// them as pending notifications for the mill to validate.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"bookyard/internal/model"
	"bookyard/internal/queue"
	"bookyard/internal/storage"
)

// Processor is plugged into the asynq worker loop.
type Processor struct {
	store  storage.Store
	logger *slog.Logger
}

// NewProcessor constructs an intake processor.
func NewProcessor(store storage.Store, logger *slog.Logger) *Processor {
	return &Processor{
		store:  store,
		logger: logger.With(slog.String("component", "intake")),
	}
}

// Handler registers the notification task handler.
func (p *Processor) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.NotificationReceivedTask, p.handleNotification)
	return mux
}

func (p *Processor) handleNotification(ctx context.Context, task *asynq.Task) error {
	var payload queue.NotificationPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	if _, err := uuid.Parse(payload.ID); err != nil {
		// A garbage id can never become a valid notification; retrying is
		// pointless.
		p.logger.Warn("dropping task with invalid notification id",
			slog.String("id", payload.ID))
		return nil
	}

	n := &model.Notification{
		ID:         payload.ID,
		ReceivedAt: time.Now().UTC(),
		RawContent: payload.Content,
		Status:     model.NotificationPending,
	}
	n.AuditLog.Append("received from producer queue")
	if err := p.store.CreateNotification(ctx, n); err != nil {
		return fmt.Errorf("persist notification %s: %w", n.ID, err)
	}
	p.logger.Info("notification received", slog.String("notification_id", n.ID))
	return nil
}
