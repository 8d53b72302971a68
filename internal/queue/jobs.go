package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	// NotificationReceivedTask is enqueued by producers for each newly
	// produced archive file.
	NotificationReceivedTask = "notification:received"
)

// NotificationPayload is serialized into the task so the intake worker can
// persist the event. ID doubles as the id of the book the notification may
// become.
type NotificationPayload struct {
	ID      string         `json:"id"`
	Content map[string]any `json:"content"`
}

// EnqueueNotification enqueues a production event. The id must be a UUID;
// everything else about the content is validated later by the mill.
func EnqueueNotification(ctx context.Context, client *asynq.Client, payload NotificationPayload) error {
	if _, err := uuid.Parse(payload.ID); err != nil {
		return fmt.Errorf("notification id: %w", err)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	task := asynq.NewTask(NotificationReceivedTask, data)
	if _, err := client.EnqueueContext(ctx, task, asynq.MaxRetry(5)); err != nil {
		return fmt.Errorf("enqueue notification task: %w", err)
	}
	return nil
}
