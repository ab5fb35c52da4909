package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/Proton-105/mlbb-topup-bot/internal/jobs"
	"github.com/Proton-105/mlbb-topup-bot/internal/notify"
)

// Deliverer sends one event to its recipients.
type Deliverer interface {
	Deliver(ctx context.Context, ev notify.Event) (sent, failed int)
}

type NotificationHandler struct {
	deliverer Deliverer
	log       *slog.Logger
}

func NewNotificationHandler(deliverer Deliverer, log *slog.Logger) *NotificationHandler {
	if log == nil {
		log = slog.Default()
	}

	return &NotificationHandler{deliverer: deliverer, log: log}
}

// ProcessTask delivers the event. Per-recipient failures are logged by the
// deliverer and never fail the task.
func (h *NotificationHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload jobs.NotificationPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		h.log.ErrorContext(ctx, "notification: failed to decode payload", slog.String("task_type", t.Type()), slog.String("error", err.Error()))
		return fmt.Errorf("decode notification payload: %w: %w", err, asynq.SkipRetry)
	}

	sent, failed := h.deliverer.Deliver(ctx, payload.Event)
	h.log.DebugContext(ctx, "notification delivered",
		slog.String("event", string(payload.Event.Type)),
		slog.Int("sent", sent),
		slog.Int("failed", failed),
	)

	return nil
}
