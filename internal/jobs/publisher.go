package jobs

import (
	"context"
	"log/slog"

	"github.com/Proton-105/mlbb-topup-bot/internal/notify"
)

// QueuePublisher hands notifications to the asynq queue so any instance's
// worker can deliver them. When enqueueing fails the event goes to fallback.
type QueuePublisher struct {
	manager  Manager
	fallback notify.Publisher
	log      *slog.Logger
}

var _ notify.Publisher = (*QueuePublisher)(nil)

func NewQueuePublisher(manager Manager, fallback notify.Publisher, log *slog.Logger) *QueuePublisher {
	if fallback == nil {
		fallback = notify.Nop{}
	}
	if log == nil {
		log = slog.Default()
	}

	return &QueuePublisher{manager: manager, fallback: fallback, log: log}
}

func (p *QueuePublisher) Publish(ctx context.Context, ev notify.Event) {
	task, err := NewNotificationTask(ev)
	if err == nil {
		_, err = p.manager.Enqueue(context.WithoutCancel(ctx), task)
	}
	if err != nil {
		p.log.Warn("notification enqueue failed, delivering in process",
			slog.String("event", string(ev.Type)),
			slog.Any("error", err),
		)
		p.fallback.Publish(ctx, ev)
	}
}
