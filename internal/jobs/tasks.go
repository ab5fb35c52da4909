package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"github.com/Proton-105/mlbb-topup-bot/internal/notify"
)

const (
	TaskTypeNotification = "notification:deliver"
	TaskTypeDraftExpire  = "draft:expire"
)

const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

// Queues are the asynq queue priorities used by the worker.
var Queues = map[string]int{
	QueueCritical: 6,
	QueueDefault:  3,
	QueueLow:      1,
}

type NotificationPayload struct {
	Event notify.Event `json:"event"`
}

// NewNotificationTask wraps ev for delivery by a worker. Deliveries are
// best-effort, so the task is never retried by asynq.
func NewNotificationTask(ev notify.Event) (*asynq.Task, error) {
	payload, err := json.Marshal(NotificationPayload{Event: ev})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(TaskTypeNotification, payload,
		asynq.Queue(QueueCritical),
		asynq.MaxRetry(0),
		asynq.Timeout(time.Minute),
	), nil
}

// NewDraftExpireTask triggers one sweep of abandoned top-up drafts.
func NewDraftExpireTask() *asynq.Task {
	return asynq.NewTask(TaskTypeDraftExpire, nil, asynq.Queue(QueueLow), asynq.MaxRetry(1))
}
