package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/mlbb-topup-bot/internal/domain"
	"github.com/Proton-105/mlbb-topup-bot/internal/notify"
)

type mockManager struct {
	mock.Mock
}

func (m *mockManager) Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	args := m.Called(ctx, task)
	info, _ := args.Get(0).(*asynq.TaskInfo)
	return info, args.Error(1)
}

func (m *mockManager) Close() error {
	return m.Called().Error(0)
}

type capturePublisher struct {
	events []notify.Event
}

func (p *capturePublisher) Publish(_ context.Context, ev notify.Event) {
	p.events = append(p.events, ev)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewNotificationTaskCarriesEvent(t *testing.T) {
	ev := notify.Event{
		Type:       notify.EventOrderPlaced,
		Recipients: []notify.Recipient{notify.ToAdmins(""), notify.ToOps()},
		User:       domain.Profile{UserID: "42"},
		Order:      &domain.Order{ID: "ORD1", Price: 5100},
	}

	task, err := NewNotificationTask(ev)
	require.NoError(t, err)
	assert.Equal(t, TaskTypeNotification, task.Type())

	var payload NotificationPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, notify.EventOrderPlaced, payload.Event.Type)
	assert.Equal(t, int64(5100), payload.Event.Order.Price)
	assert.Len(t, payload.Event.Recipients, 2)
}

func TestQueuePublisherEnqueues(t *testing.T) {
	manager := &mockManager{}
	manager.On("Enqueue", mock.Anything, mock.MatchedBy(func(task *asynq.Task) bool {
		return task.Type() == TaskTypeNotification
	})).Return(&asynq.TaskInfo{ID: "1"}, nil).Once()

	fallback := &capturePublisher{}
	p := NewQueuePublisher(manager, fallback, testLogger())
	p.Publish(context.Background(), notify.Event{Type: notify.EventTopUpSubmitted})

	manager.AssertExpectations(t)
	assert.Empty(t, fallback.events)
}

func TestQueuePublisherFallsBack(t *testing.T) {
	manager := &mockManager{}
	manager.On("Enqueue", mock.Anything, mock.Anything).Return(nil, errors.New("redis down")).Once()

	fallback := &capturePublisher{}
	p := NewQueuePublisher(manager, fallback, testLogger())
	p.Publish(context.Background(), notify.Event{Type: notify.EventTopUpSubmitted})

	require.Len(t, fallback.events, 1)
	assert.Equal(t, notify.EventTopUpSubmitted, fallback.events[0].Type)
}

func TestDraftExpireTask(t *testing.T) {
	task := NewDraftExpireTask()
	assert.Equal(t, TaskTypeDraftExpire, task.Type())
}
