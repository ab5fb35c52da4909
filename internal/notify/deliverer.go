package notify

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	apperrors "github.com/Proton-105/mlbb-topup-bot/internal/errors"
	"github.com/Proton-105/mlbb-topup-bot/pkg/metrics"
)

// Sender delivers one rendered message to a chat.
type Sender interface {
	Send(ctx context.Context, chatID int64, msg Message) error
}

// AdminDirectory lists who receives admin broadcasts.
type AdminDirectory interface {
	Admins(ctx context.Context) ([]string, error)
}

var deliveryRetryPolicy = apperrors.RetryPolicy{
	MaxRetries:     2,
	InitialBackoff: 200 * time.Millisecond,
	MaxBackoff:     2 * time.Second,
	Multiplier:     2,
}

// Deliverer expands recipient classes into chats and sends each message
// independently. A failing chat never stops delivery to the others.
type Deliverer struct {
	sender    Sender
	admins    AdminDirectory
	opsChatID int64
	breaker   *apperrors.CircuitBreaker
	retry     apperrors.RetryPolicy
	log       *slog.Logger
}

func NewDeliverer(sender Sender, admins AdminDirectory, opsChatID int64, log *slog.Logger) *Deliverer {
	if log == nil {
		log = slog.Default()
	}

	return &Deliverer{
		sender:    sender,
		admins:    admins,
		opsChatID: opsChatID,
		breaker:   apperrors.NewCircuitBreaker(),
		retry:     deliveryRetryPolicy,
		log:       log,
	}
}

type target struct {
	chatID int64
	kind   RecipientKind
}

// Deliver sends ev to every recipient and reports how many sends failed.
func (d *Deliverer) Deliver(ctx context.Context, ev Event) (sent, failed int) {
	for _, t := range d.expand(ctx, ev) {
		msg := Render(ev, t.kind)
		if err := d.send(ctx, t.chatID, msg); err != nil {
			failed++
			metrics.RecordNotification(string(ev.Type), "failed")
			d.log.Warn("notification delivery failed",
				slog.String("event", string(ev.Type)),
				slog.Int64("chat_id", t.chatID),
				slog.Any("error", err),
			)
			continue
		}
		sent++
		metrics.RecordNotification(string(ev.Type), "sent")
	}

	return sent, failed
}

func (d *Deliverer) send(ctx context.Context, chatID int64, msg Message) error {
	return apperrors.WithRetryPolicy(ctx, d.retry, func() error {
		// permanent failures (blocked bot, bad chat) must not trip the breaker
		var permanent error
		err := d.breaker.Call(func() error {
			err := d.sender.Send(ctx, chatID, msg)
			if err != nil && !apperrors.IsRetryable(err) {
				permanent = err
				return nil
			}
			return err
		})
		if permanent != nil {
			return permanent
		}
		return err
	})
}

func (d *Deliverer) expand(ctx context.Context, ev Event) []target {
	var (
		out  []target
		seen = make(map[int64]bool)
	)

	add := func(chatID int64, kind RecipientKind) {
		if chatID == 0 || seen[chatID] {
			return
		}
		seen[chatID] = true
		out = append(out, target{chatID: chatID, kind: kind})
	}

	for _, r := range ev.Recipients {
		switch r.Kind {
		case RecipientAdmin:
			add(parseChatID(r.ID), r.Kind)
		case RecipientAdmins:
			admins, err := d.admins.Admins(ctx)
			if err != nil {
				d.log.Error("failed to list admins for notification", slog.Any("error", err))
				continue
			}
			for _, id := range admins {
				if id != r.ID {
					add(parseChatID(id), r.Kind)
				}
			}
		case RecipientOps:
			add(d.opsChatID, r.Kind)
		case RecipientChat:
			add(r.ChatID, r.Kind)
		case RecipientUser:
			id := r.ID
			if id == "" {
				id = ev.User.UserID
			}
			add(parseChatID(id), r.Kind)
		}
	}

	return out
}

func parseChatID(id string) int64 {
	v, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0
	}
	return v
}
