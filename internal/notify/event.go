// Package notify fans lifecycle events out to admins, the operations
// channel, and users.
package notify

import (
	"context"
	"time"

	"github.com/Proton-105/mlbb-topup-bot/internal/domain"
)

type EventType string

const (
	EventOrderPlaced           EventType = "order.placed"
	EventOrderConfirmed        EventType = "order.confirmed"
	EventOrderCancelled        EventType = "order.cancelled"
	EventTopUpSubmitted        EventType = "topup.submitted"
	EventTopUpApproved         EventType = "topup.approved"
	EventTopUpRejected         EventType = "topup.rejected"
	EventBannedAttempt         EventType = "account.banned_attempt"
	EventBalanceAdjusted       EventType = "balance.adjusted"
	EventRegistrationRequested EventType = "registration.requested"
	EventRegistrationApproved  EventType = "registration.approved"
	EventRegistrationRejected  EventType = "registration.rejected"
	EventAdminMessage          EventType = "admin.message"
	EventOrderDone             EventType = "admin.order_done"
	EventOpsAnnouncement       EventType = "admin.ops_announcement"
)

type RecipientKind string

const (
	// RecipientAdmin is one specific admin.
	RecipientAdmin RecipientKind = "admin"
	// RecipientAdmins is every admin except Recipient.ID, if set.
	RecipientAdmins RecipientKind = "admins"
	// RecipientOps is the operations channel.
	RecipientOps RecipientKind = "ops"
	// RecipientChat is the conversation an order or top-up came from.
	RecipientChat RecipientKind = "chat"
	// RecipientUser is the account holder's private chat.
	RecipientUser RecipientKind = "user"
)

type Recipient struct {
	Kind   RecipientKind `json:"kind"`
	ID     string        `json:"id,omitempty"`
	ChatID int64         `json:"chat_id,omitempty"`
}

func ToAdmin(id string) Recipient {
	return Recipient{Kind: RecipientAdmin, ID: id}
}

// ToAdmins addresses every admin but except.
func ToAdmins(except string) Recipient {
	return Recipient{Kind: RecipientAdmins, ID: except}
}

func ToOps() Recipient {
	return Recipient{Kind: RecipientOps}
}

func ToChat(chatID int64) Recipient {
	return Recipient{Kind: RecipientChat, ChatID: chatID}
}

func ToUser(userID string) Recipient {
	return Recipient{Kind: RecipientUser, ID: userID}
}

// Event describes something that happened in the shop.
type Event struct {
	Type       EventType      `json:"type"`
	Recipients []Recipient    `json:"recipients"`
	User       domain.Profile `json:"user"`
	Actor      domain.Actor   `json:"actor,omitempty"`
	Order      *domain.Order  `json:"order,omitempty"`
	TopUp      *domain.TopUp  `json:"topup,omitempty"`
	ImageRef   string         `json:"image_ref,omitempty"`
	Balance    int64          `json:"balance"`
	Amount     int64          `json:"amount,omitempty"`
	GameID     string         `json:"game_id,omitempty"`
	Reason     string         `json:"reason,omitempty"`
	Text       string         `json:"text,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Publisher hands events to delivery. Publish never fails the caller.
type Publisher interface {
	Publish(ctx context.Context, ev Event)
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) {}
