package notify

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Callback actions carried in inline button data as "<action>:<id>".
const (
	ActionTopUpApprove    = "topup_approve"
	ActionTopUpReject     = "topup_reject"
	ActionOrderConfirm    = "order_confirm"
	ActionOrderCancel     = "order_cancel"
	ActionRegisterApprove = "register_approve"
	ActionRegisterReject  = "register_reject"
)

type Button struct {
	Text string
	Data string
}

// Message is a rendered notification. When PhotoRef is set Text is its caption.
type Message struct {
	Text     string
	PhotoRef string
	Buttons  [][]Button
}

func CallbackData(action, id string) string {
	return action + ":" + id
}

// FormatMMK renders an amount with thousands separators.
func FormatMMK(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}

	digits := strconv.FormatInt(amount, 10)
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}

	return sign + b.String() + " MMK"
}

const timeLayout = "2006-01-02 15:04:05"

// Render builds the message a recipient of kind sees for ev.
func Render(ev Event, kind RecipientKind) Message {
	toStaff := kind == RecipientAdmin || kind == RecipientAdmins || kind == RecipientOps

	switch ev.Type {
	case EventOrderPlaced:
		return renderOrderPlaced(ev, toStaff)
	case EventOrderConfirmed, EventOrderCancelled:
		return renderOrderDecision(ev, toStaff)
	case EventTopUpSubmitted:
		return renderTopUpSubmitted(ev, toStaff)
	case EventTopUpApproved, EventTopUpRejected:
		return renderTopUpDecision(ev, toStaff)
	case EventBannedAttempt:
		return Message{Text: fmt.Sprintf(
			"⚠️ Banned account attempt\nUser: %s (%s)\nGame ID: %s",
			ev.User.Mention(), ev.User.UserID, ev.GameID,
		)}
	case EventBalanceAdjusted:
		if toStaff {
			return Message{Text: fmt.Sprintf(
				"Balance of %s adjusted by %s by %s. New balance: %s",
				ev.User.UserID, signed(ev.Amount), ev.Actor.Name, FormatMMK(ev.Balance),
			)}
		}
		return Message{Text: fmt.Sprintf(
			"Your balance was adjusted by %s.\nNew balance: %s",
			signed(ev.Amount), FormatMMK(ev.Balance),
		)}
	case EventRegistrationRequested:
		return Message{
			Text: fmt.Sprintf("📝 Registration request\nUser: %s (%s)\nName: %s", ev.User.Mention(), ev.User.UserID, ev.User.Name),
			Buttons: [][]Button{{
				{Text: "✅ Approve", Data: CallbackData(ActionRegisterApprove, ev.User.UserID)},
				{Text: "❌ Reject", Data: CallbackData(ActionRegisterReject, ev.User.UserID)},
			}},
		}
	case EventRegistrationApproved:
		return Message{Text: "🎉 Your registration was approved. Send /start to begin"}
	case EventRegistrationRejected:
		return Message{Text: "Your registration request was rejected"}
	case EventAdminMessage:
		return Message{Text: "💬 Message from the shop\n\n" + ev.Text}
	case EventOrderDone:
		return Message{Text: "🙏 Thank you for shopping with us!\n\n✅ Your order is done 🎉"}
	case EventOpsAnnouncement:
		return Message{Text: fmt.Sprintf("📢 Admin message from %s\n\n%s", ev.Actor.Name, ev.Text)}
	}

	return Message{Text: string(ev.Type)}
}

func renderOrderPlaced(ev Event, toStaff bool) Message {
	o := ev.Order
	if o == nil {
		return Message{Text: string(ev.Type)}
	}

	text := fmt.Sprintf(
		"🛒 New order\nOrder: %s\nUser: %s (%s)\nGame ID: %s (%s)\nProduct: %s\nPrice: %s\nTime: %s",
		o.ID, ev.User.Mention(), ev.User.UserID, o.GameID, o.ServerID, o.ProductCode,
		FormatMMK(o.Price), o.CreatedAt.Format(timeLayout),
	)
	if !toStaff {
		return Message{Text: text}
	}

	return Message{
		Text: text,
		Buttons: [][]Button{{
			{Text: "✅ Confirm", Data: CallbackData(ActionOrderConfirm, o.ID)},
			{Text: "❌ Cancel", Data: CallbackData(ActionOrderCancel, o.ID)},
		}},
	}
}

func renderOrderDecision(ev Event, toStaff bool) Message {
	o := ev.Order
	if o == nil {
		return Message{Text: string(ev.Type)}
	}

	verb := "confirmed ✅"
	if ev.Type == EventOrderCancelled {
		verb = "cancelled ❌"
	}

	if toStaff {
		return Message{Text: fmt.Sprintf(
			"Order %s %s by %s\nUser: %s\nProduct: %s (%s)\nAt: %s",
			o.ID, verb, ev.Actor.Name, ev.User.Mention(), o.ProductCode, FormatMMK(o.Price), resolvedAt(o.ResolvedAt),
		)}
	}

	text := fmt.Sprintf("Your order %s was %s\nProduct: %s\nGame ID: %s (%s)", o.ID, verb, o.ProductCode, o.GameID, o.ServerID)
	if ev.Type == EventOrderCancelled {
		text += fmt.Sprintf("\nRefunded: %s\nBalance: %s", FormatMMK(o.Price), FormatMMK(ev.Balance))
	}
	return Message{Text: text}
}

func renderTopUpSubmitted(ev Event, toStaff bool) Message {
	t := ev.TopUp
	if t == nil {
		return Message{Text: string(ev.Type)}
	}

	text := fmt.Sprintf(
		"💰 Top-up request\nID: %s\nUser: %s (%s)\nAmount: %s\nChannel: %s\nTime: %s",
		t.ID, ev.User.Mention(), ev.User.UserID, FormatMMK(t.Amount), strings.ToUpper(t.Channel), t.CreatedAt.Format(timeLayout),
	)

	msg := Message{Text: text, PhotoRef: ev.ImageRef}
	if toStaff {
		msg.Buttons = [][]Button{{
			{Text: "✅ Approve", Data: CallbackData(ActionTopUpApprove, t.ID)},
			{Text: "❌ Reject", Data: CallbackData(ActionTopUpReject, t.ID)},
		}}
	}
	return msg
}

func renderTopUpDecision(ev Event, toStaff bool) Message {
	t := ev.TopUp
	if t == nil {
		return Message{Text: string(ev.Type)}
	}

	approved := ev.Type == EventTopUpApproved
	if toStaff {
		verb := "approved ✅"
		if !approved {
			verb = "rejected ❌"
		}
		return Message{Text: fmt.Sprintf(
			"Top-up %s %s by %s\nUser: %s\nAmount: %s\nAt: %s",
			t.ID, verb, ev.Actor.Name, ev.User.Mention(), FormatMMK(t.Amount), resolvedAt(t.ResolvedAt),
		)}
	}

	if approved {
		return Message{Text: fmt.Sprintf(
			"✅ Your top-up was approved\nCredited: %s\nBalance: %s",
			FormatMMK(t.Amount), FormatMMK(ev.Balance),
		)}
	}
	return Message{Text: fmt.Sprintf(
		"❌ Your top-up of %s was rejected. Contact an admin if you think this is a mistake",
		FormatMMK(t.Amount),
	)}
}

func signed(amount int64) string {
	if amount > 0 {
		return "+" + FormatMMK(amount)
	}
	return FormatMMK(amount)
}

func resolvedAt(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(timeLayout)
}
