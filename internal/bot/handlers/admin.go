package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/mlbb-topup-bot/internal/domain"
	apperrors "github.com/Proton-105/mlbb-topup-bot/internal/errors"
	"github.com/Proton-105/mlbb-topup-bot/internal/notify"
	"github.com/Proton-105/mlbb-topup-bot/internal/pricing"
)

const adminHelp = `Admin commands:
/approve <topup_id> - approve a top-up
/reject <topup_id> - reject a top-up
/grant <user_id> <amount> - add to a balance
/deduct <user_id> <amount> - take from a balance
/ban <user_id> - revoke access
/unban <user_id> - grant access
/setprice <code> <price> - set one price
/setprice normal|2x <prices...> - set a price group in list order
/setprice wp1 <price> - set the weekly pass base (wp2..wp10 follow)
/removeprice <code> - restore the default price
/maintenance [orders|topups|general on|off] - show or toggle maintenance
/report d|m|y [from] [to] - sales report
/reply <user_id> <message> - message a user
/done <user_id> - tell a user their order is done
/sendgroup <message> - post to the operations channel

Owner only:
/addadm <user_id>, /unadm <user_id>
/setpay <kpay|wave> number|name <value>`

type decisionFunc func(ctx context.Context, id string, admin domain.Actor) (status string, err error)

// decide runs an admin decision button and marks the notification it was
// pressed on so other admins see the outcome.
func (h *Handlers) decide(c telebot.Context, apply decisionFunc) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	id := callbackArg(c)
	if id == "" {
		return respondCallback(c, "Malformed button", true)
	}

	status, err := apply(Context(c), id, actorOf(sender))
	if err != nil {
		return err
	}

	h.markDecided(c, status)
	return respondCallback(c, status, false)
}

func (h *Handlers) markDecided(c telebot.Context, status string) {
	msg := c.Message()
	if msg == nil {
		return
	}

	var err error
	if msg.Photo != nil {
		err = c.EditCaption(msg.Caption + "\n\n" + status)
	} else {
		err = c.Edit(msg.Text + "\n\n" + status)
	}
	if err != nil {
		h.log.Warn("failed to mark notification as decided", slog.Int("message_id", msg.ID), slog.Any("error", err))
	}
}

func (h *Handlers) ApproveTopUpButton(c telebot.Context) error {
	return h.decide(c, func(ctx context.Context, id string, admin domain.Actor) (string, error) {
		res, err := h.ledger.ApproveTopUp(ctx, id, admin)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("✅ Approved by %s. Balance: %s", admin.Name, notify.FormatMMK(res.Balance)), nil
	})
}

func (h *Handlers) RejectTopUpButton(c telebot.Context) error {
	return h.decide(c, func(ctx context.Context, id string, admin domain.Actor) (string, error) {
		if _, err := h.ledger.RejectTopUp(ctx, id, admin); err != nil {
			return "", err
		}
		return fmt.Sprintf("❌ Rejected by %s", admin.Name), nil
	})
}

func (h *Handlers) ConfirmOrderButton(c telebot.Context) error {
	return h.decide(c, func(ctx context.Context, id string, admin domain.Actor) (string, error) {
		if _, err := h.ledger.ConfirmOrder(ctx, id, admin); err != nil {
			return "", err
		}
		return fmt.Sprintf("✅ Confirmed by %s", admin.Name), nil
	})
}

func (h *Handlers) CancelOrderButton(c telebot.Context) error {
	return h.decide(c, func(ctx context.Context, id string, admin domain.Actor) (string, error) {
		res, err := h.ledger.CancelOrder(ctx, id, admin)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("❌ Cancelled by %s, %s refunded", admin.Name, notify.FormatMMK(res.Order.Price)), nil
	})
}

func (h *Handlers) ApproveRegistrationButton(c telebot.Context) error {
	return h.decide(c, func(ctx context.Context, id string, admin domain.Actor) (string, error) {
		if err := h.ledger.ApproveRegistration(ctx, admin, id); err != nil {
			return "", err
		}
		return fmt.Sprintf("✅ Access granted by %s", admin.Name), nil
	})
}

func (h *Handlers) RejectRegistrationButton(c telebot.Context) error {
	return h.decide(c, func(ctx context.Context, id string, admin domain.Actor) (string, error) {
		if err := h.ledger.RejectRegistration(ctx, admin, id); err != nil {
			return "", err
		}
		return fmt.Sprintf("❌ Request rejected by %s", admin.Name), nil
	})
}

// ApproveTopUp handles "/approve <topup_id>".
func (h *Handlers) ApproveTopUp(c telebot.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	a := args(c)
	if len(a) != 1 {
		return usage("Send /approve <topup_id>")
	}

	res, err := h.ledger.ApproveTopUp(Context(c), a[0], actorOf(sender))
	if err != nil {
		return err
	}

	return c.Send(fmt.Sprintf("✅ Top-up %s approved. %s credited to %s, balance %s",
		res.TopUp.ID, notify.FormatMMK(res.TopUp.Amount), res.User.Mention(), notify.FormatMMK(res.Balance)))
}

// RejectTopUp handles "/reject <topup_id>".
func (h *Handlers) RejectTopUp(c telebot.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	a := args(c)
	if len(a) != 1 {
		return usage("Send /reject <topup_id>")
	}

	res, err := h.ledger.RejectTopUp(Context(c), a[0], actorOf(sender))
	if err != nil {
		return err
	}

	return c.Send(fmt.Sprintf("❌ Top-up %s of %s rejected", res.TopUp.ID, res.User.Mention()))
}

func (h *Handlers) Grant(c telebot.Context) error {
	return h.adjust(c, "/grant", true)
}

func (h *Handlers) Deduct(c telebot.Context) error {
	return h.adjust(c, "/deduct", false)
}

func (h *Handlers) adjust(c telebot.Context, command string, credit bool) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	a := args(c)
	if len(a) != 2 {
		return usage(fmt.Sprintf("Send %s <user_id> <amount>", command))
	}
	target, err := parseUserID(a[0])
	if err != nil {
		return err
	}
	amount, err := parseAmount("amount", a[1])
	if err != nil {
		return err
	}

	ctx := Context(c)
	admin := actorOf(sender)

	var balance int64
	if credit {
		balance, err = h.ledger.GrantBalance(ctx, admin, target, amount)
	} else {
		balance, err = h.ledger.DeductBalance(ctx, admin, target, amount)
	}
	if err != nil {
		return err
	}

	verb := "added to"
	if !credit {
		verb = "deducted from"
	}
	return c.Send(fmt.Sprintf("%s %s %s. New balance: %s", notify.FormatMMK(amount), verb, target, notify.FormatMMK(balance)))
}

// Ban revokes a user's access.
func (h *Handlers) Ban(c telebot.Context) error {
	return h.userCommand(c, "/ban", func(ctx context.Context, actor, target string) (string, error) {
		if err := h.access.Revoke(ctx, actor, target); err != nil {
			return "", err
		}
		return fmt.Sprintf("🚫 %s can no longer use the bot", target), nil
	})
}

// Unban authorizes a user. It also lifts an awaiting-approval restriction.
func (h *Handlers) Unban(c telebot.Context) error {
	return h.userCommand(c, "/unban", func(ctx context.Context, actor, target string) (string, error) {
		if err := h.access.Authorize(ctx, actor, target); err != nil {
			return "", err
		}
		return fmt.Sprintf("✅ %s can use the bot", target), nil
	})
}

func (h *Handlers) AddAdmin(c telebot.Context) error {
	return h.userCommand(c, "/addadm", func(ctx context.Context, actor, target string) (string, error) {
		if err := h.access.AddAdmin(ctx, actor, target); err != nil {
			return "", err
		}
		return fmt.Sprintf("👮 %s is now an admin", target), nil
	})
}

func (h *Handlers) RemoveAdmin(c telebot.Context) error {
	return h.userCommand(c, "/unadm", func(ctx context.Context, actor, target string) (string, error) {
		if err := h.access.RemoveAdmin(ctx, actor, target); err != nil {
			return "", err
		}
		return fmt.Sprintf("%s is no longer an admin", target), nil
	})
}

func (h *Handlers) userCommand(c telebot.Context, command string, fn func(ctx context.Context, actor, target string) (string, error)) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	a := args(c)
	if len(a) != 1 {
		return usage(fmt.Sprintf("Send %s <user_id>", command))
	}
	target, err := parseUserID(a[0])
	if err != nil {
		return err
	}

	reply, err := fn(Context(c), userID(sender), target)
	if err != nil {
		return err
	}
	return c.Send(reply)
}

// SetPrice handles the three /setprice forms.
func (h *Handlers) SetPrice(c telebot.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	ctx := Context(c)
	if err := h.access.RequireAdmin(ctx, userID(sender)); err != nil {
		return err
	}

	a := args(c)
	if len(a) < 2 {
		return usage("Send /setprice <code> <price>, /setprice normal|2x <prices...> or /setprice wp1 <price>")
	}

	code := strings.ToLower(a[0])
	prices := make([]int64, 0, len(a)-1)
	for _, raw := range a[1:] {
		p, err := parseAmount("price", raw)
		if err != nil {
			return err
		}
		prices = append(prices, p)
	}

	if _, ok := pricing.Groups[code]; ok {
		if err := h.prices.SetGroup(ctx, code, prices); err != nil {
			return err
		}
		h.log.Info("price group updated", slog.String("group", code), slog.String("actor", userID(sender)))
		return c.Send(fmt.Sprintf("✅ %d %s prices updated", len(prices), code))
	}

	if len(prices) != 1 {
		return usage("Send /setprice <code> <price>")
	}

	if code == pricing.WeeklyPassCode(1) {
		if err := h.prices.SetWeeklyPassBase(ctx, prices[0]); err != nil {
			return err
		}
		return c.Send(fmt.Sprintf("✅ Weekly pass base set to %s, wp2..wp10 updated", notify.FormatMMK(prices[0])))
	}

	if err := h.prices.SetOverride(ctx, code, prices[0]); err != nil {
		return err
	}
	h.log.Info("price updated", slog.String("code", code), slog.Int64("price", prices[0]), slog.String("actor", userID(sender)))
	return c.Send(fmt.Sprintf("✅ %s now costs %s", code, notify.FormatMMK(prices[0])))
}

func (h *Handlers) RemovePrice(c telebot.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	ctx := Context(c)
	if err := h.access.RequireAdmin(ctx, userID(sender)); err != nil {
		return err
	}

	a := args(c)
	if len(a) != 1 {
		return usage("Send /removeprice <code>")
	}

	if err := h.prices.RemoveOverride(ctx, a[0]); err != nil {
		return err
	}
	return c.Send(fmt.Sprintf("✅ Custom price of %s removed", strings.ToLower(a[0])))
}

// Maintenance shows the switches or toggles one: "/maintenance <feature> on|off".
func (h *Handlers) Maintenance(c telebot.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	ctx := Context(c)
	actor := userID(sender)
	a := args(c)

	switch len(a) {
	case 0:
		if err := h.access.RequireAdmin(ctx, actor); err != nil {
			return err
		}
		states, err := h.settings.Maintenance(ctx)
		if err != nil {
			return err
		}
		return c.Send(renderMaintenance(states))
	case 2:
		on, ok := map[string]bool{"on": true, "off": false}[strings.ToLower(a[1])]
		if !ok {
			return usage("Send /maintenance <feature> on|off")
		}
		feature := strings.ToLower(a[0])
		if err := h.settings.SetMaintenance(ctx, actor, feature, on); err != nil {
			return err
		}
		state := "enabled ✅"
		if !on {
			state = "disabled 🔧"
		}
		return c.Send(fmt.Sprintf("%s is now %s", feature, state))
	default:
		return usage("Send /maintenance <feature> on|off")
	}
}

func renderMaintenance(states map[string]bool) string {
	features := make([]string, 0, len(states))
	for f := range states {
		features = append(features, f)
	}
	sort.Strings(features)

	var b strings.Builder
	b.WriteString("🔧 Features\n")
	for _, f := range features {
		mark := "✅ on"
		if !states[f] {
			mark = "🔧 off"
		}
		fmt.Fprintf(&b, "%s: %s\n", f, mark)
	}
	return b.String()
}

// SetPay handles "/setpay <channel> number|name <value>".
func (h *Handlers) SetPay(c telebot.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	a := args(c)
	if len(a) < 3 {
		return usage("Send /setpay <kpay|wave> number|name <value>")
	}

	channel, field := strings.ToLower(a[0]), strings.ToLower(a[1])
	value := strings.Join(a[2:], " ")
	if err := h.settings.SetPayment(Context(c), userID(sender), channel, field, value); err != nil {
		return err
	}

	return c.Send(fmt.Sprintf("✅ %s %s set to %s", strings.ToUpper(channel), field, value))
}

func (h *Handlers) AdminHelp(c telebot.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	if err := h.access.RequireAdmin(Context(c), userID(sender)); err != nil {
		return err
	}
	return c.Send(adminHelp)
}

// Reply handles "/reply <user_id> <message>".
func (h *Handlers) Reply(c telebot.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	a := args(c)
	if len(a) < 2 {
		return usage("Send /reply <user_id> <message>")
	}
	target, err := parseUserID(a[0])
	if err != nil {
		return err
	}

	if err := h.ledger.MessageUser(Context(c), actorOf(sender), target, strings.Join(a[1:], " ")); err != nil {
		return err
	}
	return c.Send(fmt.Sprintf("✅ Message sent to %s", target))
}

// Done handles "/done <user_id>".
func (h *Handlers) Done(c telebot.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	a := args(c)
	if len(a) != 1 {
		return usage("Send /done <user_id>")
	}
	target, err := parseUserID(a[0])
	if err != nil {
		return err
	}

	if err := h.ledger.ThankUser(Context(c), actorOf(sender), target); err != nil {
		return err
	}
	return c.Send(fmt.Sprintf("✅ %s was told their order is done", target))
}

// SendGroup handles "/sendgroup <message>".
func (h *Handlers) SendGroup(c telebot.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	a := args(c)
	if len(a) == 0 {
		return usage("Send /sendgroup <message>")
	}

	if err := h.ledger.AnnounceToOps(Context(c), actorOf(sender), strings.Join(a, " ")); err != nil {
		return err
	}
	return c.Send("✅ Message posted to the operations channel")
}

func parseUserID(raw string) (string, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return "", apperrors.NewValidationError("user", "expected a numeric Telegram user id")
	}
	return strconv.FormatInt(id, 10), nil
}
