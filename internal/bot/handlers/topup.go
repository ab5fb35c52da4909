package handlers

import (
	"fmt"
	"log/slog"
	"strings"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/mlbb-topup-bot/internal/notify"
)

// TopUp handles "/topup <amount>".
func (h *Handlers) TopUp(c telebot.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	a := args(c)
	if len(a) != 1 {
		return usage("Send /topup <amount>, for example /topup 50000")
	}
	amount, err := parseAmount("amount", a[0])
	if err != nil {
		return err
	}

	prompt, err := h.ledger.StartTopUp(Context(c), profileOf(sender), amount)
	if err != nil {
		return err
	}

	return c.Send(
		fmt.Sprintf("Top-up amount: %s\nChoose a payment channel:", notify.FormatMMK(prompt.Amount)),
		h.kb.PaymentChannels(prompt.Channels),
	)
}

// SelectChannel is the callback of a payment channel button. It shows where
// to send the money and asks for the screenshot.
func (h *Handlers) SelectChannel(c telebot.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	sel, err := h.ledger.SelectChannel(Context(c), userID(sender), callbackArg(c))
	if err != nil {
		return err
	}
	if sel == nil {
		return respondCallback(c, "No top-up in progress. Send /topup <amount> to start", true)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Amount: %s\nChannel: %s\n", notify.FormatMMK(sel.Draft.Amount), strings.ToUpper(sel.Draft.Channel))
	if sel.Payment.Number != "" {
		fmt.Fprintf(&b, "Number: %s\n", sel.Payment.Number)
	}
	if sel.Payment.AccountName != "" {
		fmt.Fprintf(&b, "Name: %s\n", sel.Payment.AccountName)
	}
	b.WriteString("\nTransfer the amount, then send the payment screenshot here.")

	if err := c.Edit(b.String(), h.kb.CancelButton()); err != nil {
		h.log.Warn("failed to edit channel prompt", slog.Any("error", err))
		if err := c.Send(b.String(), h.kb.CancelButton()); err != nil {
			return err
		}
	}
	return respondCallback(c, "", false)
}

// Proof accepts the payment screenshot of a user whose channel is selected.
func (h *Handlers) Proof(c telebot.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	ref := imageRef(c.Message())
	if ref == "" {
		return c.Send("Please send the payment screenshot as a photo, or /cancel to stop.")
	}

	res, err := h.ledger.SubmitProof(Context(c), profileOf(sender), ref, chatID(c))
	if err != nil {
		return err
	}

	return c.Send(fmt.Sprintf(
		"📨 Screenshot received.\nTop-up %s for %s is waiting for admin approval.",
		res.TopUp.ID, notify.FormatMMK(res.TopUp.Amount),
	))
}

// DraftReminder answers messages sent while a channel is still to be chosen.
func (h *Handlers) DraftReminder(c telebot.Context) error {
	return c.Send("Choose a payment channel with the buttons above, or /cancel to stop.")
}

// AwaitingReminder answers anything a restricted user sends.
func (h *Handlers) AwaitingReminder(c telebot.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	return h.ledger.Guard(Context(c), userID(sender))
}

func imageRef(msg *telebot.Message) string {
	if msg == nil {
		return ""
	}
	if msg.Photo != nil {
		return msg.Photo.FileID
	}
	if msg.Document != nil && strings.HasPrefix(msg.Document.MIME, "image/") {
		return msg.Document.FileID
	}
	return ""
}
