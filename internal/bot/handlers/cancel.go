package handlers

import (
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/mlbb-topup-bot/internal/bot/keyboard"
)

// Cancel discards an unfinished top-up and returns the user to the main menu.
func (h *Handlers) Cancel(c telebot.Context) error {
	sender := c.Sender()
	if sender == nil {
		h.log.Warn("cancel handler invoked without sender context")
		return nil
	}

	cancelled, err := h.ledger.CancelDraft(Context(c), userID(sender))
	if err != nil {
		return err
	}
	if !cancelled {
		return c.Send("Nothing to cancel.", keyboard.MainMenu())
	}

	return c.Send("Top-up cancelled. Returning to main menu.", keyboard.MainMenu())
}

// CancelTopUp is the callback of the cancel button under a top-up prompt.
func (h *Handlers) CancelTopUp(c telebot.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	cancelled, err := h.ledger.CancelDraft(Context(c), userID(sender))
	if err != nil {
		return err
	}
	if !cancelled {
		return respondCallback(c, "No top-up in progress", false)
	}

	if err := c.Edit("Top-up cancelled."); err != nil {
		h.log.Warn("failed to edit cancelled top-up prompt", slog.String("user_id", userID(sender)), slog.Any("error", err))
	}
	return respondCallback(c, "Cancelled", false)
}
