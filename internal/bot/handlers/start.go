package handlers

import (
	"fmt"
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/mlbb-topup-bot/internal/bot/keyboard"
)

const userHelp = `Commands:
/price - price list
/mmb <game_id> <server_id> <product> - place an order
/topup <amount> - add funds to your balance
/balance - current balance
/history - past orders and top-ups
/cancel - cancel an unfinished top-up`

// Start greets the user. Unregistered users are offered a registration
// button, everyone else gets the main menu.
func (h *Handlers) Start(c telebot.Context) error {
	sender := c.Sender()
	if sender == nil {
		h.log.Warn("start handler invoked without sender")
		return nil
	}

	ctx := Context(c)
	id := userID(sender)

	ok, err := h.access.IsAuthorized(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return c.Send(
			fmt.Sprintf("Welcome, %s!\nThis shop is invite only. Request access and an admin will review it.", profileOf(sender).Mention()),
			h.kb.RegisterButton(),
		)
	}

	text := fmt.Sprintf("Welcome back, %s!\n\n%s", profileOf(sender).Mention(), userHelp)
	if admin, err := h.access.IsAdmin(ctx, id); err == nil && admin {
		text += "\n\nAdmin commands: /adminhelp"
	}

	return c.Send(text, keyboard.MainMenu())
}

// Register asks the admins to authorize the sender.
func (h *Handlers) Register(c telebot.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	requested, err := h.ledger.RequestRegistration(Context(c), profileOf(sender))
	if err != nil {
		return err
	}
	if !requested {
		return c.Send("You are already registered. Send /start to see the menu.")
	}

	h.log.Info("registration request sent", slog.String("user_id", userID(sender)))
	return c.Send("✅ Your request was sent to the admins. You will be notified once it is reviewed.")
}

// RegisterRequest is the callback of the registration button.
func (h *Handlers) RegisterRequest(c telebot.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	requested, err := h.ledger.RequestRegistration(Context(c), profileOf(sender))
	if err != nil {
		return err
	}
	if !requested {
		return respondCallback(c, "You are already registered", false)
	}

	if err := c.Edit("✅ Your request was sent to the admins. You will be notified once it is reviewed."); err != nil {
		h.log.Warn("failed to edit registration message", slog.Any("error", err))
	}
	return respondCallback(c, "Request sent", false)
}

// Unknown answers text that matched neither a command nor a session phase.
func (h *Handlers) Unknown(c telebot.Context) error {
	if c.Message() == nil {
		return nil
	}
	return c.Send("I did not understand that. Send /start to see the menu.", keyboard.MainMenu())
}
