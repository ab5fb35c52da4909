package handlers

import (
	telebot "gopkg.in/telebot.v3"

	apperrors "github.com/Proton-105/mlbb-topup-bot/internal/errors"
)

// RequireUnrestricted refuses commands from a user whose top-up awaits approval.
func (h *Handlers) RequireUnrestricted(next Handler) Handler {
	return func(c telebot.Context) error {
		if sender := c.Sender(); sender != nil {
			if err := h.ledger.Guard(Context(c), userID(sender)); err != nil {
				return err
			}
		}
		return next(c)
	}
}

func (h *Handlers) requireAuthorized(c telebot.Context, id string) error {
	ok, err := h.access.IsAuthorized(Context(c), id)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.NewUnauthorizedError()
	}
	return nil
}
