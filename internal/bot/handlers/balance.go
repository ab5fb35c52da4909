package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/mlbb-topup-bot/internal/ledger"
	"github.com/Proton-105/mlbb-topup-bot/internal/notify"
)

// Balance returns a handler for the /balance command.
func (h *Handlers) Balance(c telebot.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	acc, err := h.ledger.Balance(Context(c), profileOf(sender))
	if err != nil {
		return err
	}

	text := fmt.Sprintf("💰 Balance: %s", notify.FormatMMK(acc.Balance))
	if pending := acc.PendingTopUp(); pending != nil {
		text += fmt.Sprintf("\nPending top-up: %s (%s)", notify.FormatMMK(pending.Amount), pending.ID)
	}

	return c.Send(text)
}

// History handles "/history [page]".
func (h *Handlers) History(c telebot.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	page := 1
	if a := args(c); len(a) > 0 {
		if n, err := strconv.Atoi(a[0]); err == nil {
			page = n
		}
	}

	hp, err := h.ledger.History(Context(c), userID(sender), page, h.pageSize)
	if err != nil {
		return err
	}

	return c.Send(renderHistory(hp), h.kb.History(hp.Page, hp.Pages))
}

// HistoryPage is the callback of the history pagination buttons.
func (h *Handlers) HistoryPage(c telebot.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	page, err := strconv.Atoi(callbackArg(c))
	if err != nil {
		return respondCallback(c, "Unknown page", false)
	}

	hp, err := h.ledger.History(Context(c), userID(sender), page, h.pageSize)
	if err != nil {
		return err
	}

	if err := c.Edit(renderHistory(hp), h.kb.History(hp.Page, hp.Pages)); err != nil && !errors.Is(err, telebot.ErrSameMessageContent) {
		h.log.Warn("failed to edit history page", slog.Any("error", err))
	}
	return respondCallback(c, "", false)
}

func renderHistory(hp *ledger.HistoryPage) string {
	if hp.Total == 0 {
		return "📜 No orders or top-ups yet."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📜 History (%d entries)\n", hp.Total)
	for _, e := range hp.Entries {
		kind := "🛒"
		if e.Kind == ledger.HistoryTopUp {
			kind = "💰"
		}
		fmt.Fprintf(&b, "\n%s %s\n%s | %s | %s\n%s\n",
			kind, e.ID, e.Label, signedMMK(e.Amount), e.Status, e.CreatedAt.Format("2006-01-02 15:04"))
	}

	return b.String()
}

func signedMMK(amount int64) string {
	if amount > 0 {
		return "+" + notify.FormatMMK(amount)
	}
	return notify.FormatMMK(amount)
}
