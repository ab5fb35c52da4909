package handlers

import (
	"fmt"
	"strings"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/mlbb-topup-bot/internal/ledger"
	"github.com/Proton-105/mlbb-topup-bot/internal/notify"
)

const orderUsage = "Send /mmb <game_id> <server_id> <product>, for example /mmb 123456789 1234 86"

// Order handles "/mmb <game_id> <server_id> <product>". The game and server
// ids may also be written together as "123456789(1234)".
func (h *Handlers) Order(c telebot.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	gameID, serverID, product, ok := parseOrderArgs(args(c))
	if !ok {
		return usage(orderUsage)
	}

	res, err := h.ledger.PlaceOrder(Context(c), ledger.PlaceOrderRequest{
		User:        profileOf(sender),
		ProductCode: product,
		GameID:      gameID,
		ServerID:    serverID,
		ChatID:      chatID(c),
	})
	if err != nil {
		return err
	}

	o := res.Order
	return c.Send(fmt.Sprintf(
		"🛒 Order placed\nOrder: %s\nGame ID: %s (%s)\nProduct: %s\nPrice: %s\nBalance: %s\n\nAn admin will process it shortly.",
		o.ID, o.GameID, o.ServerID, o.ProductCode, notify.FormatMMK(o.Price), notify.FormatMMK(res.Balance),
	))
}

func parseOrderArgs(a []string) (gameID, serverID, product string, ok bool) {
	switch len(a) {
	case 3:
		return a[0], strings.Trim(a[1], "()"), a[2], true
	case 2:
		game, rest, found := strings.Cut(a[0], "(")
		if !found || !strings.HasSuffix(rest, ")") {
			return "", "", "", false
		}
		return game, strings.TrimSuffix(rest, ")"), a[1], true
	default:
		return "", "", "", false
	}
}

// Price renders the current price list to authorized users.
func (h *Handlers) Price(c telebot.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	if err := h.requireAuthorized(c, userID(sender)); err != nil {
		return err
	}

	var b strings.Builder
	b.WriteString("💎 Price list\n")

	for _, section := range h.prices.Catalog() {
		if len(section.Entries) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n%s\n", section.Title)
		for _, e := range section.Entries {
			fmt.Fprintf(&b, "%s - %s\n", e.Code, notify.FormatMMK(e.Price))
		}
	}

	b.WriteString("\nOrder with /mmb <game_id> <server_id> <product>")
	return c.Send(b.String())
}
