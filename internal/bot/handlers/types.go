package handlers

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/mlbb-topup-bot/internal/access"
	"github.com/Proton-105/mlbb-topup-bot/internal/bot/keyboard"
	"github.com/Proton-105/mlbb-topup-bot/internal/domain"
	apperrors "github.com/Proton-105/mlbb-topup-bot/internal/errors"
	"github.com/Proton-105/mlbb-topup-bot/internal/ledger"
	"github.com/Proton-105/mlbb-topup-bot/internal/pricing"
	"github.com/Proton-105/mlbb-topup-bot/internal/reports"
	"github.com/Proton-105/mlbb-topup-bot/internal/settings"
)

// Handler processes bot commands.
type Handler func(c telebot.Context) error

// CallbackHandler processes inline callback events.
type CallbackHandler func(c telebot.Context) error

// Middleware wraps handlers with additional behavior.
type Middleware func(Handler) Handler

const requestContextKey = "request_context"

// WithContext attaches the request context to the update.
func WithContext(c telebot.Context, ctx context.Context) {
	c.Set(requestContextKey, ctx)
}

// Context returns the request context set by WithContext.
func Context(c telebot.Context) context.Context {
	if c != nil {
		if ctx, ok := c.Get(requestContextKey).(context.Context); ok && ctx != nil {
			return ctx
		}
	}
	return context.Background()
}

type Deps struct {
	Ledger   *ledger.Service
	Access   *access.Registry
	Settings *settings.Service
	Prices   *pricing.Table
	Reports  *reports.Service
	Keyboard *keyboard.Builder
	// HistoryPageSize is the number of entries per /history page.
	HistoryPageSize int
	Log             *slog.Logger
}

// Handlers holds every command, callback and state handler of the bot.
type Handlers struct {
	ledger   *ledger.Service
	access   *access.Registry
	settings *settings.Service
	prices   *pricing.Table
	reports  *reports.Service
	kb       *keyboard.Builder
	pageSize int
	log      *slog.Logger
}

func New(deps Deps) *Handlers {
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}

	kb := deps.Keyboard
	if kb == nil {
		kb = keyboard.NewBuilder(log)
	}

	pageSize := deps.HistoryPageSize
	if pageSize <= 0 {
		pageSize = 5
	}

	return &Handlers{
		ledger:   deps.Ledger,
		access:   deps.Access,
		settings: deps.Settings,
		prices:   deps.Prices,
		reports:  deps.Reports,
		kb:       kb,
		pageSize: pageSize,
		log:      log,
	}
}

func userID(u *telebot.User) string {
	return strconv.FormatInt(u.ID, 10)
}

func profileOf(u *telebot.User) domain.Profile {
	return domain.Profile{
		UserID:   userID(u),
		Name:     strings.TrimSpace(u.FirstName + " " + u.LastName),
		Username: u.Username,
	}
}

func actorOf(u *telebot.User) domain.Actor {
	p := profileOf(u)
	return domain.Actor{ID: p.UserID, Name: p.Mention()}
}

// args returns the words following the command of a text message.
func args(c telebot.Context) []string {
	fields := strings.Fields(c.Text())
	if len(fields) <= 1 {
		return nil
	}
	return fields[1:]
}

// callbackArg returns the data part of "action:data".
func callbackArg(c telebot.Context) string {
	cb := c.Callback()
	if cb == nil {
		return ""
	}
	_, data, err := keyboard.DecodeCallback(cb.Data)
	if err != nil {
		return ""
	}
	return data
}

func chatID(c telebot.Context) int64 {
	if chat := c.Chat(); chat != nil {
		return chat.ID
	}
	if sender := c.Sender(); sender != nil {
		return sender.ID
	}
	return 0
}

func respondCallback(c telebot.Context, text string, alert bool) error {
	if c.Callback() == nil {
		return nil
	}
	return c.Respond(&telebot.CallbackResponse{
		Text:      text,
		ShowAlert: alert,
	})
}

func usage(text string) error {
	return apperrors.NewValidationError("usage", text)
}

// parseAmount accepts "50000", "50,000" and "50_000".
func parseAmount(field, raw string) (int64, error) {
	cleaned := strings.NewReplacer(",", "", "_", "").Replace(strings.TrimSpace(raw))
	amount, err := strconv.ParseInt(cleaned, 10, 64)
	if err != nil {
		return 0, apperrors.NewValidationError(field, "expected a whole number of MMK")
	}
	return amount, nil
}
