package middleware

import (
	"context"
	"errors"
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/mlbb-topup-bot/internal/bot/handlers"
	"github.com/Proton-105/mlbb-topup-bot/internal/idempotency"
)

// Idempotency runs callback handlers at most once per callback query, so a
// redelivered or double-tapped button cannot apply a decision twice.
func Idempotency(manager idempotency.Manager, log *slog.Logger) handlers.Middleware {
	if manager == nil {
		return func(next handlers.Handler) handlers.Handler {
			return next
		}
	}
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			key := extractIdempotencyKey(c)
			if key == "" {
				return next(c)
			}

			ctx := handlers.Context(c)
			result, err := manager.Execute(ctx, key, func(ctx context.Context) error {
				return next(c)
			})
			if errors.Is(err, idempotency.ErrRequestInProgress) || (err == nil && result.Duplicate) {
				log.DebugContext(ctx, "callback already handled", slog.String("key", key))
				return c.Respond()
			}

			return err
		}
	}
}

func extractIdempotencyKey(c telebot.Context) string {
	if c == nil {
		return ""
	}

	cb := c.Callback()
	if cb == nil || cb.ID == "" {
		return ""
	}

	return idempotency.GenerateKey("cb", cb.ID)
}
