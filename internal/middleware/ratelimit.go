package middleware

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/mlbb-topup-bot/internal/bot/handlers"
	apperrors "github.com/Proton-105/mlbb-topup-bot/internal/errors"
	"github.com/Proton-105/mlbb-topup-bot/internal/ratelimit"
)

// RateLimitMiddleware enforces per-user rate limits for incoming Telegram updates.
type RateLimitMiddleware struct {
	limiter ratelimit.Limiter
	rules   *ratelimit.Rules
	log     *slog.Logger
	now     func() time.Time
}

// NewRateLimitMiddleware constructs a rate-limit middleware component.
func NewRateLimitMiddleware(limiter ratelimit.Limiter, rules *ratelimit.Rules, log *slog.Logger) *RateLimitMiddleware {
	if log == nil {
		log = slog.Default()
	}

	return &RateLimitMiddleware{
		limiter: limiter,
		rules:   rules,
		log:     log,
		now:     time.Now,
	}
}

// Handle returns a middleware that rejects updates over the user's limit
// with a rate-limit error carrying the retry delay.
func (m *RateLimitMiddleware) Handle(next handlers.Handler) handlers.Handler {
	if next == nil {
		return nil
	}

	return func(c telebot.Context) error {
		if m.limiter == nil || m.rules == nil {
			return next(c)
		}

		sender := c.Sender()
		if sender == nil || m.rules.IsWhitelisted(sender.ID) {
			return next(c)
		}

		if err := m.check(c, fmt.Sprintf("user:%d", sender.ID), m.rules.PerUserLimit()); err != nil {
			return err
		}

		command := CommandName(c)
		if limit, ok := m.rules.CommandLimit(command); ok {
			if err := m.check(c, fmt.Sprintf("user:%d:%s", sender.ID, command), limit); err != nil {
				return err
			}
		}

		return next(c)
	}
}

func (m *RateLimitMiddleware) check(c telebot.Context, key string, limit int) error {
	if limit <= 0 {
		return nil
	}

	ctx := handlers.Context(c)
	result, err := m.limiter.Check(ctx, key, limit, ratelimit.Window)
	switch {
	case errors.Is(err, ratelimit.ErrLimitExceeded), err == nil && !result.Allowed:
		retry := result.RetryAfter(m.now())
		m.log.WarnContext(ctx, "rate limit exceeded", slog.String("key", key), slog.Int("retry_after", retry))
		return apperrors.NewRateLimitError(retry)
	case err != nil:
		m.log.WarnContext(ctx, "rate limiter error", slog.String("key", key), slog.Any("error", err))
	}

	return nil
}
