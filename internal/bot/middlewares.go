package bot

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"strconv"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/mlbb-topup-bot/internal/bot/handlers"
	errors "github.com/Proton-105/mlbb-topup-bot/internal/errors"
	"github.com/Proton-105/mlbb-topup-bot/pkg/logger"
	"github.com/Proton-105/mlbb-topup-bot/pkg/metrics"
)

const fallbackUserMessage = "⚠️ Something went wrong. Please try again later."

// RecoveryMiddleware catches panics, reports them via the centralized handler, and notifies the user.
func RecoveryMiddleware(log *slog.Logger, errHandler *errors.Handler) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Error("panic recovered in handler", slog.Any("panic", r), slog.String("stack", string(debug.Stack())))

					userMsg := fallbackUserMessage
					if errHandler != nil {
						appErr := errors.NewStateError(fmt.Sprintf("panic recovered: %v", r))
						appErr.Severity = errors.SeverityCritical
						if msg, _ := errHandler.Handle(handlers.Context(c), appErr); msg != "" {
							userMsg = msg
						}
					}

					if c != nil {
						if sendErr := reply(c, userMsg); sendErr != nil {
							log.Error("failed to notify user about panic", slog.Any("error", sendErr))
						}
					}

					err = nil
				}
			}()

			return next(c)
		}
	}
}

// ErrorHandlingMiddleware turns handler errors into user-facing replies.
// Callback errors are shown as an alert on the pressed button.
func ErrorHandlingMiddleware(errHandler *errors.Handler) handlers.Middleware {
	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}

			if appErr, ok := errors.As(err); ok {
				metrics.RecordError(string(appErr.Kind), string(appErr.Severity))
			} else {
				metrics.RecordError("unknown", string(errors.SeverityHigh))
			}

			userMsg := fallbackUserMessage
			if errHandler != nil {
				if msg, _ := errHandler.Handle(handlers.Context(c), err); msg != "" {
					userMsg = msg
				}
			}

			if c != nil {
				_ = reply(c, userMsg)
			}

			return nil
		}
	}
}

func reply(c telebot.Context, text string) error {
	if c.Callback() != nil {
		return c.Respond(&telebot.CallbackResponse{Text: text, ShowAlert: true})
	}
	return c.Send(text)
}

// LoggingMiddleware gives each update a correlation id and logs its outcome.
func LoggingMiddleware(log *slog.Logger) handlers.Middleware {
	if log == nil {
		log = slog.Default()
	}

	return func(next handlers.Handler) handlers.Handler {
		if next == nil {
			return nil
		}

		return func(c telebot.Context) error {
			start := time.Now()

			ctx := logger.WithCorrelationID(handlers.Context(c), "")
			handlers.WithContext(c, ctx)

			userID := ""
			if c.Sender() != nil {
				userID = strconv.FormatInt(c.Sender().ID, 10)
			}

			action := c.Text()
			if cb := c.Callback(); cb != nil {
				action = cb.Data
			} else if msg := c.Message(); msg != nil && msg.Photo != nil {
				action = "photo"
			}

			attrs := []any{
				slog.String("user_id", userID),
				slog.String("action", action),
			}

			log.DebugContext(ctx, "handling update", attrs...)
			err := next(c)
			log.InfoContext(ctx, "handled update", append(attrs,
				slog.Duration("duration", time.Since(start)),
				slog.Any("error", err),
			)...)

			return err
		}
	}
}
