package middleware

import (
	"strings"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/mlbb-topup-bot/internal/bot/handlers"
	"github.com/Proton-105/mlbb-topup-bot/internal/bot/keyboard"
	"github.com/Proton-105/mlbb-topup-bot/pkg/metrics"
)

// Metrics measures execution time and status for bot handlers, reporting them to Prometheus.
func Metrics(next handlers.Handler) handlers.Handler {
	if next == nil {
		return nil
	}

	return func(c telebot.Context) error {
		start := time.Now()
		err := next(c)

		status := "ok"
		if err != nil {
			status = "error"
		}

		metrics.RecordCommand(CommandName(c), status, time.Since(start))

		return err
	}
}

// CommandName labels an update with a bounded name: the command, the
// callback action, "photo" or "text". Arguments never become labels.
func CommandName(c telebot.Context) string {
	if c == nil {
		return "unknown"
	}

	if cb := c.Callback(); cb != nil {
		if action, _, err := keyboard.DecodeCallback(cb.Data); err == nil {
			return "cb:" + action
		}
		return "cb:unknown"
	}

	if msg := c.Message(); msg != nil && (msg.Photo != nil || msg.Document != nil) {
		return "photo"
	}

	text := strings.TrimSpace(c.Text())
	if cmd, ok := keyboard.MenuCommand(text); ok {
		text = cmd
	}
	if strings.HasPrefix(text, "/") {
		name, _, _ := strings.Cut(strings.Fields(text)[0], "@")
		return strings.ToLower(name)
	}

	return "text"
}
