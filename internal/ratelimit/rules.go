package ratelimit

import (
	"slices"
	"strings"
	"time"

	"github.com/Proton-105/mlbb-topup-bot/pkg/config"
)

// Window is the sliding window all configured limits are expressed in.
const Window = time.Minute

// Rules encapsulates configured rate limits and helper methods.
type Rules struct {
	config config.RateLimitConfig
}

// NewRules constructs rate limiting rules from configuration settings.
func NewRules(cfg config.RateLimitConfig) *Rules {
	return &Rules{config: cfg}
}

// IsWhitelisted returns true if the userID bypasses rate limits.
func (r *Rules) IsWhitelisted(userID int64) bool {
	return slices.Contains(r.config.Whitelist, userID)
}

// PerUserLimit is the number of updates any user may send per Window.
func (r *Rules) PerUserLimit() int {
	return r.config.PerMinute
}

// CommandLimit returns the per-Window limit of command ("/mmb" or "mmb")
// and whether one is configured.
func (r *Rules) CommandLimit(command string) (int, bool) {
	limit, ok := r.config.Commands[strings.TrimPrefix(strings.ToLower(command), "/")]
	return limit, ok
}
