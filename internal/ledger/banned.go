package ledger

import "strings"

// DefaultBannedGameIDs are rejected regardless of configuration.
var DefaultBannedGameIDs = []string{"123456789", "000000000", "111111111"}

// BannedPatterns flags game ids that are denylisted or look like placeholders:
// every digit the same, or a leading or trailing "000".
type BannedPatterns struct {
	denylist map[string]struct{}
}

func NewBannedPatterns(ids []string) *BannedPatterns {
	if len(ids) == 0 {
		ids = DefaultBannedGameIDs
	}

	denylist := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		denylist[strings.TrimSpace(id)] = struct{}{}
	}

	return &BannedPatterns{denylist: denylist}
}

func (b *BannedPatterns) Match(gameID string) bool {
	if _, ok := b.denylist[gameID]; ok {
		return true
	}

	if len(gameID) > 1 && strings.Count(gameID, gameID[:1]) == len(gameID) {
		return true
	}

	return strings.HasPrefix(gameID, "000") || strings.HasSuffix(gameID, "000")
}
