package ledger

import (
	"fmt"
	"sync"
	"time"
)

const (
	orderPrefix = "ORD"
	topUpPrefix = "TOP"
)

// idGenerator issues time-derived ids of the form
// <prefix><yyyymmddHHMMSSmmm>-<userID>, appending a sequence number when the
// same id would be issued twice.
type idGenerator struct {
	mu   sync.Mutex
	last map[string]int
}

func newIDGenerator() *idGenerator {
	return &idGenerator{last: make(map[string]int)}
}

func (g *idGenerator) next(prefix, userID string, at time.Time) string {
	base := fmt.Sprintf("%s%s%03d-%s", prefix, at.Format("20060102150405"), at.Nanosecond()/int(time.Millisecond), userID)

	g.mu.Lock()
	defer g.mu.Unlock()

	n, seen := g.last[base]
	if len(g.last) > 1024 {
		g.last = make(map[string]int)
	}
	g.last[base] = n + 1

	if !seen {
		return base
	}
	return fmt.Sprintf("%s-%d", base, n)
}
