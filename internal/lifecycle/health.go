package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"
)

// HealthChecker exposes liveness and readiness probes.
type HealthChecker interface {
	Liveness(ctx context.Context) error
	Readiness(ctx context.Context) error
}

// ComponentChecker runs the dependency checks behind readiness.
type ComponentChecker interface {
	Check(ctx context.Context) map[string]string
}

// Probes answers liveness from process state and readiness from the
// component checks. Readiness fails once shutdown has begun.
type Probes struct {
	checker  ComponentChecker
	draining atomic.Bool
	log      *slog.Logger
}

// NewProbes creates Probes backed by checker, which may be nil.
func NewProbes(checker ComponentChecker, log *slog.Logger) *Probes {
	if log == nil {
		log = slog.Default()
	}
	return &Probes{checker: checker, log: log}
}

// Drain marks the process as shutting down.
func (p *Probes) Drain() {
	p.draining.Store(true)
}

// Liveness reports success while the process is running.
func (p *Probes) Liveness(context.Context) error {
	p.log.Debug("liveness probe called")
	return nil
}

// Readiness fails when draining or when any component check fails.
func (p *Probes) Readiness(ctx context.Context) error {
	if p.draining.Load() {
		return fmt.Errorf("shutting down")
	}
	if p.checker == nil {
		return nil
	}

	var failed []string
	for name, status := range p.checker.Check(ctx) {
		if status != "OK" {
			failed = append(failed, name+": "+status)
		}
	}
	if len(failed) == 0 {
		return nil
	}

	sort.Strings(failed)
	return fmt.Errorf("not ready: %s", strings.Join(failed, "; "))
}
