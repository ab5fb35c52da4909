package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Proton-105/mlbb-topup-bot/internal/state"
)

var (
	botCommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_commands_total",
			Help: "Total number of bot commands received labeled by command and status",
		},
		[]string{"command", "status"},
	)
	commandDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "command_duration_seconds",
			Help:    "Duration of bot commands in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"command"},
	)
	stateTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_transitions_total",
			Help: "Total number of top-up session phase transitions",
		},
		[]string{"from", "to"},
	)
	errorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors split by kind and severity",
		},
		[]string{"kind", "severity"},
	)
	lifecycleTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lifecycle_operations_total",
			Help: "Order and top-up lifecycle operations labeled by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)
	ledgerAmountTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_amount_total",
			Help: "Sum of balance movements in MMK labeled by direction",
		},
		[]string{"direction"},
	)
	notificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Notification deliveries labeled by event type and result",
		},
		[]string{"event", "result"},
	)
	activeSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_sessions",
			Help: "Current number of users with a non-idle top-up session",
		},
	)
	sessionsByPhase = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sessions_by_phase",
			Help: "Number of sessions per phase",
		},
		[]string{"phase"},
	)
)

var trackedStates = []state.State{
	state.StateDraft,
	state.StateChannelSelected,
	state.StateAwaitingApproval,
}

func init() {
	state.RegisterTransitionRecorder(RecordStateTransition)
}

// RecordCommand increments command counters and records duration.
func RecordCommand(command, status string, duration time.Duration) {
	if command == "" {
		command = "unknown"
	}
	if status == "" {
		status = "unknown"
	}

	botCommandsTotal.WithLabelValues(command, status).Inc()
	commandDurationSeconds.WithLabelValues(command).Observe(duration.Seconds())
}

// RecordStateTransition tracks session phase transitions.
func RecordStateTransition(from, to string) {
	if from == "" {
		from = "unknown"
	}
	if to == "" {
		to = "unknown"
	}

	stateTransitionsTotal.WithLabelValues(from, to).Inc()
}

// RecordError increments error counters with metadata.
func RecordError(kind, severity string) {
	if kind == "" {
		kind = "unknown"
	}
	if severity == "" {
		severity = "unknown"
	}

	errorsTotal.WithLabelValues(kind, severity).Inc()
}

// RecordLifecycle counts one lifecycle operation. outcome is "ok" or an error kind.
func RecordLifecycle(operation, outcome string) {
	if outcome == "" {
		outcome = "ok"
	}

	lifecycleTotal.WithLabelValues(operation, outcome).Inc()
}

// RecordCredit adds an approved top-up or grant.
func RecordCredit(amount int64) {
	ledgerAmountTotal.WithLabelValues("credit").Add(float64(amount))
}

// RecordDebit adds an order debit or deduction.
func RecordDebit(amount int64) {
	ledgerAmountTotal.WithLabelValues("debit").Add(float64(amount))
}

// RecordNotification counts a delivery attempt. result is sent, failed or dropped.
func RecordNotification(event, result string) {
	notificationsTotal.WithLabelValues(event, result).Inc()
}

// StateCollector periodically gathers session phase counts and emits gauge metrics.
type StateCollector struct {
	fsm      state.StateMachine
	interval time.Duration
}

// NewStateCollector builds a metrics collector bound to the provided session machine.
func NewStateCollector(fsm state.StateMachine) *StateCollector {
	return &StateCollector{fsm: fsm, interval: 15 * time.Second}
}

// Run polls the session storage until ctx is cancelled.
func (c *StateCollector) Run(ctx context.Context) {
	if c == nil || c.fsm == nil {
		return
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		_ = c.collect(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (c *StateCollector) collect(ctx context.Context) error {
	states, err := c.fsm.GetAllStates(ctx)
	if err != nil {
		return err
	}

	counts := make(map[string]int, len(trackedStates))
	active := 0
	for _, st := range states {
		if st == nil || st.CurrentState == state.StateIdle {
			continue
		}
		active++
		counts[string(st.CurrentState)]++
	}

	activeSessions.Set(float64(active))
	sessionsByPhase.Reset()
	for _, tracked := range trackedStates {
		label := string(tracked)
		sessionsByPhase.WithLabelValues(label).Set(float64(counts[label]))
	}

	return nil
}
