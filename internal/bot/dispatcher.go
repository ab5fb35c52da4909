package bot

import (
	"log/slog"
	"strconv"
	"sync"

	telebot "gopkg.in/telebot.v3"

	"github.com/Proton-105/mlbb-topup-bot/internal/bot/handlers"
	"github.com/Proton-105/mlbb-topup-bot/internal/state"
)

// Dispatcher routes non-command updates to the handler of the user's session phase.
type Dispatcher struct {
	fsm           state.StateMachine
	stateHandlers map[state.State]handlers.Handler
	log           *slog.Logger
	mu            sync.RWMutex
}

// NewDispatcher creates a Dispatcher with an empty handlers registry.
func NewDispatcher(fsm state.StateMachine, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}

	return &Dispatcher{
		fsm:           fsm,
		stateHandlers: make(map[state.State]handlers.Handler),
		log:           log,
	}
}

// RegisterStateHandler registers a handler for the provided state.
func (d *Dispatcher) RegisterStateHandler(s state.State, h handlers.Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stateHandlers[s] = h
}

// Resolve returns the handler for the sender's current phase, or nil.
func (d *Dispatcher) Resolve(c telebot.Context) (handlers.Handler, error) {
	if c == nil || c.Sender() == nil {
		d.log.Warn("cannot dispatch without sender information")
		return nil, nil
	}

	userID := strconv.FormatInt(c.Sender().ID, 10)
	us, err := d.fsm.Current(handlers.Context(c), userID)
	if err != nil {
		return nil, err
	}

	handler := d.getHandler(us.CurrentState)
	if handler == nil {
		d.log.Debug("no handler registered for state", slog.String("state", string(us.CurrentState)), slog.String("user_id", userID))
	}

	return handler, nil
}

func (d *Dispatcher) getHandler(s state.State) handlers.Handler {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.stateHandlers[s]
}
