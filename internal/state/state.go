package state

import "time"

// State is the top-up session phase of a user.
type State string

const (
	// StateIdle means the user has no top-up in progress.
	StateIdle State = "idle"
	// StateDraft means an amount was entered but no payment channel chosen.
	StateDraft State = "draft"
	// StateChannelSelected means the user picked a channel and owes a screenshot.
	StateChannelSelected State = "channel_selected"
	// StateAwaitingApproval means a submitted top-up waits for an admin. The
	// user is restricted in this state.
	StateAwaitingApproval State = "awaiting_approval"
)

// Draft is an unsubmitted top-up.
type Draft struct {
	Amount    int64     `json:"amount"`
	Channel   string    `json:"channel,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// UserState captures the current session state for a Telegram user.
type UserState struct {
	UserID       string    `json:"user_id"`
	CurrentState State     `json:"current_state"`
	Draft        *Draft    `json:"draft,omitempty"`
	TopUpID      string    `json:"topup_id,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func idleState(userID string) *UserState {
	return &UserState{UserID: userID, CurrentState: StateIdle}
}

// HasDraft reports whether the user has a top-up draft in progress.
func (s *UserState) HasDraft() bool {
	return s != nil && s.Draft != nil && (s.CurrentState == StateDraft || s.CurrentState == StateChannelSelected)
}

// Restricted reports whether the user waits for a top-up decision.
func (s *UserState) Restricted() bool {
	return s != nil && s.CurrentState == StateAwaitingApproval
}

func (s *UserState) clone() *UserState {
	if s == nil {
		return nil
	}

	cp := *s
	if s.Draft != nil {
		d := *s.Draft
		cp.Draft = &d
	}
	return &cp
}
