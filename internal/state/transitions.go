package state

// validTransitions contains the permitted non-emergency transitions.
var validTransitions = map[State][]State{
	StateIdle: {
		StateDraft,
	},
	StateDraft: {
		StateChannelSelected,
	},
	StateChannelSelected: {
		StateChannelSelected,
		StateAwaitingApproval,
	},
}

// IsTransitionAllowed reports whether moving from one state to another is
// valid. Every state may be forced back to idle.
func IsTransitionAllowed(from, to State) bool {
	if to == StateIdle {
		return true
	}

	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}

	for _, state := range allowed {
		if state == to {
			return true
		}
	}

	return false
}
