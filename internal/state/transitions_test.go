package state

import "testing"

func TestIsTransitionAllowed(t *testing.T) {
	testCases := []struct {
		name     string
		from     State
		to       State
		expected bool
	}{
		{name: "idle to draft", from: StateIdle, to: StateDraft, expected: true},
		{name: "draft to channel selected", from: StateDraft, to: StateChannelSelected, expected: true},
		{name: "channel re-pick", from: StateChannelSelected, to: StateChannelSelected, expected: true},
		{name: "channel selected to awaiting approval", from: StateChannelSelected, to: StateAwaitingApproval, expected: true},
		{name: "draft cancel", from: StateDraft, to: StateIdle, expected: true},
		{name: "approval resolves to idle", from: StateAwaitingApproval, to: StateIdle, expected: true},
		{name: "idle to awaiting approval invalid", from: StateIdle, to: StateAwaitingApproval, expected: false},
		{name: "draft to awaiting approval invalid", from: StateDraft, to: StateAwaitingApproval, expected: false},
		{name: "awaiting approval to draft invalid", from: StateAwaitingApproval, to: StateDraft, expected: false},
		{name: "second draft invalid", from: StateDraft, to: StateDraft, expected: false},
		{name: "unknown state forced idle", from: State("whatever"), to: StateIdle, expected: true},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if actual := IsTransitionAllowed(tc.from, tc.to); actual != tc.expected {
				t.Errorf("IsTransitionAllowed(%s -> %s) = %t, expected %t", tc.from, tc.to, actual, tc.expected)
			}
		})
	}
}
