package models

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func allNegotiationStatuses() []NegotiationStatus {
	return []NegotiationStatus{
		NegotiationStatusActive,
		NegotiationStatusPendingConfirm,
		NegotiationStatusConfirmed,
		NegotiationStatusSchedulePending,
		NegotiationStatusWaitingReturn,
		NegotiationStatusReturned,
		NegotiationStatusFailed,
		NegotiationStatusRejected,
		NegotiationStatusReturnFailed,
	}
}

// TestCanTransition_CompleteRelation walks every (from, to) pair and checks
// it against the intended lifecycle, so an accidental edit to the edge table
// shows up as a precise diff.
func TestCanTransition_CompleteRelation(t *testing.T) {
	allowed := map[NegotiationStatus]map[NegotiationStatus]bool{
		NegotiationStatusActive: {
			NegotiationStatusPendingConfirm: true,
			NegotiationStatusFailed:         true,
		},
		NegotiationStatusPendingConfirm: {
			NegotiationStatusConfirmed: true,
			NegotiationStatusRejected:  true,
		},
		NegotiationStatusFailed: {
			NegotiationStatusConfirmed: true,
		},
		NegotiationStatusRejected: {
			NegotiationStatusConfirmed: true,
		},
		NegotiationStatusConfirmed: {
			NegotiationStatusSchedulePending: true,
		},
		NegotiationStatusSchedulePending: {
			NegotiationStatusWaitingReturn: true,
			NegotiationStatusConfirmed:     true,
		},
		NegotiationStatusWaitingReturn: {
			NegotiationStatusReturned:     true,
			NegotiationStatusReturnFailed: true,
		},
	}

	for _, from := range allNegotiationStatuses() {
		for _, to := range allNegotiationStatuses() {
			want := allowed[from][to]
			if got := CanTransition(from, to); got != want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestCanTransition_TerminalStatesHaveNoExits(t *testing.T) {
	for _, from := range []NegotiationStatus{NegotiationStatusReturned, NegotiationStatusReturnFailed} {
		if !from.Terminal() {
			t.Errorf("%s should be terminal", from)
		}
		for _, to := range allNegotiationStatuses() {
			if CanTransition(from, to) {
				t.Errorf("terminal status %s must not transition to %s", from, to)
			}
		}
	}
}

func TestSettled_CoversEveryOutcomeState(t *testing.T) {
	// A settled session carries a completion timestamp. FAILED and REJECTED
	// are settled outcomes even though a force-match can revive them.
	settled := map[NegotiationStatus]bool{
		NegotiationStatusReturned:     true,
		NegotiationStatusReturnFailed: true,
		NegotiationStatusFailed:       true,
		NegotiationStatusRejected:     true,
	}
	for _, s := range allNegotiationStatuses() {
		if got := s.Settled(); got != settled[s] {
			t.Errorf("%s.Settled() = %v, want %v", s, got, settled[s])
		}
	}
	for s := range settled {
		if !s.Settled() {
			continue
		}
		if s.Terminal() && CanTransition(s, NegotiationStatusConfirmed) {
			t.Errorf("terminal status %s must not be force-matchable", s)
		}
	}
}

func TestNonTerminalStatuses_ExcludesForceMatchableStates(t *testing.T) {
	// FAILED and REJECTED admit a force-match but do not block their items:
	// they must not count as active when deciding whether an item is busy.
	want := []NegotiationStatus{
		NegotiationStatusActive,
		NegotiationStatusPendingConfirm,
		NegotiationStatusConfirmed,
		NegotiationStatusSchedulePending,
		NegotiationStatusWaitingReturn,
	}
	if diff := cmp.Diff(want, NonTerminalStatuses()); diff != "" {
		t.Errorf("NonTerminalStatuses() mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveReturn_AllCombinations(t *testing.T) {
	cases := []struct {
		seeker, finder Confirmation
		want           ReturnOutcome
	}{
		{ConfirmationUnset, ConfirmationUnset, ReturnPending},
		{ConfirmationUnset, ConfirmationYes, ReturnPending},
		{ConfirmationYes, ConfirmationUnset, ReturnPending},
		{ConfirmationYes, ConfirmationYes, ReturnSucceeded},
		{ConfirmationNo, ConfirmationUnset, ReturnFailed},
		{ConfirmationUnset, ConfirmationNo, ReturnFailed},
		{ConfirmationNo, ConfirmationYes, ReturnFailed},
		{ConfirmationYes, ConfirmationNo, ReturnFailed},
		{ConfirmationNo, ConfirmationNo, ReturnFailed},
	}
	for _, tc := range cases {
		if got := ResolveReturn(tc.seeker, tc.finder); got != tc.want {
			t.Errorf("ResolveReturn(%s, %s) = %v, want %v", tc.seeker, tc.finder, got, tc.want)
		}
	}
}

func TestItemTypeCounterpart(t *testing.T) {
	if got := ItemTypeLost.Counterpart(); got != ItemTypeFound {
		t.Errorf("LOST counterpart = %s, want FOUND", got)
	}
	if got := ItemTypeFound.Counterpart(); got != ItemTypeLost {
		t.Errorf("FOUND counterpart = %s, want LOST", got)
	}
}

func TestParseItemType_RejectsUnknown(t *testing.T) {
	if _, err := ParseItemType("MISPLACED"); err == nil {
		t.Fatal("expected an error for unknown item type")
	}
	if _, err := ParseItemStatus("GONE"); err == nil {
		t.Fatal("expected an error for unknown item status")
	}
}
