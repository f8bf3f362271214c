package models

import "errors"

type ItemType string

const (
	ItemTypeLost  ItemType = "LOST"
	ItemTypeFound ItemType = "FOUND"
)

func ParseItemType(s string) (ItemType, error) {
	switch s {
	case "LOST":
		return ItemTypeLost, nil
	case "FOUND":
		return ItemTypeFound, nil
	default:
		return "", errors.New("invalid item type")
	}
}

// Counterpart returns the item type this type is matched against.
func (t ItemType) Counterpart() ItemType {
	if t == ItemTypeLost {
		return ItemTypeFound
	}
	return ItemTypeLost
}

type ItemStatus string

const (
	ItemStatusOpen        ItemStatus = "OPEN"
	ItemStatusMatching    ItemStatus = "MATCHING"
	ItemStatusNegotiating ItemStatus = "NEGOTIATING"
	ItemStatusMatched     ItemStatus = "MATCHED"
	ItemStatusClosed      ItemStatus = "CLOSED"
)

func ParseItemStatus(s string) (ItemStatus, error) {
	switch s {
	case "OPEN":
		return ItemStatusOpen, nil
	case "MATCHING":
		return ItemStatusMatching, nil
	case "NEGOTIATING":
		return ItemStatusNegotiating, nil
	case "MATCHED":
		return ItemStatusMatched, nil
	case "CLOSED":
		return ItemStatusClosed, nil
	default:
		return "", errors.New("invalid item status")
	}
}

type NegotiationStatus string

const (
	NegotiationStatusActive          NegotiationStatus = "ACTIVE"
	NegotiationStatusPendingConfirm  NegotiationStatus = "PENDING_CONFIRM"
	NegotiationStatusConfirmed       NegotiationStatus = "CONFIRMED"
	NegotiationStatusSchedulePending NegotiationStatus = "SCHEDULE_PENDING"
	NegotiationStatusWaitingReturn   NegotiationStatus = "WAITING_RETURN"
	NegotiationStatusReturned        NegotiationStatus = "RETURNED"
	NegotiationStatusFailed          NegotiationStatus = "FAILED"
	NegotiationStatusRejected        NegotiationStatus = "REJECTED"
	NegotiationStatusReturnFailed    NegotiationStatus = "RETURN_FAILED"
)

// Terminal reports whether no further transitions are reachable from s.
// FAILED and REJECTED still admit the seeker's force-match escape hatch,
// so they are not terminal for transition checking.
func (s NegotiationStatus) Terminal() bool {
	switch s {
	case NegotiationStatusReturned, NegotiationStatusReturnFailed:
		return true
	}
	return false
}

// Settled reports whether the session has reached an outcome and stamps a
// completion time. FAILED and REJECTED count as settled even though a
// force-match can reopen them, which clears the stamp again.
func (s NegotiationStatus) Settled() bool {
	return s.Terminal() || s == NegotiationStatusFailed || s == NegotiationStatusRejected
}

// NonTerminalStatuses are the session states that block item deletion and
// count against the one-active-session-per-pair rule.
func NonTerminalStatuses() []NegotiationStatus {
	return []NegotiationStatus{
		NegotiationStatusActive,
		NegotiationStatusPendingConfirm,
		NegotiationStatusConfirmed,
		NegotiationStatusSchedulePending,
		NegotiationStatusWaitingReturn,
	}
}

// negotiationEdges is the complete transition relation of the session
// lifecycle. Any (from, to) pair not listed here is a conflict.
var negotiationEdges = map[NegotiationStatus][]NegotiationStatus{
	NegotiationStatusActive: {
		NegotiationStatusPendingConfirm, // dialogue verdict: matched
		NegotiationStatusFailed,         // dialogue unresolved / turn cap
	},
	NegotiationStatusPendingConfirm: {
		NegotiationStatusConfirmed, // seeker confirms yes
		NegotiationStatusRejected,  // seeker confirms no
	},
	NegotiationStatusFailed: {
		NegotiationStatusConfirmed, // seeker force-match
	},
	NegotiationStatusRejected: {
		NegotiationStatusConfirmed, // seeker force-match
	},
	NegotiationStatusConfirmed: {
		NegotiationStatusSchedulePending, // finder submits schedule
	},
	NegotiationStatusSchedulePending: {
		NegotiationStatusWaitingReturn, // seeker approves
		NegotiationStatusConfirmed,     // seeker rejects with reason
	},
	NegotiationStatusWaitingReturn: {
		NegotiationStatusReturned,     // both confirm yes
		NegotiationStatusReturnFailed, // either confirms no
	},
}

// CanTransition reports whether from -> to is a legal lifecycle edge.
func CanTransition(from, to NegotiationStatus) bool {
	for _, next := range negotiationEdges[from] {
		if next == to {
			return true
		}
	}
	return false
}

type ScheduleStatus string

const (
	ScheduleStatusPending  ScheduleStatus = "PENDING"
	ScheduleStatusApproved ScheduleStatus = "APPROVED"
	ScheduleStatusRejected ScheduleStatus = "REJECTED"
)

// Confirmation is an explicit three-valued answer. Modeling this as its own
// type (instead of a nullable bool) keeps return resolution exhaustive.
type Confirmation string

const (
	ConfirmationUnset Confirmation = "UNSET"
	ConfirmationYes   Confirmation = "YES"
	ConfirmationNo    Confirmation = "NO"
)

func ConfirmationFromBool(b bool) Confirmation {
	if b {
		return ConfirmationYes
	}
	return ConfirmationNo
}

// ReturnOutcome is the resolution of the waiting-return phase.
type ReturnOutcome int

const (
	ReturnPending ReturnOutcome = iota
	ReturnSucceeded
	ReturnFailed
)

// ResolveReturn decides the waiting-return phase from the two confirmations.
// A single NO fails the return immediately, regardless of the other answer.
// Both YES succeed. Anything else is still pending.
func ResolveReturn(seeker, finder Confirmation) ReturnOutcome {
	if seeker == ConfirmationNo || finder == ConfirmationNo {
		return ReturnFailed
	}
	if seeker == ConfirmationYes && finder == ConfirmationYes {
		return ReturnSucceeded
	}
	return ReturnPending
}

type NotificationType string

const (
	NotificationTypeMatchFound        NotificationType = "MATCH_FOUND"
	NotificationTypeConfirmRequest    NotificationType = "CONFIRM_REQUEST"
	NotificationTypeSchedule          NotificationType = "SCHEDULE"
	NotificationTypeNoMatch           NotificationType = "NO_MATCH"
	NotificationTypeNegotiationUpdate NotificationType = "NEGOTIATION_UPDATE"
)

type ChatSender string

const (
	ChatSenderSeeker ChatSender = "Seeker"
	ChatSenderFinder ChatSender = "Finder"
	ChatSenderSystem ChatSender = "System"
)

// AgentAction is the dialogue move an agent turn carries.
type AgentAction string

const (
	AgentActionAsk         AgentAction = "ASK"
	AgentActionAnswer      AgentAction = "ANSWER"
	AgentActionConfirm     AgentAction = "CONFIRM"
	AgentActionReject      AgentAction = "REJECT"
	AgentActionProposeMeet AgentAction = "PROPOSE_MEET"
	AgentActionAgree       AgentAction = "AGREE"
)
