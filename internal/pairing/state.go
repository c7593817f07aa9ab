// Package pairing implements C10, the pairing state machine (spec.md
// §4.10): a pure function transition(state, event) -> (state', actions)
// with no I/O and no time, grounded on the original implementation's
// PairingDomain (uc-core/src/pairing/domain.rs), extended with the
// explicit TransportError handling spec.md's transition table adds.
package pairing

// State is one node of the pairing state machine.
type State int

const (
	StateIdle State = iota
	StateIncomingRequest
	StateRequesting
	StatePendingChallenge
	StatePendingResponse
	StateVerifying
	StateWaitingConfirm
	StatePaired
	StateRejected
	StateFailed
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateIncomingRequest:
		return "IncomingRequest"
	case StateRequesting:
		return "Requesting"
	case StatePendingChallenge:
		return "PendingChallenge"
	case StatePendingResponse:
		return "PendingResponse"
	case StateVerifying:
		return "Verifying"
	case StateWaitingConfirm:
		return "WaitingConfirm"
	case StatePaired:
		return "Paired"
	case StateRejected:
		return "Rejected"
	case StateFailed:
		return "Failed"
	case StateExpired:
		return "Expired"
	default:
		return "Unknown"
	}
}

// IsActive reports whether s is non-terminal — i.e. still eligible to
// receive a Timeout (spec.md §4.10: "any active state").
func (s State) IsActive() bool {
	switch s {
	case StatePaired, StateRejected, StateFailed, StateExpired:
		return false
	default:
		return true
	}
}

// EventKind names a pairing event.
type EventKind int

const (
	EventIncomingRequest EventKind = iota
	EventUserAccepted
	EventUserRejected
	EventChallengeReceived
	EventPinVerified
	EventResponseReceived
	EventConfirmReceived
	EventTimeout
	EventTransportError
)

// Event is one input to transition. Success is only meaningful for
// PinVerified, ResponseReceived, and ConfirmReceived; Reason carries the
// transport error message for TransportError.
type Event struct {
	Kind    EventKind
	Success bool
	Reason  string
}

// ActionKind names a side effect transition emits for the orchestrator
// (C11) to execute. The state machine itself performs none of them.
type ActionKind int

const (
	ActionNone ActionKind = iota
	ActionNotifyUI
	ActionSendChallenge
	ActionSendRejection
	ActionShowVerification
	ActionSendResponse
	ActionSendConfirm
	ActionPersistTrust
	ActionEmitResult
)

// Result labels the outcome an EmitResult action reports.
type Result int

const (
	ResultNone Result = iota
	ResultSuccess
	ResultFailure
	ResultExpired
	ResultCancelled
)

// Action is one side effect emitted alongside a state transition.
type Action struct {
	Kind   ActionKind
	Result Result
	Reason string
}

// Transition applies event to state and returns the resulting state plus
// the actions the orchestrator must execute. Unlisted combinations are
// no-ops: the state is unchanged and no actions are emitted (spec.md
// §4.10: "unlisted combinations are no-ops / Ignore").
func Transition(state State, event Event) (State, []Action) {
	switch {
	case state == StateIdle && event.Kind == EventIncomingRequest:
		return StateIncomingRequest, []Action{{Kind: ActionNotifyUI}}

	case state == StateIncomingRequest && event.Kind == EventUserAccepted:
		return StatePendingResponse, []Action{{Kind: ActionSendChallenge}}

	case state == StateIncomingRequest && event.Kind == EventUserRejected:
		return StateRejected, []Action{{Kind: ActionSendRejection}, {Kind: ActionEmitResult, Result: ResultCancelled}}

	case state == StateRequesting && event.Kind == EventChallengeReceived:
		return StatePendingChallenge, []Action{{Kind: ActionShowVerification}}

	case state == StatePendingChallenge && event.Kind == EventPinVerified && event.Success:
		return StateVerifying, []Action{{Kind: ActionSendResponse}}

	case state == StatePendingChallenge && event.Kind == EventPinVerified && !event.Success:
		return StateFailed, []Action{{Kind: ActionEmitResult, Result: ResultFailure}}

	case state == StatePendingResponse && event.Kind == EventResponseReceived && event.Success:
		return StateWaitingConfirm, []Action{{Kind: ActionSendConfirm}}

	case state == StatePendingResponse && event.Kind == EventResponseReceived && !event.Success:
		return StateFailed, []Action{{Kind: ActionEmitResult, Result: ResultFailure}}

	case (state == StateVerifying || state == StateWaitingConfirm) && event.Kind == EventConfirmReceived && event.Success:
		return StatePaired, []Action{{Kind: ActionPersistTrust}, {Kind: ActionEmitResult, Result: ResultSuccess}}

	case (state == StateVerifying || state == StateWaitingConfirm) && event.Kind == EventConfirmReceived && !event.Success:
		return StateFailed, []Action{{Kind: ActionEmitResult, Result: ResultFailure}}

	// Global rules: any state may be cancelled or time out or hit a
	// transport error, independent of which specific state it is in
	// (spec.md §4.10 "any"/"any active" rows).
	case event.Kind == EventUserRejected:
		return StateRejected, []Action{{Kind: ActionEmitResult, Result: ResultCancelled}}

	case event.Kind == EventTimeout && state.IsActive():
		return StateExpired, []Action{{Kind: ActionEmitResult, Result: ResultExpired}}

	case event.Kind == EventTransportError && state.IsActive():
		return StateFailed, []Action{{Kind: ActionEmitResult, Result: ResultFailure, Reason: event.Reason}}

	default:
		return state, nil
	}
}
