package pairing

import "testing"

func firstActionKind(actions []Action) ActionKind {
	if len(actions) == 0 {
		return ActionNone
	}
	return actions[0].Kind
}

func TestResponderHappyPath(t *testing.T) {
	state := StateIdle

	state, actions := Transition(state, Event{Kind: EventIncomingRequest})
	if state != StateIncomingRequest || firstActionKind(actions) != ActionNotifyUI {
		t.Fatalf("unexpected: %v %v", state, actions)
	}

	state, actions = Transition(state, Event{Kind: EventUserAccepted})
	if state != StatePendingResponse || firstActionKind(actions) != ActionSendChallenge {
		t.Fatalf("unexpected: %v %v", state, actions)
	}

	state, actions = Transition(state, Event{Kind: EventResponseReceived, Success: true})
	if state != StateWaitingConfirm || firstActionKind(actions) != ActionSendConfirm {
		t.Fatalf("unexpected: %v %v", state, actions)
	}

	state, actions = Transition(state, Event{Kind: EventConfirmReceived, Success: true})
	if state != StatePaired {
		t.Fatalf("expected Paired, got %v", state)
	}
	if len(actions) != 2 || actions[0].Kind != ActionPersistTrust || actions[1].Kind != ActionEmitResult || actions[1].Result != ResultSuccess {
		t.Fatalf("expected PersistTrust + EmitResult(success), got %v", actions)
	}
}

func TestInitiatorHappyPath(t *testing.T) {
	state := StateRequesting

	state, actions := Transition(state, Event{Kind: EventChallengeReceived})
	if state != StatePendingChallenge || firstActionKind(actions) != ActionShowVerification {
		t.Fatalf("unexpected: %v %v", state, actions)
	}

	state, actions = Transition(state, Event{Kind: EventPinVerified, Success: true})
	if state != StateVerifying || firstActionKind(actions) != ActionSendResponse {
		t.Fatalf("unexpected: %v %v", state, actions)
	}

	state, _ = Transition(state, Event{Kind: EventConfirmReceived, Success: true})
	if state != StatePaired {
		t.Fatalf("expected Paired, got %v", state)
	}
}

func TestWrongPinFails(t *testing.T) {
	state, actions := Transition(StatePendingChallenge, Event{Kind: EventPinVerified, Success: false})
	if state != StateFailed || firstActionKind(actions) != ActionEmitResult {
		t.Fatalf("unexpected: %v %v", state, actions)
	}
}

func TestIncomingRequestUserRejectedSendsRejection(t *testing.T) {
	state, actions := Transition(StateIncomingRequest, Event{Kind: EventUserRejected})
	if state != StateRejected {
		t.Fatalf("expected Rejected, got %v", state)
	}
	if len(actions) != 2 || actions[0].Kind != ActionSendRejection {
		t.Fatalf("expected SendRejection first, got %v", actions)
	}
}

func TestUserRejectedFromAnyStateTerminates(t *testing.T) {
	for _, s := range []State{StateVerifying, StateWaitingConfirm, StatePendingResponse} {
		got, actions := Transition(s, Event{Kind: EventUserRejected})
		if got != StateRejected {
			t.Fatalf("state %v: expected Rejected, got %v", s, got)
		}
		if firstActionKind(actions) != ActionEmitResult || actions[0].Result != ResultCancelled {
			t.Fatalf("state %v: expected EmitResult(cancelled), got %v", s, actions)
		}
	}
}

func TestTimeoutExpiresActiveStatesOnly(t *testing.T) {
	got, actions := Transition(StatePendingResponse, Event{Kind: EventTimeout})
	if got != StateExpired || firstActionKind(actions) != ActionEmitResult {
		t.Fatalf("unexpected: %v %v", got, actions)
	}

	got, actions = Transition(StatePaired, Event{Kind: EventTimeout})
	if got != StatePaired || len(actions) != 0 {
		t.Fatalf("terminal state must ignore Timeout, got %v %v", got, actions)
	}
}

func TestTransportErrorFailsActiveState(t *testing.T) {
	got, actions := Transition(StateVerifying, Event{Kind: EventTransportError, Reason: "connection reset"})
	if got != StateFailed {
		t.Fatalf("expected Failed, got %v", got)
	}
	if actions[0].Reason != "connection reset" {
		t.Fatalf("expected reason carried through, got %v", actions)
	}
}

func TestUnlistedCombinationIsIgnored(t *testing.T) {
	got, actions := Transition(StateIdle, Event{Kind: EventConfirmReceived, Success: true})
	if got != StateIdle {
		t.Fatalf("expected no-op, got %v", got)
	}
	if len(actions) != 0 {
		t.Fatalf("expected no actions, got %v", actions)
	}
}

func TestTerminalStatesIgnoreFurtherEvents(t *testing.T) {
	for _, s := range []State{StatePaired, StateRejected, StateFailed, StateExpired} {
		got, actions := Transition(s, Event{Kind: EventIncomingRequest})
		if got != s || len(actions) != 0 {
			t.Fatalf("terminal state %v should ignore events, got %v %v", s, got, actions)
		}
	}
}
