// Package pairingorch implements C11, the pairing orchestrator
// (spec.md §4.11): it serializes dispatch of C10's pure transitions,
// executes the actions they emit (sending protocol messages, persisting
// trust, arming/disarming timers, publishing results), grounded on the
// original implementation's PairingOrchestrator transport-error handling
// (transport_error_test.rs).
package pairingorch

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.klb.dev/uniclipboard/internal/ids"
	"go.klb.dev/uniclipboard/internal/pairing"
	"go.klb.dev/uniclipboard/internal/ports"
	"go.klb.dev/uniclipboard/internal/trust"
)

// ErrSessionNotFound is returned by Dispatch for an unknown session id.
var ErrSessionNotFound = errors.New("pairingorch: session not found")

// DefaultTimeout is the per-session timer armed while a session sits in
// any active (non-terminal) state (spec.md §4.11 StartTimer/StopTimer).
const DefaultTimeout = 2 * time.Minute

// ActionSender hands a pairing protocol action to the transport. A send
// failure re-enters the state machine as TransportError (spec.md §4.11).
type ActionSender interface {
	Send(sessionID ids.SessionId, peerID ids.PeerId, kind pairing.ActionKind) error
}

// Result is published for every EmitResult action (spec.md §4.11).
type Result struct {
	SessionID ids.SessionId
	Outcome   pairing.Result
	Reason    string
}

type session struct {
	id                  ids.SessionId
	peerID              ids.PeerId
	deviceName          string
	identityFingerprint string
	state               pairing.State
}

// Orchestrator serializes pairing transitions across all sessions behind
// a single dispatch lock (spec.md §4.11: "linearizable per process" is a
// stronger guarantee than the required per-session linearizability).
type Orchestrator struct {
	mu       sync.Mutex
	sessions map[ids.SessionId]*session
	timers   map[ids.SessionId]*time.Timer
	sender   ActionSender
	repo     trust.Repository
	results  chan Result
	nowMs    func() int64
	timeout  time.Duration
}

// New wires an Orchestrator. results is buffered generously (256) so
// EmitResult never blocks a dispatch.
func New(sender ActionSender, repo trust.Repository, nowMs func() int64) *Orchestrator {
	return &Orchestrator{
		sessions: make(map[ids.SessionId]*session),
		timers:   make(map[ids.SessionId]*time.Timer),
		sender:   sender,
		repo:     repo,
		results:  make(chan Result, 256),
		nowMs:    nowMs,
		timeout:  DefaultTimeout,
	}
}

// Results exposes the outbound EmitResult stream for the UI.
func (o *Orchestrator) Results() <-chan Result {
	return o.results
}

// StartSession registers a new session in Idle, carrying the peer
// metadata PersistTrust will need if the session reaches Paired.
func (o *Orchestrator) StartSession(sessionID ids.SessionId, peerID ids.PeerId, deviceName, identityFingerprint string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sessions[sessionID] = &session{
		id:                  sessionID,
		peerID:              peerID,
		deviceName:          deviceName,
		identityFingerprint: identityFingerprint,
		state:               pairing.StateIdle,
	}
}

// StartOutgoing registers a session already in Requesting, for the
// initiator side: the PairingRequest itself is sent by the caller before
// this call (it has no prior state to transition from, so C10 has no
// Idle->Requesting row for it — spec.md §4.10 models request receipt,
// not request emission).
func (o *Orchestrator) StartOutgoing(sessionID ids.SessionId, peerID ids.PeerId, deviceName, identityFingerprint string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sessions[sessionID] = &session{
		id:                  sessionID,
		peerID:              peerID,
		deviceName:          deviceName,
		identityFingerprint: identityFingerprint,
		state:               pairing.StateRequesting,
	}
	o.manageTimerLocked(sessionID, pairing.StateRequesting)
}

// State returns the current state of sessionID.
func (o *Orchestrator) State(sessionID ids.SessionId) (pairing.State, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	s, ok := o.sessions[sessionID]
	if !ok {
		return 0, false
	}
	return s.state, true
}

// Dispatch applies event to sessionID's current state and executes the
// resulting actions. A transport send failure recursively dispatches
// TransportError into the same session.
func (o *Orchestrator) Dispatch(sessionID ids.SessionId, event pairing.Event) (pairing.State, error) {
	o.mu.Lock()
	sess, ok := o.sessions[sessionID]
	if !ok {
		o.mu.Unlock()
		return 0, ErrSessionNotFound
	}
	newState, actions := pairing.Transition(sess.state, event)
	sess.state = newState
	peerID, deviceName, fingerprint := sess.peerID, sess.deviceName, sess.identityFingerprint
	o.mu.Unlock()

	var transportErr, persistErr error
	for _, a := range actions {
		switch a.Kind {
		case pairing.ActionSendChallenge, pairing.ActionSendResponse, pairing.ActionSendConfirm, pairing.ActionSendRejection:
			if err := o.sender.Send(sessionID, peerID, a.Kind); err != nil && transportErr == nil {
				transportErr = err
			}
		case pairing.ActionPersistTrust:
			now := o.nowMs()
			if err := o.repo.Upsert(ports.PairedDevice{
				PeerID:              peerID,
				State:               ports.PairingStateTrusted,
				IdentityFingerprint: fingerprint,
				DeviceName:          deviceName,
				PairedAtMs:          now,
				LastSeenAtMs:        now,
			}); err != nil {
				persistErr = err
				slog.Error("pairingorch: persist trust record failed", "session_id", string(sessionID), "peer_id", string(peerID), "error", err)
			}
		case pairing.ActionEmitResult:
			result, reason := a.Result, a.Reason
			// Transition's action list is fixed: PersistTrust and a
			// ResultSuccess EmitResult always come together (spec.md
			// §4.11 treats them as one logical step). A failed persist
			// must not be reported as a successful pairing — the trust
			// record the operator was just told exists doesn't.
			if result == pairing.ResultSuccess && persistErr != nil {
				result = pairing.ResultFailure
				reason = "persist trust record: " + persistErr.Error()
			}
			select {
			case o.results <- Result{SessionID: sessionID, Outcome: result, Reason: reason}:
			default:
			}
		}
	}

	o.manageTimer(sessionID, newState)

	if transportErr != nil {
		return o.Dispatch(sessionID, pairing.Event{Kind: pairing.EventTransportError, Reason: transportErr.Error()})
	}
	return newState, nil
}

// manageTimer arms a fresh timer for active states and disarms it for
// terminal ones, so a cancelled or completed session releases its timer
// (spec.md §5 cancellation).
func (o *Orchestrator) manageTimer(sessionID ids.SessionId, state pairing.State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.manageTimerLocked(sessionID, state)
}

// manageTimerLocked is manageTimer's body; callers must hold o.mu.
func (o *Orchestrator) manageTimerLocked(sessionID ids.SessionId, state pairing.State) {
	if t, ok := o.timers[sessionID]; ok {
		t.Stop()
		delete(o.timers, sessionID)
	}
	if state.IsActive() {
		o.timers[sessionID] = time.AfterFunc(o.timeout, func() {
			_, _ = o.Dispatch(sessionID, pairing.Event{Kind: pairing.EventTimeout})
		})
	}
}
