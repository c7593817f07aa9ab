package pairingwire

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.klb.dev/uniclipboard/internal/identity"
	"go.klb.dev/uniclipboard/internal/ids"
	"go.klb.dev/uniclipboard/internal/pairing"
	"go.klb.dev/uniclipboard/internal/pairingorch"
	"go.klb.dev/uniclipboard/internal/ports"
	"go.klb.dev/uniclipboard/internal/trust"
	"go.klb.dev/uniclipboard/internal/wireproto"
)

// loopbackTransport delivers Send calls directly to the peer registered
// under the destination PeerId, synchronously, so tests can drive a full
// two-party pairing exchange without a real socket.
type loopbackTransport struct {
	peers map[ids.PeerId]*Sender
}

func newLoopback() *loopbackTransport {
	return &loopbackTransport{peers: make(map[ids.PeerId]*Sender)}
}

func (l *loopbackTransport) register(peerID ids.PeerId, s *Sender) {
	l.peers[peerID] = s
}

func (l *loopbackTransport) Send(_ context.Context, peerID ids.PeerId, env ports.WireEnvelope) error {
	dest, ok := l.peers[peerID]
	if !ok {
		return nil
	}
	return dest.HandleInbound(ports.InboundEnvelope{Env: env})
}

func (l *loopbackTransport) Receive() <-chan ports.InboundEnvelope { return nil }
func (l *loopbackTransport) Close() error                          { return nil }

func fixedNow() int64 { return 42 }

type party struct {
	id     *identity.Identity
	sender *Sender
	orch   *pairingorch.Orchestrator
	repo   trust.Repository
}

func newParty(t *testing.T, transport ports.TransportPort, deviceName string) *party {
	t.Helper()
	id, err := identity.LoadOrCreate(t.TempDir())
	if err != nil {
		t.Fatalf("identity: %v", err)
	}
	repo := trust.NewFileRepository(t.TempDir())
	s := New(transport, id, ids.New(), deviceName)
	orch := pairingorch.New(s, repo, fixedNow)
	s.Attach(orch)
	return &party{id: id, sender: s, orch: orch, repo: repo}
}

func awaitResult(t *testing.T, orch *pairingorch.Orchestrator) pairingorch.Result {
	t.Helper()
	select {
	case r := <-orch.Results():
		return r
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for pairing result")
		return pairingorch.Result{}
	}
}

func TestFullPairingExchangeReachesPairedOnBothSides(t *testing.T) {
	lb := newLoopback()
	initiator := newParty(t, lb, "initiator-laptop")
	responder := newParty(t, lb, "responder-phone")
	lb.register(initiator.id.PeerID, initiator.sender)
	lb.register(responder.id.PeerID, responder.sender)

	sessionID := ids.NewSessionId()
	if err := initiator.sender.OpenOutgoing(context.Background(), sessionID, responder.id.PeerID); err != nil {
		t.Fatalf("OpenOutgoing: %v", err)
	}

	// Responder auto-accepts for this test (a real CLI would prompt).
	state, ok := responder.orch.State(sessionID)
	if !ok || state.String() != "IncomingRequest" {
		t.Fatalf("responder state = %v, ok=%v, want IncomingRequest", state, ok)
	}
	if _, err := responder.orch.Dispatch(sessionID, pairing.Event{Kind: pairing.EventUserAccepted}); err != nil {
		t.Fatalf("responder accept: %v", err)
	}

	// The challenge has now reached the initiator and it's shown its own
	// derived PIN; pairing does not proceed until the operator confirms
	// it matches what the responder displayed (spec.md §4.10's human
	// verification step — see internal/pairingwire.ConfirmPin).
	state, ok = initiator.orch.State(sessionID)
	if !ok || state.String() != "PendingChallenge" {
		t.Fatalf("initiator state = %v, ok=%v, want PendingChallenge", state, ok)
	}
	if _, err := initiator.sender.ConfirmPin(sessionID); err != nil {
		t.Fatalf("initiator ConfirmPin: %v", err)
	}

	initRes := awaitResult(t, initiator.orch)
	respRes := awaitResult(t, responder.orch)

	if initRes.Outcome != respRes.Outcome {
		t.Fatalf("outcomes differ: initiator=%v responder=%v", initRes.Outcome, respRes.Outcome)
	}
	if initRes.Outcome != pairing.ResultSuccess {
		t.Fatalf("outcome = %v, want ResultSuccess (initiator reason=%q)", initRes.Outcome, initRes.Reason)
	}

	dev, err := responder.repo.GetByPeerID(initiator.id.PeerID)
	if err != nil {
		t.Fatalf("responder trust lookup: %v", err)
	}
	if dev.State != ports.PairingStateTrusted {
		t.Fatalf("responder trust state = %v, want Trusted", dev.State)
	}

	dev, err = initiator.repo.GetByPeerID(responder.id.PeerID)
	if err != nil {
		t.Fatalf("initiator trust lookup: %v", err)
	}
	if dev.State != ports.PairingStateTrusted {
		t.Fatalf("initiator trust state = %v, want Trusted", dev.State)
	}
}

func TestDerivePINIsOrderIndependent(t *testing.T) {
	a := derivePIN("nonceA", "pubA", "nonceB", "pubB")
	b := derivePIN("nonceB", "pubB", "nonceA", "pubA")
	if a != b {
		t.Fatalf("derivePIN not symmetric: %q vs %q", a, b)
	}
	if len(a) != 6 {
		t.Fatalf("derivePIN length = %d, want 6", len(a))
	}
}

func TestRejectionPropagatesToInitiator(t *testing.T) {
	lb := newLoopback()
	initiator := newParty(t, lb, "initiator")
	responder := newParty(t, lb, "responder")
	lb.register(initiator.id.PeerID, initiator.sender)
	lb.register(responder.id.PeerID, responder.sender)

	sessionID := ids.NewSessionId()
	if err := initiator.sender.OpenOutgoing(context.Background(), sessionID, responder.id.PeerID); err != nil {
		t.Fatalf("OpenOutgoing: %v", err)
	}
	if _, err := responder.orch.Dispatch(sessionID, pairing.Event{Kind: pairing.EventUserRejected}); err != nil {
		t.Fatalf("responder reject: %v", err)
	}

	res := awaitResult(t, responder.orch)
	if res.Outcome != pairing.ResultCancelled {
		t.Fatalf("responder outcome = %v, want ResultCancelled", res.Outcome)
	}

	res = awaitResult(t, initiator.orch)
	if res.Outcome != pairing.ResultCancelled {
		t.Fatalf("initiator outcome = %v, want ResultCancelled", res.Outcome)
	}
}

// TestPairingRequestWithSpoofedPeerIDIsRejected checks that a
// PairingRequest claiming a peer_id that doesn't hash to the
// identity_pubkey it presents never starts a session — without this, any
// peer could claim an arbitrary identity and eventually get a Trusted
// trust record written for it.
func TestPairingRequestWithSpoofedPeerIDIsRejected(t *testing.T) {
	lb := newLoopback()
	attacker := newParty(t, lb, "attacker")
	victim := newParty(t, lb, "victim")
	lb.register(attacker.id.PeerID, attacker.sender)
	lb.register(victim.id.PeerID, victim.sender)

	sessionID := ids.NewSessionId()
	req := wireproto.PairingRequest{
		SessionID:      string(sessionID),
		DeviceName:     "attacker-device",
		DeviceID:       "attacker-device-id",
		PeerID:         string(victim.id.PeerID), // claims to be the victim...
		IdentityPubkey: attacker.id.PublicKeyBase64(), // ...but presents its own key
		Nonce:          ids.New(),
	}
	env, err := wireproto.Wrap(wireproto.KindPairingRequest, req)
	if err != nil {
		t.Fatalf("wrap: %v", err)
	}
	raw, err := env.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	err = victim.sender.HandleInbound(ports.InboundEnvelope{Env: ports.WireEnvelope{Kind: string(wireproto.KindPairingRequest), Bytes: raw}})
	if !errors.Is(err, ErrIdentityMismatch) {
		t.Fatalf("HandleInbound error = %v, want ErrIdentityMismatch", err)
	}
	if _, ok := victim.orch.State(sessionID); ok {
		t.Fatalf("victim started a session for a spoofed peer_id")
	}
}

// TestRejectPinFailsThePairing checks that an operator explicitly
// rejecting the displayed PIN fails the session rather than pairing
// proceeding.
func TestRejectPinFailsThePairing(t *testing.T) {
	lb := newLoopback()
	initiator := newParty(t, lb, "initiator")
	responder := newParty(t, lb, "responder")
	lb.register(initiator.id.PeerID, initiator.sender)
	lb.register(responder.id.PeerID, responder.sender)

	sessionID := ids.NewSessionId()
	if err := initiator.sender.OpenOutgoing(context.Background(), sessionID, responder.id.PeerID); err != nil {
		t.Fatalf("OpenOutgoing: %v", err)
	}
	if _, err := responder.orch.Dispatch(sessionID, pairing.Event{Kind: pairing.EventUserAccepted}); err != nil {
		t.Fatalf("responder accept: %v", err)
	}
	if _, err := initiator.sender.RejectPin(sessionID); err != nil {
		t.Fatalf("initiator RejectPin: %v", err)
	}

	res := awaitResult(t, initiator.orch)
	if res.Outcome != pairing.ResultFailure {
		t.Fatalf("initiator outcome = %v, want ResultFailure", res.Outcome)
	}

	if _, err := responder.repo.GetByPeerID(initiator.id.PeerID); err == nil {
		t.Fatalf("responder trusted the initiator despite a rejected PIN")
	}
}
