// Package pairingwire bridges C11's pure ActionSender interface to
// internal/transport and internal/wireproto: it builds and sends the four
// pairing wire messages (spec.md §6) and routes inbound pairing envelopes
// back into the orchestrator as C10 events. Grounded on the pairing
// session record described in spec.md §3 ("session_id, local and remote
// peer_id, role, ... derived PIN (6-digit) and short code, ... optional
// challenge nonce") and on the PIN-commitment scheme in spec.md §4.10.
package pairingwire

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"go.klb.dev/uniclipboard/internal/hashing"
	"go.klb.dev/uniclipboard/internal/identity"
	"go.klb.dev/uniclipboard/internal/ids"
	"go.klb.dev/uniclipboard/internal/pairing"
	"go.klb.dev/uniclipboard/internal/pairingorch"
	"go.klb.dev/uniclipboard/internal/ports"
	"go.klb.dev/uniclipboard/internal/wireproto"
)

// ErrUnknownSession is returned when an action or inbound message names a
// session this process never opened or received.
var ErrUnknownSession = errors.New("pairingwire: unknown session")

// ErrIdentityMismatch is returned (and fails the session) when a peer's
// self-reported peer_id does not hash to the identity_pubkey it presented
// — i.e. it is claiming someone else's identity.
var ErrIdentityMismatch = errors.New("pairingwire: peer_id does not match hash(identity_pubkey)")

// Notification surfaces a pairing milestone the operator should see — the
// 6-digit PIN for visual/verbal comparison (spec.md §4.10), or the arrival
// of an incoming request. The CLI reads these off Notifications() to
// print them and, for IncomingRequest, to decide whether to accept.
type Notification struct {
	SessionID  ids.SessionId
	PeerID     ids.PeerId
	Kind       string // "incoming_request" | "pin"
	DeviceName string
	Pin        string
}

type material struct {
	peerID               ids.PeerId
	deviceName, deviceID string
	remoteIdentityPubkey string
	remoteNonce          string
	localNonce           string
	pin                  string
}

// Sender implements pairingorch.ActionSender over a ports.TransportPort,
// and separately routes inbound pairing envelopes into an Orchestrator.
type Sender struct {
	transport       ports.TransportPort
	identity        *identity.Identity
	localDeviceID   string
	localDeviceName string

	mu       sync.Mutex
	sessions map[ids.SessionId]*material

	notifications chan Notification

	orch *pairingorch.Orchestrator
}

// New wires a Sender. localDeviceID is the persisted device_id.txt UUID
// (spec.md §6); localDeviceName is the human-readable name announced to
// peers.
func New(transport ports.TransportPort, id *identity.Identity, localDeviceID, localDeviceName string) *Sender {
	return &Sender{
		transport:       transport,
		identity:        id,
		localDeviceID:   localDeviceID,
		localDeviceName: localDeviceName,
		sessions:        make(map[ids.SessionId]*material),
		notifications:   make(chan Notification, 32),
	}
}

// Attach gives the Sender a back-reference to the Orchestrator it serves.
// Construction is two-step (Sender, then Orchestrator with that Sender,
// then Attach) to break the otherwise-circular initialization.
func (s *Sender) Attach(orch *pairingorch.Orchestrator) {
	s.orch = orch
}

// Notifications exposes pairing milestones for the CLI to display.
func (s *Sender) Notifications() <-chan Notification {
	return s.notifications
}

func (s *Sender) notify(n Notification) {
	select {
	case s.notifications <- n:
	default:
		slog.Warn("pairingwire: notification channel full, dropping", "session_id", string(n.SessionID))
	}
}

// OpenOutgoing starts a pairing attempt as the initiator: it sends
// PairingRequest immediately (spec.md §4.10 models request receipt, not
// emission, so this happens outside C10) and registers sessionID with the
// orchestrator in Requesting.
func (s *Sender) OpenOutgoing(ctx context.Context, sessionID ids.SessionId, peerID ids.PeerId) error {
	localNonce := ids.New()

	s.mu.Lock()
	s.sessions[sessionID] = &material{peerID: peerID, localNonce: localNonce}
	s.mu.Unlock()

	req := wireproto.PairingRequest{
		SessionID:      string(sessionID),
		DeviceName:     s.localDeviceName,
		DeviceID:       s.localDeviceID,
		PeerID:         string(s.identity.PeerID),
		IdentityPubkey: s.identity.PublicKeyBase64(),
		Nonce:          localNonce,
	}
	if err := s.send(ctx, peerID, wireproto.KindPairingRequest, req); err != nil {
		return fmt.Errorf("pairingwire: send pairing request: %w", err)
	}
	s.orch.StartOutgoing(sessionID, peerID, "", "")
	return nil
}

// Send implements pairingorch.ActionSender.
func (s *Sender) Send(sessionID ids.SessionId, peerID ids.PeerId, kind pairing.ActionKind) error {
	s.mu.Lock()
	mat, ok := s.sessions[sessionID]
	s.mu.Unlock()
	if !ok {
		return ErrUnknownSession
	}

	ctx := context.Background()
	switch kind {
	case pairing.ActionSendChallenge:
		ch := wireproto.PairingChallenge{
			SessionID:      string(sessionID),
			Pin:            mat.pin,
			DeviceName:     s.localDeviceName,
			DeviceID:       s.localDeviceID,
			IdentityPubkey: s.identity.PublicKeyBase64(),
			Nonce:          mat.localNonce,
		}
		return s.send(ctx, peerID, wireproto.KindPairingChallenge, ch)

	case pairing.ActionSendResponse:
		proof := s.proof(mat.pin, sessionID)
		resp := wireproto.PairingResponse{SessionID: string(sessionID), Proof: proof}
		return s.send(ctx, peerID, wireproto.KindPairingResponse, resp)

	case pairing.ActionSendConfirm:
		confirm := wireproto.PairingConfirm{SessionID: string(sessionID), Success: true}
		if err := s.send(ctx, peerID, wireproto.KindPairingConfirm, confirm); err != nil {
			return err
		}
		// Only the responder ever sends Confirm, but both sides' machines
		// need ConfirmReceived{true} to reach Paired — nothing will ever
		// deliver one back to this session, so the responder applies it
		// to itself once the send succeeds. Safe to recurse here: the
		// orchestrator has already released its dispatch lock by the time
		// action side effects run (mirrors its TransportError recursion).
		_, err := s.orch.Dispatch(sessionID, pairing.Event{Kind: pairing.EventConfirmReceived, Success: true})
		return err

	case pairing.ActionSendRejection:
		confirm := wireproto.PairingConfirm{SessionID: string(sessionID), Success: false}
		return s.send(ctx, peerID, wireproto.KindPairingConfirm, confirm)

	default:
		return nil
	}
}

// HandleInbound routes one inbound pairing envelope into orch, starting a
// new responder session on PairingRequest and otherwise dispatching the
// event the message represents onto the session it already tracks.
func (s *Sender) HandleInbound(inbound ports.InboundEnvelope) error {
	orch := s.orch
	env, err := wireproto.Decode(inbound.Env.Bytes)
	if err != nil {
		return fmt.Errorf("pairingwire: decode envelope: %w", err)
	}

	switch env.Kind {
	case wireproto.KindPairingRequest:
		var req wireproto.PairingRequest
		if err := unmarshal(env, &req); err != nil {
			return err
		}
		if err := verifyPeerID(req.PeerID, req.IdentityPubkey); err != nil {
			slog.Warn("pairingwire: rejecting pairing request, identity does not check out",
				"claimed_peer_id", req.PeerID, "error", err)
			return err
		}

		sessionID := ids.SessionId(req.SessionID)
		remotePeerID := ids.PeerId(req.PeerID)
		localNonce := ids.New()
		pin := derivePIN(req.Nonce, req.IdentityPubkey, localNonce, s.identity.PublicKeyBase64())

		s.mu.Lock()
		s.sessions[sessionID] = &material{
			peerID:               remotePeerID,
			deviceName:           req.DeviceName,
			deviceID:             req.DeviceID,
			remoteIdentityPubkey: req.IdentityPubkey,
			remoteNonce:          req.Nonce,
			localNonce:           localNonce,
			pin:                  pin,
		}
		s.mu.Unlock()

		orch.StartSession(sessionID, remotePeerID, req.DeviceName, req.PeerID)
		s.notify(Notification{SessionID: sessionID, PeerID: remotePeerID, Kind: "incoming_request", DeviceName: req.DeviceName, Pin: pin})
		_, err := orch.Dispatch(sessionID, pairing.Event{Kind: pairing.EventIncomingRequest})
		return err

	case wireproto.KindPairingChallenge:
		var ch wireproto.PairingChallenge
		if err := unmarshal(env, &ch); err != nil {
			return err
		}
		sessionID := ids.SessionId(ch.SessionID)

		s.mu.Lock()
		mat, ok := s.sessions[sessionID]
		var expectedPeerID ids.PeerId
		if ok {
			mat.remoteNonce = ch.Nonce
			mat.remoteIdentityPubkey = ch.IdentityPubkey
			mat.deviceName = ch.DeviceName
			mat.deviceID = ch.DeviceID
			mat.pin = derivePIN(mat.localNonce, s.identity.PublicKeyBase64(), ch.Nonce, ch.IdentityPubkey)
			expectedPeerID = mat.peerID
		}
		s.mu.Unlock()
		if !ok {
			return ErrUnknownSession
		}

		if _, err := orch.Dispatch(sessionID, pairing.Event{Kind: pairing.EventChallengeReceived}); err != nil {
			return err
		}

		// The responder's claimed identity must check out before we ever
		// show a PIN for comparison: without this, the PIN itself proves
		// nothing (see the comment on the notify call below).
		if err := verifyPeerID(string(expectedPeerID), ch.IdentityPubkey); err != nil {
			slog.Warn("pairingwire: responder's identity does not match the peer_id this session was opened for, failing",
				"session_id", string(sessionID), "expected_peer_id", string(expectedPeerID), "error", err)
			_, derr := orch.Dispatch(sessionID, pairing.Event{Kind: pairing.EventPinVerified, Success: false})
			return derr
		}

		// ch.Pin is NOT used to decide anything here: its derivation
		// inputs (nonce, identity_pubkey) travel in the clear, so an
		// on-path attacker can compute the exact same number and simply
		// echo it back — it carries no authentication by itself
		// (spec.md §4.10's PIN step is secure only because a human
		// compares the two independently-displayed numbers out of band).
		// mat.pin, this side's own derivation, is what gets shown; the
		// operator confirms or rejects it via "pair confirm-pin" /
		// "pair reject-pin" once they've compared it against what the
		// other device is showing.
		s.notify(Notification{SessionID: sessionID, PeerID: mat.peerID, Kind: "pin", DeviceName: ch.DeviceName, Pin: mat.pin})
		return nil

	case wireproto.KindPairingResponse:
		var resp wireproto.PairingResponse
		if err := unmarshal(env, &resp); err != nil {
			return err
		}
		sessionID := ids.SessionId(resp.SessionID)
		s.mu.Lock()
		mat, ok := s.sessions[sessionID]
		s.mu.Unlock()
		if !ok {
			return ErrUnknownSession
		}
		expected := s.proof(mat.pin, sessionID)
		_, err := orch.Dispatch(sessionID, pairing.Event{Kind: pairing.EventResponseReceived, Success: expected == resp.Proof})
		return err

	case wireproto.KindPairingConfirm:
		var confirm wireproto.PairingConfirm
		if err := unmarshal(env, &confirm); err != nil {
			return err
		}
		sessionID := ids.SessionId(confirm.SessionID)
		if confirm.Success {
			_, err := orch.Dispatch(sessionID, pairing.Event{Kind: pairing.EventConfirmReceived, Success: true})
			return err
		}
		_, err := orch.Dispatch(sessionID, pairing.Event{Kind: pairing.EventUserRejected})
		return err

	default:
		return nil
	}
}

// ConfirmPin carries the operator's decision that the PIN they were shown
// for sessionID (via a "pin" Notification) matches what the other device
// displayed — the human verification step spec.md §4.10 requires before
// PinVerified is allowed to succeed. Nothing in this package computes
// that decision on its own.
func (s *Sender) ConfirmPin(sessionID ids.SessionId) (pairing.State, error) {
	return s.orch.Dispatch(sessionID, pairing.Event{Kind: pairing.EventPinVerified, Success: true})
}

// RejectPin carries the operator's decision that the displayed PINs did
// not match (or that the session should simply be abandoned at this step).
func (s *Sender) RejectPin(sessionID ids.SessionId) (pairing.State, error) {
	return s.orch.Dispatch(sessionID, pairing.Event{Kind: pairing.EventPinVerified, Success: false})
}

// verifyPeerID reports an error unless claimedPeerID is exactly
// hash(identity_pubkey) for the base64-encoded public key identityPubkeyB64
// — the cryptographic binding between a self-reported PeerID and the key
// material presented alongside it (spec.md §10 GLOSSARY: "PeerId — hash of
// long-term public key"). Without this check a peer can claim any PeerID
// it likes and still pass every later step.
func verifyPeerID(claimedPeerID, identityPubkeyB64 string) error {
	pub, err := base64.StdEncoding.DecodeString(identityPubkeyB64)
	if err != nil {
		return fmt.Errorf("%w: decode identity_pubkey: %v", ErrIdentityMismatch, err)
	}
	if hashing.Hash(pub) != claimedPeerID {
		return ErrIdentityMismatch
	}
	return nil
}

func (s *Sender) send(ctx context.Context, peerID ids.PeerId, kind wireproto.Kind, payload any) error {
	env, err := wireproto.Wrap(kind, payload)
	if err != nil {
		return err
	}
	raw, err := env.Encode()
	if err != nil {
		return err
	}
	return s.transport.Send(ctx, peerID, ports.WireEnvelope{Kind: string(kind), Bytes: raw})
}

// proof is the initiator's and responder's shared commitment that they
// derived the same PIN, transmitted in PairingResponse (spec.md §4.10).
func (s *Sender) proof(pin string, sessionID ids.SessionId) string {
	mac := hmac.New(sha256.New, []byte(pin))
	mac.Write([]byte(sessionID))
	return hex.EncodeToString(mac.Sum(nil))
}

// derivePIN computes a 6-digit code from both parties' nonce+pubkey pairs,
// sorted so initiator and responder compute the identical value
// regardless of which side of the exchange they're on (spec.md §4.10:
// "derive a 6-digit PIN from a shared secret ... a commitment to both
// parties' public keys and nonces").
func derivePIN(nonceA, pubA, nonceB, pubB string) string {
	parts := []string{nonceA + "|" + pubA, nonceB + "|" + pubB}
	sort.Strings(parts)
	sum := sha256.Sum256([]byte(parts[0] + "||" + parts[1]))
	n := uint32(sum[0])<<24 | uint32(sum[1])<<16 | uint32(sum[2])<<8 | uint32(sum[3])
	return fmt.Sprintf("%06d", n%1000000)
}

func unmarshal(env wireproto.Envelope, v any) error {
	return json.Unmarshal(env.Payload, v)
}
