// Package wireproto defines the UniClipboard wire protocol (spec.md §6
// "Wire messages"): newline-delimited JSON envelopes carrying either a
// ClipboardMessage or one of the four pairing messages, grounded on the
// teacher's message package (internal/message) — same framing idiom
// (one JSON object per line, binary payloads base64-encoded by the JSON
// encoding of []byte), generalized to the pairing/clipboard domain.
package wireproto

import (
	"encoding/json"
	"fmt"
)

// Kind identifies which payload an Envelope carries.
type Kind string

const (
	KindClipboardMessage Kind = "CLIPBOARD_MESSAGE"
	KindPairingRequest   Kind = "PAIRING_REQUEST"
	KindPairingChallenge Kind = "PAIRING_CHALLENGE"
	KindPairingResponse  Kind = "PAIRING_RESPONSE"
	KindPairingConfirm   Kind = "PAIRING_CONFIRM"
)

// ClipboardMessage is the encrypted clipboard broadcast (spec.md §4.14).
// EncryptedPayload is the AEAD envelope (cryptoutil.Envelope), marshaled
// as a nested JSON value so the wire form stays human-inspectable.
type ClipboardMessage struct {
	OriginPeerID     string          `json:"origin_peer_id"`
	OriginDeviceName string          `json:"origin_device_name"`
	EventID          string          `json:"event_id"`
	ContentHash      string          `json:"content_hash"`
	SequenceNo       uint64          `json:"sequence_no"`
	TimestampMs      int64           `json:"timestamp_ms"`
	EncryptedPayload json.RawMessage `json:"encrypted_payload"`
}

// PairingRequest opens a pairing session (spec.md §6).
type PairingRequest struct {
	SessionID      string `json:"session_id"`
	DeviceName     string `json:"device_name"`
	DeviceID       string `json:"device_id"`
	PeerID         string `json:"peer_id"`
	IdentityPubkey string `json:"identity_pubkey"`
	Nonce          string `json:"nonce"`
}

// PairingChallenge carries the human-verifiable PIN (spec.md §6).
type PairingChallenge struct {
	SessionID      string `json:"session_id"`
	Pin            string `json:"pin"`
	DeviceName     string `json:"device_name"`
	DeviceID       string `json:"device_id"`
	IdentityPubkey string `json:"identity_pubkey"`
	Nonce          string `json:"nonce"`
}

// PairingResponse proves the challenge was verified (spec.md §6).
type PairingResponse struct {
	SessionID string `json:"session_id"`
	Proof     string `json:"proof"`
}

// PairingConfirm finalizes or aborts a session (spec.md §6).
type PairingConfirm struct {
	SessionID string `json:"session_id"`
	Success   bool   `json:"success"`
}

// Envelope is the top-level line written to the wire: one Kind tag plus
// the JSON-encoded payload for that kind.
type Envelope struct {
	Kind    Kind            `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// Wrap marshals payload into an Envelope of the given kind.
func Wrap(kind Kind, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("wireproto: marshal %s: %w", kind, err)
	}
	return Envelope{Kind: kind, Payload: raw}, nil
}

// Encode serializes env as a single JSON line (no trailing newline; the
// caller frames lines the way internal/message does).
func (e Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// Decode parses one wire line into an Envelope.
func Decode(b []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(b, &e); err != nil {
		return Envelope{}, fmt.Errorf("wireproto: decode envelope: %w", err)
	}
	return e, nil
}

// UnmarshalClipboardMessage extracts the ClipboardMessage from env.
func (e Envelope) UnmarshalClipboardMessage() (ClipboardMessage, error) {
	var m ClipboardMessage
	if e.Kind != KindClipboardMessage {
		return m, fmt.Errorf("wireproto: expected %s, got %s", KindClipboardMessage, e.Kind)
	}
	if err := json.Unmarshal(e.Payload, &m); err != nil {
		return m, fmt.Errorf("wireproto: unmarshal clipboard message: %w", err)
	}
	return m, nil
}
