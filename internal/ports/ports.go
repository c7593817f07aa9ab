// Package ports declares the narrow capability interfaces UniClipboard's
// core depends on but does not implement directly (spec.md §6): the
// platform clipboard, the peer transport, the paired-device repository,
// and key material storage. Concrete adapters live in internal/clip,
// internal/transport, internal/trust, and internal/keystore.
package ports

import (
	"context"

	"go.klb.dev/uniclipboard/internal/cryptoutil"
	"go.klb.dev/uniclipboard/internal/ids"
)

// ClipboardFormat is one raw representation read from or written to the
// platform clipboard.
type ClipboardFormat struct {
	FormatID string
	MimeType string
	Bytes    []byte
}

// SystemClipboardSnapshot is an unordered multiset of formats observed in
// a single platform clipboard read (spec.md §4.8).
type SystemClipboardSnapshot struct {
	Formats []ClipboardFormat
}

// PlatformClipboardPort abstracts the OS clipboard.
type PlatformClipboardPort interface {
	Read() (SystemClipboardSnapshot, error)
	Write(snapshot SystemClipboardSnapshot) error
	// Watch delivers a signal whenever the clipboard changes. The channel
	// is never closed by the implementation.
	Watch() <-chan struct{}
	Close()
}

// WireEnvelope is the framed payload exchanged over a transport stream;
// concrete message types (wireproto.ClipboardMessage, pairing messages)
// are marshaled into Bytes by the caller.
type WireEnvelope struct {
	Kind  string
	Bytes []byte
}

// TransportPort abstracts the peer connection layer (spec.md §6 lists
// transport as an external collaborator; only its interface is
// specified). A concrete TCP+TLS adapter lives in internal/transport.
type TransportPort interface {
	// Send delivers an envelope to peerID over the Business or Pairing
	// protocol, depending on Kind.
	Send(ctx context.Context, peerID ids.PeerId, env WireEnvelope) error
	// Receive returns a channel of inbound envelopes, tagged with the
	// sending peer.
	Receive() <-chan InboundEnvelope
	Close() error
}

// InboundEnvelope pairs a received WireEnvelope with its sender.
type InboundEnvelope struct {
	PeerID ids.PeerId
	Env    WireEnvelope
}

// PairingState mirrors trust.PairingState without importing internal/trust,
// keeping this package dependency-free of the repository implementation.
type PairingState int

const (
	PairingStatePending PairingState = iota
	PairingStateTrusted
	PairingStateRevoked
)

// PairedDevice is the trust record persisted by C12 (spec.md §3).
type PairedDevice struct {
	PeerID              ids.PeerId
	State               PairingState
	IdentityFingerprint string
	DeviceName          string
	PairedAtMs          int64
	LastSeenAtMs        int64
}

// PairedDeviceRepositoryPort is the C12 repository interface.
type PairedDeviceRepositoryPort interface {
	GetByPeerID(peerID ids.PeerId) (PairedDevice, error)
	ListAll() ([]PairedDevice, error)
	Upsert(device PairedDevice) error
	SetState(peerID ids.PeerId, state PairingState) error
	UpdateLastSeen(peerID ids.PeerId, atMs int64) error
	Delete(peerID ids.PeerId) error
}

// KeyMaterialPort is the narrow surface C2/C3/C4 expose to callers that
// need to unwrap or access the master key without depending on their
// concrete types.
type KeyMaterialPort interface {
	DeriveKEK(passphrase string, salt []byte, params cryptoutil.KDFParams) ([cryptoutil.KeySize]byte, error)
	Unwrap(kek [cryptoutil.KeySize]byte, env cryptoutil.Envelope) ([cryptoutil.KeySize]byte, error)
}
