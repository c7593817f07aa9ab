// Package syncdispatch implements C14, the clipboard sync dispatcher
// (spec.md §4.14): on local capture, encrypt the selected representation
// and publish it to every trusted peer; on remote receipt, admit only
// already-trusted peers, drop self-echoes and duplicate content, enforce
// per-peer sequence monotonicity, then decrypt and persist. Grounded on
// the materializer worker's notification-driven Run loop
// (internal/materializer/worker.go) and the encrypted blob store's AEAD
// usage (internal/blobstore/encrypted.go).
package syncdispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"go.klb.dev/uniclipboard/internal/blobstore"
	"go.klb.dev/uniclipboard/internal/clipboard"
	"go.klb.dev/uniclipboard/internal/cryptoutil"
	"go.klb.dev/uniclipboard/internal/encryption"
	"go.klb.dev/uniclipboard/internal/ids"
	"go.klb.dev/uniclipboard/internal/policy"
	"go.klb.dev/uniclipboard/internal/ports"
	"go.klb.dev/uniclipboard/internal/trust"
	"go.klb.dev/uniclipboard/internal/wireproto"
)

// ErrNoPlaintext is returned when the primary representation has neither
// inline bytes nor a readable blob to publish.
var ErrNoPlaintext = errors.New("syncdispatch: primary representation has no readable bytes")

// EventStore is the persistence surface C14 reads/writes; clipboard.Memory
// satisfies it.
type EventStore interface {
	SaveEvent(event *clipboard.Event) error
	LatestEvent() (*clipboard.Event, bool)
}

// Dispatcher wires the local-capture and remote-receipt halves of C14.
type Dispatcher struct {
	session         *encryption.Session
	transport       ports.TransportPort
	trustRepo       trust.Repository
	resolver        *policy.Resolver
	blobs           blobstore.Store
	store           EventStore
	localPeerID     ids.PeerId
	localDeviceName string
	nowMs           func() int64

	mu                sync.Mutex
	outboundSeq       uint64
	highestSeenByPeer map[ids.PeerId]uint64
}

// New wires a Dispatcher.
func New(session *encryption.Session, transport ports.TransportPort, trustRepo trust.Repository, blobs blobstore.Store, store EventStore, localPeerID ids.PeerId, localDeviceName string, nowMs func() int64) *Dispatcher {
	return &Dispatcher{
		session:           session,
		transport:         transport,
		trustRepo:         trustRepo,
		resolver:          policy.NewResolver(trustRepo),
		blobs:             blobs,
		store:             store,
		localPeerID:       localPeerID,
		localDeviceName:   localDeviceName,
		nowMs:             nowMs,
		highestSeenByPeer: make(map[ids.PeerId]uint64),
	}
}

// Run drains local capture events until ctx is cancelled, publishing each
// to every trusted peer (spec.md §5 cancellation: listens for shutdown).
func (d *Dispatcher) Run(ctx context.Context, localEvents <-chan *clipboard.Event, primaryOf func(*clipboard.Event) ids.RepresentationId) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-localEvents:
			if !ok {
				return
			}
			if err := d.DispatchLocal(ctx, event, primaryOf(event)); err != nil {
				slog.Error("dispatch local event failed", "event_id", string(event.ID), "error", err)
			}
		}
	}
}

func findRepresentation(event *clipboard.Event, repID ids.RepresentationId) *clipboard.Representation {
	for _, r := range event.Representations {
		if r.ID == repID {
			return r
		}
	}
	return nil
}

// plaintextOf returns the raw bytes of rep, reading through to the blob
// store when the representation has already been materialized.
func (d *Dispatcher) plaintextOf(rep *clipboard.Representation) ([]byte, error) {
	if rep.PayloadState == clipboard.StateInline && rep.InlineData != nil {
		return rep.InlineData, nil
	}
	if rep.PayloadState == clipboard.StateBlobReady && rep.BlobID != "" {
		data, _, err := d.blobs.Get(rep.BlobID)
		if err != nil {
			return nil, fmt.Errorf("syncdispatch: read blob %s: %w", rep.BlobID, err)
		}
		return data, nil
	}
	return nil, ErrNoPlaintext
}

// DispatchLocal publishes event's primaryRepID representation to every
// trusted peer (spec.md §4.14). A per-peer send failure is logged and
// does not block delivery to the others.
func (d *Dispatcher) DispatchLocal(ctx context.Context, event *clipboard.Event, primaryRepID ids.RepresentationId) error {
	rep := findRepresentation(event, primaryRepID)
	if rep == nil {
		return fmt.Errorf("syncdispatch: representation %s not found on event %s", primaryRepID, event.ID)
	}
	plaintext, err := d.plaintextOf(rep)
	if err != nil {
		return err
	}

	devices, err := d.trustRepo.ListAll()
	if err != nil {
		return fmt.Errorf("syncdispatch: list trusted peers: %w", err)
	}

	seq := d.nextOutboundSeq()
	for _, device := range devices {
		if device.State != ports.PairingStateTrusted {
			continue
		}
		if err := d.publishTo(ctx, device.PeerID, event, rep, plaintext, seq); err != nil {
			slog.Error("publish clipboard message failed", "peer_id", string(device.PeerID), "event_id", string(event.ID), "error", err)
		}
	}
	return nil
}

func (d *Dispatcher) nextOutboundSeq() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.outboundSeq++
	return d.outboundSeq
}

func (d *Dispatcher) publishTo(ctx context.Context, peerID ids.PeerId, event *clipboard.Event, rep *clipboard.Representation, plaintext []byte, seq uint64) error {
	// AAD is keyed by the originating peer (us), not the recipient, so the
	// receiver — who knows the message's origin_peer_id but not which of
	// its own peer ids we used to address it — can reconstruct the same AAD.
	env, err := encryption.Encrypt(d.session, plaintext, cryptoutil.WireMessageAAD(string(d.localPeerID), seq))
	if err != nil {
		return fmt.Errorf("encrypt: %w", err)
	}
	envBytes, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	msg := wireproto.ClipboardMessage{
		OriginPeerID:     string(d.localPeerID),
		OriginDeviceName: d.localDeviceName,
		EventID:          string(event.ID),
		ContentHash:      event.SnapshotHash,
		SequenceNo:       seq,
		TimestampMs:      event.CapturedAtMs,
		EncryptedPayload: envBytes,
	}
	wireEnv, err := wireproto.Wrap(wireproto.KindClipboardMessage, msg)
	if err != nil {
		return err
	}
	encoded, err := wireEnv.Encode()
	if err != nil {
		return err
	}
	return d.transport.Send(ctx, peerID, ports.WireEnvelope{Kind: string(wireproto.KindClipboardMessage), Bytes: encoded})
}

// HandleRemote processes one inbound envelope (spec.md §4.14). Self-echoes
// and duplicate content are dropped silently; sequence regressions for a
// given sender are dropped; anything else is decrypted and persisted.
func (d *Dispatcher) HandleRemote(inbound ports.InboundEnvelope) (*clipboard.Event, error) {
	resolved, err := d.resolver.ResolveForPeer(inbound.PeerID)
	if err != nil {
		return nil, fmt.Errorf("syncdispatch: resolve policy for %s: %w", inbound.PeerID, err)
	}
	if resolved.PairingState != ports.PairingStateTrusted {
		return nil, fmt.Errorf("syncdispatch: peer %s is not trusted", inbound.PeerID)
	}

	wireEnv, err := wireproto.Decode(inbound.Env.Bytes)
	if err != nil {
		return nil, err
	}
	msg, err := wireEnv.UnmarshalClipboardMessage()
	if err != nil {
		return nil, err
	}

	if ids.PeerId(msg.OriginPeerID) == d.localPeerID {
		return nil, nil // self-echo
	}
	if latest, ok := d.store.LatestEvent(); ok && latest.SnapshotHash == msg.ContentHash {
		return nil, nil // dedup
	}
	if !d.admitSequence(inbound.PeerID, msg.SequenceNo) {
		return nil, nil // regression
	}

	var env cryptoutil.Envelope
	if err := json.Unmarshal(msg.EncryptedPayload, &env); err != nil {
		return nil, fmt.Errorf("syncdispatch: parse envelope: %w", err)
	}
	plaintext, err := encryption.Decrypt(d.session, env, cryptoutil.WireMessageAAD(msg.OriginPeerID, msg.SequenceNo))
	if err != nil {
		return nil, fmt.Errorf("syncdispatch: decrypt clipboard message: %w", err)
	}

	rep := &clipboard.Representation{
		ID:           ids.NewRepresentationId(),
		EventID:      ids.EventId(msg.EventID),
		FormatID:     "remote",
		MimeType:     "application/octet-stream",
		SizeBytes:    int64(len(plaintext)),
		InlineData:   plaintext,
		PayloadState: clipboard.StateInline,
	}
	event := &clipboard.Event{
		ID:              ids.EventId(msg.EventID),
		CapturedAtMs:    msg.TimestampMs,
		SourceDeviceID:  msg.OriginPeerID,
		SnapshotHash:    msg.ContentHash,
		Representations: []*clipboard.Representation{rep},
	}
	if err := d.store.SaveEvent(event); err != nil {
		return nil, fmt.Errorf("syncdispatch: persist remote event: %w", err)
	}
	return event, nil
}

// admitSequence reports whether seq is strictly greater than the highest
// sequence_no previously seen from peerID, recording it if so (spec.md
// §4.14 ordering / §8 invariant 8).
func (d *Dispatcher) admitSequence(peerID ids.PeerId, seq uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if highest, ok := d.highestSeenByPeer[peerID]; ok && seq <= highest {
		return false
	}
	d.highestSeenByPeer[peerID] = seq
	return true
}
