package syncdispatch

import (
	"context"
	"testing"

	"go.klb.dev/uniclipboard/internal/clipboard"
	"go.klb.dev/uniclipboard/internal/encryption"
	"go.klb.dev/uniclipboard/internal/ids"
	"go.klb.dev/uniclipboard/internal/ports"
	"go.klb.dev/uniclipboard/internal/trust"
)

type fakeTransport struct {
	sent []ports.WireEnvelope
}

func (f *fakeTransport) Send(ctx context.Context, peerID ids.PeerId, env ports.WireEnvelope) error {
	f.sent = append(f.sent, env)
	return nil
}
func (f *fakeTransport) Receive() <-chan ports.InboundEnvelope { return nil }
func (f *fakeTransport) Close() error                          { return nil }

func newTestDispatcher(t *testing.T, localPeerID ids.PeerId) (*Dispatcher, *fakeTransport, trust.Repository) {
	t.Helper()
	session := encryption.New()
	var key encryption.MasterKey
	for i := range key {
		key[i] = byte(i + 1)
	}
	session.Set(key)

	repo := trust.NewFileRepository(t.TempDir())
	transport := &fakeTransport{}
	store := clipboard.NewMemory()
	d := New(session, transport, repo, nil, store, localPeerID, "Local Device", func() int64 { return 42 })
	return d, transport, repo
}

func makeInlineEvent(hash string, data []byte) (*clipboard.Event, ids.RepresentationId) {
	repID := ids.NewRepresentationId()
	rep := &clipboard.Representation{ID: repID, FormatID: "text/plain", MimeType: "text/plain", SizeBytes: int64(len(data)), InlineData: data, PayloadState: clipboard.StateInline}
	event := &clipboard.Event{ID: ids.NewEventId(), CapturedAtMs: 100, SnapshotHash: hash, Representations: []*clipboard.Representation{rep}}
	return event, repID
}

func TestDispatchLocalPublishesToTrustedPeersOnly(t *testing.T) {
	d, transport, repo := newTestDispatcher(t, "local-peer")
	if err := repo.Upsert(ports.PairedDevice{PeerID: "trusted-peer", State: ports.PairingStateTrusted}); err != nil {
		t.Fatalf("upsert trusted: %v", err)
	}
	if err := repo.Upsert(ports.PairedDevice{PeerID: "pending-peer", State: ports.PairingStatePending}); err != nil {
		t.Fatalf("upsert pending: %v", err)
	}

	event, repID := makeInlineEvent("hash-1", []byte("hello clipboard"))
	if err := d.DispatchLocal(context.Background(), event, repID); err != nil {
		t.Fatalf("dispatch local: %v", err)
	}
	if len(transport.sent) != 1 {
		t.Fatalf("expected exactly 1 send (trusted peer only), got %d", len(transport.sent))
	}
}

func TestDispatchLocalMissingRepresentationErrors(t *testing.T) {
	d, _, _ := newTestDispatcher(t, "local-peer")
	event, _ := makeInlineEvent("hash-1", []byte("x"))
	if err := d.DispatchLocal(context.Background(), event, "nonexistent-rep"); err == nil {
		t.Fatal("expected error for missing representation")
	}
}

func roundTripEnvelope(t *testing.T, sender, receiver *Dispatcher, senderPeerID ids.PeerId, event *clipboard.Event, repID ids.RepresentationId) *fakeTransport {
	t.Helper()
	transport := &fakeTransport{}
	sender.transport = transport
	if err := sender.DispatchLocal(context.Background(), event, repID); err != nil {
		t.Fatalf("dispatch local: %v", err)
	}
	return transport
}

func TestRemoteMessageFromTrustedPeerIsDecryptedAndPersisted(t *testing.T) {
	sender, _, senderRepo := newTestDispatcher(t, "peer-a")
	if err := senderRepo.Upsert(ports.PairedDevice{PeerID: "peer-b", State: ports.PairingStateTrusted}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	receiver, _, receiverRepo := newTestDispatcher(t, "peer-b")
	if err := receiverRepo.Upsert(ports.PairedDevice{PeerID: "peer-a", State: ports.PairingStateTrusted}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	// Both sides must share the same master key to decrypt each other's
	// wire messages; give the receiver the same fixed key as the sender.
	var key encryption.MasterKey
	for i := range key {
		key[i] = byte(i + 1)
	}
	receiver.session.Set(key)

	event, repID := makeInlineEvent("hash-remote", []byte("from peer A"))
	transport := roundTripEnvelope(t, sender, receiver, "peer-a", event, repID)
	if len(transport.sent) != 1 {
		t.Fatalf("expected 1 sent envelope, got %d", len(transport.sent))
	}

	got, err := receiver.HandleRemote(ports.InboundEnvelope{PeerID: "peer-a", Env: transport.sent[0]})
	if err != nil {
		t.Fatalf("handle remote: %v", err)
	}
	if got == nil {
		t.Fatal("expected a persisted event, got nil")
	}
	if string(got.Representations[0].InlineData) != "from peer A" {
		t.Fatalf("unexpected decrypted payload: %q", got.Representations[0].InlineData)
	}

	latest, ok := receiver.store.LatestEvent()
	if !ok || latest.SnapshotHash != "hash-remote" {
		t.Fatalf("expected event persisted into store, got %+v ok=%v", latest, ok)
	}
}

func TestRemoteMessageFromUntrustedPeerIsRejected(t *testing.T) {
	sender, _, _ := newTestDispatcher(t, "peer-a")
	receiver, _, _ := newTestDispatcher(t, "peer-b") // peer-a NOT trusted by receiver

	event, repID := makeInlineEvent("hash-1", []byte("data"))
	transport := roundTripEnvelope(t, sender, receiver, "peer-a", event, repID)

	if _, err := receiver.HandleRemote(ports.InboundEnvelope{PeerID: "peer-a", Env: transport.sent[0]}); err == nil {
		t.Fatal("expected rejection for untrusted peer")
	}
}

func TestSequenceRegressionIsDropped(t *testing.T) {
	d, _, _ := newTestDispatcher(t, "peer-b")
	if !d.admitSequence("peer-a", 5) {
		t.Fatal("expected seq 5 to be admitted first")
	}
	if d.admitSequence("peer-a", 5) {
		t.Fatal("expected duplicate seq 5 to be rejected")
	}
	if d.admitSequence("peer-a", 3) {
		t.Fatal("expected regression seq 3 to be rejected")
	}
	if !d.admitSequence("peer-a", 6) {
		t.Fatal("expected seq 6 to be admitted")
	}
}

func TestSelfEchoIsDropped(t *testing.T) {
	d, _, repo := newTestDispatcher(t, "peer-a")
	if err := repo.Upsert(ports.PairedDevice{PeerID: "peer-a", State: ports.PairingStateTrusted}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	transport := &fakeTransport{}
	d.transport = transport
	event, repID := makeInlineEvent("hash-self", []byte("mine"))
	if err := d.DispatchLocal(context.Background(), event, repID); err != nil {
		t.Fatalf("dispatch local: %v", err)
	}

	got, err := d.HandleRemote(ports.InboundEnvelope{PeerID: "peer-a", Env: transport.sent[0]})
	if err != nil {
		t.Fatalf("handle remote: %v", err)
	}
	if got != nil {
		t.Fatalf("expected self-echo to be dropped, got %+v", got)
	}
}
