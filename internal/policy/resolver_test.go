package policy

import (
	"errors"
	"testing"

	"go.klb.dev/uniclipboard/internal/ids"
	"go.klb.dev/uniclipboard/internal/ports"
	"go.klb.dev/uniclipboard/internal/trust"
)

func TestUnpairedPeerAllowsPairingOnly(t *testing.T) {
	r := NewResolver(trust.NewFileRepository(t.TempDir()))
	resolved, err := r.ResolveForPeer("peer-1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.PairingState != ports.PairingStatePending {
		t.Fatalf("expected Pending, got %v", resolved.PairingState)
	}
	if !resolved.Allowed.Allows(ProtocolPairing) {
		t.Fatalf("expected Pairing allowed")
	}
	if resolved.Allowed.Allows(ProtocolBusiness) {
		t.Fatalf("expected Business denied")
	}
}

func TestTrustedPeerAllowsBusiness(t *testing.T) {
	dir := t.TempDir()
	repo := trust.NewFileRepository(dir)
	if err := repo.Upsert(ports.PairedDevice{PeerID: "peer-1", State: ports.PairingStateTrusted}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	resolved, err := NewResolver(repo).ResolveForPeer("peer-1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.PairingState != ports.PairingStateTrusted {
		t.Fatalf("expected Trusted, got %v", resolved.PairingState)
	}
	if !resolved.Allowed.Allows(ProtocolBusiness) {
		t.Fatalf("expected Business allowed")
	}
}

type brokenRepo struct{}

var errStorage = errors.New("storage unavailable")

func (brokenRepo) GetByPeerID(ids.PeerId) (ports.PairedDevice, error) { return ports.PairedDevice{}, errStorage }
func (brokenRepo) ListAll() ([]ports.PairedDevice, error)             { return nil, errStorage }
func (brokenRepo) Upsert(ports.PairedDevice) error                    { return errStorage }
func (brokenRepo) SetState(ids.PeerId, ports.PairingState) error      { return errStorage }
func (brokenRepo) UpdateLastSeen(ids.PeerId, int64) error             { return errStorage }
func (brokenRepo) Delete(ids.PeerId) error                            { return errStorage }

func TestRepositoryFailureIsDistinctFromNotFound(t *testing.T) {
	r := NewResolver(brokenRepo{})
	_, err := r.ResolveForPeer("peer-1")
	if !errors.Is(err, ErrRepository) {
		t.Fatalf("expected ErrRepository, got %v", err)
	}
}
