package trust

import (
	"errors"
	"testing"

	"go.klb.dev/uniclipboard/internal/ports"
)

func TestFileRepositoryUpsertAndGet(t *testing.T) {
	repo := NewFileRepository(t.TempDir())
	device := ports.PairedDevice{PeerID: "peer-1", State: ports.PairingStateTrusted, IdentityFingerprint: "fp1", DeviceName: "Laptop"}

	if err := repo.Upsert(device); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	got, err := repo.GetByPeerID("peer-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.DeviceName != "Laptop" || got.State != ports.PairingStateTrusted {
		t.Fatalf("unexpected device: %+v", got)
	}
}

func TestFileRepositoryGetMissingReturnsNotFound(t *testing.T) {
	repo := NewFileRepository(t.TempDir())
	if _, err := repo.GetByPeerID("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFileRepositorySetStateAndUpdateLastSeen(t *testing.T) {
	repo := NewFileRepository(t.TempDir())
	device := ports.PairedDevice{PeerID: "peer-1", State: ports.PairingStatePending}
	if err := repo.Upsert(device); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	if err := repo.SetState("peer-1", ports.PairingStateTrusted); err != nil {
		t.Fatalf("set state: %v", err)
	}
	if err := repo.UpdateLastSeen("peer-1", 12345); err != nil {
		t.Fatalf("update last seen: %v", err)
	}

	got, err := repo.GetByPeerID("peer-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.State != ports.PairingStateTrusted || got.LastSeenAtMs != 12345 {
		t.Fatalf("unexpected device: %+v", got)
	}
}

func TestFileRepositoryListAllAndDelete(t *testing.T) {
	repo := NewFileRepository(t.TempDir())
	if err := repo.Upsert(ports.PairedDevice{PeerID: "a"}); err != nil {
		t.Fatalf("upsert a: %v", err)
	}
	if err := repo.Upsert(ports.PairedDevice{PeerID: "b"}); err != nil {
		t.Fatalf("upsert b: %v", err)
	}

	list, err := repo.ListAll()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 devices, got %d", len(list))
	}

	if err := repo.Delete("a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.GetByPeerID("a"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected a removed, got %v", err)
	}
	list, err = repo.ListAll()
	if err != nil {
		t.Fatalf("list after delete: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 device after delete, got %d", len(list))
	}
}

func TestFileRepositoryPersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	first := NewFileRepository(dir)
	if err := first.Upsert(ports.PairedDevice{PeerID: "peer-1", State: ports.PairingStateTrusted}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	second := NewFileRepository(dir)
	got, err := second.GetByPeerID("peer-1")
	if err != nil {
		t.Fatalf("get from second instance: %v", err)
	}
	if got.State != ports.PairingStateTrusted {
		t.Fatalf("expected state to survive across instances")
	}
}
