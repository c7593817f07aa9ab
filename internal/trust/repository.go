// Package trust implements C12, the paired-device repository
// (spec.md §4.12): a durable store of PairedDevice trust records, keyed
// by peer id, with linearizable per-peer writes. Grounded on the
// original implementation's PairedDeviceRepositoryPort usage
// (resolve_connection_policy.rs).
package trust

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.klb.dev/uniclipboard/internal/ids"
	"go.klb.dev/uniclipboard/internal/ports"
)

var ErrNotFound = errors.New("trust: peer not found")
var ErrIoFailure = errors.New("trust: io failure")

// Repository is C12's interface (spec.md §4.12).
type Repository interface {
	GetByPeerID(peerID ids.PeerId) (ports.PairedDevice, error)
	ListAll() ([]ports.PairedDevice, error)
	Upsert(device ports.PairedDevice) error
	SetState(peerID ids.PeerId, state ports.PairingState) error
	UpdateLastSeen(peerID ids.PeerId, atMs int64) error
	Delete(peerID ids.PeerId) error
}

// FileRepository persists all trust records as one JSON file, written
// atomically via temp-file + rename, matching the keystore package's
// persistence convention. Per-peer writes are serialized by a single
// mutex, satisfying "linearizable per peer_id" (a stronger guarantee,
// process-wide linearizability, subsumes it).
type FileRepository struct {
	mu   sync.Mutex
	path string
}

// NewFileRepository returns a Repository persisted at
// <configDir>/paired_devices.json.
func NewFileRepository(configDir string) *FileRepository {
	return &FileRepository{path: filepath.Join(configDir, "paired_devices.json")}
}

func (r *FileRepository) loadLocked() (map[ids.PeerId]ports.PairedDevice, error) {
	devices := make(map[ids.PeerId]ports.PairedDevice)
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return devices, nil
		}
		return nil, fmt.Errorf("%w: read trust store: %w", ErrIoFailure, err)
	}
	var list []ports.PairedDevice
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("%w: parse trust store: %w", ErrIoFailure, err)
	}
	for _, d := range list {
		devices[d.PeerID] = d
	}
	return devices, nil
}

func (r *FileRepository) saveLocked(devices map[ids.PeerId]ports.PairedDevice) error {
	list := make([]ports.PairedDevice, 0, len(devices))
	for _, d := range devices {
		list = append(list, d)
	}
	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshal trust store: %w", ErrIoFailure, err)
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0o700); err != nil {
		return fmt.Errorf("%w: mkdir config dir: %w", ErrIoFailure, err)
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("%w: write trust store: %w", ErrIoFailure, err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("%w: rename trust store: %w", ErrIoFailure, err)
	}
	return nil
}

func (r *FileRepository) GetByPeerID(peerID ids.PeerId) (ports.PairedDevice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	devices, err := r.loadLocked()
	if err != nil {
		return ports.PairedDevice{}, err
	}
	d, ok := devices[peerID]
	if !ok {
		return ports.PairedDevice{}, ErrNotFound
	}
	return d, nil
}

func (r *FileRepository) ListAll() ([]ports.PairedDevice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	devices, err := r.loadLocked()
	if err != nil {
		return nil, err
	}
	list := make([]ports.PairedDevice, 0, len(devices))
	for _, d := range devices {
		list = append(list, d)
	}
	return list, nil
}

func (r *FileRepository) Upsert(device ports.PairedDevice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	devices, err := r.loadLocked()
	if err != nil {
		return err
	}
	devices[device.PeerID] = device
	return r.saveLocked(devices)
}

func (r *FileRepository) SetState(peerID ids.PeerId, state ports.PairingState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	devices, err := r.loadLocked()
	if err != nil {
		return err
	}
	d, ok := devices[peerID]
	if !ok {
		return ErrNotFound
	}
	d.State = state
	devices[peerID] = d
	return r.saveLocked(devices)
}

func (r *FileRepository) UpdateLastSeen(peerID ids.PeerId, atMs int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	devices, err := r.loadLocked()
	if err != nil {
		return err
	}
	d, ok := devices[peerID]
	if !ok {
		return ErrNotFound
	}
	d.LastSeenAtMs = atMs
	devices[peerID] = d
	return r.saveLocked(devices)
}

func (r *FileRepository) Delete(peerID ids.PeerId) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	devices, err := r.loadLocked()
	if err != nil {
		return err
	}
	delete(devices, peerID)
	return r.saveLocked(devices)
}
