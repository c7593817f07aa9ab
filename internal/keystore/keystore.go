package keystore

import (
	"fmt"
	"os"
	"path/filepath"
)

// Store is the secure key store (C3): it persists the wrapped master key
// (KeySlotFile) on disk and the raw KEK bytes behind a Capability-resolved
// backend (platform keyring, or a 0600 file when none is reachable).
type Store struct {
	slots *SlotFileStore
	keks  *KEKStore
	dir   string
}

// New returns a Store rooted at configDir, detecting the host's secure
// storage Capability once at construction.
func New(configDir string) *Store {
	return &Store{
		slots: NewSlotFileStore(configDir),
		keks:  NewKEKStore(DetectCapability(), configDir),
		dir:   configDir,
	}
}

// LoadKeySlot loads the wrapped master key for scope. Errors:
// ErrKeyNotFound (no slot has ever been written), ErrKeyMaterialCorrupt.
func (s *Store) LoadKeySlot() (KeySlotFile, error) {
	return s.slots.Load()
}

// EncryptionState reports whether a master key has ever been created for
// this config directory: the key slot file's presence is itself the only
// durable proof (spec.md §3), so this is a thin read rather than a second
// persisted flag.
func (s *Store) EncryptionState() EncryptionState {
	if _, err := s.LoadKeySlot(); err != nil {
		return StateUninitialized
	}
	return StateInitialized
}

// StoreKeySlot persists slot atomically.
func (s *Store) StoreKeySlot(slot KeySlotFile) error {
	return s.slots.Store(slot)
}

// DeleteKeySlot removes the key slot file.
func (s *Store) DeleteKeySlot() error {
	return s.slots.Delete()
}

// LoadKEK retrieves the raw KEK for scope.
func (s *Store) LoadKEK(scope KeyScope) ([32]byte, error) {
	return s.keks.Load(scope)
}

// StoreKEK persists the raw KEK for scope.
func (s *Store) StoreKEK(scope KeyScope, kek [32]byte) error {
	return s.keks.Store(scope, kek)
}

// DeleteKEK removes the raw KEK for scope.
func (s *Store) DeleteKEK(scope KeyScope) error {
	return s.keks.Delete(scope)
}

// deviceIDFileName is the well-known device identity file (spec.md §6).
const deviceIDFileName = "device_id.txt"

// LoadOrCreateDeviceID reads <configDir>/device_id.txt, creating it with a
// fresh UUID on first run (spec.md §6, §4 supplemented feature).
func (s *Store) LoadOrCreateDeviceID(newID func() string) (string, error) {
	path := filepath.Join(s.dir, deviceIDFileName)
	data, err := os.ReadFile(path)
	if err == nil {
		return trimNewline(string(data)), nil
	}
	if !os.IsNotExist(err) {
		return "", fmt.Errorf("keystore: read device id: %w: %w", ErrIoFailure, err)
	}

	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return "", fmt.Errorf("keystore: mkdir config dir: %w: %w", ErrIoFailure, err)
	}
	id := newID()
	if err := os.WriteFile(path, []byte(id+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("keystore: write device id: %w: %w", ErrIoFailure, err)
	}
	return id, nil
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
