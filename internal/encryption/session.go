// Package encryption implements the process-wide encryption session cell
// (C4 in the design): a single cached, unwrapped master key guarded by a
// reader-writer lock, consulted by every component that needs to encrypt
// or decrypt user data.
package encryption

import (
	"errors"
	"sync"

	"go.klb.dev/uniclipboard/internal/cryptoutil"
)

// ErrNotReady is returned by Get when no master key has been set (or it was
// cleared). Every caller — blob store, representation encryption, message
// sealing — must refuse work rather than silently operating unencrypted.
var ErrNotReady = errors.New("encryption: session not ready, master key not set")

// MasterKey is the long-lived symmetric key for all user data encryption.
type MasterKey [cryptoutil.KeySize]byte

// Session is a process-wide cell holding an optional MasterKey.
//
// Invariant: after Clear, no subsequent Get may succeed until Set is called
// again — this is the gate other components use to refuse work when the
// user has not unlocked.
type Session struct {
	mu  sync.RWMutex
	key *MasterKey
}

// New returns an empty (locked) Session.
func New() *Session {
	return &Session{}
}

// Set installs key as the process's master key, replacing any previous one.
func (s *Session) Set(key MasterKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key
	s.key = &k
}

// Get returns the current master key, or ErrNotReady if none is set.
func (s *Session) Get() (MasterKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.key == nil {
		return MasterKey{}, ErrNotReady
	}
	return *s.key, nil
}

// Clear discards the cached master key.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.key = nil
}

// IsReady reports whether a master key is currently set.
func (s *Session) IsReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.key != nil
}
