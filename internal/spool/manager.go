package spool

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.klb.dev/uniclipboard/internal/ids"
)

// Manager is the on-disk half of the spooler: one file per representation
// under root, bounded by a total byte budget shared across all entries.
// There is no original-implementation SpoolManager source in the corpus
// to adapt directly; this mirrors the layout convention established by
// blobstore.FsStore (one flat directory, UUID-derived file names) and the
// byte-budget behavior the original spooler_task.rs exercises against it.
type Manager struct {
	root      string
	budget    int64
	mu        sync.Mutex
	usedBytes int64
	sizes     map[ids.RepresentationId]int64
}

// NewManager returns a Manager rooted at root with the given total byte
// budget across all spooled representations.
func NewManager(root string, budget int64) *Manager {
	return &Manager{root: root, budget: budget, sizes: make(map[ids.RepresentationId]int64)}
}

func (m *Manager) path(repID ids.RepresentationId) string {
	return filepath.Join(m.root, string(repID)+".bin")
}

// Write persists bytes for repID, rejecting the write with
// ErrBudgetExceeded if it would push total usage past the budget.
func (m *Manager) Write(repID ids.RepresentationId, bytes []byte) error {
	m.mu.Lock()
	prior := m.sizes[repID]
	projected := m.usedBytes - prior + int64(len(bytes))
	if projected > m.budget {
		m.mu.Unlock()
		return ErrBudgetExceeded
	}
	m.mu.Unlock()

	if err := os.MkdirAll(m.root, 0o700); err != nil {
		return fmt.Errorf("%w: mkdir spool dir: %w", ErrIoFailure, err)
	}
	if err := os.WriteFile(m.path(repID), bytes, 0o600); err != nil {
		return fmt.Errorf("%w: write spool entry: %w", ErrIoFailure, err)
	}

	m.mu.Lock()
	m.usedBytes = m.usedBytes - prior + int64(len(bytes))
	m.sizes[repID] = int64(len(bytes))
	m.mu.Unlock()
	return nil
}

// Read loads the bytes previously written for repID.
func (m *Manager) Read(repID ids.RepresentationId) ([]byte, error) {
	data, err := os.ReadFile(m.path(repID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: read spool entry: %w", ErrIoFailure, err)
	}
	return data, nil
}

// Remove deletes the spooled file for repID and releases its budget.
// Idempotent.
func (m *Manager) Remove(repID ids.RepresentationId) error {
	if err := os.Remove(m.path(repID)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: remove spool entry: %w", ErrIoFailure, err)
	}
	m.mu.Lock()
	if prior, ok := m.sizes[repID]; ok {
		m.usedBytes -= prior
		delete(m.sizes, repID)
	}
	m.mu.Unlock()
	return nil
}

// UsedBytes reports current disk usage against the budget.
func (m *Manager) UsedBytes() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.usedBytes
}
