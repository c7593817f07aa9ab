package clipboard

import (
	"sync"

	"go.klb.dev/uniclipboard/internal/ids"
)

// EventStore is the persistence surface the capture pipeline writes
// through. A durable implementation lives outside this package's scope
// (spec.md leaves the concrete database engine unspecified); Memory is
// used directly by tests and is sufficient for a single-process runtime
// that persists nothing across restarts.
type EventStore interface {
	SaveEvent(event *Event) error
	SaveEntry(entry *Entry) error
	LatestEvent() (*Event, bool)
}

// UpdateResult reports the outcome of a compare-and-swap representation
// update (spec.md §4.9).
type UpdateResult int

const (
	UpdateResultUpdated UpdateResult = iota
	UpdateResultStateMismatch
	UpdateResultNotFound
)

// Memory is an in-memory EventStore: the most recent event is tracked for
// dedup, and all events/entries are kept for the process lifetime.
type Memory struct {
	mu      sync.Mutex
	events  []*Event
	entries []*Entry
	latest  *Event
	repsByID map[ids.RepresentationId]*Representation
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{repsByID: make(map[ids.RepresentationId]*Representation)}
}

func (m *Memory) SaveEvent(event *Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	m.latest = event
	for _, rep := range event.Representations {
		m.repsByID[rep.ID] = rep
	}
	return nil
}

// GetRepresentation returns the representation for repID, if known.
func (m *Memory) GetRepresentation(repID ids.RepresentationId) (*Representation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rep, ok := m.repsByID[repID]
	if !ok {
		return nil, false
	}
	cp := *rep
	return &cp, true
}

// UpdateProcessingResult is the CAS contract C9 drives representations
// through (spec.md §4.9): the state check and the update happen under
// the same lock, so concurrent workers observing the same representation
// cannot both succeed.
func (m *Memory) UpdateProcessingResult(repID ids.RepresentationId, expected []PayloadState, newBlobID ids.BlobId, newState PayloadState, lastError string) (UpdateResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rep, ok := m.repsByID[repID]
	if !ok {
		return UpdateResultNotFound, nil
	}
	matched := false
	for _, s := range expected {
		if rep.PayloadState == s {
			matched = true
			break
		}
	}
	if !matched {
		return UpdateResultStateMismatch, nil
	}

	rep.BlobID = newBlobID
	rep.PayloadState = newState
	rep.LastError = lastError
	if newState == StateBlobReady {
		rep.InlineData = nil
	}
	return UpdateResultUpdated, nil
}

func (m *Memory) SaveEntry(entry *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

func (m *Memory) LatestEvent() (*Event, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.latest == nil {
		return nil, false
	}
	return m.latest, true
}

// LatestEntry returns the most recently saved Entry (and thus its
// Selection), used by the daemon to find the primary representation of a
// just-captured event without re-running the selection policy.
func (m *Memory) LatestEntry() (*Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.entries) == 0 {
		return nil, false
	}
	return m.entries[len(m.entries)-1], true
}

// ListStaged returns the IDs of every representation currently sitting in
// StateStaged, for the materializer's periodic rescan (spec.md §4.9: a
// representation whose spool-notify was dropped under backpressure must
// still eventually get materialized).
func (m *Memory) ListStaged() []ids.RepresentationId {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []ids.RepresentationId
	for id, rep := range m.repsByID {
		if rep.PayloadState == StateStaged {
			out = append(out, id)
		}
	}
	return out
}

// EventByID is a test/debug helper; not part of the EventStore interface.
func (m *Memory) EventByID(id ids.EventId) (*Event, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.events {
		if e.ID == id {
			return e, true
		}
	}
	return nil, false
}
