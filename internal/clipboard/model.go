// Package clipboard implements C8, the clipboard capture pipeline
// (spec.md §4.8): reading platform snapshots, deduplicating by snapshot
// hash, normalizing representations (inline vs staged), and selecting the
// user-facing primary/preview/paste representations.
package clipboard

import "go.klb.dev/uniclipboard/internal/ids"

// PayloadState is the lifecycle of one PersistedClipboardRepresentation's
// bytes (spec.md §3).
type PayloadState int

const (
	StateInline PayloadState = iota
	StateStaged
	StateProcessing
	StateBlobReady
	StateLost
)

func (s PayloadState) String() string {
	switch s {
	case StateInline:
		return "Inline"
	case StateStaged:
		return "Staged"
	case StateProcessing:
		return "Processing"
	case StateBlobReady:
		return "BlobReady"
	case StateLost:
		return "Lost"
	default:
		return "Unknown"
	}
}

// Representation is one MIME variant of one captured event.
type Representation struct {
	ID          ids.RepresentationId
	EventID     ids.EventId
	FormatID    string
	MimeType    string
	SizeBytes   int64
	InlineData  []byte
	BlobID      ids.BlobId
	PayloadState PayloadState
	LastError   string
}

// Event is one immutable capture instance (spec.md §3).
type Event struct {
	ID              ids.EventId
	CapturedAtMs    int64
	SourceDeviceID  string
	SnapshotHash    string
	Representations []*Representation
}

// SelectionRole names a slot in a SelectionDecision.
type SelectionRole string

const (
	RolePrimary SelectionRole = "primary"
	RolePreview SelectionRole = "preview"
	RolePaste   SelectionRole = "paste"
)

// SelectionDecision records which representation fills each role, frozen
// at entry creation time along with the policy version that produced it
// (spec.md §3, §4.8).
type SelectionDecision struct {
	PolicyVersion int
	Primary       ids.RepresentationId
	Preview       ids.RepresentationId
	Paste         ids.RepresentationId
	Secondaries   []ids.RepresentationId
}

// Entry is the user-facing clipboard history item: an event plus a frozen
// selection over its representations.
type Entry struct {
	ID        ids.EntryId
	EventID   ids.EventId
	Selection SelectionDecision
}
