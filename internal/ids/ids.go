// Package ids defines the opaque, distinctly-typed identifiers used
// throughout uniclipboard. Each identifier is a thin string wrapper so the
// compiler rejects accidental mixing (e.g. passing a PeerId where an EventId
// is expected).
package ids

import "github.com/google/uuid"

// EntryId identifies a user-visible clipboard history item.
type EntryId string

// EventId identifies one capture instance.
type EventId string

// RepresentationId identifies one MIME representation of an event.
type RepresentationId string

// BlobId identifies an immutable content-addressed blob. Blob IDs are always
// valid UUIDs — the blob store relies on this to prevent path traversal.
type BlobId string

// PeerId is the stable cryptographic identity of a remote device.
type PeerId string

// SessionId identifies a pairing attempt or a protocol stream.
type SessionId string

// New returns a fresh random UUID string, suitable for any of the id types
// above via a simple conversion, e.g. ids.EventId(ids.New()).
func New() string {
	return uuid.NewString()
}

// NewBlobId returns a fresh BlobId. Centralized so every blob is guaranteed
// to carry a real UUID — the blob store validates this invariant on every
// path it builds from one.
func NewBlobId() BlobId {
	return BlobId(uuid.NewString())
}

// NewEventId returns a fresh EventId.
func NewEventId() EventId {
	return EventId(uuid.NewString())
}

// NewRepresentationId returns a fresh RepresentationId.
func NewRepresentationId() RepresentationId {
	return RepresentationId(uuid.NewString())
}

// NewEntryId returns a fresh EntryId.
func NewEntryId() EntryId {
	return EntryId(uuid.NewString())
}

// NewSessionId returns a fresh SessionId.
func NewSessionId() SessionId {
	return SessionId(uuid.NewString())
}

// ValidBlobId reports whether s is a syntactically valid blob id (a UUID).
// The blob store uses this to reject path-traversal attempts before
// touching the filesystem.
func ValidBlobId(s BlobId) bool {
	_, err := uuid.Parse(string(s))
	return err == nil
}
