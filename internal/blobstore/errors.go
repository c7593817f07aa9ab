package blobstore

import "errors"

var (
	// ErrInvalidBlobID is returned when a blob id fails UUID validation,
	// before any path built from it touches the filesystem.
	ErrInvalidBlobID = errors.New("blobstore: invalid blob id")
	ErrNotFound       = errors.New("blobstore: blob not found")
	ErrIoFailure      = errors.New("blobstore: io failure")
	// ErrCorruptOrKeyMismatch is returned by the encrypting decorator when
	// the stored envelope cannot be parsed, or decrypts under the wrong
	// master key (spec.md §4.6), and by FsStore.Get when meta.json cannot
	// be parsed.
	ErrCorruptOrKeyMismatch = errors.New("blobstore: corrupt or key mismatch")
)
