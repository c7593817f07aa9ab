// Package blobstore implements C6, the content-addressed blob store
// (spec.md §4.6): immutable byte objects keyed by a UUID blob id, laid out
// as <root>/blobs/<blob_id>/{data.bin,meta.json}, with an encrypting
// decorator above a plain filesystem store.
package blobstore

import "time"

// Meta is the metadata persisted alongside a blob's raw (or encrypted)
// bytes. ContentHash is the hashing.Hash of the plaintext, independent of
// whatever the inner store actually writes to data.bin.
type Meta struct {
	ContentHash string    `json:"content_hash"`
	SizeBytes   int64     `json:"size_bytes"`
	CreatedAt   time.Time `json:"created_at"`
}
