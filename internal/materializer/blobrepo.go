// Package materializer implements C9, the materialization worker
// (spec.md §4.9): driven by spooler notifications, it hashes staged
// bytes, reuses an existing blob by content hash or creates a new one,
// and CAS-transitions the owning representation to BlobReady or Lost.
package materializer

import (
	"sync"

	"go.klb.dev/uniclipboard/internal/ids"
)

// BlobRecord is one row of the blob repository (spec.md §3): content
// hash is unique, and a blob id, once assigned, is never rebound.
type BlobRecord struct {
	BlobID      ids.BlobId
	ContentHash string
	SizeBytes   int64
	CreatedAtMs int64
}

// BlobRepository resolves content-hash deduplication independently of
// the blob store's actual bytes (spec.md §4.9 step 4).
type BlobRepository interface {
	GetByHash(contentHash string) (BlobRecord, bool, error)
	Insert(record BlobRecord) error
}

// InMemoryBlobRepository is a process-lifetime BlobRepository.
type InMemoryBlobRepository struct {
	mu      sync.Mutex
	byHash  map[string]BlobRecord
}

// NewInMemoryBlobRepository returns an empty repository.
func NewInMemoryBlobRepository() *InMemoryBlobRepository {
	return &InMemoryBlobRepository{byHash: make(map[string]BlobRecord)}
}

func (r *InMemoryBlobRepository) GetByHash(contentHash string) (BlobRecord, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.byHash[contentHash]
	return rec, ok, nil
}

func (r *InMemoryBlobRepository) Insert(record BlobRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byHash[record.ContentHash] = record
	return nil
}
