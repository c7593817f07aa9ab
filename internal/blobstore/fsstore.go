package blobstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.klb.dev/uniclipboard/internal/ids"
)

const (
	blobsDirName    = "blobs"
	metaFileName    = "meta.json"
	dataFileName    = "data.bin"
)

// Store is the narrow capability set C9 and C14 depend on (spec.md §4.6):
// put/get by blob id, plus delete for garbage collection.
type Store interface {
	Put(blobID ids.BlobId, meta Meta, data []byte) error
	Get(blobID ids.BlobId) ([]byte, Meta, error)
	Delete(blobID ids.BlobId) error
}

// FsStore is the plain (unencrypted) filesystem backend: a UUID-named
// directory per blob under <root>/blobs, grounded on the original
// implementation's FsBlobStore (blob_store.rs).
type FsStore struct {
	root string
}

// NewFsStore returns a Store rooted at root (root/blobs holds the blobs).
func NewFsStore(root string) *FsStore {
	return &FsStore{root: root}
}

func (s *FsStore) dir(blobID ids.BlobId) string {
	return filepath.Join(s.root, blobsDirName, string(blobID))
}

func validate(blobID ids.BlobId) error {
	if !ids.ValidBlobId(blobID) {
		return fmt.Errorf("%w: %q", ErrInvalidBlobID, blobID)
	}
	return nil
}

// Put writes meta.json and data.bin under a new directory named blobID.
// blobID must already be a valid UUID; callers mint it via ids.NewBlobId.
func (s *FsStore) Put(blobID ids.BlobId, meta Meta, data []byte) error {
	if err := validate(blobID); err != nil {
		return err
	}
	dir := s.dir(blobID)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("%w: mkdir blob dir: %w", ErrIoFailure, err)
	}

	metaBytes, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("%w: marshal blob meta: %w", ErrIoFailure, err)
	}
	if err := os.WriteFile(filepath.Join(dir, metaFileName), metaBytes, 0o600); err != nil {
		return fmt.Errorf("%w: write blob meta: %w", ErrIoFailure, err)
	}
	if err := os.WriteFile(filepath.Join(dir, dataFileName), data, 0o600); err != nil {
		return fmt.Errorf("%w: write blob data: %w", ErrIoFailure, err)
	}
	return nil
}

// Get reads back the data and metadata written by Put.
func (s *FsStore) Get(blobID ids.BlobId) ([]byte, Meta, error) {
	var meta Meta
	if err := validate(blobID); err != nil {
		return nil, meta, err
	}
	dir := s.dir(blobID)

	metaBytes, err := os.ReadFile(filepath.Join(dir, metaFileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, meta, ErrNotFound
		}
		return nil, meta, fmt.Errorf("%w: read blob meta: %w", ErrIoFailure, err)
	}
	if err := json.Unmarshal(metaBytes, &meta); err != nil {
		return nil, meta, fmt.Errorf("%w: parse blob meta: %w", ErrCorruptOrKeyMismatch, err)
	}

	data, err := os.ReadFile(filepath.Join(dir, dataFileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, meta, ErrNotFound
		}
		return nil, meta, fmt.Errorf("%w: read blob data: %w", ErrIoFailure, err)
	}
	return data, meta, nil
}

// Delete removes the blob directory and everything in it. Idempotent.
func (s *FsStore) Delete(blobID ids.BlobId) error {
	if err := validate(blobID); err != nil {
		return err
	}
	if err := os.RemoveAll(s.dir(blobID)); err != nil {
		return fmt.Errorf("%w: remove blob dir: %w", ErrIoFailure, err)
	}
	return nil
}
