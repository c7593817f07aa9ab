package blobstore

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"go.klb.dev/uniclipboard/internal/hashing"
	"go.klb.dev/uniclipboard/internal/ids"
)

func TestFsStorePutGetRoundTrip(t *testing.T) {
	s := NewFsStore(t.TempDir())
	blobID := ids.NewBlobId()
	data := []byte("hello blob store")
	meta := Meta{ContentHash: hashing.Hash(data), SizeBytes: int64(len(data)), CreatedAt: time.Now().UTC()}

	if err := s.Put(blobID, meta, data); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, gotMeta, err := s.Get(blobID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("data mismatch")
	}
	if gotMeta.ContentHash != meta.ContentHash || gotMeta.SizeBytes != meta.SizeBytes {
		t.Fatalf("meta mismatch: %+v vs %+v", gotMeta, meta)
	}
}

func TestFsStoreRejectsNonUUIDBlobID(t *testing.T) {
	s := NewFsStore(t.TempDir())
	if err := s.Put("../../etc/passwd", Meta{}, []byte("x")); !errors.Is(err, ErrInvalidBlobID) {
		t.Fatalf("expected ErrInvalidBlobID, got %v", err)
	}
	if _, _, err := s.Get("not-a-uuid"); !errors.Is(err, ErrInvalidBlobID) {
		t.Fatalf("expected ErrInvalidBlobID, got %v", err)
	}
}

func TestFsStoreGetMissingReturnsNotFound(t *testing.T) {
	s := NewFsStore(t.TempDir())
	if _, _, err := s.Get(ids.NewBlobId()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFsStoreDeleteIsIdempotent(t *testing.T) {
	s := NewFsStore(t.TempDir())
	blobID := ids.NewBlobId()
	if err := s.Put(blobID, Meta{}, []byte("x")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.Delete(blobID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.Delete(blobID); err != nil {
		t.Fatalf("second delete should be a no-op: %v", err)
	}
	if _, _, err := s.Get(blobID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}
