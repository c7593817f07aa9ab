package blobstore

import (
	"encoding/json"
	"errors"
	"fmt"

	"go.klb.dev/uniclipboard/internal/cryptoutil"
	"go.klb.dev/uniclipboard/internal/encryption"
	"go.klb.dev/uniclipboard/internal/ids"
)

// EncryptedStore decorates an inner Store, sealing data under an AEAD
// envelope with blob-domain AAD before it ever reaches the inner store
// (spec.md §4.6), grounded on the original implementation's
// EncryptedBlobStore decorator (encrypted_blob_store.rs). meta.json is
// passed through the inner store untouched; only data.bin's contents
// become an encrypted envelope.
type EncryptedStore struct {
	inner   Store
	session *encryption.Session
}

// NewEncryptedStore wraps inner, encrypting/decrypting through session.
func NewEncryptedStore(inner Store, session *encryption.Session) *EncryptedStore {
	return &EncryptedStore{inner: inner, session: session}
}

// Put encrypts data under blob-domain AAD and delegates to the inner
// store. Fails fast with encryption.ErrNotReady if the session is locked.
func (e *EncryptedStore) Put(blobID ids.BlobId, meta Meta, data []byte) error {
	env, err := encryption.Encrypt(e.session, data, cryptoutil.BlobAAD(string(blobID)))
	if err != nil {
		return err
	}
	envBytes, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("%w: marshal blob envelope: %w", ErrIoFailure, err)
	}
	return e.inner.Put(blobID, meta, envBytes)
}

// Get reads the envelope via the inner store and decrypts it. A parse
// failure or AEAD open failure both surface as ErrCorruptOrKeyMismatch,
// except for a locked session, which still surfaces ErrNotReady so
// callers can distinguish "not unlocked yet" from "actually corrupt".
func (e *EncryptedStore) Get(blobID ids.BlobId) ([]byte, Meta, error) {
	envBytes, meta, err := e.inner.Get(blobID)
	if err != nil {
		return nil, meta, err
	}
	var env cryptoutil.Envelope
	if err := json.Unmarshal(envBytes, &env); err != nil {
		return nil, meta, fmt.Errorf("%w: parse blob envelope: %w", ErrCorruptOrKeyMismatch, err)
	}
	plaintext, err := encryption.Decrypt(e.session, env, cryptoutil.BlobAAD(string(blobID)))
	if err != nil {
		if errors.Is(err, encryption.ErrNotReady) {
			return nil, meta, err
		}
		return nil, meta, fmt.Errorf("%w: %w", ErrCorruptOrKeyMismatch, err)
	}
	return plaintext, meta, nil
}

// Delete removes the blob via the inner store.
func (e *EncryptedStore) Delete(blobID ids.BlobId) error {
	return e.inner.Delete(blobID)
}
