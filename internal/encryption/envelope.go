package encryption

import (
	"fmt"

	"go.klb.dev/uniclipboard/internal/cryptoutil"
)

// Envelope re-exports cryptoutil.Envelope so callers that only interact with
// the encryption session need not import cryptoutil directly.
type Envelope = cryptoutil.Envelope

// Encrypt seals plaintext under the session's master key with the given AAD
// (spec.md §4.5, C5). Fails fast with ErrNotReady if the session is locked —
// no component may silently fall back to writing plaintext.
func Encrypt(s *Session, plaintext, aad []byte) (Envelope, error) {
	key, err := s.Get()
	if err != nil {
		return Envelope{}, err
	}
	env, err := cryptoutil.Seal([cryptoutil.KeySize]byte(key), plaintext, aad)
	if err != nil {
		return Envelope{}, fmt.Errorf("encryption: encrypt: %w", err)
	}
	return env, nil
}

// Decrypt opens env under the session's master key, verifying aad.
func Decrypt(s *Session, env Envelope, aad []byte) ([]byte, error) {
	key, err := s.Get()
	if err != nil {
		return nil, err
	}
	pt, err := cryptoutil.Open([cryptoutil.KeySize]byte(key), env, aad)
	if err != nil {
		return nil, fmt.Errorf("encryption: decrypt: %w", err)
	}
	return pt, nil
}
