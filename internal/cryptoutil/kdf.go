// Package cryptoutil implements the key derivation, wrapping, and AEAD
// envelope primitives described in spec.md §4.2 and §4.5 (C2 and C5).
//
// The KEK is derived from a user passphrase with Argon2id, a memory-hard
// KDF chosen — in the teacher's style of deriving symmetric keys with
// golang.org/x/crypto (see the teacher's HKDF-based session key derivation
// in internal/tlsconf) — to resist offline brute force on the key slot
// file. The master key is wrapped with XChaCha20-Poly1305, matching
// spec.md's required AEAD and giving a 24-byte nonce wide enough to
// generate randomly without birthday-bound collision risk.
package cryptoutil

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/argon2"
)

const KeySize = 32

// KDFParams enumerates the memory-hard KDF tuning knobs (spec.md §4.2).
type KDFParams struct {
	MemoryKiB   uint32
	TimeCost    uint32
	Parallelism uint8
	KeyLen      uint32
}

// DefaultKDFParams are conservative desktop-class Argon2id parameters:
// 64 MiB, 3 passes, single-threaded (keyring/file I/O already serializes
// unlock attempts, so parallelism buys nothing here and would only cost
// more memory per concurrent unlock).
var DefaultKDFParams = KDFParams{
	MemoryKiB:   64 * 1024,
	TimeCost:    3,
	Parallelism: 1,
	KeyLen:      KeySize,
}

// NewSalt returns a fresh random salt suitable for DeriveKEK.
func NewSalt() ([]byte, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("cryptoutil: generate salt: %w", err)
	}
	return salt, nil
}

// DeriveKEK derives a KeySize-byte key-encryption key from passphrase and
// salt using Argon2id. The same passphrase and salt always produce the same
// KEK; a wrong passphrase silently produces a different (usable-looking)
// key — the caller discovers the mismatch only when Unwrap's MAC check
// fails (ErrWrongPassphrase).
func DeriveKEK(passphrase string, salt []byte, params KDFParams) ([KeySize]byte, error) {
	var kek [KeySize]byte
	if len(salt) == 0 {
		return kek, fmt.Errorf("cryptoutil: derive kek: %w", ErrInvalidKeyMaterial)
	}
	keyLen := params.KeyLen
	if keyLen == 0 {
		keyLen = KeySize
	}
	if keyLen != KeySize {
		return kek, fmt.Errorf("cryptoutil: derive kek: %w", ErrAlgorithmUnsupported)
	}
	raw := argon2.IDKey([]byte(passphrase), salt, params.TimeCost, params.MemoryKiB, params.Parallelism, keyLen)
	copy(kek[:], raw)
	return kek, nil
}
