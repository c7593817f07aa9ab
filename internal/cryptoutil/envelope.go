package cryptoutil

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// Algo identifies an AEAD algorithm. A version field on Envelope allows
// future additions without breaking existing stored/wire envelopes.
type Algo string

// AlgoXChaCha20Poly1305 is the only algorithm spec.md §4.2/§4.5 requires.
const AlgoXChaCha20Poly1305 Algo = "xchacha20poly1305v1"

const EnvelopeVersion = 1

// Envelope is the serializable form of an AEAD-sealed payload: algorithm,
// nonce, ciphertext (MAC appended by the AEAD), and an optional AAD
// fingerprint for diagnostics. Used both for the wrapped master key
// (spec.md §3 KeySlotFile) and for any encrypted representation, blob, or
// wire message (spec.md §4.5).
type Envelope struct {
	Version    int    `json:"version"`
	Algo       Algo   `json:"algo"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
	// AADFingerprint is a non-secret hash of the AAD used at seal time,
	// stored for diagnostics only — it is never consulted during Open;
	// the AAD itself must be reconstructed and passed in by the caller.
	AADFingerprint []byte `json:"aad_fingerprint,omitempty"`
}

// Seal encrypts plaintext under key with aad as additional authenticated
// data, using XChaCha20-Poly1305 with a fresh random 24-byte nonce.
func Seal(key [KeySize]byte, plaintext, aad []byte) (Envelope, error) {
	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return Envelope{}, fmt.Errorf("cryptoutil: seal: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return Envelope{}, fmt.Errorf("cryptoutil: seal: generate nonce: %w", err)
	}
	ct := aead.Seal(nil, nonce, plaintext, aad)
	return Envelope{
		Version:    EnvelopeVersion,
		Algo:       AlgoXChaCha20Poly1305,
		Nonce:      nonce,
		Ciphertext: ct,
	}, nil
}

// Open decrypts env under key, verifying aad. Returns ErrMacFailed if the
// key or aad do not match (tampering or wrong key), ErrTruncated if the
// ciphertext is shorter than the AEAD tag, or ErrUnknownAlgorithm if the
// envelope names an algorithm this build does not implement.
func Open(key [KeySize]byte, env Envelope, aad []byte) ([]byte, error) {
	if env.Algo != AlgoXChaCha20Poly1305 {
		return nil, fmt.Errorf("cryptoutil: open: %w: %s", ErrUnknownAlgorithm, env.Algo)
	}
	aead, err := chacha20poly1305.NewX(key[:])
	if err != nil {
		return nil, fmt.Errorf("cryptoutil: open: %w", err)
	}
	if len(env.Nonce) != aead.NonceSize() {
		return nil, fmt.Errorf("cryptoutil: open: %w", ErrTruncated)
	}
	if len(env.Ciphertext) < chacha20poly1305.Overhead {
		return nil, fmt.Errorf("cryptoutil: open: %w", ErrTruncated)
	}
	pt, err := aead.Open(nil, env.Nonce, env.Ciphertext, aad)
	if err != nil {
		return nil, fmt.Errorf("cryptoutil: open: %w", ErrMacFailed)
	}
	return pt, nil
}

// Wrap seals a master key under kek with no AAD — the key slot file is
// scoped by its on-disk location, not by an AAD domain.
func Wrap(kek [KeySize]byte, masterKey [KeySize]byte) (Envelope, error) {
	return Seal(kek, masterKey[:], nil)
}

// Unwrap reverses Wrap. A wrong KEK (wrong passphrase) surfaces as
// ErrWrongPassphrase rather than the generic ErrMacFailed, since this is
// the operation users actually hit when they mistype a passphrase.
func Unwrap(kek [KeySize]byte, env Envelope) ([KeySize]byte, error) {
	var mk [KeySize]byte
	pt, err := Open(kek, env, nil)
	if err != nil {
		return mk, fmt.Errorf("cryptoutil: unwrap: %w", ErrWrongPassphrase)
	}
	if len(pt) != KeySize {
		return mk, fmt.Errorf("cryptoutil: unwrap: %w", ErrInvalidKeyMaterial)
	}
	copy(mk[:], pt)
	return mk, nil
}

// AAD domain constructors (spec.md §4.5). Never reuse one domain's AAD in
// another — Open authenticates the exact byte string passed to Seal.
func BlobAAD(blobID string) []byte {
	return []byte("uc:blob:v1|" + blobID)
}

func InlineRepresentationAAD(eventID, representationID string) []byte {
	return []byte("uc:inline:v1|" + eventID + "|" + representationID)
}

func WireMessageAAD(sessionID string, sequenceNo uint64) []byte {
	return []byte(fmt.Sprintf("uc:msg:v1|%s|%d", sessionID, sequenceNo))
}
