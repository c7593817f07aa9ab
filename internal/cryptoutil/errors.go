package cryptoutil

import "errors"

// Key derivation / wrapping failure modes (spec.md §4.2, §7).
var (
	ErrWrongPassphrase    = errors.New("cryptoutil: wrong passphrase")
	ErrInvalidKeyMaterial = errors.New("cryptoutil: invalid key material")
	ErrAlgorithmUnsupported = errors.New("cryptoutil: algorithm unsupported")
)

// AEAD envelope failure modes (spec.md §4.5, §7).
var (
	ErrMacFailed       = errors.New("cryptoutil: mac verification failed")
	ErrTruncated       = errors.New("cryptoutil: ciphertext truncated")
	ErrUnknownAlgorithm = errors.New("cryptoutil: unknown algorithm")
)
