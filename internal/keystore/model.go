package keystore

import (
	"time"

	"go.klb.dev/uniclipboard/internal/cryptoutil"
)

// KeySlotVersion identifies the on-disk key slot schema.
type KeySlotVersion int

const KeySlotVersionV1 KeySlotVersion = 1

// KeyScope namespaces key material, e.g. by user profile (spec.md §3).
type KeyScope struct {
	ProfileID string `json:"profile_id"`
}

// KeySlotFile is the wrapped master key at rest (spec.md §3, §6). Salt is
// the Argon2id salt DeriveKEK needs to re-derive the KEK from the
// passphrase whenever the cached raw KEK (KEKStore) is unavailable — a new
// machine, a cleared keyring, or the file-fallback KEK having been deleted.
type KeySlotFile struct {
	Version          KeySlotVersion      `json:"version"`
	Scope            KeyScope            `json:"scope"`
	Salt             []byte              `json:"salt"`
	WrappedMasterKey cryptoutil.Envelope `json:"wrapped_master_key"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

// EncryptionState is the only durable proof that a master key has ever
// existed for the current scope (spec.md §3).
type EncryptionState int

const (
	StateUninitialized EncryptionState = iota
	StateInitialized
)
