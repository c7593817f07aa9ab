package keystore

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"go.klb.dev/uniclipboard/internal/cryptoutil"
	"go.klb.dev/uniclipboard/internal/encryption"
)

// defaultScope is the only KeyScope this build uses; spec.md §3 allows
// per-profile scoping but nothing in the CLI currently exposes profiles.
var defaultScope = KeyScope{ProfileID: "default"}

// Unlock produces a ready encryption.Session for defaultScope, deriving or
// unwrapping the master key as needed (spec.md §4.2/§4.3):
//
//   - No key slot on disk yet: generate a fresh random master key, derive a
//     KEK from passphrase with a new salt, wrap the master key, and persist
//     both the key slot and the raw KEK (cached behind the host's
//     Capability so future unlocks don't need the passphrase again).
//   - Key slot exists and the raw KEK is already cached: unwrap directly,
//     passphrase is not even read.
//   - Key slot exists but the KEK cache is empty (new machine, cleared
//     keyring): re-derive the KEK from passphrase and the slot's stored
//     salt, unwrap, and repopulate the cache.
//
// A wrong passphrase on an existing slot surfaces as
// cryptoutil.ErrWrongPassphrase.
func (s *Store) Unlock(passphrase string) (*encryption.Session, error) {
	session := encryption.New()

	slot, err := s.LoadKeySlot()
	switch {
	case err == nil:
		mk, err := s.unlockExisting(slot, passphrase)
		if err != nil {
			return nil, err
		}
		session.Set(mk)
		return session, nil

	case errors.Is(err, ErrKeyNotFound):
		mk, err := s.initialize(passphrase)
		if err != nil {
			return nil, err
		}
		session.Set(mk)
		return session, nil

	default:
		return nil, fmt.Errorf("keystore: unlock: %w", err)
	}
}

func (s *Store) unlockExisting(slot KeySlotFile, passphrase string) (encryption.MasterKey, error) {
	var mk encryption.MasterKey

	if kek, err := s.LoadKEK(defaultScope); err == nil {
		raw, err := cryptoutil.Unwrap(kek, slot.WrappedMasterKey)
		if err != nil {
			return mk, fmt.Errorf("keystore: unlock with cached kek: %w", err)
		}
		return encryption.MasterKey(raw), nil
	}

	kek, err := cryptoutil.DeriveKEK(passphrase, slot.Salt, cryptoutil.DefaultKDFParams)
	if err != nil {
		return mk, fmt.Errorf("keystore: derive kek: %w", err)
	}
	raw, err := cryptoutil.Unwrap(kek, slot.WrappedMasterKey)
	if err != nil {
		return mk, fmt.Errorf("keystore: unlock: %w", err)
	}
	if err := s.StoreKEK(defaultScope, kek); err != nil {
		// Non-fatal: unlock succeeded, only the fast-path cache failed.
		return encryption.MasterKey(raw), nil
	}
	return encryption.MasterKey(raw), nil
}

func (s *Store) initialize(passphrase string) (encryption.MasterKey, error) {
	var mk encryption.MasterKey

	salt, err := cryptoutil.NewSalt()
	if err != nil {
		return mk, err
	}
	kek, err := cryptoutil.DeriveKEK(passphrase, salt, cryptoutil.DefaultKDFParams)
	if err != nil {
		return mk, fmt.Errorf("keystore: derive kek: %w", err)
	}

	var raw [cryptoutil.KeySize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return mk, fmt.Errorf("keystore: generate master key: %w", err)
	}

	env, err := cryptoutil.Wrap(kek, raw)
	if err != nil {
		return mk, fmt.Errorf("keystore: wrap master key: %w", err)
	}

	now := time.Now()
	slot := KeySlotFile{
		Version:          KeySlotVersionV1,
		Scope:            defaultScope,
		Salt:             salt,
		WrappedMasterKey: env,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.StoreKeySlot(slot); err != nil {
		return mk, fmt.Errorf("keystore: persist key slot: %w", err)
	}
	if err := s.StoreKEK(defaultScope, kek); err != nil {
		return mk, fmt.Errorf("keystore: cache kek: %w", err)
	}

	return encryption.MasterKey(raw), nil
}
