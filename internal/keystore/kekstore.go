package keystore

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zalando/go-keyring"

	"go.klb.dev/uniclipboard/internal/cryptoutil"
)

// serviceName is the keyring service name. UC_PROFILE, when set, suffixes
// it so multiple instances can run on one host without colliding in the
// shared system keyring (spec.md §6).
func serviceName(scope KeyScope) string {
	base := "uniclipboard"
	if profile := os.Getenv("UC_PROFILE"); profile != "" {
		base += "-" + profile
	}
	if scope.ProfileID != "" {
		base += ":" + scope.ProfileID
	}
	return base
}

const kekAccount = "kek"

// KEKStore persists raw KEK bytes — never the master key — under a
// Capability-appropriate backend. Raw KEK bytes never touch disk when the
// system keyring is available; the file fallback writes them to a 0600
// file, matching spec.md §4.3's "never on disk under normal operation"
// wording for the keyring path.
type KEKStore struct {
	capability Capability
	fileDir    string
}

// NewKEKStore returns a KEKStore using capability, falling back to a file
// under fileDir when capability is CapabilityFileFallback.
func NewKEKStore(capability Capability, fileDir string) *KEKStore {
	return &KEKStore{capability: capability, fileDir: fileDir}
}

func (k *KEKStore) filePath(scope KeyScope) string {
	name := "kek.bin"
	if scope.ProfileID != "" {
		name = "kek-" + scope.ProfileID + ".bin"
	}
	return filepath.Join(k.fileDir, name)
}

// Store persists kek for scope.
func (k *KEKStore) Store(scope KeyScope, kek [cryptoutil.KeySize]byte) error {
	switch k.capability {
	case CapabilitySystemKeyring:
		enc := base64.StdEncoding.EncodeToString(kek[:])
		if err := keyring.Set(serviceName(scope), kekAccount, enc); err != nil {
			return fmt.Errorf("keystore: store kek in system keyring: %w: %w", ErrSecureStorageUnavailable, err)
		}
		return nil
	default:
		if err := os.MkdirAll(k.fileDir, 0o700); err != nil {
			return fmt.Errorf("keystore: mkdir kek dir: %w: %w", ErrIoFailure, err)
		}
		if err := os.WriteFile(k.filePath(scope), kek[:], 0o600); err != nil {
			return fmt.Errorf("keystore: write kek file: %w: %w", ErrIoFailure, err)
		}
		return nil
	}
}

// Load retrieves the previously stored KEK for scope.
func (k *KEKStore) Load(scope KeyScope) ([cryptoutil.KeySize]byte, error) {
	var kek [cryptoutil.KeySize]byte
	switch k.capability {
	case CapabilitySystemKeyring:
		enc, err := keyring.Get(serviceName(scope), kekAccount)
		if err != nil {
			if errors.Is(err, keyring.ErrNotFound) {
				return kek, ErrKeyNotFound
			}
			return kek, fmt.Errorf("keystore: load kek from system keyring: %w: %w", ErrSecureStorageUnavailable, err)
		}
		raw, err := base64.StdEncoding.DecodeString(enc)
		if err != nil || len(raw) != cryptoutil.KeySize {
			return kek, ErrKeyMaterialCorrupt
		}
		copy(kek[:], raw)
		return kek, nil
	default:
		raw, err := os.ReadFile(k.filePath(scope))
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return kek, ErrKeyNotFound
			}
			return kek, fmt.Errorf("keystore: read kek file: %w: %w", ErrIoFailure, err)
		}
		if len(raw) != cryptoutil.KeySize {
			return kek, ErrKeyMaterialCorrupt
		}
		copy(kek[:], raw)
		return kek, nil
	}
}

// Delete removes the stored KEK for scope. Idempotent.
func (k *KEKStore) Delete(scope KeyScope) error {
	switch k.capability {
	case CapabilitySystemKeyring:
		if err := keyring.Delete(serviceName(scope), kekAccount); err != nil && !errors.Is(err, keyring.ErrNotFound) {
			return fmt.Errorf("keystore: delete kek from system keyring: %w: %w", ErrSecureStorageUnavailable, err)
		}
		return nil
	default:
		if err := os.Remove(k.filePath(scope)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("keystore: delete kek file: %w: %w", ErrIoFailure, err)
		}
		return nil
	}
}
