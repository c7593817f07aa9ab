// Package identity manages this device's long-term pairing keypair: the
// asymmetric identity whose public key hash is the device's stable PeerId
// (spec.md §10 GLOSSARY: "PeerId — stable cryptographic identity of a
// remote device (hash of its long-term public key)"). Grounded on
// internal/tlsconf's ECDSA P-256 + self-signed-cert pattern and
// internal/keystore's atomic temp-file-then-rename persistence.
package identity

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.klb.dev/uniclipboard/internal/hashing"
	"go.klb.dev/uniclipboard/internal/ids"
)

const fileName = "identity.pem"

// Identity is this device's long-term pairing keypair and derived PeerId.
type Identity struct {
	Key            *ecdsa.PrivateKey
	PeerID         ids.PeerId
	PublicKeyBytes []byte
}

// LoadOrCreate reads <configDir>/identity.pem, generating a fresh P-256
// keypair on first run. The PeerId is a blake3 hash of the marshaled
// public key, matching the "hash of long-term public key" definition.
func LoadOrCreate(configDir string) (*Identity, error) {
	path := filepath.Join(configDir, fileName)

	data, err := os.ReadFile(path)
	if err == nil {
		return parsePEM(data)
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("identity: read %s: %w", path, err)
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("identity: generate key: %w", err)
	}
	der, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("identity: marshal key: %w", err)
	}
	block := &pem.Block{Type: "EC PRIVATE KEY", Bytes: der}

	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return nil, fmt.Errorf("identity: mkdir config dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, pem.EncodeToMemory(block), 0o600); err != nil {
		return nil, fmt.Errorf("identity: write temp identity file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return nil, fmt.Errorf("identity: rename identity file: %w", err)
	}

	return fromKey(key)
}

func parsePEM(data []byte) (*Identity, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("identity: %s is not valid PEM", fileName)
	}
	key, err := x509.ParseECPrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("identity: parse key: %w", err)
	}
	return fromKey(key)
}

func fromKey(key *ecdsa.PrivateKey) (*Identity, error) {
	pub, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("identity: marshal public key: %w", err)
	}
	return &Identity{
		Key:            key,
		PeerID:         ids.PeerId(hashing.Hash(pub)),
		PublicKeyBytes: pub,
	}, nil
}

// PublicKeyBase64 returns the identity's public key encoded for the wire
// (PairingRequest/Challenge's identity_pubkey field).
func (id *Identity) PublicKeyBase64() string {
	return base64.StdEncoding.EncodeToString(id.PublicKeyBytes)
}

// Fingerprint is the identity_fingerprint stored in trust records:
// identical to PeerId by construction, named separately because C12's
// PairedDevice keeps them as distinct fields (spec.md §3).
func (id *Identity) Fingerprint() string {
	return string(id.PeerID)
}
