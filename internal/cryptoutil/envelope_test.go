package cryptoutil

import (
	"bytes"
	"errors"
	"testing"
)

func TestSealOpenRoundTrip(t *testing.T) {
	var key [KeySize]byte
	for i := range key {
		key[i] = byte(i)
	}
	plaintext := []byte("hello, uniclipboard")
	aad := []byte("uc:blob:v1|abc")

	env, err := Seal(key, plaintext, aad)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	got, err := Open(key, env, aad)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatalf("round trip mismatch: got %q want %q", got, plaintext)
	}
}

func TestOpenRejectsWrongAAD(t *testing.T) {
	var key [KeySize]byte
	env, err := Seal(key, []byte("secret"), []byte("uc:blob:v1|a"))
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if _, err := Open(key, env, []byte("uc:blob:v1|b")); !errors.Is(err, ErrMacFailed) {
		t.Fatalf("expected ErrMacFailed, got %v", err)
	}
}

func TestOpenRejectsWrongKey(t *testing.T) {
	var key1, key2 [KeySize]byte
	key2[0] = 1
	env, err := Seal(key1, []byte("secret"), nil)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if _, err := Open(key2, env, nil); !errors.Is(err, ErrMacFailed) {
		t.Fatalf("expected ErrMacFailed, got %v", err)
	}
}

func TestWrapUnwrapRoundTrip(t *testing.T) {
	var kek, mk [KeySize]byte
	for i := range mk {
		mk[i] = byte(255 - i)
	}
	env, err := Wrap(kek, mk)
	if err != nil {
		t.Fatalf("wrap: %v", err)
	}
	got, err := Unwrap(kek, env)
	if err != nil {
		t.Fatalf("unwrap: %v", err)
	}
	if got != mk {
		t.Fatalf("unwrap mismatch: got %x want %x", got, mk)
	}
}

func TestUnwrapWrongPassphrase(t *testing.T) {
	var kek1, kek2, mk [KeySize]byte
	kek2[0] = 9
	env, err := Wrap(kek1, mk)
	if err != nil {
		t.Fatalf("wrap: %v", err)
	}
	if _, err := Unwrap(kek2, env); !errors.Is(err, ErrWrongPassphrase) {
		t.Fatalf("expected ErrWrongPassphrase, got %v", err)
	}
}

func TestAADDomainsDoNotCollide(t *testing.T) {
	blob := BlobAAD("blob-1")
	inline := InlineRepresentationAAD("event-1", "blob-1")
	msg := WireMessageAAD("session-1", 0)
	if bytes.Equal(blob, inline) || bytes.Equal(blob, msg) || bytes.Equal(inline, msg) {
		t.Fatalf("AAD domains must not collide: %q %q %q", blob, inline, msg)
	}
}
