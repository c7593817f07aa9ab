package cryptoutil

import "testing"

func TestDeriveKEKDeterministic(t *testing.T) {
	salt := []byte("0123456789abcdef")
	params := KDFParams{MemoryKiB: 8 * 1024, TimeCost: 1, Parallelism: 1, KeyLen: KeySize}

	a, err := DeriveKEK("correct horse", salt, params)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	b, err := DeriveKEK("correct horse", salt, params)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if a != b {
		t.Fatalf("same passphrase+salt must derive the same KEK")
	}

	c, err := DeriveKEK("wrong horse", salt, params)
	if err != nil {
		t.Fatalf("derive: %v", err)
	}
	if a == c {
		t.Fatalf("different passphrases must derive different KEKs")
	}
}

func TestDeriveKEKRejectsEmptySalt(t *testing.T) {
	if _, err := DeriveKEK("pw", nil, DefaultKDFParams); err == nil {
		t.Fatalf("expected error for empty salt")
	}
}
