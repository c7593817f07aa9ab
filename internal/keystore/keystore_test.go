package keystore

import "testing"

func TestLoadOrCreateDeviceIDPersistsAcrossCalls(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	calls := 0
	newID := func() string { calls++; return "fixed-device-id" }

	id1, err := s.LoadOrCreateDeviceID(newID)
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	if id1 != "fixed-device-id" {
		t.Fatalf("got %q", id1)
	}

	id2, err := s.LoadOrCreateDeviceID(func() string {
		t.Fatalf("newID must not be called once a device id file exists")
		return ""
	})
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if id2 != id1 {
		t.Fatalf("device id changed across calls: %q vs %q", id1, id2)
	}
	if calls != 1 {
		t.Fatalf("expected newID to be called exactly once, got %d", calls)
	}
}

func TestTrimNewlineStripsTrailingCRLF(t *testing.T) {
	cases := map[string]string{
		"abc\n":   "abc",
		"abc\r\n": "abc",
		"abc":     "abc",
		"":        "",
	}
	for in, want := range cases {
		if got := trimNewline(in); got != want {
			t.Fatalf("trimNewline(%q) = %q, want %q", in, got, want)
		}
	}
}
