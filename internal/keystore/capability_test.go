package keystore

import "testing"

func TestIsWSLDetectsDistroEnvVar(t *testing.T) {
	t.Setenv("WSL_DISTRO_NAME", "")
	if isWSL() {
		t.Fatalf("expected isWSL false when env unset")
	}
	t.Setenv("WSL_DISTRO_NAME", "Ubuntu")
	if !isWSL() {
		t.Fatalf("expected isWSL true when WSL_DISTRO_NAME is set")
	}
}

func TestDetectCapabilityNeverPanics(t *testing.T) {
	// DetectCapability must resolve to one of the two known values on any
	// host this runs on; it must never block or panic.
	switch DetectCapability() {
	case CapabilitySystemKeyring, CapabilityFileFallback:
	default:
		t.Fatalf("unexpected capability value")
	}
}
