package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"go.klb.dev/uniclipboard/internal/logging"
)

// nowMs is passed into every component that needs a clock, so tests
// elsewhere in the module can swap in a fixed one; the daemon always uses
// wall-clock time.
func nowMs() int64 { return time.Now().UnixMilli() }

// defaultDeviceName returns a human-readable name for this device,
// preferring an explicit override, then the OS hostname.
func defaultDeviceName(override string) string {
	if override != "" {
		return override
	}
	if h, err := os.Hostname(); err == nil && h != "" {
		return h
	}
	return "unknown-device"
}

// resolvePassphrase returns an explicit passphrase if one was configured,
// otherwise prompts on the controlling terminal (no echo). Daemons running
// non-interactively (services, containers) must set the env var / flag.
func resolvePassphrase(explicit, prompt string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if !logging.IsTTY(os.Stdin) {
		return "", fmt.Errorf("no passphrase configured and stdin is not a terminal: %s", prompt)
	}
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read passphrase: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}
