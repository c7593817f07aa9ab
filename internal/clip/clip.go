// Package clip provides a unified interface to the system clipboard across
// platforms, satisfying ports.PlatformClipboardPort (spec.md §4.8's
// PlatformClipboardPort). Build constraints select the appropriate
// implementation:
//
//	clip_darwin.go   — macOS via golang.design/x/clipboard + cgo changeCount
//	clip_windows.go  — Windows via golang.design/x/clipboard + AddClipboardFormatListener
//	clip_linux.go    — Linux via golang.design/x/clipboard, polling only
//	clip_other.go    — headless / container stub
package clip

import "go.klb.dev/uniclipboard/internal/ports"

// Backend is ports.PlatformClipboardPort plus a human-readable Name, used
// by the status command to report which backend is active.
type Backend interface {
	ports.PlatformClipboardPort
	Name() string
}

const (
	formatText  = "text/plain"
	formatImage = "image/png"
)

// headlessBackend is the no-op fallback used on platforms without a
// display server, or when native clipboard init fails.
type headlessBackend struct {
	watchCh chan struct{}
}

func newHeadless() *headlessBackend {
	return &headlessBackend{watchCh: make(chan struct{})}
}

func (b *headlessBackend) Name() string { return "headless (no-op)" }
func (b *headlessBackend) Read() (ports.SystemClipboardSnapshot, error) {
	return ports.SystemClipboardSnapshot{}, nil
}
func (b *headlessBackend) Write(ports.SystemClipboardSnapshot) error { return nil }
func (b *headlessBackend) Watch() <-chan struct{}                   { return b.watchCh }
func (b *headlessBackend) Close()                                   {}
