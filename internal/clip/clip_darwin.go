//go:build darwin

package clip

// #cgo CFLAGS: -x objective-c
// #cgo LDFLAGS: -framework Cocoa
// #import <Cocoa/Cocoa.h>
//
// NSInteger uniclipboard_changeCount() {
//     return [[NSPasteboard generalPasteboard] changeCount];
// }
import "C"

import (
	"fmt"
	"log/slog"
	"time"

	"golang.design/x/clipboard"

	"go.klb.dev/uniclipboard/internal/ports"
)

const darwinPollInterval = 100 * time.Millisecond

type darwinBackend struct {
	lastChange C.NSInteger
	watchCh    chan struct{}
	done       chan struct{}
}

// New returns the macOS clipboard backend.
// clipboard.Init is called here rather than in init() so that CLI sub-commands
// (status, copy, paste) that never construct a Backend don't log spurious
// warnings on headless systems.
func New() Backend {
	if err := clipboard.Init(); err != nil {
		slog.Warn("clipboard init failed", "err", err)
	}
	b := &darwinBackend{
		lastChange: C.uniclipboard_changeCount(),
		watchCh:    make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
	go b.poll()
	return b
}

func (b *darwinBackend) Name() string { return "macOS NSPasteboard" }

func (b *darwinBackend) poll() {
	t := time.NewTicker(darwinPollInterval)
	defer t.Stop()
	for {
		select {
		case <-b.done:
			return
		case <-t.C:
			cc := C.uniclipboard_changeCount()
			if cc != b.lastChange {
				b.lastChange = cc
				select {
				case b.watchCh <- struct{}{}:
				default:
				}
			}
		}
	}
}

func (b *darwinBackend) Read() (ports.SystemClipboardSnapshot, error) {
	var formats []ports.ClipboardFormat
	if text := clipboard.Read(clipboard.FmtText); text != nil {
		formats = append(formats, ports.ClipboardFormat{FormatID: formatText, MimeType: formatText, Bytes: text})
	}
	if img := clipboard.Read(clipboard.FmtImage); img != nil {
		formats = append(formats, ports.ClipboardFormat{FormatID: formatImage, MimeType: formatImage, Bytes: img})
	}
	return ports.SystemClipboardSnapshot{Formats: formats}, nil
}

func (b *darwinBackend) Write(snapshot ports.SystemClipboardSnapshot) error {
	for _, f := range snapshot.Formats {
		switch f.MimeType {
		case formatText:
			clipboard.Write(clipboard.FmtText, f.Bytes)
		case formatImage:
			clipboard.Write(clipboard.FmtImage, f.Bytes)
		default:
			return fmt.Errorf("unsupported MIME type: %s", f.MimeType)
		}
	}
	return nil
}

func (b *darwinBackend) Watch() <-chan struct{} { return b.watchCh }
func (b *darwinBackend) Close()                 { close(b.done) }
