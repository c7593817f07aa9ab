//go:build linux

package clip

import (
	"bytes"
	"fmt"
	"log/slog"
	"time"

	"golang.design/x/clipboard"

	"go.klb.dev/uniclipboard/internal/ports"
)

const linuxPollInterval = 250 * time.Millisecond

type linuxBackend struct {
	watchCh  chan struct{}
	done     chan struct{}
	lastText []byte
	lastImg  []byte
}

// New returns the Linux clipboard backend, or a headless no-op backend if
// the display environment is unavailable (e.g. a headless server without X11
// or Wayland). clipboard.Init is called here rather than in init() so that
// CLI sub-commands (status, copy, paste) don't trigger the warning.
func New() Backend {
	if err := clipboard.Init(); err != nil {
		slog.Warn("clipboard unavailable, running headless", "err", err)
		return newHeadless()
	}
	b := &linuxBackend{
		watchCh: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go b.poll()
	return b
}

func (b *linuxBackend) Name() string { return "Linux clipboard (poll)" }

func (b *linuxBackend) poll() {
	t := time.NewTicker(linuxPollInterval)
	defer t.Stop()
	for {
		select {
		case <-b.done:
			return
		case <-t.C:
			text := clipboard.Read(clipboard.FmtText)
			img := clipboard.Read(clipboard.FmtImage)
			if !bytes.Equal(text, b.lastText) || !bytes.Equal(img, b.lastImg) {
				b.lastText = text
				b.lastImg = img
				select {
				case b.watchCh <- struct{}{}:
				default:
				}
			}
		}
	}
}

func (b *linuxBackend) Read() (ports.SystemClipboardSnapshot, error) {
	var formats []ports.ClipboardFormat
	if text := clipboard.Read(clipboard.FmtText); text != nil {
		formats = append(formats, ports.ClipboardFormat{FormatID: formatText, MimeType: formatText, Bytes: text})
	}
	if img := clipboard.Read(clipboard.FmtImage); img != nil {
		formats = append(formats, ports.ClipboardFormat{FormatID: formatImage, MimeType: formatImage, Bytes: img})
	}
	return ports.SystemClipboardSnapshot{Formats: formats}, nil
}

func (b *linuxBackend) Write(snapshot ports.SystemClipboardSnapshot) error {
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

func (b *linuxBackend) Watch() <-chan struct{} { return b.watchCh }
func (b *linuxBackend) Close()                 { close(b.done) }
