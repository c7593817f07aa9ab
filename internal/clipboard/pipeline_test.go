package clipboard

import (
	"bytes"
	"testing"

	"go.klb.dev/uniclipboard/internal/hashing"
	"go.klb.dev/uniclipboard/internal/ports"
	"go.klb.dev/uniclipboard/internal/spool"
)

type fakeClip struct {
	snapshots []ports.SystemClipboardSnapshot
	i         int
}

func (f *fakeClip) Read() (ports.SystemClipboardSnapshot, error) {
	if f.i >= len(f.snapshots) {
		return ports.SystemClipboardSnapshot{}, nil
	}
	s := f.snapshots[f.i]
	f.i++
	return s, nil
}
func (f *fakeClip) Write(ports.SystemClipboardSnapshot) error { return nil }
func (f *fakeClip) Watch() <-chan struct{}                    { return nil }
func (f *fakeClip) Close()                                    {}

func newTestSpooler(t *testing.T) *spool.Spooler {
	t.Helper()
	return spool.NewSpooler(spool.NewCache(100, 1<<20), spool.NewManager(t.TempDir(), 1<<30), 16, 16)
}

func TestPipelineCapturesSmallTextInline(t *testing.T) {
	clip := &fakeClip{snapshots: []ports.SystemClipboardSnapshot{
		{Formats: []ports.ClipboardFormat{{FormatID: "public.utf8-plain-text", MimeType: "text/plain", Bytes: []byte("hello")}}},
	}}
	store := NewMemory()
	p := NewPipeline(clip, store, newTestSpooler(t), "device-a", func() int64 { return 1000 })

	event, captured, err := p.Capture()
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if !captured {
		t.Fatalf("expected capture to succeed")
	}
	if len(event.Representations) != 1 {
		t.Fatalf("expected one representation")
	}
	rep := event.Representations[0]
	if rep.PayloadState != StateInline {
		t.Fatalf("expected Inline, got %v", rep.PayloadState)
	}
	if !bytes.Equal(rep.InlineData, []byte("hello")) {
		t.Fatalf("unexpected inline data: %q", rep.InlineData)
	}
	if rep.BlobID != "" {
		t.Fatalf("expected empty blob id for inline representation")
	}
	if rep.SizeBytes != 5 {
		t.Fatalf("expected size 5, got %d", rep.SizeBytes)
	}
	if event.SnapshotHash != hashing.Hash(canonicalBytesForTest(clip.snapshots[0].Formats)) {
		t.Fatalf("snapshot hash mismatch")
	}
}

func canonicalBytesForTest(formats []ports.ClipboardFormat) []byte {
	var buf []byte
	for _, f := range formats {
		buf = append(buf, []byte(f.FormatID)...)
		buf = append(buf, 0)
		buf = append(buf, []byte(f.MimeType)...)
		buf = append(buf, 0)
		buf = append(buf, f.Bytes...)
		buf = append(buf, 0)
	}
	return buf
}

func TestPipelineStagesLargePayloadAndEnqueuesSpool(t *testing.T) {
	large := bytes.Repeat([]byte{0xAB}, 20000)
	clip := &fakeClip{snapshots: []ports.SystemClipboardSnapshot{
		{Formats: []ports.ClipboardFormat{{FormatID: "public.png", MimeType: "image/png", Bytes: large}}},
	}}
	store := NewMemory()
	spooler := newTestSpooler(t)
	p := NewPipeline(clip, store, spooler, "device-a", func() int64 { return 1000 })

	event, captured, err := p.Capture()
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if !captured {
		t.Fatalf("expected capture")
	}
	rep := event.Representations[0]
	if rep.PayloadState != StateStaged {
		t.Fatalf("expected Staged, got %v", rep.PayloadState)
	}
	if len(rep.InlineData) != 0 {
		t.Fatalf("expected empty inline data for non-text staged representation")
	}

	// The spooler task isn't running in this test; Enqueue alone is
	// exercised, so the request channel (not the notification channel)
	// should hold exactly the one staged representation.
	select {
	case req := <-spooler.Requests():
		if req.RepresentationID != rep.ID {
			t.Fatalf("unexpected queued rep id")
		}
	default:
		t.Fatalf("expected staged representation to be enqueued to the spooler")
	}
}

func TestPipelineDedupsIdenticalSnapshot(t *testing.T) {
	formats := []ports.ClipboardFormat{{FormatID: "public.utf8-plain-text", MimeType: "text/plain", Bytes: []byte("same")}}
	clip := &fakeClip{snapshots: []ports.SystemClipboardSnapshot{{Formats: formats}, {Formats: formats}}}
	store := NewMemory()
	p := NewPipeline(clip, store, newTestSpooler(t), "device-a", func() int64 { return 1000 })

	_, captured1, err := p.Capture()
	if err != nil || !captured1 {
		t.Fatalf("first capture failed: captured=%v err=%v", captured1, err)
	}
	_, captured2, err := p.Capture()
	if err != nil {
		t.Fatalf("second capture: %v", err)
	}
	if captured2 {
		t.Fatalf("expected dedup to suppress the second identical capture")
	}
}

func TestPipelineEmptySnapshotIsNotCaptured(t *testing.T) {
	clip := &fakeClip{snapshots: []ports.SystemClipboardSnapshot{{}}}
	store := NewMemory()
	p := NewPipeline(clip, store, newTestSpooler(t), "device-a", func() int64 { return 1000 })

	_, captured, err := p.Capture()
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if captured {
		t.Fatalf("expected empty snapshot to not be captured")
	}
}
