package clipboard

import (
	"sort"
	"strings"
	"unicode/utf8"

	"go.klb.dev/uniclipboard/internal/hashing"
	"go.klb.dev/uniclipboard/internal/ids"
	"go.klb.dev/uniclipboard/internal/ports"
	"go.klb.dev/uniclipboard/internal/spool"
)

// DefaultInlineThreshold is the byte size at or under which a representation's
// full payload is stored inline rather than staged to the spool
// (spec.md §4.8, S2).
const DefaultInlineThreshold = 16384

// DefaultTextPreviewBytes bounds the UTF-8-safe truncated preview stored
// inline for large text-like representations that miss the inline
// threshold.
const DefaultTextPreviewBytes = 4096

// Pipeline runs the single-task capture sequence: read, dedup, build
// event, stage large payloads, select, persist (spec.md §4.8).
type Pipeline struct {
	clip            ports.PlatformClipboardPort
	store           EventStore
	spooler         *spool.Spooler
	sourceDeviceID  string
	inlineThreshold int64
	textPreviewCap  int
	newEventID      func() ids.EventId
	newRepID        func() ids.RepresentationId
	newEntryID      func() ids.EntryId
	nowMs           func() int64
}

// NewPipeline wires a Pipeline. nowMs supplies the capture timestamp so
// tests can control it deterministically.
func NewPipeline(clip ports.PlatformClipboardPort, store EventStore, spooler *spool.Spooler, sourceDeviceID string, nowMs func() int64) *Pipeline {
	return &Pipeline{
		clip:            clip,
		store:           store,
		spooler:         spooler,
		sourceDeviceID:  sourceDeviceID,
		inlineThreshold: DefaultInlineThreshold,
		textPreviewCap:  DefaultTextPreviewBytes,
		newEventID:      ids.NewEventId,
		newRepID:        ids.NewRepresentationId,
		newEntryID:      ids.NewEntryId,
		nowMs:           nowMs,
	}
}

// canonicalHash computes the snapshot hash over formats sorted by
// format_id so that identical representation sets always produce the
// same hash regardless of platform read order (spec.md §3).
func canonicalHash(formats []ports.ClipboardFormat) string {
	sorted := make([]ports.ClipboardFormat, len(formats))
	copy(sorted, formats)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].FormatID < sorted[j].FormatID })

	var buf []byte
	for _, f := range sorted {
		buf = append(buf, []byte(f.FormatID)...)
		buf = append(buf, 0)
		buf = append(buf, []byte(f.MimeType)...)
		buf = append(buf, 0)
		buf = append(buf, f.Bytes...)
		buf = append(buf, 0)
	}
	return hashing.Hash(buf)
}

// Capture reads one snapshot and, unless it is a dedup of the most
// recent event, persists a new Event + Entry. Returns (nil, false) on a
// deduplicated or empty capture.
func (p *Pipeline) Capture() (*Event, bool, error) {
	snapshot, err := p.clip.Read()
	if err != nil {
		return nil, false, err
	}
	if len(snapshot.Formats) == 0 {
		return nil, false, nil
	}

	snapshotHash := canonicalHash(snapshot.Formats)
	if latest, ok := p.store.LatestEvent(); ok && latest.SnapshotHash == snapshotHash {
		return nil, false, nil
	}

	eventID := p.newEventID()
	event := &Event{
		ID:             eventID,
		CapturedAtMs:   p.nowMs(),
		SourceDeviceID: p.sourceDeviceID,
		SnapshotHash:   snapshotHash,
	}

	candidates := make([]Candidate, 0, len(snapshot.Formats))
	for _, f := range snapshot.Formats {
		rep := p.buildRepresentation(eventID, f)
		event.Representations = append(event.Representations, rep)
		candidates = append(candidates, Candidate{
			RepresentationID: rep.ID,
			FormatID:         rep.FormatID,
			MimeType:         rep.MimeType,
			SizeBytes:        rep.SizeBytes,
		})

		if rep.PayloadState == StateStaged {
			if err := p.spooler.Enqueue(rep.ID, f.Bytes); err != nil {
				rep.PayloadState = StateLost
				rep.LastError = err.Error()
			}
		}
	}

	if err := p.store.SaveEvent(event); err != nil {
		return nil, false, err
	}

	selection := Select(candidates)
	entry := &Entry{ID: p.newEntryID(), EventID: eventID, Selection: selection}
	if err := p.store.SaveEntry(entry); err != nil {
		return nil, false, err
	}

	return event, true, nil
}

func (p *Pipeline) buildRepresentation(eventID ids.EventId, f ports.ClipboardFormat) *Representation {
	rep := &Representation{
		ID:        p.newRepID(),
		EventID:   eventID,
		FormatID:  f.FormatID,
		MimeType:  f.MimeType,
		SizeBytes: int64(len(f.Bytes)),
	}

	switch {
	case rep.SizeBytes <= p.inlineThreshold:
		rep.InlineData = f.Bytes
		rep.PayloadState = StateInline
	case strings.HasPrefix(f.MimeType, "text/"):
		rep.InlineData = utf8SafeTruncate(f.Bytes, p.textPreviewCap)
		rep.PayloadState = StateStaged
	default:
		rep.PayloadState = StateStaged
	}
	return rep
}

// utf8SafeTruncate truncates b to at most limit bytes without splitting a
// multi-byte UTF-8 rune.
func utf8SafeTruncate(b []byte, limit int) []byte {
	if len(b) <= limit {
		return b
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(b[cut]) {
		cut--
	}
	return b[:cut]
}
