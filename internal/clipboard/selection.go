package clipboard

import (
	"sort"
	"strings"

	"go.klb.dev/uniclipboard/internal/ids"
)

// SelectionPolicyVersion1 is the currently recorded policy version
// (spec.md §4.8: "a policy version is recorded on each decision").
const SelectionPolicyVersion1 = 1

// Candidate is the policy's only view of a representation: it never sees
// raw bytes, only the metadata needed to rank formats (spec.md §4.8).
type Candidate struct {
	RepresentationID ids.RepresentationId
	FormatID         string
	MimeType         string
	SizeBytes        int64
}

// mimeRank orders MIME categories from most to least preferred for the
// primary/paste roles: images first, then rich text, then plain text,
// then anything else.
func mimeRank(mime string) int {
	switch {
	case strings.HasPrefix(mime, "image/"):
		return 0
	case mime == "text/html" || mime == "text/rtf" || mime == "application/rtf":
		return 1
	case strings.HasPrefix(mime, "text/"):
		return 2
	default:
		return 3
	}
}

func isTextLike(mime string) bool {
	return strings.HasPrefix(mime, "text/")
}

// sortedByRank returns candidates sorted by mime rank, then by format_id
// for deterministic tie-breaking (spec.md §4.8).
func sortedByRank(candidates []Candidate) []Candidate {
	out := make([]Candidate, len(candidates))
	copy(out, candidates)
	sort.SliceStable(out, func(i, j int) bool {
		ri, rj := mimeRank(out[i].MimeType), mimeRank(out[j].MimeType)
		if ri != rj {
			return ri < rj
		}
		return out[i].FormatID < out[j].FormatID
	})
	return out
}

// Select runs the versioned selection policy over candidates, choosing
// primary (highest-ranked format), preview (the first text-like
// candidate if one exists, else primary), paste (same as primary), and
// secondaries (everything else, in ranked order). Candidates must be
// non-empty; Select panics otherwise, since C8 never builds an event with
// zero representations.
func Select(candidates []Candidate) SelectionDecision {
	if len(candidates) == 0 {
		panic("clipboard: Select called with no candidates")
	}
	ranked := sortedByRank(candidates)
	primary := ranked[0]

	preview := primary
	for _, c := range ranked {
		if isTextLike(c.MimeType) {
			preview = c
			break
		}
	}

	var secondaries []ids.RepresentationId
	for _, c := range ranked[1:] {
		secondaries = append(secondaries, c.RepresentationID)
	}

	return SelectionDecision{
		PolicyVersion: SelectionPolicyVersion1,
		Primary:       primary.RepresentationID,
		Preview:       preview.RepresentationID,
		Paste:         primary.RepresentationID,
		Secondaries:   secondaries,
	}
}
