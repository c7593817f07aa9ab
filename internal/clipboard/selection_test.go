package clipboard

import "testing"

func TestSelectPrefersImageOverText(t *testing.T) {
	decision := Select([]Candidate{
		{RepresentationID: "text", FormatID: "public.utf8-plain-text", MimeType: "text/plain", SizeBytes: 5},
		{RepresentationID: "image", FormatID: "public.png", MimeType: "image/png", SizeBytes: 2048},
	})
	if decision.Primary != "image" {
		t.Fatalf("expected image primary, got %v", decision.Primary)
	}
	if decision.Paste != "image" {
		t.Fatalf("expected image paste, got %v", decision.Paste)
	}
}

func TestSelectPreviewPrefersTextEvenWhenNotPrimary(t *testing.T) {
	decision := Select([]Candidate{
		{RepresentationID: "image", FormatID: "public.png", MimeType: "image/png", SizeBytes: 2048},
		{RepresentationID: "text", FormatID: "public.utf8-plain-text", MimeType: "text/plain", SizeBytes: 5},
	})
	if decision.Preview != "text" {
		t.Fatalf("expected text preview, got %v", decision.Preview)
	}
	if decision.Primary != "image" {
		t.Fatalf("expected image primary, got %v", decision.Primary)
	}
}

func TestSelectIsDeterministicOnTies(t *testing.T) {
	a := Select([]Candidate{
		{RepresentationID: "b", FormatID: "b-format", MimeType: "text/plain", SizeBytes: 1},
		{RepresentationID: "a", FormatID: "a-format", MimeType: "text/plain", SizeBytes: 1},
	})
	b := Select([]Candidate{
		{RepresentationID: "a", FormatID: "a-format", MimeType: "text/plain", SizeBytes: 1},
		{RepresentationID: "b", FormatID: "b-format", MimeType: "text/plain", SizeBytes: 1},
	})
	if a.Primary != b.Primary || a.Primary != "a" {
		t.Fatalf("expected format_id tie-break to pick a deterministically, got a=%v b=%v", a.Primary, b.Primary)
	}
}

func TestSelectRecordsPolicyVersion(t *testing.T) {
	decision := Select([]Candidate{{RepresentationID: "x", FormatID: "x", MimeType: "text/plain", SizeBytes: 1}})
	if decision.PolicyVersion != SelectionPolicyVersion1 {
		t.Fatalf("expected policy version %d, got %d", SelectionPolicyVersion1, decision.PolicyVersion)
	}
}
