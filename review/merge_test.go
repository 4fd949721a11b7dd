package review

import "testing"

func issues(sevs ...Severity) []Issue {
	out := make([]Issue, len(sevs))
	for i, s := range sevs {
		out[i] = Issue{Type: string(s) + "-type", Severity: s, Description: string(s) + "-desc"}
	}
	return out
}

func TestMerge_DominantSeverity(t *testing.T) {
	cases := []struct {
		in   []Severity
		want Severity
	}{
		{[]Severity{SeverityLow, SeverityHigh, SeverityMedium}, SeverityHigh},
		{[]Severity{SeverityMedium, SeverityMedium}, SeverityMedium},
		{[]Severity{SeverityLow}, SeverityLow},
		{[]Severity{SeverityLow, "critical"}, "critical"},
		{[]Severity{"critical", SeverityMedium}, "critical"},
	}
	for _, tc := range cases {
		s, ok := Merge("a", "b", 1, issues(tc.in...))
		if !ok || s.Severity != tc.want {
			t.Fatalf("severities %v: got %q, want %q", tc.in, s.Severity, tc.want)
		}
	}
}

func TestMerge_FirstMaximalWins(t *testing.T) {
	in := []Issue{
		{Type: "A", Severity: SeverityMedium, Description: "first"},
		{Type: "B", Severity: "unknown", Description: "second"},
	}
	s, _ := Merge("x", "y", 2, in)
	if s.Severity != SeverityMedium {
		t.Fatalf("tie must keep first maximal element, got %q", s.Severity)
	}
}

func TestMerge_Concatenation(t *testing.T) {
	in := []Issue{
		{Type: "Structure", Severity: SeverityLow, Description: "missing colon"},
		{Type: "Punctuation", Severity: SeverityHigh, Description: "extra period"},
	}
	s, ok := Merge("a pencil.", "a pencil;", 3, in)
	if !ok {
		t.Fatalf("expected suggestion")
	}
	if s.Type != "Structure & Punctuation" {
		t.Fatalf("type = %q", s.Type)
	}
	if s.Description != "missing colon | extra period" {
		t.Fatalf("description = %q", s.Description)
	}
	if s.OriginalText != "a pencil." || s.ReplaceTo != "a pencil;" || s.Paragraph != 3 || len(s.Issues) != 2 {
		t.Fatalf("fields not retained: %+v", s)
	}
}

func TestMerge_EmptyAndParagraphDefault(t *testing.T) {
	if _, ok := Merge("a", "b", 1, nil); ok {
		t.Fatalf("empty issues must not produce a suggestion")
	}
	s, _ := Merge("a", "b", 0, issues(SeverityLow))
	if s.Paragraph != 1 {
		t.Fatalf("paragraph default = %d", s.Paragraph)
	}
}
