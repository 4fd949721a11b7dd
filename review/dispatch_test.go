package review

import (
	"context"
	"strings"
	"testing"

	"github.com/KamdynS/claimreview/toolcall"
	"github.com/KamdynS/claimreview/tools"
)

func newTestDispatcher(t *testing.T, names ...string) *Dispatcher {
	t.Helper()
	reg, err := tools.NewCatalog()
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	return NewDispatcher(reg, nil, names...)
}

func inv(slot int, name, args string) toolcall.Invocation {
	return toolcall.Invocation{Slot: slot, Name: name, Arguments: args}
}

func TestDispatch_LegacyShapeNormalized(t *testing.T) {
	d := newTestDispatcher(t, tools.ReviewTools...)
	out := d.Dispatch(context.Background(), []toolcall.Invocation{
		inv(0, tools.CreateSuggestion, `{"type":"Ambiguity","severity":"low","description":"d"}`),
	}, nil)
	if len(out.Failures) != 0 || len(out.Suggestions) != 1 {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	got := out.Suggestions[0]
	want := Issue{Type: "Ambiguity", Severity: SeverityLow, Description: "d"}
	if len(got.Issues) != 1 || got.Issues[0] != want {
		t.Fatalf("issues = %+v", got.Issues)
	}
	if got.Paragraph != 1 {
		t.Fatalf("paragraph default = %d", got.Paragraph)
	}
}

func TestDispatch_LegacySeverityDefaultsToMedium(t *testing.T) {
	d := newTestDispatcher(t, tools.ReviewTools...)
	out := d.Dispatch(context.Background(), []toolcall.Invocation{
		inv(0, tools.CreateSuggestion, `{"originalText":"a","replaceTo":"b","type":"Structure"}`),
	}, nil)
	if len(out.Suggestions) != 1 || out.Suggestions[0].Severity != SeverityMedium {
		t.Fatalf("unexpected outcome: %+v", out)
	}
}

func TestDispatch_MissingDescriptionDefaultsToEmpty(t *testing.T) {
	d := newTestDispatcher(t, tools.ReviewTools...)
	out := d.Dispatch(context.Background(), []toolcall.Invocation{
		inv(0, tools.CreateSuggestion, `{"originalText":"a","replaceTo":"b","issues":[{"type":"Structure","severity":"high"}]}`),
	}, nil)
	if len(out.Failures) != 0 || len(out.Suggestions) != 1 {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	want := Issue{Type: "Structure", Severity: SeverityHigh, Description: ""}
	if got := out.Suggestions[0].Issues; len(got) != 1 || got[0] != want {
		t.Fatalf("issues = %+v", got)
	}
}

func TestDispatch_CurrentShapeMerged(t *testing.T) {
	d := newTestDispatcher(t, tools.ReviewTools...)
	out := d.Dispatch(context.Background(), []toolcall.Invocation{
		inv(0, tools.CreateSuggestion, `{"originalText":"a eraser","replaceTo":"an eraser","paragraph":2,"issues":[
			{"type":"Antecedent Basis","severity":"medium","description":"article"},
			{"type":"Ambiguity","severity":"high","description":"vague"}]}`),
	}, nil)
	if len(out.Suggestions) != 1 {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	s := out.Suggestions[0]
	if s.Type != "Antecedent Basis & Ambiguity" || s.Severity != SeverityHigh || s.Paragraph != 2 {
		t.Fatalf("merged = %+v", s)
	}
}

func TestDispatch_InvalidArgumentsIsolated(t *testing.T) {
	d := newTestDispatcher(t, tools.ReviewTools...)
	out := d.Dispatch(context.Background(), []toolcall.Invocation{
		inv(0, tools.CreateSuggestion, `{"originalText":"a","replaceTo":"b","issues":[{"type":"x","severity":"urgent","description":"d"}]}`),
		inv(1, tools.CreateSuggestion, `{"originalText":"c","replaceTo":"d","issues":[{"type":"x","severity":"low","description":"d"}]}`),
	}, nil)
	if len(out.Failures) != 1 || out.Failures[0].Slot != 0 {
		t.Fatalf("failures = %+v", out.Failures)
	}
	if len(out.Suggestions) != 1 || out.Suggestions[0].OriginalText != "c" {
		t.Fatalf("suggestions = %+v", out.Suggestions)
	}
}

func TestDispatch_EmptyIssuesProduceNothing(t *testing.T) {
	d := newTestDispatcher(t, tools.ReviewTools...)
	out := d.Dispatch(context.Background(), []toolcall.Invocation{
		inv(0, tools.CreateSuggestion, `{"originalText":"a","replaceTo":"b","issues":[]}`),
	}, nil)
	if len(out.Suggestions) != 0 || len(out.Failures) != 0 {
		t.Fatalf("unexpected outcome: %+v", out)
	}
}

func TestDispatch_InsertDiagramDefaults(t *testing.T) {
	d := newTestDispatcher(t, tools.ReviewTools...)
	out := d.Dispatch(context.Background(), []toolcall.Invocation{
		inv(0, tools.InsertDiagram, `{"insert_after_text":"claim 1.","mermaid_syntax":"graph TD; A-->B"}`),
		inv(1, tools.InsertDiagram, `{"insert_after_text":"claim 2.","mermaid_syntax":"pie","diagram_type":"timeline","title":"T"}`),
	}, nil)
	if len(out.Insertions) != 2 {
		t.Fatalf("unexpected outcome: %+v", out)
	}
	want := DiagramInsertion{InsertAfterText: "claim 1.", MermaidSyntax: "graph TD; A-->B", DiagramType: "flowchart", Title: ""}
	if out.Insertions[0] != want {
		t.Fatalf("defaults = %+v", out.Insertions[0])
	}
	if out.Insertions[1].DiagramType != "timeline" || out.Insertions[1].Title != "T" {
		t.Fatalf("explicit values lost: %+v", out.Insertions[1])
	}
}

func TestDispatch_CreateDiagramWritesFencedBlock(t *testing.T) {
	d := newTestDispatcher(t, tools.ChatTools...)
	var text strings.Builder
	out := d.Dispatch(context.Background(), []toolcall.Invocation{
		inv(0, tools.CreateDiagram, `{"mermaid_syntax":"graph LR; X-->Y","diagram_type":"flowchart"}`),
	}, func(s string) { text.WriteString(s) })
	if text.String() != "\n```mermaid\ngraph LR; X-->Y\n```\n" {
		t.Fatalf("text = %q", text.String())
	}
	if len(out.Insertions) != 0 {
		t.Fatalf("inline diagram must not become an insertion: %+v", out)
	}
}

func TestDispatch_UnknownAndUnhandledIgnored(t *testing.T) {
	d := newTestDispatcher(t, tools.ReviewTools...)
	out := d.Dispatch(context.Background(), []toolcall.Invocation{
		inv(0, "summarize_claims", `{}`),
		inv(1, tools.CreateDiagram, `{"mermaid_syntax":"x"}`),
	}, nil)
	if out.Ignored != 2 || len(out.Failures) != 0 {
		t.Fatalf("unexpected outcome: %+v", out)
	}
}
