package review

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/KamdynS/claimreview/toolcall"
	"github.com/KamdynS/claimreview/tools"
)

const (
	defaultDiagramType = "flowchart"
	legacySeverity     = SeverityMedium
)

// Dispatched collects what a batch of invocations produced.
type Dispatched struct {
	Suggestions []Suggestion
	Insertions  []DiagramInsertion
	Failures    []toolcall.ParseFailure
	// Ignored counts invocations of tools this dispatcher does not handle.
	Ignored int
}

// Dispatcher routes completed invocations to their handlers by tool name.
type Dispatcher struct {
	reg    tools.Registry
	handle map[string]bool
	logger *slog.Logger
}

// NewDispatcher handles the named tools from reg; all other invocations are
// ignored.
func NewDispatcher(reg tools.Registry, logger *slog.Logger, names ...string) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	handle := make(map[string]bool, len(names))
	for _, n := range names {
		handle[n] = true
	}
	return &Dispatcher{reg: reg, handle: handle, logger: logger}
}

// Dispatch processes invocations in order. create_diagram output is written
// to onText as a fenced mermaid block. An invocation whose arguments fail
// validation is recorded as a failure and skipped.
func (d *Dispatcher) Dispatch(ctx context.Context, invs []toolcall.Invocation, onText func(string)) Dispatched {
	var out Dispatched
	for _, inv := range invs {
		tool, ok := d.reg.Get(inv.Name)
		if !ok || !d.handle[inv.Name] {
			d.logger.DebugContext(ctx, "ignoring tool call", "tool", inv.Name, "slot", inv.Slot)
			out.Ignored++
			continue
		}
		if err := d.dispatchOne(tool, inv, &out, onText); err != nil {
			f := toolcall.ParseFailure{Slot: inv.Slot, Name: inv.Name, Arguments: inv.Arguments, Err: err}
			d.logger.WarnContext(ctx, "tool arguments rejected", "tool", inv.Name, "slot", inv.Slot, "error", err)
			out.Failures = append(out.Failures, f)
		}
	}
	return out
}

func (d *Dispatcher) dispatchOne(tool tools.Tool, inv toolcall.Invocation, out *Dispatched, onText func(string)) error {
	var raw any
	if err := json.Unmarshal([]byte(inv.Arguments), &raw); err != nil {
		return err
	}
	if inv.Name == tools.CreateSuggestion {
		raw = normalizeSuggestion(raw)
	}
	if err := tool.Validate(raw); err != nil {
		return err
	}
	normalized, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	inv.Arguments = string(normalized)

	switch inv.Name {
	case tools.CreateSuggestion:
		args, err := toolcall.Decode[tools.SuggestionArgs](inv)
		if err != nil {
			return err
		}
		issues := make([]Issue, len(args.Issues))
		for i, is := range args.Issues {
			issues[i] = Issue{Type: is.Type, Severity: Severity(is.Severity), Description: is.Description}
		}
		if s, ok := Merge(args.OriginalText, args.ReplaceTo, args.Paragraph, issues); ok {
			out.Suggestions = append(out.Suggestions, s)
		}
	case tools.InsertDiagram:
		args, err := toolcall.Decode[tools.DiagramArgs](inv)
		if err != nil {
			return err
		}
		out.Insertions = append(out.Insertions, insertion(args))
	case tools.CreateDiagram:
		args, err := toolcall.Decode[tools.DiagramArgs](inv)
		if err != nil {
			return err
		}
		if onText != nil {
			onText(MermaidBlock(args.MermaidSyntax))
		}
	default:
		return fmt.Errorf("no handler for tool %s", inv.Name)
	}
	return nil
}

// MermaidBlock wraps syntax in a fenced mermaid code block for chat display.
func MermaidBlock(syntax string) string {
	return "\n```mermaid\n" + syntax + "\n```\n"
}

func insertion(a tools.DiagramArgs) DiagramInsertion {
	di := DiagramInsertion{
		InsertAfterText: a.InsertAfterText,
		MermaidSyntax:   a.MermaidSyntax,
		DiagramType:     a.DiagramType,
		Title:           a.Title,
	}
	if di.DiagramType == "" {
		di.DiagramType = defaultDiagramType
	}
	return di
}

// normalizeSuggestion rewrites the legacy flat {type, severity, description}
// payload into a one-element issues list and fills missing issue severities
// and descriptions.
func normalizeSuggestion(raw any) any {
	m, ok := raw.(map[string]any)
	if !ok {
		return raw
	}
	issues, _ := m["issues"].([]any)
	if legacyType, _ := m["type"].(string); len(issues) == 0 && legacyType != "" {
		issue := map[string]any{"type": legacyType, "severity": string(legacySeverity), "description": ""}
		if sev, _ := m["severity"].(string); sev != "" {
			issue["severity"] = sev
		}
		if desc, ok := m["description"].(string); ok {
			issue["description"] = desc
		}
		delete(m, "type")
		delete(m, "severity")
		delete(m, "description")
		issues = []any{issue}
		m["issues"] = issues
	}
	for _, is := range issues {
		if im, ok := is.(map[string]any); ok {
			if _, has := im["severity"]; !has {
				im["severity"] = string(legacySeverity)
			}
			if _, has := im["description"]; !has {
				im["description"] = ""
			}
		}
	}
	return m
}
