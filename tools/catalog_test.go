package tools

import (
	"encoding/json"
	"slices"
	"testing"
)

func mustCatalog(t *testing.T) *DefaultRegistry {
	t.Helper()
	reg, err := NewCatalog()
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}
	return reg
}

func decode(t *testing.T, s string) any {
	t.Helper()
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		t.Fatalf("bad fixture %s: %v", s, err)
	}
	return v
}

func TestCatalog_ListSorted(t *testing.T) {
	got := mustCatalog(t).List()
	want := []string{CreateDiagram, CreateSuggestion, InsertDiagram}
	if !slices.Equal(got, want) {
		t.Fatalf("List = %v, want %v", got, want)
	}
}

func TestCatalog_AdvertisedSchema(t *testing.T) {
	reg := mustCatalog(t)
	tools := FromRegistry(reg, ReviewTools...)
	if len(tools) != 2 || tools[0].Function.Name != CreateSuggestion || tools[1].Function.Name != InsertDiagram {
		t.Fatalf("review tools = %+v", tools)
	}
	params := tools[0].Function.Parameters
	if params["type"] != "object" {
		t.Fatalf("expected object schema, got %v", params["type"])
	}
	if _, ok := params["$schema"]; ok {
		t.Fatalf("advertised schema must not carry $schema")
	}
	req, _ := params["required"].([]any)
	for _, f := range []string{"originalText", "replaceTo", "issues", "paragraph"} {
		if !slices.Contains(req, any(f)) {
			t.Fatalf("advertised create_suggestion missing required %q: %v", f, req)
		}
	}

	diagram := tools[1].Function.Parameters["properties"].(map[string]any)["diagram_type"].(map[string]any)
	if enum, _ := diagram["enum"].([]any); len(enum) != len(DiagramTypes) {
		t.Fatalf("diagram_type enum = %v", diagram["enum"])
	}
}

func TestCatalog_Validation(t *testing.T) {
	reg := mustCatalog(t)
	suggestion, _ := reg.Get(CreateSuggestion)
	diagram, _ := reg.Get(InsertDiagram)

	cases := []struct {
		name string
		tool Tool
		args string
		ok   bool
	}{
		{"suggestion without paragraph", suggestion, `{"originalText":"a","replaceTo":"b","issues":[{"type":"Structure","severity":"low","description":"d"}]}`, true},
		{"suggestion missing issues", suggestion, `{"originalText":"a","replaceTo":"b"}`, false},
		{"suggestion bad severity", suggestion, `{"originalText":"a","replaceTo":"b","issues":[{"type":"x","severity":"urgent","description":"d"}]}`, false},
		{"suggestion paragraph as string", suggestion, `{"originalText":"a","replaceTo":"b","issues":[],"paragraph":"2"}`, false},
		{"diagram with unknown type", diagram, `{"mermaid_syntax":"graph TD","diagram_type":"timeline"}`, true},
		{"diagram without anchor", diagram, `{"mermaid_syntax":"graph TD"}`, true},
		{"diagram without syntax", diagram, `{"insert_after_text":"claim 1"}`, false},
		{"extra properties tolerated", diagram, `{"mermaid_syntax":"graph TD","note":"x"}`, true},
	}
	for _, tc := range cases {
		err := tc.tool.Validate(decode(t, tc.args))
		if (err == nil) != tc.ok {
			t.Fatalf("%s: Validate err=%v, want ok=%v", tc.name, err, tc.ok)
		}
	}
}

func TestRegistry_RejectsDuplicates(t *testing.T) {
	reg := NewRegistry()
	def, err := NewDefinition("x", "", &DiagramArgs{})
	if err != nil {
		t.Fatalf("NewDefinition: %v", err)
	}
	if err := reg.Register(def); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := reg.Register(def); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
	if _, err := NewDefinition("", "", &DiagramArgs{}); err == nil {
		t.Fatalf("expected empty name error")
	}
}
