package tools

import "fmt"

// Tool names understood by the review dispatcher.
const (
	CreateSuggestion = "create_suggestion"
	CreateDiagram    = "create_diagram"
	InsertDiagram    = "insert_diagram"
)

// DiagramTypes is the advertised set of diagram kinds. Values outside it are
// still accepted from the model.
var DiagramTypes = []string{"flowchart", "sequence", "class", "er", "gantt", "pie", "mindmap"}

// ReviewTools are advertised for document review cycles; ChatTools for chat.
var (
	ReviewTools = []string{CreateSuggestion, InsertDiagram}
	ChatTools   = []string{CreateDiagram, InsertDiagram}
)

// IssueArgs is one defect found in a text span.
type IssueArgs struct {
	Type        string `json:"type" jsonschema:"description=The type of issue: Structure or Punctuation or Antecedent Basis or Ambiguity or Broadening Dependent Claims"`
	Severity    string `json:"severity" jsonschema:"enum=high,enum=medium,enum=low,description=The severity level of the issue"`
	Description string `json:"description" jsonschema:"description=Explanation of the issue with no more than 20 words"`
}

// SuggestionArgs is the argument payload of create_suggestion.
type SuggestionArgs struct {
	OriginalText string      `json:"originalText,omitempty" jsonschema:"description=The exact original text from the document that has the issue (word-for-word match)"`
	ReplaceTo    string      `json:"replaceTo,omitempty" jsonschema:"description=A SINGLE comprehensive replacement text that fixes ALL issues found in this text segment"`
	Issues       []IssueArgs `json:"issues" jsonschema:"description=Array of all issues found in this text segment"`
	Paragraph    int         `json:"paragraph,omitempty" jsonschema:"description=The paragraph number (1-based index) where the issue occurs"`
}

// DiagramArgs is the argument payload shared by create_diagram and insert_diagram.
type DiagramArgs struct {
	InsertAfterText string `json:"insert_after_text,omitempty" jsonschema:"description=Exact text in the document after which the diagram is inserted"`
	MermaidSyntax   string `json:"mermaid_syntax" jsonschema:"description=The Mermaid diagram syntax code"`
	DiagramType     string `json:"diagram_type,omitempty" jsonschema:"description=The type of diagram to create"`
	Title           string `json:"title,omitempty" jsonschema:"description=The title or description of the diagram"`
}

// NewCatalog registers the three claim-review tools.
func NewCatalog() (*DefaultRegistry, error) {
	defs := []struct {
		name, desc string
		args       any
		opts       []Option
	}{
		{
			name: CreateSuggestion,
			desc: "Create a document suggestion for patent claim issues. Call once per text segment with all of its issues.",
			args: &SuggestionArgs{},
			opts: []Option{Require("originalText", "replaceTo", "paragraph")},
		},
		{
			name: CreateDiagram,
			desc: "Generate a diagram using Mermaid syntax and show it in the chat",
			args: &DiagramArgs{},
			opts: []Option{Require("diagram_type"), Enum("diagram_type", DiagramTypes...)},
		},
		{
			name: InsertDiagram,
			desc: "Insert a Mermaid diagram into the document directly after the given text",
			args: &DiagramArgs{},
			opts: []Option{Require("insert_after_text"), Enum("diagram_type", DiagramTypes...)},
		},
	}
	reg := NewRegistry()
	for _, d := range defs {
		def, err := NewDefinition(d.name, d.desc, d.args, d.opts...)
		if err != nil {
			return nil, err
		}
		if err := reg.Register(def); err != nil {
			return nil, fmt.Errorf("register %s: %w", d.name, err)
		}
	}
	return reg, nil
}
