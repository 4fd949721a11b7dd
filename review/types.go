// Package review turns completed tool invocations into claim-review results
// and runs review and chat cycles against an llm.Client.
package review

// Severity of a drafting issue.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// Weight ranks severities for merging. Unknown values rank as medium.
func (s Severity) Weight() int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 2
	}
}

// Issue is one defect reported against a text span.
type Issue struct {
	Type        string   `json:"type"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
}

// Suggestion is one proposed edit to a document span. Type, Severity and
// Description summarize Issues.
type Suggestion struct {
	OriginalText string   `json:"originalText"`
	ReplaceTo    string   `json:"replaceTo"`
	Paragraph    int      `json:"paragraph"`
	Issues       []Issue  `json:"issues"`
	Type         string   `json:"type"`
	Severity     Severity `json:"severity"`
	Description  string   `json:"description"`
}

// DiagramInsertion places a Mermaid diagram after an anchor text in the
// document. The anchor is matched verbatim by the client.
type DiagramInsertion struct {
	InsertAfterText string `json:"insert_after_text"`
	MermaidSyntax   string `json:"mermaid_syntax"`
	DiagramType     string `json:"diagram_type"`
	Title           string `json:"title"`
}

// Result is the output of one review cycle.
type Result struct {
	Issues            []Suggestion       `json:"issues"`
	DiagramInsertions []DiagramInsertion `json:"diagram_insertions"`
}

// NewResult returns a Result whose lists encode as [] rather than null.
func NewResult() *Result {
	return &Result{Issues: []Suggestion{}, DiagramInsertions: []DiagramInsertion{}}
}

// ChatResult is the output of one chat cycle.
type ChatResult struct {
	Response          string             `json:"response"`
	DiagramInsertions []DiagramInsertion `json:"diagram_insertions,omitempty"`
}
