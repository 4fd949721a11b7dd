// Package prompt assembles the message lists sent to the model for review and
// chat cycles.
package prompt

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/KamdynS/claimreview/llm"
)

var reviewTmpl = template.Must(template.New("review").Parse(`Your job is to review the "Claims" section of a patent document. Comment on its strength and decide whether it passes each of the rules below. If it does not pass a rule, suggest a change that would make it pass.

A patent is a legal document that gives an inventor the right to exclude others from practicing an invention. The claims define the scope of protection and are the legally operative part of a patent application. They must be clear and concise, supported by the detailed description, and written in a particular format. For example:
An apparatus, comprising:
- a pencil having an elongated structure with two ends and a center therebetween;
- an eraser attached to one end of the pencil; and
- a light attached to the center of the pencil.

Here are the rules you should check for:
{{range .Rules}}
{{.Name}}: {{.Text}}
{{end}}
IMPORTANT: Review the entire document and identify ALL issues. For EACH piece of text that has issues, call the create_suggestion function ONCE, providing:
1. The exact original text (originalText)
2. A SINGLE comprehensive correction (replaceTo) that fixes ALL issues at once
3. An array of all issues found in that text segment
4. The 1-based paragraph number (paragraph)

For example, if "a eraser" has both an antecedent basis issue and an ambiguity issue, provide ONE correction such as "an effective eraser" that addresses both. Never report overlapping text segments separately.

If a figure would clarify the claim structure, call insert_diagram with the exact text after which it belongs.
`))

var chatTmpl = template.Must(template.New("chat").Parse(`You are a patent drafting assistant helping the user edit the document below. Answer questions about the claims, explain drafting rules, and propose improved wording when asked.

When the user asks to see a diagram or flowchart, call create_diagram with Mermaid syntax. When the user asks to add a diagram to the document, call insert_diagram with insert_after_text set to text copied exactly from the document.
{{if .Document}}
Current document:
"""
{{.Document}}
"""
{{else}}
The document is currently empty.
{{end}}
The user's current question: {{.Question}}
`))

func render(t *template.Template, data any) string {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		panic(fmt.Sprintf("prompt: render %s: %v", t.Name(), err))
	}
	return buf.String()
}

// ReviewSystemPrompt is the system prompt for document review cycles.
func ReviewSystemPrompt() string {
	return render(reviewTmpl, struct{ Rules []Rule }{Rules})
}

// ReviewMessages returns the messages for reviewing a plain-text document.
func ReviewMessages(document string) []llm.Message {
	return []llm.Message{
		{Role: llm.RoleSystem, Content: ReviewSystemPrompt()},
		{Role: llm.RoleUser, Content: document},
	}
}

// ChatMessages builds a chat cycle from the client history and the plain text
// of the document being edited. The system prompt embeds the document and the
// latest user message; prior turns follow it and the latest message closes
// the list. An empty history is returned unchanged.
func ChatMessages(history []llm.Message, document string) []llm.Message {
	if len(history) == 0 {
		return history
	}
	last := history[len(history)-1].Content
	out := make([]llm.Message, 0, len(history)+1)
	out = append(out, llm.Message{Role: llm.RoleSystem, Content: render(chatTmpl, struct{ Document, Question string }{document, last})})
	out = append(out, history[:len(history)-1]...)
	out = append(out, llm.Message{Role: llm.RoleUser, Content: last})
	return out
}
