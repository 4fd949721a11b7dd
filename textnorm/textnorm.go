// Package textnorm turns editor HTML into plain text and checks that the text
// is reviewable.
package textnorm

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	ErrEmpty    = errors.New("document is empty")
	ErrTooShort = errors.New("document is too short to review")
	ErrTooLong  = errors.New("document is too long to review")
)

// Default length bounds in characters.
const (
	DefaultMinChars = 10
	DefaultMaxChars = 50000
)

// Bounds are inclusive character limits for a reviewable document. Zero
// fields take the defaults.
type Bounds struct {
	Min int
	Max int
}

var blockElements = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Li: true, atom.Ul: true, atom.Ol: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Blockquote: true, atom.Pre: true, atom.Tr: true, atom.Table: true, atom.Section: true,
}

// PlainText converts HTML to text. Block elements and <br> become line
// breaks, runs of inline whitespace collapse to one space, and blank lines
// are dropped. Input that is not HTML passes through with whitespace tidied.
func PlainText(src string) (string, error) {
	root, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			return
		case html.ElementNode:
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Head:
				return
			case atom.Br:
				b.WriteByte('\n')
				return
			}
		}
		block := n.Type == html.ElementNode && blockElements[n.DataAtom]
		if block {
			b.WriteByte('\n')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if block {
			b.WriteByte('\n')
		}
	}
	walk(root)
	return tidy(b.String()), nil
}

func tidy(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, l := range lines {
		l = strings.Join(strings.Fields(l), " ")
		if l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}

// Validate reports whether text is within bounds.
func Validate(text string, bounds Bounds) error {
	if bounds.Min <= 0 {
		bounds.Min = DefaultMinChars
	}
	if bounds.Max <= 0 {
		bounds.Max = DefaultMaxChars
	}
	n := utf8.RuneCountInString(strings.TrimSpace(text))
	switch {
	case n == 0:
		return ErrEmpty
	case n < bounds.Min:
		return fmt.Errorf("%w: %d characters, minimum is %d", ErrTooShort, n, bounds.Min)
	case n > bounds.Max:
		return fmt.Errorf("%w: %d characters, maximum is %d", ErrTooLong, n, bounds.Max)
	}
	return nil
}

// Normalize converts src to plain text and validates it.
func Normalize(src string, bounds Bounds) (string, error) {
	text, err := PlainText(src)
	if err != nil {
		return "", err
	}
	if err := Validate(text, bounds); err != nil {
		return "", err
	}
	return text, nil
}
