package textnorm

import (
	"errors"
	"strings"
	"testing"
)

func TestPlainText(t *testing.T) {
	cases := []struct {
		name, in, want string
	}{
		{"paragraphs", `<p>1. An apparatus, comprising:</p><p>a   pencil;  and</p>`, "1. An apparatus, comprising:\na pencil; and"},
		{"inline and br", `<p>a <strong>light</strong><br>attached</p>`, "a light\nattached"},
		{"script dropped", `<div>claim</div><script>alert(1)</script>`, "claim"},
		{"entities", `<p>A &amp; B</p>`, "A & B"},
		{"plain text", "  just   text \n\n more ", "just text\nmore"},
		{"list", `<ul><li>one</li><li>two</li></ul>`, "one\ntwo"},
	}
	for _, tc := range cases {
		got, err := PlainText(tc.in)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if got != tc.want {
			t.Fatalf("%s: got %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestValidate(t *testing.T) {
	b := Bounds{Min: 5, Max: 20}
	if err := Validate("   ", b); !errors.Is(err, ErrEmpty) {
		t.Fatalf("blank: %v", err)
	}
	if err := Validate("abc", b); !errors.Is(err, ErrTooShort) {
		t.Fatalf("short: %v", err)
	}
	if err := Validate(strings.Repeat("x", 21), b); !errors.Is(err, ErrTooLong) {
		t.Fatalf("long: %v", err)
	}
	if err := Validate("élément", b); err != nil {
		t.Fatalf("runes counted as bytes: %v", err)
	}
}

func TestNormalize_EmptyMarkup(t *testing.T) {
	if _, err := Normalize("<p></p><p>  </p>", Bounds{}); !errors.Is(err, ErrEmpty) {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}
}
