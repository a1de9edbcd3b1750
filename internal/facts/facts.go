// Package facts defines the known-true predicates handed to the prover and
// the helpers that split and normalize their text.
package facts

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Fact is one thing known to be true about a named value at the point a
// proof is attempted.
type Fact struct {
	Variable  string `json:"variable"`
	Predicate string `json:"predicate"`
}

// New creates a fact with normalized predicate text.
func New(variable, predicate string) Fact {
	return Fact{Variable: variable, Predicate: Normalize(predicate)}
}

func (f Fact) String() string {
	if f.Variable == "" {
		return f.Predicate
	}
	return f.Variable + ": " + f.Predicate
}

// Normalize returns predicate text in NFC form with surrounding whitespace
// trimmed and inner whitespace runs collapsed to a single space.
func Normalize(text string) string {
	return strings.Join(strings.Fields(norm.NFC.String(text)), " ")
}

// SplitCompound explodes conjunctions into atomic facts. A predicate whose
// top level is a disjunction is returned unchanged.
func SplitCompound(fs []Fact) []Fact {
	out := make([]Fact, 0, len(fs))
	for _, f := range fs {
		for _, part := range SplitConjuncts(f.Predicate) {
			out = append(out, Fact{Variable: f.Variable, Predicate: part})
		}
	}
	return out
}

// SplitConjuncts splits predicate text on top-level "&&".
func SplitConjuncts(text string) []string {
	text = stripParens(Normalize(text))
	if text == "" {
		return nil
	}
	if _, or := topLevelSplit(text, "||"); or {
		return []string{text}
	}

	parts, and := topLevelSplit(text, "&&")
	if !and {
		return []string{text}
	}

	var out []string
	for _, p := range parts {
		out = append(out, SplitConjuncts(p)...)
	}
	return out
}

// topLevelSplit splits text on sep wherever the parenthesis depth is zero,
// dropping empty pieces. found reports whether sep occurred at all.
func topLevelSplit(text, sep string) (parts []string, found bool) {
	depth, start := 0, 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		default:
			if depth == 0 && strings.HasPrefix(text[i:], sep) {
				parts = append(parts, strings.TrimSpace(text[start:i]))
				found = true
				i += len(sep) - 1
				start = i + 1
			}
		}
	}
	parts = append(parts, strings.TrimSpace(text[start:]))

	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out, found
}

// stripParens removes parentheses wrapping the whole expression.
func stripParens(text string) string {
	for len(text) >= 2 && text[0] == '(' && text[len(text)-1] == ')' && closes(text) {
		text = strings.TrimSpace(text[1 : len(text)-1])
	}
	return text
}

// closes reports whether the opening paren at index 0 matches the final one.
func closes(text string) bool {
	depth := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 && i != len(text)-1 {
				return false
			}
		}
	}
	return depth == 0
}
