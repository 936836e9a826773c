// Package passage normalizes and loads target texts for typing sessions.
package passage

import (
	"errors"
	"strings"
	"unicode"
)

// ErrNoUsableText is returned when a text source normalizes to nothing.
var ErrNoUsableText = errors.New("no usable text")

// Passage is a normalized, immutable target text.
type Passage struct {
	runes []rune
}

// Normalize removes carriage returns, collapses whitespace runs into a single
// space and trims the ends. Blank input yields an empty Passage.
func Normalize(raw string) Passage {
	var b strings.Builder
	b.Grow(len(raw))
	pendingSpace := false
	for _, r := range raw {
		if r == '\r' {
			continue
		}
		if isSpace(r) {
			pendingSpace = b.Len() > 0
			continue
		}
		if pendingSpace {
			b.WriteByte(' ')
			pendingSpace = false
		}
		b.WriteRune(r)
	}
	if b.Len() == 0 {
		return Passage{}
	}
	return Passage{runes: []rune(b.String())}
}

// isSpace is unicode.IsSpace with U+FEFF added and U+0085 removed.
func isSpace(r rune) bool {
	if r == '\uFEFF' {
		return true
	}
	return r != '\u0085' && unicode.IsSpace(r)
}

// FromString normalizes raw and fails with ErrNoUsableText when nothing is left.
func FromString(raw string) (Passage, error) {
	p := Normalize(raw)
	if p.IsEmpty() {
		return Passage{}, ErrNoUsableText
	}
	return p, nil
}

// IsEmpty reports whether the passage has no characters.
func (p Passage) IsEmpty() bool {
	return len(p.runes) == 0
}

// Len returns the number of characters.
func (p Passage) Len() int {
	return len(p.runes)
}

// At returns the character at position i.
func (p Passage) At(i int) rune {
	return p.runes[i]
}

// Runes returns a copy of the characters.
func (p Passage) Runes() []rune {
	out := make([]rune, len(p.runes))
	copy(out, p.runes)
	return out
}

func (p Passage) String() string {
	return string(p.runes)
}
