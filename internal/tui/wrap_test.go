package tui

import (
	"strings"
	"testing"
)

func TestBuildStyledRunesCursor(t *testing.T) {
	runes := buildStyledRunes([]rune("ab"), []rune("a"), 1)
	if len(runes) != 2 {
		t.Fatalf("expected 2 runes, got %d", len(runes))
	}
	if runes[0].s != correctStyle.Render("a") {
		t.Fatalf("expected correct style for first rune")
	}
	if runes[1].s != currentWordStyle.Underline(true).Render("b") {
		t.Fatalf("expected underlined cursor on second rune")
	}
}

func TestBuildStyledRunesNoCursorWhenComplete(t *testing.T) {
	runes := buildStyledRunes([]rune("a"), []rune("a"), -1)
	if len(runes) != 1 {
		t.Fatalf("expected 1 rune, got %d", len(runes))
	}
	if runes[0].s != correctStyle.Render("a") {
		t.Fatalf("expected correct style for completed rune")
	}
}

func TestBuildStyledRunesKeepsTargetOnMistype(t *testing.T) {
	runes := buildStyledRunes([]rune("ab"), []rune("ax"), 2)
	if runes[1].s != incorrectStyle.Render("b") {
		t.Fatalf("expected incorrect style showing the target rune")
	}
}

func TestBuildStyledRunesWordHighlighting(t *testing.T) {
	runes := buildStyledRunes([]rune("one two"), []rune("o"), 1)
	if runes[2].s != currentWordStyle.Render("e") {
		t.Fatalf("expected current word style for untyped in current word")
	}
	if runes[4].s != pendingStyle.Render("t") {
		t.Fatalf("expected pending style for next word")
	}
}

func TestBuildStyledRunesWrongSpaceMark(t *testing.T) {
	runes := buildStyledRunes([]rune("a b"), []rune("ax"), 2)
	if runes[1].s != incorrectStyle.Render(string(wrongSpaceMark)) {
		t.Fatalf("expected marker for wrong space")
	}
}

func TestCurrentWord(t *testing.T) {
	target := []rune("one two")
	cases := []struct {
		cursor     int
		start, end int
	}{
		{cursor: 0, start: 0, end: 3},
		{cursor: 2, start: 0, end: 3},
		{cursor: 3, start: 4, end: 7},
		{cursor: 6, start: 4, end: 7},
		{cursor: 7, start: -1, end: -1},
		{cursor: -1, start: -1, end: -1},
	}
	for _, tc := range cases {
		start, end := currentWord(target, tc.cursor)
		if start != tc.start || end != tc.end {
			t.Fatalf("cursor %d: expected [%d,%d), got [%d,%d)", tc.cursor, tc.start, tc.end, start, end)
		}
	}
}

func TestWrapStyledRunesBreaksAtSpaces(t *testing.T) {
	runes := plainRunes("the quick fox")
	got := wrapStyledRunes(runes, 10)
	if got != "the quick\nfox" {
		t.Fatalf("unexpected wrap: %q", got)
	}
	got = wrapStyledRunes(plainRunes("abcdefgh"), 3)
	if got != "abc\ndef\ngh" {
		t.Fatalf("unexpected hard wrap: %q", got)
	}
	if got := wrapStyledRunes(runes, 0); got != "the quick fox" {
		t.Fatalf("expected no wrap for zero width, got %q", got)
	}
}

func plainRunes(s string) []styledRune {
	out := make([]styledRune, 0, len(s))
	for _, r := range s {
		out = append(out, styledRune{s: string(r), width: 1, isSpace: r == ' '})
	}
	return out
}

func containsAll(haystack string, needles []string) bool {
	for _, needle := range needles {
		if !strings.Contains(haystack, needle) {
			return false
		}
	}
	return true
}
