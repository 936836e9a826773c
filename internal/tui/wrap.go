package tui

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

const wrongSpaceMark = '•'

type styledRune struct {
	s       string
	width   int
	isSpace bool
}

// buildStyledRunes colors each passage rune by its typed state. cursor is the
// next position to type, or -1 when there is none.
func buildStyledRunes(target, typed []rune, cursor int) []styledRune {
	wordStart, wordEnd := currentWord(target, cursor)

	out := make([]styledRune, 0, len(target))
	for i, want := range target {
		shown := want
		style := pendingStyle
		switch {
		case i < len(typed) && want == ' ' && typed[i] != ' ':
			shown = wrongSpaceMark
			style = incorrectStyle
		case i < len(typed) && typed[i] == want:
			style = correctStyle
		case i < len(typed):
			style = incorrectStyle
		case want != ' ' && i >= wordStart && i < wordEnd:
			style = currentWordStyle
		}
		if i == cursor && i >= len(typed) {
			style = style.Underline(true)
		}
		out = append(out, styledRune{
			s:       style.Render(string(shown)),
			width:   runewidth.RuneWidth(shown),
			isSpace: want == ' ',
		})
	}
	return out
}

// currentWord returns the bounds of the word holding cursor, or the next
// word when cursor sits on a space.
func currentWord(target []rune, cursor int) (int, int) {
	if cursor < 0 || cursor >= len(target) {
		return -1, -1
	}
	start := cursor
	if target[start] == ' ' {
		for start < len(target) && target[start] == ' ' {
			start++
		}
	} else {
		for start > 0 && target[start-1] != ' ' {
			start--
		}
	}
	end := start
	for end < len(target) && target[end] != ' ' {
		end++
	}
	return start, end
}

func renderStyledRunes(runes []styledRune) string {
	var b strings.Builder
	for _, item := range runes {
		b.WriteString(item.s)
	}
	return b.String()
}

// wrapStyledRunes breaks lines at the last space that fits within width,
// falling back to a hard break for words longer than a line.
func wrapStyledRunes(runes []styledRune, width int) string {
	if width <= 0 {
		return renderStyledRunes(runes)
	}
	var out strings.Builder
	line := make([]styledRune, 0, len(runes))
	lineWidth := 0
	lastSpace := -1

	for i := 0; i < len(runes); {
		item := runes[i]
		if lineWidth+item.width > width && len(line) > 0 {
			if lastSpace >= 0 {
				out.WriteString(renderStyledRunes(line[:lastSpace]))
				line = append([]styledRune{}, line[lastSpace+1:]...)
			} else {
				out.WriteString(renderStyledRunes(line))
				line = line[:0]
			}
			out.WriteRune('\n')
			lineWidth, lastSpace = measureLine(line)
			continue
		}
		line = append(line, item)
		lineWidth += item.width
		if item.isSpace {
			lastSpace = len(line) - 1
		}
		i++
	}
	out.WriteString(renderStyledRunes(line))
	return out.String()
}

func measureLine(line []styledRune) (width, lastSpace int) {
	lastSpace = -1
	for i, item := range line {
		width += item.width
		if item.isSpace {
			lastSpace = i
		}
	}
	return width, lastSpace
}
