package document

import (
	"sort"
	"unicode/utf8"
)

// Position is a zero-based line and UTF-16 code unit offset, the encoding
// used by the language server protocol.
type Position struct {
	Line      uint32
	Character uint32
}

// Span is a pair of positions.
type Span struct {
	Start Position
	End   Position
}

// LineIndex converts between byte offsets and positions.
type LineIndex struct {
	text   string
	starts []int
}

// NewLineIndex indexes the line starts of text.
func NewLineIndex(text string) *LineIndex {
	starts := []int{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &LineIndex{text: text, starts: starts}
}

// LineCount returns the number of lines, counting a trailing empty line.
func (li *LineIndex) LineCount() int { return len(li.starts) }

func (li *LineIndex) lineEnd(line int) int {
	if line+1 < len(li.starts) {
		return li.starts[line+1] - 1
	}
	return len(li.text)
}

// Offset returns the byte offset of pos. Positions past the end of a line
// clamp to the line end; lines past the end clamp to the end of the text.
func (li *LineIndex) Offset(pos Position) int {
	line := int(pos.Line)
	if line >= len(li.starts) {
		return len(li.text)
	}
	start, end := li.starts[line], li.lineEnd(line)
	units := uint32(0)
	for i, r := range li.text[start:end] {
		if units >= pos.Character {
			return start + i
		}
		units += utf16Len(r)
	}
	return end
}

// Position returns the position of a byte offset, clamped to the text.
func (li *LineIndex) Position(offset int) Position {
	if offset < 0 {
		offset = 0
	}
	if offset > len(li.text) {
		offset = len(li.text)
	}
	line := sort.Search(len(li.starts), func(i int) bool { return li.starts[i] > offset }) - 1
	units := uint32(0)
	for _, r := range li.text[li.starts[line]:offset] {
		units += utf16Len(r)
	}
	return Position{Line: uint32(line), Character: units}
}

// Span converts a byte range.
func (li *LineIndex) Span(start, end int) Span {
	return Span{Start: li.Position(start), End: li.Position(end)}
}

func utf16Len(r rune) uint32 {
	if r >= 0x10000 && r <= utf8.MaxRune {
		return 2
	}
	return 1
}
