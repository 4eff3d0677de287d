package region

import (
	"sort"
	"unicode/utf16"
	"unicode/utf8"
)

// Position is a zero-based line and UTF-16 column, as editors count them.
type Position struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// Before reports whether p sorts strictly before o.
func (p Position) Before(o Position) bool {
	if p.Line != o.Line {
		return p.Line < o.Line
	}
	return p.Character < o.Character
}

// Range is a half-open document span.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Contains reports whether pos lies in r, both boundaries included.
func (r Range) Contains(pos Position) bool {
	return !pos.Before(r.Start) && !r.End.Before(pos)
}

// PositionMapper converts between byte offsets and document positions.
type PositionMapper interface {
	PositionAt(offset int) Position
	OffsetAt(pos Position) int
}

// LineIndex is the default PositionMapper over an immutable text snapshot.
type LineIndex struct {
	text       string
	lineStarts []int
}

// NewLineIndex indexes the line starts of text.
func NewLineIndex(text string) *LineIndex {
	starts := []int{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &LineIndex{text: text, lineStarts: starts}
}

// PositionAt maps a byte offset to a position. Offsets are clamped to the text.
func (li *LineIndex) PositionAt(offset int) Position {
	if offset < 0 {
		offset = 0
	}
	if offset > len(li.text) {
		offset = len(li.text)
	}
	line := sort.Search(len(li.lineStarts), func(i int) bool {
		return li.lineStarts[i] > offset
	}) - 1
	start := li.lineStarts[line]

	col := 0
	for _, r := range li.text[start:offset] {
		col += utf16Len(r)
	}
	return Position{Line: line, Character: col}
}

// OffsetAt maps a position back to a byte offset. Columns past the end of
// the line land on the line terminator.
func (li *LineIndex) OffsetAt(pos Position) int {
	if pos.Line < 0 {
		return 0
	}
	if pos.Line >= len(li.lineStarts) {
		return len(li.text)
	}
	offset := li.lineStarts[pos.Line]
	col := 0
	for offset < len(li.text) && col < pos.Character {
		r, size := utf8.DecodeRuneInString(li.text[offset:])
		if r == '\n' || r == '\r' {
			break
		}
		col += utf16Len(r)
		offset += size
	}
	return offset
}

func utf16Len(r rune) int {
	if n := utf16.RuneLen(r); n > 0 {
		return n
	}
	return 1
}
