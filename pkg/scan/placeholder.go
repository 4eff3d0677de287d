// Package scan holds the low-level HED string utilities shared by completion
// and diagnostics: placeholder handling, definition extraction and
// boundary-safe tag search.
package scan

import "strings"

// InsidePlaceholder reports whether offset falls inside a {...} placeholder.
func InsidePlaceholder(s string, offset int) bool {
	if offset > len(s) {
		offset = len(s)
	}
	depth := 0
	for i := 0; i < offset; i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			if depth > 0 {
				depth--
			}
		}
	}
	return depth > 0
}

// OffsetMap maps byte offsets of a cleaned string back to the original.
type OffsetMap struct {
	orig []int
	size int
}

// Original returns the original offset of cleaned offset i. The end of the
// cleaned string maps to just past the last kept original byte.
func (m OffsetMap) Original(i int) int {
	if i < 0 {
		return 0
	}
	if i < len(m.orig) {
		return m.orig[i]
	}
	if len(m.orig) == 0 {
		return m.size
	}
	return m.orig[len(m.orig)-1] + 1
}

type cell struct {
	b    byte
	orig int
}

// StripPlaceholders removes every placeholder. A placeholder standing as a
// whole tag goes with one adjacent comma, preferring the following one; one
// embedded in a tag keeps the tag and drops only a preceding slash. Empty
// groups and stray commas are then tidied. The result is empty when the string held only placeholders. A
// string without placeholders is returned as is, mistakes included.
func StripPlaceholders(s string) (string, OffsetMap) {
	spans := placeholderSpans(s)
	if len(spans) == 0 {
		m := OffsetMap{orig: make([]int, len(s)), size: len(s)}
		for i := range m.orig {
			m.orig[i] = i
		}
		return s, m
	}

	removed := make([]bool, len(s))
	for _, span := range spans {
		for i := span[0]; i < span[1]; i++ {
			removed[i] = true
		}
		switch {
		case wholeToken(s, removed, span[0], span[1]):
			dropAdjacentComma(s, removed, span[0], span[1])
		case span[0] > 0 && s[span[0]-1] == '/':
			// Value slot of a tag such as Def/Name/{col}.
			removed[span[0]-1] = true
		}
	}

	cells := make([]cell, 0, len(s))
	for i := 0; i < len(s); i++ {
		if !removed[i] {
			cells = append(cells, cell{b: s[i], orig: i})
		}
	}
	cells = tidy(cells)

	var b strings.Builder
	m := OffsetMap{orig: make([]int, len(cells)), size: len(s)}
	for i, c := range cells {
		b.WriteByte(c.b)
		m.orig[i] = c.orig
	}
	return b.String(), m
}

// HasPlaceholder reports whether s contains a placeholder.
func HasPlaceholder(s string) bool {
	return len(placeholderSpans(s)) > 0
}

// placeholderSpans returns [start, end) of each top-level {...} span. An
// unclosed brace runs to the end of the string.
func placeholderSpans(s string) [][2]int {
	var spans [][2]int
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 {
				spans = append(spans, [2]int{start, i + 1})
			}
		}
	}
	if depth > 0 {
		spans = append(spans, [2]int{start, len(s)})
	}
	return spans
}

// wholeToken reports whether the span is bounded by separators or the string
// ends, ignoring spaces and bytes already removed.
func wholeToken(s string, removed []bool, start, end int) bool {
	k := start - 1
	for k >= 0 && (removed[k] || s[k] == ' ') {
		k--
	}
	if k >= 0 && s[k] != ',' && s[k] != '(' {
		return false
	}
	j := end
	for j < len(s) && (removed[j] || s[j] == ' ') {
		j++
	}
	return j >= len(s) || s[j] == ',' || s[j] == ')'
}

func dropAdjacentComma(s string, removed []bool, start, end int) {
	j := end
	for j < len(s) && (removed[j] || s[j] == ' ') {
		j++
	}
	if j < len(s) && s[j] == ',' {
		j++
		for j < len(s) && s[j] == ' ' {
			j++
		}
		for i := end; i < j; i++ {
			removed[i] = true
		}
		return
	}

	k := start - 1
	for k >= 0 && (removed[k] || s[k] == ' ') {
		k--
	}
	if k >= 0 && s[k] == ',' {
		for i := k; i < start; i++ {
			removed[i] = true
		}
	}
}

func tidy(cells []cell) []cell {
	for changed := true; changed; {
		changed = false
		for i := 0; i < len(cells); i++ {
			c := cells[i].b
			if c != '(' && c != ',' {
				continue
			}
			j := skipSpaces(cells, i+1)
			switch {
			case c == '(' && j < len(cells) && cells[j].b == ')':
				// Empty group: drop it with one adjacent comma.
				cells, changed = dropGroup(cells, i, j+1), true
			case c == ',' && j < len(cells) && (cells[j].b == ',' || cells[j].b == ')'):
				cells, changed = remove(cells, i, j), true
			case c == '(' && j < len(cells) && cells[j].b == ',':
				cells, changed = remove(cells, i+1, skipSpaces(cells, j+1)), true
			}
			if changed {
				break
			}
		}
	}

	cells = trimCells(cells)
	for len(cells) > 0 && cells[0].b == ',' {
		cells = trimCells(cells[1:])
	}
	for len(cells) > 0 && cells[len(cells)-1].b == ',' {
		cells = trimCells(cells[:len(cells)-1])
	}
	return cells
}

func dropGroup(cells []cell, start, end int) []cell {
	j := skipSpaces(cells, end)
	if j < len(cells) && cells[j].b == ',' {
		return remove(cells, start, skipSpaces(cells, j+1))
	}
	k := start - 1
	for k >= 0 && cells[k].b == ' ' {
		k--
	}
	if k >= 0 && cells[k].b == ',' {
		return remove(cells, k, end)
	}
	return remove(cells, start, end)
}

func skipSpaces(cells []cell, i int) int {
	for i < len(cells) && cells[i].b == ' ' {
		i++
	}
	return i
}

func remove(cells []cell, start, end int) []cell {
	return append(cells[:start:start], cells[end:]...)
}

func trimCells(cells []cell) []cell {
	for len(cells) > 0 && isSpace(cells[0].b) {
		cells = cells[1:]
	}
	for len(cells) > 0 && isSpace(cells[len(cells)-1].b) {
		cells = cells[:len(cells)-1]
	}
	return cells
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}
