// Package region locates HED strings inside host documents and maps offsets
// within those strings back to document positions.
package region

import (
	"path/filepath"
	"strings"
)

// HEDKey is the reserved JSON key and tabular column name.
const HEDKey = "HED"

// Format identifies a host document format.
type Format int

const (
	FormatUnknown Format = iota
	FormatJSON
	FormatTSV
	FormatCSV
)

func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatTSV:
		return "tsv"
	case FormatCSV:
		return "csv"
	}
	return "unknown"
}

// FormatFromPath infers the format from a file name.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".tsv":
		return FormatTSV
	case ".csv":
		return FormatCSV
	}
	return FormatUnknown
}

// Region is one HED string found in a document.
type Region struct {
	// Content is the string as written between its delimiters.
	Content string `json:"content"`
	// Range covers the string including its delimiters.
	Range Range `json:"range"`
	// Path locates the string structurally, e.g. "event.HED" or "row 3".
	Path string `json:"path"`
	// ContentOffset is the byte offset of Content[0] in the document.
	ContentOffset int `json:"contentOffset"`
}

// Span translates a byte span within Content into a document range.
func (r Region) Span(m PositionMapper, start, end int) Range {
	if start < 0 {
		start = 0
	}
	if end > len(r.Content) {
		end = len(r.Content)
	}
	if end < start {
		end = start
	}
	return Range{
		Start: m.PositionAt(r.ContentOffset + start),
		End:   m.PositionAt(r.ContentOffset + end),
	}
}

// OffsetOf converts a document position inside the region to an offset
// within Content, clamped to the content bounds.
func (r Region) OffsetOf(m PositionMapper, pos Position) int {
	off := m.OffsetAt(pos) - r.ContentOffset
	if off < 0 {
		return 0
	}
	if off > len(r.Content) {
		return len(r.Content)
	}
	return off
}

// Extract returns every HED region of text in the given format. Unparseable
// input and unknown formats yield no regions.
func Extract(text string, format Format, m PositionMapper) []Region {
	switch format {
	case FormatJSON:
		return ExtractJSON(text, m)
	case FormatTSV:
		return ExtractTabular(text, '\t', m)
	case FormatCSV:
		return ExtractTabular(text, ',', m)
	}
	return nil
}

// RegionAt returns the region whose range contains pos, boundaries included.
func RegionAt(regions []Region, pos Position) (Region, bool) {
	for _, r := range regions {
		if r.Range.Contains(pos) {
			return r, true
		}
	}
	return Region{}, false
}
