package region

import (
	"strconv"
	"strings"
)

// NotAvailable is the tabular cell value meaning "no annotation".
const NotAvailable = "n/a"

type field struct {
	text   string
	start  int // offset of the first byte of the raw field within the line
	end    int
	quoted bool
}

// ExtractTabular finds the HED column of a delimited file and returns one
// region per non-empty cell of that column. Quoted cells may contain the
// delimiter. Their content is the raw text between the quotes, with any
// doubled quotes left as is.
func ExtractTabular(text string, delim byte, m PositionMapper) []Region {
	var regions []Region
	column := -1
	offset := 0
	row := 0

	for offset < len(text) || row == 0 {
		lineEnd := strings.IndexByte(text[offset:], '\n')
		next := len(text)
		if lineEnd >= 0 {
			next = offset + lineEnd + 1
			lineEnd += offset
		} else {
			lineEnd = len(text)
		}
		line := text[offset:lineEnd]
		line = strings.TrimSuffix(line, "\r")

		fields := splitFields(line, delim)
		if row == 0 {
			column = hedColumn(fields)
			if column < 0 {
				return nil
			}
		} else if column < len(fields) {
			f := fields[column]
			if r, ok := cellRegion(f, offset, row, m); ok {
				regions = append(regions, r)
			}
		}

		row++
		if next >= len(text) {
			break
		}
		offset = next
	}
	return regions
}

func hedColumn(header []field) int {
	for i, f := range header {
		if strings.EqualFold(strings.TrimSpace(f.text), HEDKey) {
			return i
		}
	}
	return -1
}

func cellRegion(f field, lineOffset, row int, m PositionMapper) (Region, bool) {
	trimmed := strings.TrimSpace(f.text)
	if trimmed == "" || trimmed == NotAvailable {
		return Region{}, false
	}
	contentStart := lineOffset + f.start
	if f.quoted {
		contentStart++
	}
	return Region{
		Content:       f.text,
		Range:         Range{Start: m.PositionAt(lineOffset + f.start), End: m.PositionAt(lineOffset + f.end)},
		Path:          "row " + strconv.Itoa(row),
		ContentOffset: contentStart,
	}, true
}

// splitFields splits one line on delim, honouring double-quoted fields.
func splitFields(line string, delim byte) []field {
	var fields []field
	i := 0
	for {
		f := field{start: i}
		if i < len(line) && line[i] == '"' {
			f.quoted = true
			j := i + 1
			for j < len(line) {
				if line[j] == '"' {
					if j+1 < len(line) && line[j+1] == '"' {
						j += 2
						continue
					}
					break
				}
				j++
			}
			// Doubled quotes stay in the text so offsets match the line.
			f.text = line[i+1 : j]
			if j < len(line) {
				j++
			}
			// Anything between the closing quote and the delimiter is dropped.
			for j < len(line) && line[j] != delim {
				j++
			}
			f.end = j
			i = j
		} else {
			j := strings.IndexByte(line[i:], delim)
			if j < 0 {
				j = len(line)
			} else {
				j += i
			}
			f.text = line[i:j]
			f.end = j
			i = j
		}
		fields = append(fields, f)
		if i >= len(line) {
			return fields
		}
		i++ // skip delimiter
	}
}
