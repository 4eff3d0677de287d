package scan

import (
	"strings"

	"github.com/hed-standard/hed-lsp/pkg/region"
)

// FindTag finds tag in s case-insensitively, accepting an occurrence only
// when it is bounded on both sides by the string ends, a separator or
// whitespace. "Animal" does not match inside "Animal-agent".
func FindTag(s, tag string) (start, end int, ok bool) {
	if tag == "" {
		return 0, 0, false
	}
	lower := asciiLower(s)
	needle := asciiLower(tag)

	from := 0
	for from <= len(lower)-len(needle) {
		i := strings.Index(lower[from:], needle)
		if i < 0 {
			break
		}
		start = from + i
		end = start + len(needle)
		if boundary(s, start-1) && boundary(s, end) {
			return start, end, true
		}
		from = start + 1
	}
	return 0, 0, false
}

// asciiLower folds only ASCII letters so byte offsets stay aligned with s.
func asciiLower(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= 'A' && r <= 'Z' {
			return r + ('a' - 'A')
		}
		return r
	}, s)
}

func boundary(s string, i int) bool {
	if i < 0 || i >= len(s) {
		return true
	}
	return region.IsSeparator(s[i]) || isSpace(s[i])
}
