package region

import "strings"

// Token is a tag token within a HED string, as byte offsets into it.
type Token struct {
	Text  string
	Start int
	End   int
}

// IsSeparator reports whether c ends a tag token.
func IsSeparator(c byte) bool {
	return c == ',' || c == '(' || c == ')'
}

// TagTokenAt expands from offset to the surrounding separators or string
// bounds and trims spaces. It reports false when the token is empty.
func TagTokenAt(content string, offset int) (Token, bool) {
	if offset < 0 || offset > len(content) {
		return Token{}, false
	}
	start := offset
	for start > 0 && !IsSeparator(content[start-1]) {
		start--
	}
	end := offset
	for end < len(content) && !IsSeparator(content[end]) {
		end++
	}

	for start < end && isSpace(content[start]) {
		start++
	}
	for end > start && isSpace(content[end-1]) {
		end--
	}
	if start == end {
		return Token{}, false
	}
	return Token{Text: content[start:end], Start: start, End: end}, true
}

func isSpace(c byte) bool {
	return strings.IndexByte(" \t\r\n", c) >= 0
}
