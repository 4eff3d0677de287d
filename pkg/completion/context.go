// Package completion decides what kind of suggestion the cursor position in a
// HED string calls for and produces ranked candidates for it.
package completion

import (
	"strings"

	"github.com/hed-standard/hed-lsp/pkg/region"
	"github.com/hed-standard/hed-lsp/pkg/scan"
	"github.com/hed-standard/hed-lsp/pkg/schema"
)

// Kind is the completion state at the cursor.
type Kind int

const (
	// KindNone means no completion applies, e.g. inside a {placeholder}.
	KindNone Kind = iota
	// KindTopLevel asks for root tags.
	KindTopLevel
	// KindChild asks for the children of Parent.
	KindChild
	// KindPartial asks for tags matching a partially typed name.
	KindPartial
)

func (k Kind) String() string {
	switch k {
	case KindTopLevel:
		return "top-level"
	case KindChild:
		return "child"
	case KindPartial:
		return "partial"
	}
	return "none"
}

// Context describes the cursor position within a HED string.
type Context struct {
	Kind Kind
	// Prefix is the namespace prefix typed with the token, lower-cased.
	Prefix string
	// Parent is the path before the last slash for KindChild.
	Parent string
	// Partial is the text typed so far for the name being completed.
	Partial string
	// ReplaceStart and ReplaceEnd delimit the text a candidate replaces.
	ReplaceStart int
	ReplaceEnd   int
}

// Analyze derives the completion context at offset. The last non-space
// character before the cursor decides first; failing that the token in
// progress does.
func Analyze(content string, offset int) Context {
	if offset < 0 || offset > len(content) || scan.InsidePlaceholder(content, offset) {
		return Context{Kind: KindNone}
	}

	topLevel := Context{Kind: KindTopLevel, ReplaceStart: offset, ReplaceEnd: offset}

	i := offset
	for i > 0 && isSpace(content[i-1]) {
		i--
	}
	if i == 0 || region.IsSeparator(content[i-1]) {
		return topLevel
	}

	start := i
	for start > 0 && !region.IsSeparator(content[start-1]) {
		start--
	}
	for start < i && isSpace(content[start]) {
		start++
	}
	token := content[start:i]

	prefix, rest := schema.SplitPrefix(token)
	restStart := i - len(rest)

	if slash := strings.LastIndex(rest, "/"); slash >= 0 {
		return Context{
			Kind:         KindChild,
			Prefix:       prefix,
			Parent:       rest[:slash],
			Partial:      rest[slash+1:],
			ReplaceStart: restStart + slash + 1,
			ReplaceEnd:   offset,
		}
	}
	if rest == "" {
		topLevel.Prefix = prefix
		topLevel.ReplaceStart = start
		return topLevel
	}
	return Context{
		Kind:         KindPartial,
		Prefix:       prefix,
		Partial:      rest,
		ReplaceStart: start,
		ReplaceEnd:   offset,
	}
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}
