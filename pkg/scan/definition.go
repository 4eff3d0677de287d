package scan

import (
	"regexp"
	"strings"

	"github.com/hed-standard/hed-lsp/pkg/region"
)

// DefinitionPattern matches a definition marker with its name and optional
// placeholder suffix.
var DefinitionPattern = regexp.MustCompile(`(?:^|[\s,(])((?i:Definition))/([^/,(){}\s]+)(/#)?`)

// ReferencePattern matches Def/Name[/value] and Def-expand/Name[/value]. Only
// the marker keyword is case-insensitive.
var ReferencePattern = regexp.MustCompile(`(?:^|[\s,(])((?i:Def-expand|Def))/([^/,(){}\s]+)(?:/([^,(){}]*))?`)

// Definition is a user definition found in a document.
type Definition struct {
	Name       string
	TakesValue bool
	// Group is the full parenthesized definition group, or the bare tag when
	// the definition is not grouped.
	Group  string
	Region region.Region
	// Start and End delimit Group within Region.Content.
	Start int
	End   int
}

// ExtractDefinitions collects definitions from regions. Names are unique
// case-insensitively; a placeholder-taking variant replaces a plain one.
func ExtractDefinitions(regions []region.Region) []Definition {
	var out []Definition
	index := make(map[string]int)

	for _, r := range regions {
		for _, m := range DefinitionPattern.FindAllStringSubmatchIndex(r.Content, -1) {
			markerStart := m[2]
			def := Definition{
				Name:       r.Content[m[4]:m[5]],
				TakesValue: m[6] >= 0,
				Region:     r,
			}
			def.Start, def.End = groupBounds(r.Content, markerStart, m[1])
			def.Group = r.Content[def.Start:def.End]

			key := strings.ToLower(def.Name)
			if i, seen := index[key]; seen {
				if def.TakesValue && !out[i].TakesValue {
					out[i] = def
				}
				continue
			}
			index[key] = len(out)
			out = append(out, def)
		}
	}
	return out
}

// Lookup finds a definition by name, case-insensitively.
func Lookup(defs []Definition, name string) (Definition, bool) {
	for _, d := range defs {
		if strings.EqualFold(d.Name, name) {
			return d, true
		}
	}
	return Definition{}, false
}

// groupBounds returns the span of the parenthesized group that opens right
// before the marker. Without such a group the span is the marker token.
func groupBounds(s string, markerStart, markerEnd int) (int, int) {
	open := markerStart - 1
	for open >= 0 && isSpace(s[open]) {
		open--
	}
	if open < 0 || s[open] != '(' {
		end := markerEnd
		for end < len(s) && !region.IsSeparator(s[end]) {
			end++
		}
		return markerStart, end
	}

	depth := 1
	for i := markerStart; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return open, i + 1
			}
		}
	}
	return open, len(s)
}

// Reference is a Def or Def-expand occurrence in a HED string.
type Reference struct {
	Marker   string
	Name     string
	Value    string
	HasValue bool
	// Start and End delimit the whole reference token.
	Start int
	End   int
	// NameStart and NameEnd delimit the name.
	NameStart int
	NameEnd   int
}

// FindReferences returns every definition reference in s.
func FindReferences(s string) []Reference {
	var refs []Reference
	for _, m := range ReferencePattern.FindAllStringSubmatchIndex(s, -1) {
		ref := Reference{
			Marker:    s[m[2]:m[3]],
			Name:      s[m[4]:m[5]],
			Start:     m[2],
			End:       m[1],
			NameStart: m[4],
			NameEnd:   m[5],
		}
		if m[6] >= 0 {
			ref.Value = strings.TrimSpace(s[m[6]:m[7]])
			ref.HasValue = ref.Value != ""
		}
		for ref.End > ref.Start && isSpace(s[ref.End-1]) {
			ref.End--
		}
		refs = append(refs, ref)
	}
	return refs
}

// ReferenceAt returns the reference covering offset.
func ReferenceAt(s string, offset int) (Reference, bool) {
	for _, ref := range FindReferences(s) {
		if offset >= ref.Start && offset <= ref.End {
			return ref, true
		}
	}
	return Reference{}, false
}

// IsReferenceMarker reports whether name is Def or Def-expand, in any case.
func IsReferenceMarker(name string) bool {
	return strings.EqualFold(name, "Def") || strings.EqualFold(name, "Def-expand")
}
