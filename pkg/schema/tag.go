package schema

import "strings"

// ValueNode is the short form used by the vocabulary for value placeholders.
const ValueNode = "#"

// Attributes holds the schema attributes the engine understands.
type Attributes struct {
	ExtensionAllowed bool
	TakesValue       bool
	RequireChild     bool
	Unique           bool
	UnitClass        []string
	SuggestedTag     []string
	RelatedTag       []string
	DefaultUnits     string
}

// TagEntry is one node of the vocabulary hierarchy.
//
// Parent is a name reference (the parent's short form), not a pointer; the
// owning Namespace resolves it.
type TagEntry struct {
	ShortForm   string
	LongForm    string
	Description string
	Prefix      string
	Library     string
	Parent      string
	Attributes  Attributes
}

// QualifiedName returns the short form with its namespace prefix, if any.
func (t *TagEntry) QualifiedName() string {
	if t.Prefix != "" {
		return t.Prefix + ":" + t.ShortForm
	}
	return t.ShortForm
}

// IsValueNode reports whether the entry is a "#" placeholder node.
func (t *TagEntry) IsValueNode() bool {
	return t.ShortForm == ValueNode
}

// IsTopLevel reports whether the entry has no parent.
func (t *TagEntry) IsTopLevel() bool {
	return t.Parent == ""
}

// Depth returns the number of path segments in the long form.
func (t *TagEntry) Depth() int {
	return strings.Count(t.LongForm, "/") + 1
}
