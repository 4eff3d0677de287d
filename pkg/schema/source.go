package schema

import (
	"context"
	"errors"
)

// ErrMalformedSchema is returned when a schema source does not have the shape
// the engine expects.
var ErrMalformedSchema = errors.New("malformed schema")

// Attribute names read from schema sources.
const (
	AttrExtensionAllowed = "extensionAllowed"
	AttrTakesValue       = "takesValue"
	AttrRequireChild     = "requireChild"
	AttrUnique           = "unique"
	AttrUnitClass        = "unitClass"
	AttrSuggestedTag     = "suggestedTag"
	AttrRelatedTag       = "relatedTag"
	AttrDefaultUnits     = "defaultUnits"
	AttrInLibrary        = "inLibrary"
)

// TagSource is the adapter every schema builder hands its tag nodes through.
// It is read exactly once, by NewVocabulary, and never retained.
type TagSource interface {
	// Name returns the node's short name ("#" for value nodes).
	Name() string
	// Description returns the node's free-text description.
	Description() string
	// Parent returns the parent node, or nil at top level.
	Parent() TagSource
	// Attribute returns the values of a named attribute and whether it is set.
	// Boolean attributes are set with no values.
	Attribute(name string) ([]string, bool)
}

// NamespaceSource is the tag table for one namespace prefix.
type NamespaceSource struct {
	// Prefix is the namespace prefix without the colon; "" for the base namespace.
	Prefix string
	// Members lists the library names visible in this namespace ("" is the
	// standard vocabulary).
	Members []string
	// Tags lists the nodes in document order; parents precede children.
	Tags []TagSource
}

// Builder produces a vocabulary for a version spec.
type Builder interface {
	Build(ctx context.Context, spec VersionSpec) (*Vocabulary, error)
}

// BuilderFunc adapts a function to the Builder interface.
type BuilderFunc func(ctx context.Context, spec VersionSpec) (*Vocabulary, error)

// Build calls f.
func (f BuilderFunc) Build(ctx context.Context, spec VersionSpec) (*Vocabulary, error) {
	return f(ctx, spec)
}

// RawTag is a plain TagSource used by the XML builder and by fixtures.
type RawTag struct {
	TagName   string
	Desc      string
	ParentTag *RawTag
	Attrs     map[string][]string
}

// NewRawTag creates a RawTag under parent (nil for top level).
func NewRawTag(name, desc string, parent *RawTag) *RawTag {
	return &RawTag{TagName: name, Desc: desc, ParentTag: parent, Attrs: make(map[string][]string)}
}

// With sets an attribute and returns the tag for chaining.
func (t *RawTag) With(name string, values ...string) *RawTag {
	if t.Attrs == nil {
		t.Attrs = make(map[string][]string)
	}
	t.Attrs[name] = values
	return t
}

func (t *RawTag) Name() string        { return t.TagName }
func (t *RawTag) Description() string { return t.Desc }

func (t *RawTag) Parent() TagSource {
	if t.ParentTag == nil {
		return nil
	}
	return t.ParentTag
}

func (t *RawTag) Attribute(name string) ([]string, bool) {
	values, ok := t.Attrs[name]
	return values, ok
}
