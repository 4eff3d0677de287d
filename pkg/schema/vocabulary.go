package schema

import (
	"fmt"
	"sort"
	"strings"
)

// MaxExtensibleParents caps FindExtensibleParents results.
const MaxExtensibleParents = 10

// Namespace is the tag table for one prefix. The table may hold tags from
// libraries that are not members (a partnered library schema carries the
// standard tags too); those tags are invisible to lookups in this namespace.
type Namespace struct {
	Prefix  string
	members map[string]bool

	tags     []*TagEntry
	byShort  map[string]*TagEntry
	byLong   map[string]*TagEntry
	children map[string][]*TagEntry
}

// Member reports whether tags of library belong to this namespace.
func (ns *Namespace) Member(library string) bool {
	return ns.members[strings.ToLower(library)]
}

func (ns *Namespace) visible(t *TagEntry) bool {
	return ns.members[t.Library]
}

// Tags returns the visible tags in vocabulary order, value nodes excluded.
func (ns *Namespace) Tags() []*TagEntry {
	out := make([]*TagEntry, 0, len(ns.tags))
	for _, t := range ns.tags {
		if ns.visible(t) && !t.IsValueNode() {
			out = append(out, t)
		}
	}
	return out
}

func (ns *Namespace) lookupShort(name string) *TagEntry {
	t := ns.byShort[strings.ToLower(name)]
	if t == nil || !ns.visible(t) {
		return nil
	}
	return t
}

func (ns *Namespace) childrenOf(parent string) []*TagEntry {
	var out []*TagEntry
	for _, t := range ns.children[strings.ToLower(parent)] {
		if ns.visible(t) {
			out = append(out, t)
		}
	}
	return out
}

func (ns *Namespace) child(parent *TagEntry, name string) *TagEntry {
	for _, t := range ns.children[strings.ToLower(parent.ShortForm)] {
		if strings.EqualFold(t.ShortForm, name) && ns.visible(t) {
			return t
		}
	}
	return nil
}

// ValueChild returns the "#" child of t, if t takes a value.
func (ns *Namespace) ValueChild(t *TagEntry) *TagEntry {
	return ns.child(t, ValueNode)
}

// Vocabulary is a loaded, merged set of namespaces for one version spec.
// It is immutable after construction and safe for concurrent readers.
type Vocabulary struct {
	Spec       VersionSpec
	namespaces []*Namespace
	byPrefix   map[string]*Namespace
}

// NewVocabulary converts schema sources into a Vocabulary. It fails fast on
// nodes without a name, duplicate short names and parents that are not part
// of the same namespace source.
func NewVocabulary(spec VersionSpec, sources []NamespaceSource) (*Vocabulary, error) {
	v := &Vocabulary{Spec: spec, byPrefix: make(map[string]*Namespace)}

	for _, src := range sources {
		prefix := strings.ToLower(src.Prefix)
		if _, dup := v.byPrefix[prefix]; dup {
			return nil, fmt.Errorf("%w: namespace %q given twice", ErrMalformedSchema, prefix)
		}
		ns, err := buildNamespace(prefix, src)
		if err != nil {
			return nil, err
		}
		v.namespaces = append(v.namespaces, ns)
		v.byPrefix[prefix] = ns
	}

	if len(v.namespaces) == 0 {
		return nil, fmt.Errorf("%w: no namespaces", ErrMalformedSchema)
	}
	return v, nil
}

func buildNamespace(prefix string, src NamespaceSource) (*Namespace, error) {
	ns := &Namespace{
		Prefix:   prefix,
		members:  make(map[string]bool),
		byShort:  make(map[string]*TagEntry),
		byLong:   make(map[string]*TagEntry),
		children: make(map[string][]*TagEntry),
	}
	for _, m := range src.Members {
		ns.members[strings.ToLower(m)] = true
	}
	if len(ns.members) == 0 {
		ns.members[""] = true
	}

	seen := make(map[TagSource]*TagEntry, len(src.Tags))
	for _, node := range src.Tags {
		if node == nil {
			return nil, fmt.Errorf("%w: nil node in namespace %q", ErrMalformedSchema, prefix)
		}
		name := strings.TrimSpace(node.Name())
		if name == "" {
			return nil, fmt.Errorf("%w: unnamed node in namespace %q", ErrMalformedSchema, prefix)
		}

		entry := &TagEntry{
			ShortForm:   name,
			LongForm:    name,
			Description: node.Description(),
			Prefix:      prefix,
			Attributes:  readAttributes(node),
		}
		if lib, ok := node.Attribute(AttrInLibrary); ok && len(lib) > 0 {
			entry.Library = strings.ToLower(lib[0])
		}

		if parentNode := node.Parent(); parentNode != nil {
			parent, ok := seen[parentNode]
			if !ok {
				return nil, fmt.Errorf("%w: parent of %q is not declared before it", ErrMalformedSchema, name)
			}
			entry.Parent = parent.ShortForm
			entry.LongForm = parent.LongForm + "/" + name
			if entry.IsValueNode() {
				parent.Attributes.TakesValue = true
			}
		}

		longKey := strings.ToLower(entry.LongForm)
		if _, dup := ns.byLong[longKey]; dup {
			return nil, fmt.Errorf("%w: duplicate tag %q", ErrMalformedSchema, entry.LongForm)
		}
		if !entry.IsValueNode() {
			shortKey := strings.ToLower(name)
			if prev, dup := ns.byShort[shortKey]; dup {
				return nil, fmt.Errorf("%w: short form %q used by %q and %q", ErrMalformedSchema, name, prev.LongForm, entry.LongForm)
			}
			ns.byShort[shortKey] = entry
		}
		ns.byLong[longKey] = entry
		if entry.Parent != "" {
			key := strings.ToLower(entry.Parent)
			ns.children[key] = append(ns.children[key], entry)
		}
		ns.tags = append(ns.tags, entry)
		seen[node] = entry
	}
	return ns, nil
}

func readAttributes(node TagSource) Attributes {
	flag := func(name string) bool {
		values, ok := node.Attribute(name)
		if !ok {
			return false
		}
		return len(values) == 0 || !strings.EqualFold(values[0], "false")
	}
	list := func(name string) []string {
		values, _ := node.Attribute(name)
		if len(values) == 0 {
			return nil
		}
		out := make([]string, len(values))
		copy(out, values)
		return out
	}

	attrs := Attributes{
		ExtensionAllowed: flag(AttrExtensionAllowed),
		TakesValue:       flag(AttrTakesValue),
		RequireChild:     flag(AttrRequireChild),
		Unique:           flag(AttrUnique),
		UnitClass:        list(AttrUnitClass),
		SuggestedTag:     list(AttrSuggestedTag),
		RelatedTag:       list(AttrRelatedTag),
	}
	if units := list(AttrDefaultUnits); len(units) > 0 {
		attrs.DefaultUnits = units[0]
	}
	return attrs
}

// SplitPrefix splits "sc:Tag" into ("sc", "Tag"). A colon after the first
// slash belongs to a value and is not a prefix separator.
func SplitPrefix(name string) (string, string) {
	i := strings.Index(name, ":")
	if i <= 0 {
		return "", name
	}
	if slash := strings.Index(name, "/"); slash >= 0 && slash < i {
		return "", name
	}
	return strings.ToLower(name[:i]), name[i+1:]
}

// Namespace returns the namespace for prefix, or nil.
func (v *Vocabulary) Namespace(prefix string) *Namespace {
	return v.byPrefix[strings.ToLower(prefix)]
}

// Namespaces returns all namespaces, base namespace first when present.
func (v *Vocabulary) Namespaces() []*Namespace {
	out := make([]*Namespace, len(v.namespaces))
	copy(out, v.namespaces)
	return out
}

// AllTags returns every visible tag of every namespace, value nodes excluded.
func (v *Vocabulary) AllTags() []*TagEntry {
	var out []*TagEntry
	for _, ns := range v.namespaces {
		out = append(out, ns.Tags()...)
	}
	return out
}

// TopLevelTags returns the visible root tags of the namespace.
func (v *Vocabulary) TopLevelTags(prefix string) []*TagEntry {
	ns := v.Namespace(prefix)
	if ns == nil {
		return nil
	}
	var out []*TagEntry
	for _, t := range ns.tags {
		if t.IsTopLevel() && ns.visible(t) {
			out = append(out, t)
		}
	}
	return out
}

// ChildTags returns the direct children of parent. The parent may be a short
// form, a path (the last segment is used) or prefixed; without a prefix every
// namespace is searched.
func (v *Vocabulary) ChildTags(parent string) []*TagEntry {
	prefix, rest := SplitPrefix(strings.TrimSpace(parent))
	name := rest
	if i := strings.LastIndex(rest, "/"); i >= 0 {
		name = rest[i+1:]
	}
	if name == "" {
		return nil
	}

	if prefix != "" {
		ns := v.Namespace(prefix)
		if ns == nil {
			return nil
		}
		return ns.childrenOf(name)
	}

	var out []*TagEntry
	for _, ns := range v.namespaces {
		out = append(out, ns.childrenOf(name)...)
	}
	return out
}

// FindTag resolves a short form, long form or partial path to its entry.
func (v *Vocabulary) FindTag(name string) *TagEntry {
	prefix, rest := SplitPrefix(strings.TrimSpace(name))
	ns := v.Namespace(prefix)
	if ns == nil || rest == "" {
		return nil
	}
	if t := ns.byLong[strings.ToLower(rest)]; t != nil && ns.visible(t) {
		return t
	}

	segments := strings.Split(rest, "/")
	current := ns.lookupShort(segments[0])
	for _, seg := range segments[1:] {
		if current == nil {
			return nil
		}
		current = ns.child(current, seg)
	}
	return current
}

// Resolve walks a slash path as far as the vocabulary knows it. It returns the
// deepest known entry and the number of segments it consumed.
func (v *Vocabulary) Resolve(path string) (*TagEntry, int) {
	prefix, rest := SplitPrefix(strings.TrimSpace(path))
	ns := v.Namespace(prefix)
	if ns == nil || rest == "" {
		return nil, 0
	}
	segments := strings.Split(rest, "/")

	// A long form prefix may start at a root tag rather than a short form.
	current := ns.lookupShort(segments[0])
	if current == nil {
		return nil, 0
	}
	used := 1
	for _, seg := range segments[1:] {
		next := ns.child(current, seg)
		if next == nil {
			break
		}
		current = next
		used++
	}
	return current, used
}

// SearchByPrefix returns tags whose short form starts with text, case-insensitively.
func (v *Vocabulary) SearchByPrefix(text string) []*TagEntry {
	prefix, query := SplitPrefix(text)
	query = strings.ToLower(strings.TrimSpace(query))
	var out []*TagEntry
	for _, t := range v.searchScope(prefix) {
		if strings.HasPrefix(strings.ToLower(t.ShortForm), query) {
			out = append(out, t)
		}
	}
	return out
}

// SearchContaining returns the tags whose short form starts with text,
// followed by the tags that merely contain it. Within each group the order is
// the vocabulary's own, which is stable for a given Vocabulary.
func (v *Vocabulary) SearchContaining(text string) []*TagEntry {
	prefix, query := SplitPrefix(text)
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil
	}

	var starts, contains []*TagEntry
	for _, t := range v.searchScope(prefix) {
		short := strings.ToLower(t.ShortForm)
		switch {
		case strings.HasPrefix(short, query):
			starts = append(starts, t)
		case strings.Contains(short, query):
			contains = append(contains, t)
		}
	}
	return append(starts, contains...)
}

// FindExtensibleParents ranks tags that allow extension by how many words of
// term appear in their short form (weight 3) and description (weight 1).
func (v *Vocabulary) FindExtensibleParents(term string) []*TagEntry {
	prefix, query := SplitPrefix(term)
	words := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return r == ' ' || r == '-' || r == '_' || r == '/'
	})
	if len(words) == 0 {
		return nil
	}

	type scored struct {
		tag   *TagEntry
		score int
	}
	var hits []scored
	for _, t := range v.searchScope(prefix) {
		if !t.Attributes.ExtensionAllowed {
			continue
		}
		name := strings.ToLower(t.ShortForm)
		desc := strings.ToLower(t.Description)
		score := 0
		for _, w := range words {
			if strings.Contains(name, w) {
				score += 3
			}
			if strings.Contains(desc, w) {
				score++
			}
		}
		if score > 0 {
			hits = append(hits, scored{tag: t, score: score})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].score > hits[j].score
	})
	if len(hits) > MaxExtensibleParents {
		hits = hits[:MaxExtensibleParents]
	}
	out := make([]*TagEntry, len(hits))
	for i, h := range hits {
		out[i] = h.tag
	}
	return out
}

func (v *Vocabulary) searchScope(prefix string) []*TagEntry {
	ns := v.Namespace(prefix)
	if ns == nil {
		return nil
	}
	return ns.Tags()
}
