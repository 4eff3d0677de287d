package schema

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/antchfx/xmlquery"
)

// XMLBuilder loads vocabularies from HED XML schema files in Dir. Standard
// schemas are read from HED<version>.xml, library schemas from
// HED_<library>_<version>.xml.
type XMLBuilder struct {
	Dir string
}

// NewXMLBuilder creates a builder reading schema files from dir.
func NewXMLBuilder(dir string) *XMLBuilder {
	return &XMLBuilder{Dir: dir}
}

// FileName returns the schema file name for a version entry.
func FileName(e VersionEntry) string {
	if e.Library == "" {
		return "HED" + e.Version + ".xml"
	}
	return "HED_" + e.Library + "_" + e.Version + ".xml"
}

// Build reads every schema the spec names and merges them per prefix.
func (b *XMLBuilder) Build(ctx context.Context, spec VersionSpec) (*Vocabulary, error) {
	if spec.IsZero() {
		return nil, fmt.Errorf("%w: empty version spec", ErrMalformedSchema)
	}

	merged := make(map[string]*xmlNamespace)
	var order []string
	for _, entry := range spec.Entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path := filepath.Join(b.Dir, FileName(entry))
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", entry, err)
		}

		ns, ok := merged[entry.Prefix]
		if !ok {
			ns = newXMLNamespace(entry.Prefix)
			merged[entry.Prefix] = ns
			order = append(order, entry.Prefix)
		}
		if err := ns.add(data, entry.Library); err != nil {
			return nil, fmt.Errorf("parse schema %s: %w", entry, err)
		}
		slog.Debug("schema file loaded", "entry", entry.String(), "path", path)
	}

	sources := make([]NamespaceSource, 0, len(order))
	for _, prefix := range order {
		sources = append(sources, merged[prefix].source())
	}
	return NewVocabulary(spec, sources)
}

type xmlNamespace struct {
	prefix  string
	members []string
	tags    []TagSource
	byLong  map[string]*RawTag
}

func newXMLNamespace(prefix string) *xmlNamespace {
	return &xmlNamespace{prefix: prefix, byLong: make(map[string]*RawTag)}
}

func (ns *xmlNamespace) source() NamespaceSource {
	return NamespaceSource{Prefix: ns.prefix, Members: ns.members, Tags: ns.tags}
}

func (ns *xmlNamespace) addMember(library string) {
	for _, m := range ns.members {
		if m == library {
			return
		}
	}
	ns.members = append(ns.members, library)
}

func (ns *xmlNamespace) add(data []byte, library string) error {
	doc, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedSchema, err)
	}
	root, err := xmlquery.Query(doc, "/HED")
	if err != nil || root == nil {
		return fmt.Errorf("%w: missing HED root element", ErrMalformedSchema)
	}
	schema, err := xmlquery.Query(root, "schema")
	if err != nil || schema == nil {
		return fmt.Errorf("%w: missing schema section", ErrMalformedSchema)
	}

	fileLibrary := strings.ToLower(root.SelectAttr("library"))
	if fileLibrary == "" {
		fileLibrary = library
	}
	withStandard := root.SelectAttr("withStandard") != ""
	unmerged := strings.EqualFold(root.SelectAttr("unmerged"), "true")

	ns.addMember(fileLibrary)
	if fileLibrary != "" && withStandard && !unmerged && ns.prefix == "" {
		// A merged partnered schema without a prefix also serves the standard tags.
		ns.addMember("")
	}
	// Tags of unmerged or standalone library files carry no inLibrary marker.
	stampLibrary := fileLibrary != "" && (unmerged || !withStandard)

	for c := schema.FirstChild; c != nil; c = c.NextSibling {
		if isElement(c, "node") {
			if err := ns.walk(c, nil, stampLibrary, fileLibrary); err != nil {
				return err
			}
		}
	}
	return nil
}

func (ns *xmlNamespace) walk(n *xmlquery.Node, parent *RawTag, stamp bool, library string) error {
	name := strings.TrimSpace(childText(n, "name"))
	if name == "" {
		return fmt.Errorf("%w: node without a name", ErrMalformedSchema)
	}
	long := name
	if parent != nil {
		long = ns.longName(parent) + "/" + name
	}
	key := strings.ToLower(long)

	tag, seen := ns.byLong[key]
	if !seen {
		tag = NewRawTag(name, strings.TrimSpace(childText(n, "description")), parent)
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if !isElement(c, "attribute") {
				continue
			}
			attrName := strings.TrimSpace(childText(c, "name"))
			if attrName == "" {
				continue
			}
			var values []string
			for v := c.FirstChild; v != nil; v = v.NextSibling {
				if isElement(v, "value") {
					values = append(values, strings.TrimSpace(v.InnerText()))
				}
			}
			tag.With(attrName, values...)
		}
		if stamp {
			tag.With(AttrInLibrary, library)
		}
		ns.byLong[key] = tag
		ns.tags = append(ns.tags, tag)
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if isElement(c, "node") {
			if err := ns.walk(c, tag, stamp, library); err != nil {
				return err
			}
		}
	}
	return nil
}

func (ns *xmlNamespace) longName(t *RawTag) string {
	parts := []string{t.TagName}
	for p := t.ParentTag; p != nil; p = p.ParentTag {
		parts = append([]string{p.TagName}, parts...)
	}
	return strings.Join(parts, "/")
}

func isElement(n *xmlquery.Node, name string) bool {
	return n.Type == xmlquery.ElementNode && n.Data == name
}

func childText(n *xmlquery.Node, name string) string {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if isElement(c, name) {
			return c.InnerText()
		}
	}
	return ""
}
