package workspace

import (
	"context"
	"fmt"
	"strings"

	apperrors "github.com/hed-standard/hed-lsp/pkg/common/errors"
	"github.com/hed-standard/hed-lsp/pkg/diagnostics"
	"github.com/hed-standard/hed-lsp/pkg/region"
	"github.com/hed-standard/hed-lsp/pkg/scan"
	"github.com/hed-standard/hed-lsp/pkg/schema"
)

// closestTagLimit caps the "did you mean" tags in hover text.
const closestTagLimit = 3

// Hover is markdown text about the token under the cursor.
type Hover struct {
	Contents string       `json:"contents"`
	Range    region.Range `json:"range"`
}

// Location is a range in a document.
type Location struct {
	URI   string       `json:"uri"`
	Range region.Range `json:"range"`
}

// Hover describes the tag or definition reference at pos. It returns nil
// when the cursor is outside any HED string or on a placeholder.
func (s *Session) Hover(ctx context.Context, uri string, pos region.Position) (*Hover, error) {
	snap, err := s.document(uri)
	if err != nil {
		return nil, err
	}
	r, offset, ok := snap.regionAt(pos)
	if !ok || scan.InsidePlaceholder(r.Content, offset) {
		return nil, nil
	}

	if ref, ok := scan.ReferenceAt(r.Content, offset); ok {
		return &Hover{
			Contents: definitionHover(ref, snap.defs),
			Range:    r.Span(snap.lines, ref.Start, ref.End),
		}, nil
	}

	tok, ok := region.TagTokenAt(r.Content, offset)
	if !ok {
		return nil, nil
	}
	vocab, err := s.vocabularyFor(ctx, snap.path)
	if err != nil {
		return nil, err
	}
	return &Hover{
		Contents: tagHover(vocab, tok.Text),
		Range:    r.Span(snap.lines, tok.Start, tok.End),
	}, nil
}

// Definition returns the location of the Definition group named by the
// Def or Def-expand reference at pos.
func (s *Session) Definition(ctx context.Context, uri string, pos region.Position) (*Location, error) {
	snap, err := s.document(uri)
	if err != nil {
		return nil, err
	}
	r, offset, ok := snap.regionAt(pos)
	if !ok {
		return nil, nil
	}
	ref, ok := scan.ReferenceAt(r.Content, offset)
	if !ok {
		return nil, nil
	}
	def, ok := scan.Lookup(snap.defs, ref.Name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrDefinitionMiss, ref.Name)
	}
	return &Location{URI: uri, Range: def.Region.Span(snap.lines, def.Start, def.End)}, nil
}

func definitionHover(ref scan.Reference, defs []scan.Definition) string {
	def, ok := scan.Lookup(defs, ref.Name)
	if !ok {
		return diagnostics.MissingDefinitionMessage(ref.Name, defs)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "**Definition/%s**", def.Name)
	if def.TakesValue {
		b.WriteString(" (takes a value)")
	}
	fmt.Fprintf(&b, "\n\n```\n%s\n```", def.Group)
	return b.String()
}

func tagHover(vocab *schema.Vocabulary, text string) string {
	entry, used := vocab.Resolve(text)
	if entry == nil {
		return unknownTagHover(vocab, text)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**%s**", entry.QualifiedName())
	if entry.Description != "" {
		fmt.Fprintf(&b, "\n\n%s", entry.Description)
	}
	long := entry.LongForm
	if entry.Prefix != "" {
		long = entry.Prefix + ":" + long
	}
	fmt.Fprintf(&b, "\n\nLong form: `%s`", long)

	_, rest := schema.SplitPrefix(strings.TrimSpace(text))
	segments := strings.Split(rest, "/")
	if used >= len(segments) {
		return b.String()
	}
	remainder := strings.Join(segments[used:], "/")
	ns := vocab.Namespace(entry.Prefix)
	if ns != nil {
		if vc := ns.ValueChild(entry); vc != nil {
			fmt.Fprintf(&b, "\n\nValue: `%s`", remainder)
			if units := vc.Attributes.UnitClass; len(units) > 0 {
				fmt.Fprintf(&b, " (%s)", strings.Join(units, ", "))
			}
			return b.String()
		}
	}
	fmt.Fprintf(&b, "\n\nExtension: `%s`", remainder)
	if !entry.Attributes.ExtensionAllowed {
		b.WriteString(" (this tag does not allow extension)")
	}
	return b.String()
}

func unknownTagHover(vocab *schema.Vocabulary, text string) string {
	msg := fmt.Sprintf("Unknown tag `%s`.", text)
	closest := vocab.ClosestTags(text, closestTagLimit)
	if len(closest) == 0 {
		return msg
	}
	names := make([]string, len(closest))
	for i, t := range closest {
		names[i] = t.QualifiedName()
	}
	return msg + " Did you mean " + strings.Join(names, ", ") + "?"
}
