package completion

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hed-standard/hed-lsp/pkg/scan"
	"github.com/hed-standard/hed-lsp/pkg/schema"
	"github.com/hed-standard/hed-lsp/pkg/semantic"
)

// Tier orders candidates from different sources.
type Tier int

const (
	TierDirect Tier = iota
	TierExtension
	TierSemantic
)

// CandidateKind classifies a candidate for presentation.
type CandidateKind string

const (
	KindTag        CandidateKind = "tag"
	KindDefinition CandidateKind = "definition"
	KindValue      CandidateKind = "value"
	KindExtension  CandidateKind = "extension"
	KindNoMatch    CandidateKind = "none"
)

// Candidate is one completion suggestion.
type Candidate struct {
	Label         string        `json:"label"`
	InsertText    string        `json:"insertText"`
	Kind          CandidateKind `json:"kind"`
	Detail        string        `json:"detail,omitempty"`
	Documentation string        `json:"documentation,omitempty"`
	// Snippet marks InsertText as containing ${n:...} tab stops.
	Snippet  bool    `json:"snippet,omitempty"`
	Tier     Tier    `json:"tier"`
	Score    float64 `json:"score,omitempty"`
	SortText string  `json:"sortText"`
	// ReplaceStart and ReplaceEnd are byte offsets in the HED string.
	ReplaceStart int `json:"replaceStart"`
	ReplaceEnd   int `json:"replaceEnd"`
}

// Searcher ranks tags for free text.
type Searcher interface {
	Search(ctx context.Context, query string) ([]semantic.Match, error)
}

// Options tunes candidate generation.
type Options struct {
	// SemanticFloor drops semantic matches below this similarity.
	SemanticFloor float64
	// FewDirect is the direct match count below which extension and
	// semantic suggestions are added.
	FewDirect int
}

// DefaultOptions returns the defaults used by the language server.
func DefaultOptions() Options {
	return Options{SemanticFloor: 0.4, FewDirect: 3}
}

// Request is one completion request.
type Request struct {
	Vocabulary *schema.Vocabulary
	// Content is the HED string and Offset the cursor within it.
	Content string
	Offset  int
	// Definitions are the document's definitions, offered after Def/.
	Definitions []scan.Definition
}

// Engine produces completion candidates. It keeps no per-request state.
type Engine struct {
	searcher Searcher
	opts     Options
}

// NewEngine creates an engine. searcher may be nil to disable semantic
// suggestions.
func NewEngine(searcher Searcher, opts Options) *Engine {
	return &Engine{searcher: searcher, opts: opts}
}

// Complete returns the candidates for the cursor in req.
func (e *Engine) Complete(ctx context.Context, req Request) []Candidate {
	if req.Vocabulary == nil {
		return nil
	}
	c := Analyze(req.Content, req.Offset)

	var out []Candidate
	switch c.Kind {
	case KindTopLevel:
		out = e.topLevel(req.Vocabulary, c)
	case KindChild:
		out = e.children(req, c)
	case KindPartial:
		out = e.partial(ctx, req.Vocabulary, c)
	default:
		return nil
	}

	for i := range out {
		out[i].ReplaceStart = c.ReplaceStart
		out[i].ReplaceEnd = c.ReplaceEnd
		out[i].SortText = fmt.Sprintf("%d_%04d", out[i].Tier, i)
	}
	return out
}

func (e *Engine) topLevel(vocab *schema.Vocabulary, c Context) []Candidate {
	var out []Candidate
	for _, ns := range vocab.Namespaces() {
		if c.Prefix != "" && ns.Prefix != c.Prefix {
			continue
		}
		for _, t := range vocab.TopLevelTags(ns.Prefix) {
			out = append(out, tagCandidate(t, t.QualifiedName(), TierDirect))
		}
	}
	return out
}

func (e *Engine) children(req Request, c Context) []Candidate {
	if scan.IsReferenceMarker(c.Parent) {
		return definitionCandidates(req.Definitions, c.Partial)
	}
	if i := strings.Index(c.Parent, "/"); i >= 0 && scan.IsReferenceMarker(c.Parent[:i]) {
		// Def/Name/ expects a user value.
		return nil
	}

	parent := c.Parent
	if c.Prefix != "" {
		parent = c.Prefix + ":" + parent
	}

	partial := strings.ToLower(c.Partial)
	var out []Candidate
	for _, t := range req.Vocabulary.ChildTags(parent) {
		if t.IsValueNode() {
			out = append(out, valueCandidate(t))
			continue
		}
		if strings.HasPrefix(strings.ToLower(t.ShortForm), partial) {
			out = append(out, tagCandidate(t, t.ShortForm, TierDirect))
		}
	}
	return out
}

func (e *Engine) partial(ctx context.Context, vocab *schema.Vocabulary, c Context) []Candidate {
	query := c.Partial
	if c.Prefix != "" {
		query = c.Prefix + ":" + query
	}

	var out []Candidate
	seen := make(map[string]bool)
	add := func(cand Candidate) {
		key := strings.ToLower(cand.InsertText)
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, cand)
	}

	for _, t := range vocab.SearchContaining(query) {
		add(tagCandidate(t, t.QualifiedName(), TierDirect))
	}

	if len(out) < e.opts.FewDirect {
		for _, parent := range vocab.FindExtensibleParents(query) {
			add(extensionCandidate(parent, c.Partial))
		}
		for _, cand := range e.semanticCandidates(ctx, vocab, c) {
			add(cand)
		}
	}

	if len(out) == 0 {
		return []Candidate{{
			Label: fmt.Sprintf("No matching tags for %q", c.Partial),
			Kind:  KindNoMatch,
			Tier:  TierSemantic,
		}}
	}
	return out
}

func (e *Engine) semanticCandidates(ctx context.Context, vocab *schema.Vocabulary, c Context) []Candidate {
	if e.searcher == nil {
		return nil
	}
	matches, err := e.searcher.Search(ctx, c.Partial)
	if err != nil {
		slog.Debug("semantic completion skipped", "query", c.Partial, "error", err)
		return nil
	}

	var out []Candidate
	for _, m := range matches {
		if m.Similarity < e.opts.SemanticFloor {
			continue
		}
		if c.Prefix != "" && m.Prefix != c.Prefix {
			continue
		}
		t := vocab.FindTag(m.Name())
		if t == nil {
			continue
		}
		cand := tagCandidate(t, t.QualifiedName(), TierSemantic)
		cand.Score = m.Similarity
		cand.Detail = fmt.Sprintf("%s (similar to %q, %.2f)", t.LongForm, c.Partial, m.Similarity)
		out = append(out, cand)
	}
	return out
}

func tagCandidate(t *schema.TagEntry, insert string, tier Tier) Candidate {
	return Candidate{
		Label:         insert,
		InsertText:    insert,
		Kind:          KindTag,
		Detail:        t.LongForm,
		Documentation: t.Description,
		Tier:          tier,
		Score:         1,
	}
}

func valueCandidate(t *schema.TagEntry) Candidate {
	detail := "value"
	if len(t.Attributes.UnitClass) > 0 {
		detail = "value in " + strings.Join(t.Attributes.UnitClass, ", ")
		if t.Attributes.DefaultUnits != "" {
			detail += " (default " + t.Attributes.DefaultUnits + ")"
		}
	}
	return Candidate{
		Label:         schema.ValueNode,
		InsertText:    "${1:value}",
		Kind:          KindValue,
		Detail:        detail,
		Documentation: t.Description,
		Snippet:       true,
		Tier:          TierDirect,
	}
}

func extensionCandidate(parent *schema.TagEntry, term string) Candidate {
	insert := parent.QualifiedName() + "/" + term
	return Candidate{
		Label:         insert,
		InsertText:    insert,
		Kind:          KindExtension,
		Detail:        "extends " + parent.LongForm,
		Documentation: parent.Description,
		Tier:          TierExtension,
	}
}

func definitionCandidates(defs []scan.Definition, partial string) []Candidate {
	partial = strings.ToLower(partial)
	var out []Candidate
	for _, d := range defs {
		if !strings.HasPrefix(strings.ToLower(d.Name), partial) {
			continue
		}
		cand := Candidate{
			Label:         d.Name,
			InsertText:    d.Name,
			Kind:          KindDefinition,
			Detail:        "definition in " + d.Region.Path,
			Documentation: d.Group,
			Tier:          TierDirect,
		}
		if d.TakesValue {
			cand.InsertText = d.Name + "/${1:value}"
			cand.Snippet = true
		}
		out = append(out, cand)
	}
	return out
}
