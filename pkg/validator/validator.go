// Package validator checks composed HED strings against a vocabulary.
package validator

import (
	"context"

	"github.com/hed-standard/hed-lsp/pkg/schema"
)

// Severity of an issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Bounds is a half-open byte span within the validated string.
type Bounds struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Issue is one problem found in a HED string. At most one of Bounds, Char and
// Tag is needed to locate it; validators fill whichever they know.
type Issue struct {
	// Code is the public HED error code, e.g. TAG_INVALID. It may be empty
	// when the validator only knows its internal code.
	Code         string   `json:"code,omitempty"`
	InternalCode string   `json:"internalCode"`
	Severity     Severity `json:"severity"`
	Message      string   `json:"message"`
	Bounds       *Bounds  `json:"bounds,omitempty"`
	Char         *int     `json:"char,omitempty"`
	Tag          string   `json:"tag,omitempty"`
}

// Flags tune a validation run.
type Flags struct {
	// CheckForWarnings enables warning-level issues such as extended tags.
	CheckForWarnings bool
}

// Result splits issues into syntax problems (structure of the string) and
// semantic problems (meaning against the vocabulary).
type Result struct {
	Syntax   []Issue
	Semantic []Issue
}

// All returns syntax issues followed by semantic issues.
func (r Result) All() []Issue {
	out := make([]Issue, 0, len(r.Syntax)+len(r.Semantic))
	out = append(out, r.Syntax...)
	return append(out, r.Semantic...)
}

// Validator validates a cleaned HED string (placeholders already removed).
type Validator interface {
	Validate(ctx context.Context, hed string, vocab *schema.Vocabulary, flags Flags) (Result, error)
}

// Func adapts a function to Validator.
type Func func(ctx context.Context, hed string, vocab *schema.Vocabulary, flags Flags) (Result, error)

// Validate calls f.
func (f Func) Validate(ctx context.Context, hed string, vocab *schema.Vocabulary, flags Flags) (Result, error) {
	return f(ctx, hed, vocab, flags)
}

func charAt(i int) *int {
	return &i
}
