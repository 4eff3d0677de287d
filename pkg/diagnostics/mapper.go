// Package diagnostics runs validation over the HED regions of a document and
// maps the reported issues to document ranges.
package diagnostics

import (
	"context"
	"fmt"
	"log/slog"

	apperrors "github.com/hed-standard/hed-lsp/pkg/common/errors"
	"github.com/hed-standard/hed-lsp/pkg/region"
	"github.com/hed-standard/hed-lsp/pkg/scan"
	"github.com/hed-standard/hed-lsp/pkg/schema"
	"github.com/hed-standard/hed-lsp/pkg/validator"
)

// Source is reported on every diagnostic.
const Source = "hed"

// Severity of a diagnostic.
type Severity string

const (
	SeverityError       Severity = "error"
	SeverityWarning     Severity = "warning"
	SeverityInformation Severity = "information"
	SeverityHint        Severity = "hint"
)

// Diagnostic is an issue positioned in a document.
type Diagnostic struct {
	Range    region.Range `json:"range"`
	Severity Severity     `json:"severity"`
	Code     string       `json:"code"`
	Message  string       `json:"message"`
	Source   string       `json:"source"`
	// Path is the structural location of the region, e.g. "event.HED".
	Path string `json:"path,omitempty"`
}

// Mapper validates regions and positions their issues.
type Mapper struct {
	validator validator.Validator
	flags     validator.Flags
}

// NewMapper creates a mapper around v.
func NewMapper(v validator.Validator, flags validator.Flags) *Mapper {
	return &Mapper{validator: v, flags: flags}
}

// Document validates every region and checks definition references.
func (m *Mapper) Document(ctx context.Context, regions []region.Region, vocab *schema.Vocabulary, pm region.PositionMapper) []Diagnostic {
	var out []Diagnostic
	for _, r := range regions {
		if ctx.Err() != nil {
			return out
		}
		out = append(out, m.Region(ctx, r, vocab, pm)...)
	}
	defs := scan.ExtractDefinitions(regions)
	return append(out, CheckDefinitions(regions, defs, pm)...)
}

// Region validates one region. Empty and placeholder-only strings are skipped.
func (m *Mapper) Region(ctx context.Context, r region.Region, vocab *schema.Vocabulary, pm region.PositionMapper) []Diagnostic {
	cleaned, offsets := scan.StripPlaceholders(r.Content)
	if cleaned == "" {
		return nil
	}

	res, err := m.validate(ctx, cleaned, vocab)
	if err != nil {
		slog.Warn("validator failed", "path", r.Path, "error", err)
		return []Diagnostic{{
			Range:    r.Range,
			Severity: SeverityError,
			Code:     CodeValidationInternal,
			Message:  fmt.Sprintf("The validator failed on this string: %v", err),
			Source:   Source,
			Path:     r.Path,
		}}
	}

	issues := res.All()
	out := make([]Diagnostic, 0, len(issues))
	for _, is := range issues {
		d := Diagnostic{
			Severity: severity(is.Severity),
			Code:     PublicCode(is),
			Message:  is.Message,
			Source:   Source,
			Path:     r.Path,
		}
		start, end, err := locate(r.Content, cleaned, offsets, is)
		if err != nil {
			slog.Debug("issue falls back to the region range", "code", d.Code, "path", r.Path, "error", err)
			d.Range = r.Range
		} else {
			d.Range = r.Span(pm, start, end)
		}
		out = append(out, d)
	}
	return out
}

// validate calls the validator, turning a panic into an error.
func (m *Mapper) validate(ctx context.Context, hed string, vocab *schema.Vocabulary) (res validator.Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: panic: %v", apperrors.ErrValidationInternal, p)
		}
	}()
	res, err = m.validator.Validate(ctx, hed, vocab, m.flags)
	if err != nil {
		return res, fmt.Errorf("%w: %w", apperrors.ErrValidationInternal, err)
	}
	return res, nil
}

// locate finds the span of an issue in the original content. Bounds and
// char indexes refer to the cleaned string and are mapped back; tag names
// are searched in the original. An issue none of these pin down yields
// ErrPositionResolution.
func locate(original, cleaned string, offsets scan.OffsetMap, is validator.Issue) (int, int, error) {
	if b := is.Bounds; b != nil && b.Start >= 0 && b.Start < b.End && b.End <= len(cleaned) {
		return offsets.Original(b.Start), offsets.Original(b.End-1) + 1, nil
	}
	if c := is.Char; c != nil && *c >= 0 && *c < len(cleaned) {
		start := offsets.Original(*c)
		return start, start + 1, nil
	}
	if is.Tag != "" {
		if start, end, ok := scan.FindTag(original, is.Tag); ok {
			return start, end, nil
		}
		return 0, 0, fmt.Errorf("%w: tag %q not in %q", apperrors.ErrPositionResolution, is.Tag, original)
	}
	return 0, 0, fmt.Errorf("%w: %s issue has no location", apperrors.ErrPositionResolution, is.InternalCode)
}

func severity(s validator.Severity) Severity {
	if s == validator.SeverityWarning {
		return SeverityWarning
	}
	return SeverityError
}

// LoadFailure is the single document-level diagnostic reported when the
// vocabulary for a document cannot be loaded.
func LoadFailure(version string, err error) Diagnostic {
	return Diagnostic{
		Severity: SeverityError,
		Code:     CodeSchemaLoad,
		Message:  fmt.Sprintf("HED schema %q could not be loaded: %v", version, err),
		Source:   Source,
	}
}
