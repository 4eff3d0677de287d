package diagnostics

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/hed-standard/hed-lsp/pkg/common/errors"
	"github.com/hed-standard/hed-lsp/pkg/region"
	"github.com/hed-standard/hed-lsp/pkg/scan"
	"github.com/hed-standard/hed-lsp/pkg/schema"
	"github.com/hed-standard/hed-lsp/pkg/schema/schematest"
	"github.com/hed-standard/hed-lsp/pkg/validator"
)

func jsonDoc(t *testing.T, doc string) ([]region.Region, *region.LineIndex) {
	t.Helper()
	li := region.NewLineIndex(doc)
	return region.ExtractJSON(doc, li), li
}

func builtinMapper() *Mapper {
	return NewMapper(validator.NewBuiltin(), validator.Flags{})
}

func TestDocument_PlaceholderOnlyValid(t *testing.T) {
	regions, li := jsonDoc(t, `{"event":{"HED":"Sensory-event, {col}"}}`)
	require.Len(t, regions, 1)
	assert.Equal(t, "event.HED", regions[0].Path)

	diags := builtinMapper().Document(context.Background(), regions, schematest.Vocabulary(), li)
	assert.Empty(t, diags)
}

func TestDocument_DefinitionWithValue(t *testing.T) {
	doc := `{"def":{"HED":"(Definition/Go/#, (Visual-presentation))"},"go":{"HED":"Def/Go/1.5"}}`
	regions, li := jsonDoc(t, doc)
	require.Len(t, regions, 2)

	diags := builtinMapper().Document(context.Background(), regions, schematest.Vocabulary(), li)
	assert.Empty(t, diags)

	def, ok := scan.Lookup(scan.ExtractDefinitions(regions), "go")
	require.True(t, ok)
	assert.Equal(t, "(Definition/Go/#, (Visual-presentation))", def.Group)
}

func TestRegion_Positions(t *testing.T) {
	doc := `{"a":{"HED":"{col}, Sensory-evnt, Sensory-event/Flash"}}`
	regions, li := jsonDoc(t, doc)
	require.Len(t, regions, 1)

	diags := builtinMapper().Region(context.Background(), regions[0], schematest.Vocabulary(), li)
	require.Len(t, diags, 2)

	invalid := diags[0]
	assert.Equal(t, "TAG_INVALID", invalid.Code)
	assert.Equal(t, SeverityError, invalid.Severity)
	assert.Equal(t, Source, invalid.Source)
	assert.Equal(t, "a.HED", invalid.Path)
	start := strings.Index(doc, "Sensory-evnt")
	assert.Equal(t, region.Range{
		Start: region.Position{Line: 0, Character: start},
		End:   region.Position{Line: 0, Character: start + len("Sensory-evnt")},
	}, invalid.Range)

	ext := diags[1]
	assert.Equal(t, "TAG_EXTENSION_INVALID", ext.Code)
	start = strings.Index(doc, "Flash")
	assert.Equal(t, region.Range{
		Start: region.Position{Line: 0, Character: start},
		End:   region.Position{Line: 0, Character: start + len("Flash")},
	}, ext.Range)
}

func TestRegion_CharIndex(t *testing.T) {
	doc := "{\n  \"a\": {\"HED\": \"Event,, Item\"}\n}"
	regions, li := jsonDoc(t, doc)
	require.Len(t, regions, 1)

	diags := builtinMapper().Region(context.Background(), regions[0], schematest.Vocabulary(), li)
	require.Len(t, diags, 1)
	assert.Equal(t, "TAG_EMPTY", diags[0].Code)
	col := strings.Index(doc, ",,") + 1 - strings.Index(doc, "  \"a\"")
	assert.Equal(t, region.Position{Line: 1, Character: col}, diags[0].Range.Start)
	assert.Equal(t, region.Position{Line: 1, Character: col + 1}, diags[0].Range.End)
}

func TestRegion_SkipsPlaceholderOnly(t *testing.T) {
	called := false
	v := validator.Func(func(context.Context, string, *schema.Vocabulary, validator.Flags) (validator.Result, error) {
		called = true
		return validator.Result{}, nil
	})
	r := region.Region{Content: "{col}", Path: "row 1"}

	assert.Nil(t, NewMapper(v, validator.Flags{}).Region(context.Background(), r, schematest.Vocabulary(), region.NewLineIndex("{col}")))
	assert.False(t, called)
}

func TestRegion_ValidatorPanic(t *testing.T) {
	v := validator.Func(func(context.Context, string, *schema.Vocabulary, validator.Flags) (validator.Result, error) {
		panic("index out of range")
	})
	doc := "HED\nEvent\n"
	li := region.NewLineIndex(doc)
	regions := region.ExtractTabular(doc, '\t', li)
	require.Len(t, regions, 1)

	diags := NewMapper(v, validator.Flags{}).Region(context.Background(), regions[0], schematest.Vocabulary(), li)
	require.Len(t, diags, 1)
	assert.Equal(t, CodeValidationInternal, diags[0].Code)
	assert.Equal(t, regions[0].Range, diags[0].Range)
	assert.Contains(t, diags[0].Message, "index out of range")
}

func TestRegion_CodesAndFallbackRange(t *testing.T) {
	outOfRange := 99
	v := validator.Func(func(context.Context, string, *schema.Vocabulary, validator.Flags) (validator.Result, error) {
		return validator.Result{
			Syntax: []validator.Issue{
				{Code: "HED_ERROR", InternalCode: "commaMissing", Severity: validator.SeverityError, Char: &outOfRange},
			},
			Semantic: []validator.Issue{
				{Code: "TAG_INVALID", InternalCode: "whatever", Severity: validator.SeverityError, Tag: "Nope"},
				{InternalCode: "customCheck", Severity: validator.SeverityWarning, Tag: "Event"},
			},
		}, nil
	})
	doc := "HED\n(Event, Item)\n"
	li := region.NewLineIndex(doc)
	regions := region.ExtractTabular(doc, '\t', li)
	require.Len(t, regions, 1)

	diags := NewMapper(v, validator.Flags{}).Region(context.Background(), regions[0], schematest.Vocabulary(), li)
	require.Len(t, diags, 3)

	assert.Equal(t, "COMMA_MISSING", diags[0].Code)
	assert.Equal(t, regions[0].Range, diags[0].Range)

	assert.Equal(t, "TAG_INVALID", diags[1].Code)
	assert.Equal(t, regions[0].Range, diags[1].Range)

	assert.Equal(t, "customCheck", diags[2].Code)
	assert.Equal(t, SeverityWarning, diags[2].Severity)
	assert.Equal(t, region.Position{Line: 1, Character: 1}, diags[2].Range.Start)
}

func TestLocate(t *testing.T) {
	original := "Tag-a, {col}, Tag-b"
	cleaned, offsets := scan.StripPlaceholders(original)
	require.Equal(t, "Tag-a, Tag-b", cleaned)

	start, end, err := locate(original, cleaned, offsets, validator.Issue{Bounds: &validator.Bounds{Start: 7, End: 12}})
	require.NoError(t, err)
	assert.Equal(t, "Tag-b", original[start:end])

	start, end, err = locate(original, cleaned, offsets, validator.Issue{Tag: "tag-A"})
	require.NoError(t, err)
	assert.Equal(t, "Tag-a", original[start:end])

	_, _, err = locate(original, cleaned, offsets, validator.Issue{Tag: "Tag"})
	assert.ErrorIs(t, err, apperrors.ErrPositionResolution)

	_, _, err = locate(original, cleaned, offsets, validator.Issue{InternalCode: "x", Char: intPtr(99)})
	assert.ErrorIs(t, err, apperrors.ErrPositionResolution)
}

func intPtr(i int) *int { return &i }

func TestCheckDefinitions(t *testing.T) {
	doc := "HED\n" +
		"(Definition/Go/#, (Event))\n" +
		"(Definition/Fixation, (Item))\n" +
		"Def/Go, Def/Fixation/3\n" +
		"Def-expand/Fixatoin, Def/Go/2\n"
	li := region.NewLineIndex(doc)
	regions := region.ExtractTabular(doc, '\t', li)
	require.Len(t, regions, 4)

	defs := scan.ExtractDefinitions(regions)
	diags := CheckDefinitions(regions, defs, li)
	require.Len(t, diags, 3)

	assert.Equal(t, CodeDefValueMissing, diags[0].Code)
	assert.Equal(t, SeverityWarning, diags[0].Severity)
	assert.Equal(t, region.Range{Start: region.Position{Line: 3, Character: 4}, End: region.Position{Line: 3, Character: 6}}, diags[0].Range)

	assert.Equal(t, CodeDefValueExtra, diags[1].Code)

	assert.Equal(t, CodeDefUnmatched, diags[2].Code)
	assert.Equal(t, SeverityInformation, diags[2].Severity)
	assert.Contains(t, diags[2].Message, `No definition named "Fixatoin"`)
	assert.Contains(t, diags[2].Message, "Did you mean Fixation?")
}

func TestPublicCode(t *testing.T) {
	assert.Equal(t, "TAG_INVALID", PublicCode(validator.Issue{InternalCode: validator.CodeInvalidTag}))
	assert.Equal(t, "TAG_EMPTY", PublicCode(validator.Issue{Code: "GENERIC_ERROR", InternalCode: validator.CodeEmptyTag}))
	assert.Equal(t, "UNITS_INVALID", PublicCode(validator.Issue{Code: "UNITS_INVALID", InternalCode: validator.CodeInvalidValue}))
	assert.Equal(t, "somethingNew", PublicCode(validator.Issue{InternalCode: "somethingNew"}))
}
