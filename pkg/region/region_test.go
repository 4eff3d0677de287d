package region

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON_Scenario(t *testing.T) {
	text := `{"event":{"HED":"Sensory-event, {col}"}}`
	regions := ExtractJSON(text, NewLineIndex(text))

	require.Len(t, regions, 1)
	r := regions[0]
	assert.Equal(t, "event.HED", r.Path)
	assert.Equal(t, "Sensory-event, {col}", r.Content)
	assert.Equal(t, r.Content, text[r.ContentOffset:r.ContentOffset+len(r.Content)])
	// The range includes the quotes.
	assert.Equal(t, Position{Line: 0, Character: r.ContentOffset - 1}, r.Range.Start)
	assert.Equal(t, Position{Line: 0, Character: r.ContentOffset + len(r.Content) + 1}, r.Range.End)
}

func TestExtractJSON_ObjectOfStrings(t *testing.T) {
	text := "{\n  \"trial_type\": {\n    \"Description\": \"x\",\n    \"HED\": {\n      \"go\": \"Agent-action\",\n      \"stop\": \"Event\",\n      \"n\": 5\n    }\n  },\n  \"HED\": \"Item\"\n}"
	regions := ExtractJSON(text, NewLineIndex(text))

	require.Len(t, regions, 3)
	assert.Equal(t, "trial_type.HED.go", regions[0].Path)
	assert.Equal(t, "Agent-action", regions[0].Content)
	assert.Equal(t, Position{Line: 4, Character: 12}, regions[0].Range.Start)
	assert.Equal(t, "trial_type.HED.stop", regions[1].Path)
	assert.Equal(t, "HED", regions[2].Path)
	assert.Equal(t, "Item", regions[2].Content)

	for _, r := range regions {
		assert.Equal(t, r.Content, text[r.ContentOffset:r.ContentOffset+len(r.Content)])
	}
}

func TestExtractJSON_EscapedQuotesAndDuplicateKeys(t *testing.T) {
	text := `{"a":{"HED":"Label/x\"y"},"b":{"HED":"Label/x\"y"}}`
	regions := ExtractJSON(text, NewLineIndex(text))

	require.Len(t, regions, 2)
	assert.Equal(t, "a.HED", regions[0].Path)
	assert.Equal(t, "b.HED", regions[1].Path)
	assert.NotEqual(t, regions[0].ContentOffset, regions[1].ContentOffset)
	assert.Equal(t, `Label/x\"y`, regions[1].Content)
}

func TestExtractJSON_Invalid(t *testing.T) {
	for _, text := range []string{`{"event": {"HED": "x"`, `not json`, ``} {
		assert.Empty(t, ExtractJSON(text, NewLineIndex(text)), text)
	}
}

func TestExtractTabular(t *testing.T) {
	text := "onset\tduration\thed\n1.0\t0.5\tSensory-event\n2.0\t0.5\t\n3.0\t0.5\tn/a\r\n4.0\t0.5\tAgent-action, Item\n"
	regions := ExtractTabular(text, '\t', NewLineIndex(text))

	require.Len(t, regions, 2)
	assert.Equal(t, "Sensory-event", regions[0].Content)
	assert.Equal(t, "row 1", regions[0].Path)
	assert.Equal(t, Position{Line: 1, Character: 8}, regions[0].Range.Start)
	assert.Equal(t, "Agent-action, Item", regions[1].Content)
	assert.Equal(t, "row 4", regions[1].Path)
	assert.Equal(t, Position{Line: 4, Character: 8}, regions[1].Range.Start)

	for _, r := range regions {
		assert.Equal(t, r.Content, text[r.ContentOffset:r.ContentOffset+len(r.Content)])
	}
}

func TestExtractTabular_QuotedComma(t *testing.T) {
	text := "onset,HED,value\n1.0,\"Tag-a, Tag-b\",3\n"
	regions := ExtractTabular(text, ',', NewLineIndex(text))

	require.Len(t, regions, 1)
	r := regions[0]
	assert.Equal(t, "Tag-a, Tag-b", r.Content)
	assert.Equal(t, "Tag-a, Tag-b", text[r.ContentOffset:r.ContentOffset+len(r.Content)])
	assert.Equal(t, Position{Line: 1, Character: 4}, r.Range.Start)
	assert.Equal(t, Position{Line: 1, Character: 18}, r.Range.End)
}

func TestExtractTabular_DoubledQuote(t *testing.T) {
	fields := splitFields(`a,"say ""hi""",c`, ',')
	require.Len(t, fields, 3)
	assert.Equal(t, `say ""hi""`, fields[1].text)
	assert.True(t, fields[1].quoted)
	assert.Equal(t, "c", fields[2].text)

	text := "onset,HED\n1,\"Label/\"\"x\"\", Foo\"\n"
	lines := NewLineIndex(text)
	regions := ExtractTabular(text, ',', lines)
	require.Len(t, regions, 1)
	r := regions[0]
	assert.Equal(t, `Label/""x"", Foo`, r.Content)

	start := strings.Index(r.Content, "Foo")
	assert.Equal(t, "Foo", text[r.ContentOffset+start:r.ContentOffset+start+3])
	span := r.Span(lines, start, start+3)
	assert.Equal(t, Position{Line: 1, Character: 16}, span.Start)
	assert.Equal(t, Position{Line: 1, Character: 19}, span.End)
}

func TestExtractTabular_NoHEDColumn(t *testing.T) {
	text := "onset\tduration\n1\t2\n"
	assert.Empty(t, ExtractTabular(text, '\t', NewLineIndex(text)))
}

func TestExtract_Dispatch(t *testing.T) {
	assert.Equal(t, FormatJSON, FormatFromPath("task-x_events.JSON"))
	assert.Equal(t, FormatTSV, FormatFromPath("events.tsv"))
	assert.Equal(t, FormatCSV, FormatFromPath("events.csv"))
	assert.Equal(t, FormatUnknown, FormatFromPath("README.md"))

	text := "HED\nEvent\n"
	assert.Len(t, Extract(text, FormatTSV, NewLineIndex(text)), 1)
	assert.Nil(t, Extract(text, FormatUnknown, NewLineIndex(text)))
}

func TestRegionAt(t *testing.T) {
	regions := []Region{
		{Path: "a", Range: Range{Start: Position{0, 5}, End: Position{0, 10}}},
		{Path: "b", Range: Range{Start: Position{1, 0}, End: Position{2, 3}}},
	}

	r, ok := RegionAt(regions, Position{0, 5})
	require.True(t, ok)
	assert.Equal(t, "a", r.Path)

	r, ok = RegionAt(regions, Position{0, 10})
	require.True(t, ok)
	assert.Equal(t, "a", r.Path)

	r, ok = RegionAt(regions, Position{1, 40})
	require.True(t, ok)
	assert.Equal(t, "b", r.Path)

	_, ok = RegionAt(regions, Position{0, 11})
	assert.False(t, ok)
}

func TestTagTokenAt(t *testing.T) {
	content := "Sensory-event, (Item/Object , Red)"

	tok, ok := TagTokenAt(content, 3)
	require.True(t, ok)
	assert.Equal(t, Token{Text: "Sensory-event", Start: 0, End: 13}, tok)

	tok, ok = TagTokenAt(content, 20)
	require.True(t, ok)
	assert.Equal(t, "Item/Object", tok.Text)
	assert.Equal(t, 16, tok.Start)

	_, ok = TagTokenAt(content, 14)
	assert.False(t, ok, "between comma and paren")

	_, ok = TagTokenAt("", 0)
	assert.False(t, ok)
	_, ok = TagTokenAt(content, 99)
	assert.False(t, ok)
}

func TestLineIndex(t *testing.T) {
	text := "ab\r\nc😀d\né"
	li := NewLineIndex(text)

	assert.Equal(t, Position{0, 0}, li.PositionAt(0))
	assert.Equal(t, Position{1, 0}, li.PositionAt(4))
	// The emoji is two UTF-16 units wide.
	dOffset := 4 + 1 + 4
	assert.Equal(t, Position{1, 3}, li.PositionAt(dOffset))
	assert.Equal(t, dOffset, li.OffsetAt(Position{1, 3}))
	assert.Equal(t, Position{2, 1}, li.PositionAt(len(text)))

	// Past-the-end columns stop at the terminator.
	assert.Equal(t, 2, li.OffsetAt(Position{0, 50}))
	assert.Equal(t, len(text), li.OffsetAt(Position{9, 0}))
}

func TestRegion_SpanAndOffsetOf(t *testing.T) {
	text := `{"e":{"HED":"Event, Item"}}`
	li := NewLineIndex(text)
	r := ExtractJSON(text, li)[0]

	span := r.Span(li, 7, 11)
	assert.Equal(t, "Item", text[li.OffsetAt(span.Start):li.OffsetAt(span.End)])
	assert.Equal(t, 7, r.OffsetOf(li, span.Start))
	assert.Equal(t, 0, r.OffsetOf(li, Position{0, 0}))
}
