package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hed-standard/hed-lsp/pkg/config"
	"github.com/hed-standard/hed-lsp/pkg/diagnostics"
	"github.com/hed-standard/hed-lsp/pkg/region"
)

func TestBuildSemantic_MissingStoreStartsEmpty(t *testing.T) {
	c := config.Defaults()
	c.Embedding.StorePath = filepath.Join(t.TempDir(), "missing.json")

	engine, err := buildSemantic(c)
	require.NoError(t, err)
	defer engine.Close()

	tags, _ := engine.Store().Len()
	assert.Zero(t, tags)
	assert.False(t, engine.Enabled())
	assert.NotEmpty(t, engine.Lookup("marmoset"))
}

func TestBuildSemantic_KeywordFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keywords.yaml")
	require.NoError(t, os.WriteFile(path, []byte("keywords:\n  - keyword: saccade\n    targets: [Move]\n"), 0o644))

	c := config.Defaults()
	c.Embedding.KeywordsPath = path
	c.Embedding.CachePath = filepath.Join(t.TempDir(), "cache")

	engine, err := buildSemantic(c)
	require.NoError(t, err)
	defer engine.Close()

	matches := engine.Lookup("saccade")
	require.Len(t, matches, 1)
	assert.Equal(t, "Move", matches[0].Tag)
	assert.NotEmpty(t, engine.Lookup("marmoset"), "built-in keywords kept")
}

func TestBuildSemantic_CorruptStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o644))

	c := config.Defaults()
	c.Embedding.StorePath = path
	_, err := buildSemantic(c)
	assert.ErrorContains(t, err, "parse embedding store")
}

func TestPrintDiagnostics(t *testing.T) {
	var buf bytes.Buffer
	printDiagnostics(&buf, "events.tsv", nil)
	printDiagnostics(&buf, "task.json", []diagnostics.Diagnostic{{
		Range:    region.Range{Start: region.Position{Line: 2, Character: 4}},
		Severity: diagnostics.SeverityError,
		Code:     "TAG_INVALID",
		Message:  "Invalid tag",
	}})
	assert.Equal(t, "events.tsv: ok\ntask.json:3:5: error TAG_INVALID: Invalid tag\n", buf.String())
}
