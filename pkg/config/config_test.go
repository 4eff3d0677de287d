package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hedlsp.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, _, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, Defaults(), *cfg)
	assert.False(t, cfg.EmbeddingEnabled())
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
schemaVersion: "8.3.0, sc:score_1.0.0"
maxNumberOfProblems: 20
validateOnChange: false
embedding:
  provider: ollama
  model: mxbai-embed-large
`)

	cfg, _, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "8.3.0, sc:score_1.0.0", cfg.SchemaVersion)
	assert.Equal(t, 20, cfg.MaxNumberOfProblems)
	assert.False(t, cfg.ValidateOnChange)
	assert.Equal(t, 300, cfg.DebounceMs, "unset keys keep their defaults")
	assert.Equal(t, "mxbai-embed-large", cfg.Embedding.Model)
	assert.True(t, cfg.EmbeddingEnabled())
	assert.Equal(t, "ollama", cfg.Embedding.Embedder().Provider)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "maxNumberOfProblems: 20\n")
	t.Setenv("HEDLSP__MAXNUMBEROFPROBLEMS", "7")
	t.Setenv("HEDLSP__EMBEDDING__APIKEY", "secret")
	t.Setenv("HEDLSP__ENABLESEMANTICSEARCH", "false")

	cfg, _, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.MaxNumberOfProblems)
	assert.Equal(t, "secret", cfg.Embedding.APIKey)
	assert.False(t, cfg.EnableSemanticSearch)
}

func TestLoad_FlagsOverrideEnv(t *testing.T) {
	t.Setenv("HEDLSP__SCHEMAVERSION", "8.2.0")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("schema-version", "", "")
	flags.String("addr", "", "")
	flags.String("log-level", "", "")
	require.NoError(t, flags.Parse([]string{"--schema-version", "8.4.0", "--addr", ":9999"}))

	cfg, _, err := Load("", flags)
	require.NoError(t, err)
	assert.Equal(t, "8.4.0", cfg.SchemaVersion)
	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, "info", cfg.LogLevel, "unset flags do not override")
}

func TestLoad_MissingFile(t *testing.T) {
	_, _, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	assert.ErrorContains(t, err, "config file not found")
}

func TestLoad_Invalid(t *testing.T) {
	path := writeConfig(t, `
maxNumberOfProblems: -1
logLevel: verbose
embedding:
  provider: word2vec
`)
	_, _, err := Load(path, nil)
	require.Error(t, err)

	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Len(t, verrs, 3)
	assert.Contains(t, err.Error(), "maxNumberOfProblems: must not be negative")
	assert.Contains(t, err.Error(), "embedding.provider")
}

func TestValidate_SchemaVersion(t *testing.T) {
	cfg := Defaults()
	cfg.SchemaVersion = "sc:"
	assert.Error(t, cfg.Validate())
}

func TestDumpYAML(t *testing.T) {
	_, loader, err := Load("", nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, loader.DumpYAML(&buf))
	out := buf.String()
	assert.Contains(t, out, "schemaVersion:")
	assert.Contains(t, out, "8.4.0")
	assert.Contains(t, out, "8080")
}

func TestSlogLevel(t *testing.T) {
	cfg := Defaults()
	cfg.LogLevel = "DEBUG"
	assert.Equal(t, "DEBUG", cfg.SlogLevel().String())
}
