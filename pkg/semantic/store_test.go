package semantic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/hed-standard/hed-lsp/pkg/common/errors"
)

func TestNormalize(t *testing.T) {
	vec := Normalize([]float32{3, 4})
	assert.InDelta(t, 0.6, vec[0], 1e-6)
	assert.InDelta(t, 0.8, vec[1], 1e-6)
	assert.InDelta(t, 1.0, Dot(vec, vec), 1e-6)

	assert.Equal(t, []float32{0, 0}, Normalize([]float32{0, 0}))
	assert.Zero(t, Dot([]float32{1}, []float32{1, 0}))
}

func TestLoadStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "embeddings.json")
	data := `{
		"model": "ollama:nomic-embed-text",
		"tags": [
			{"tag": "Animal", "vector": [3, 4]},
			{"tag": "Artifact", "prefix": "sc", "vector": [0, 2]},
			{"tag": "Empty", "vector": []}
		],
		"keywords": [{"keyword": " Marmoset ", "targets": ["Animal"], "vector": [1, 1]}]
	}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	store, err := LoadStore(path)
	require.NoError(t, err)
	assert.Equal(t, "ollama:nomic-embed-text", store.Model())

	tags, keywords := store.Len()
	assert.Equal(t, 2, tags, "entries without a vector are skipped")
	assert.Equal(t, 1, keywords)
	assert.True(t, store.HasTag("sc", "Artifact"))
	assert.False(t, store.HasTag("", "Artifact"))
	assert.True(t, store.HasKeyword("marmoset"))

	for _, tag := range store.Tags() {
		assert.InDelta(t, 1.0, Dot(tag.Vector, tag.Vector), 1e-6)
	}

	out := filepath.Join(t.TempDir(), "saved.json")
	require.NoError(t, store.Save(out))
	reloaded, err := LoadStore(out)
	require.NoError(t, err)
	assert.Equal(t, store.Model(), reloaded.Model())
	require.Len(t, reloaded.Tags(), 2)
	assert.Equal(t, "Artifact", reloaded.Tags()[1].TagID)
	assert.InDelta(t, 1.0, reloaded.Tags()[1].Vector[1], 1e-6)
}

func TestStore_CompressedRoundTrip(t *testing.T) {
	store := NewStore("genai:text-embedding-004")
	store.PutTag(TagEmbedding{TagID: "Animal", Vector: []float32{3, 4}})
	store.PutKeyword(KeywordEmbedding{Keyword: "marmoset", Targets: []string{"Animal"}, Vector: []float32{1, 0}})

	path := filepath.Join(t.TempDir(), "embeddings.json"+CompressedSuffix)
	require.NoError(t, store.Save(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.False(t, json.Valid(raw), "file is compressed")

	reloaded, err := LoadStore(path)
	require.NoError(t, err)
	assert.Equal(t, "genai:text-embedding-004", reloaded.Model())
	assert.True(t, reloaded.HasTag("", "Animal"))
	assert.True(t, reloaded.HasKeyword("marmoset"))

	require.NoError(t, os.WriteFile(path, []byte("plain text"), 0o644))
	_, err = LoadStore(path)
	assert.ErrorContains(t, err, "decompress embedding store")
}

func TestLoadStore_Errors(t *testing.T) {
	_, err := LoadStore(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	_, err = LoadStore(path)
	assert.ErrorContains(t, err, "parse embedding store")
}

func TestStore_PutReplaces(t *testing.T) {
	store := NewStore("")
	store.PutTag(TagEmbedding{TagID: "Animal", Vector: []float32{1, 0}})
	store.PutTag(TagEmbedding{TagID: "Animal", Vector: []float32{0, 1}})

	tags := store.Tags()
	require.Len(t, tags, 1)
	assert.Equal(t, []float32{0, 1}, tags[0].Vector)
}

func TestLoadKeywords(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "keywords.yaml")
	require.NoError(t, os.WriteFile(good, []byte(`keywords:
  - keyword: marmoset
    targets: [Animal, Animal-agent]
  - keyword: eeg blink
    targets: ["sc:Eye-blink-artifact"]
`), 0o644))

	keywords, err := LoadKeywords(good)
	require.NoError(t, err)
	require.Len(t, keywords, 2)
	assert.Equal(t, []string{"Animal", "Animal-agent"}, keywords[0].Targets)
	assert.Equal(t, "sc:Eye-blink-artifact", keywords[1].Targets[0])

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("keywords:\n  - keyword: lonely\n"), 0o644))
	_, err = LoadKeywords(bad)
	assert.ErrorContains(t, err, "entry 0")
}

func TestMergeKeywords(t *testing.T) {
	merged := MergeKeywords(
		[]Keyword{{Keyword: "click", Targets: []string{"Sound", "Press"}}, {Keyword: "tone", Targets: []string{"Tone"}}},
		[]Keyword{{Keyword: " CLICK ", Targets: []string{"Press"}}, {Keyword: "", Targets: []string{"Ignored"}}},
	)

	require.Len(t, merged, 2)
	assert.Equal(t, Keyword{Keyword: "click", Targets: []string{"Press"}}, merged[0])
	assert.Equal(t, "tone", merged[1].Keyword)
}

func TestDefaultKeywords_MultiTarget(t *testing.T) {
	for _, kw := range DefaultKeywords {
		if kw.Keyword == "click" {
			assert.Equal(t, []string{"Sound", "Press"}, kw.Targets)
			return
		}
	}
	t.Fatal("click keyword missing")
}

func TestVectorCache(t *testing.T) {
	cache, err := OpenVectorCache(CacheConfig{InMemory: true})
	require.NoError(t, err)
	defer cache.Close()

	require.NoError(t, cache.PutBatch("stub", []string{"Animal", "Human"}, [][]float32{{0.6, 0.8}, {1, 0}}))

	vec, ok := cache.Get("stub", "Animal")
	require.True(t, ok)
	assert.Equal(t, []float32{0.6, 0.8}, vec)

	_, ok = cache.Get("other-model", "Animal")
	assert.False(t, ok)
	_, ok = cache.Get("stub", "Missing")
	assert.False(t, ok)

	assert.ErrorIs(t, cache.PutBatch("stub", []string{"a"}, nil), apperrors.ErrInternal)
}

func TestCacheConfig_Validate(t *testing.T) {
	assert.Error(t, CacheConfig{}.Validate())
	assert.NoError(t, CacheConfig{InMemory: true}.Validate())
	assert.NoError(t, CacheConfig{Dir: t.TempDir()}.Validate())
}

func TestOllamaEmbedder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embeddings", r.URL.Path)
		var req ollamaEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "nomic-embed-text", req.Model)

		if req.Prompt == "fail" {
			http.Error(w, "model not loaded", http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{Embedding: []float32{3, 4}})
	}))
	defer srv.Close()

	emb := NewOllamaEmbedder(srv.URL, "")
	assert.Equal(t, "ollama:nomic-embed-text", emb.Name())

	vec, err := emb.Embed(context.Background(), "marmoset")
	require.NoError(t, err)
	assert.InDelta(t, 0.6, vec[0], 1e-6)
	assert.InDelta(t, 0.8, vec[1], 1e-6)

	vecs, err := emb.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, vecs, 2)

	_, err = emb.Embed(context.Background(), "fail")
	assert.ErrorContains(t, err, "status 500")

	_, err = emb.EmbedBatch(context.Background(), []string{"ok", "fail"})
	assert.ErrorContains(t, err, "text 1")
}

func TestNewEmbedder(t *testing.T) {
	_, err := NewEmbedder(context.Background(), EmbedderConfig{Provider: ProviderNone})
	assert.Error(t, err)

	_, err = NewEmbedder(context.Background(), EmbedderConfig{Provider: "word2vec"})
	assert.ErrorContains(t, err, "unsupported embedding provider")

	emb, err := FactoryFor(EmbedderConfig{Provider: ProviderOllama, Model: "mxbai-embed-large"})(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ollama:mxbai-embed-large", emb.Name())

	t.Setenv("GEMINI_API_KEY", "")
	_, err = NewEmbedder(context.Background(), EmbedderConfig{Provider: ProviderGenAI})
	assert.ErrorContains(t, err, "GEMINI_API_KEY")
}

func TestMatchName(t *testing.T) {
	assert.Equal(t, "Animal", Match{Tag: "Animal"}.Name())
	assert.Equal(t, "sc:Artifact", Match{Tag: "Artifact", Prefix: "sc"}.Name())
}
