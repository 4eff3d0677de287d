package semantic

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	apperrors "github.com/hed-standard/hed-lsp/pkg/common/errors"
	"github.com/hed-standard/hed-lsp/pkg/schema/schematest"
)

// stubEmbedder returns fixed vectors and counts calls.
type stubEmbedder struct {
	vectors map[string][]float32
	embeds  atomic.Int32
	batches atomic.Int32
}

func newStub(vectors map[string][]float32) *stubEmbedder {
	return &stubEmbedder{vectors: vectors}
}

func (s *stubEmbedder) vector(text string) []float32 {
	if v, ok := s.vectors[text]; ok {
		return append([]float32(nil), v...)
	}
	return []float32{1, float32(len(text) % 7)}
}

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	s.embeds.Add(1)
	return s.vector(text), nil
}

func (s *stubEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	s.batches.Add(1)
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = s.vector(t)
	}
	return out, nil
}

func (s *stubEmbedder) Name() string { return "stub" }

func staticFactory(e Embedder) ModelFactory {
	return func(context.Context) (Embedder, error) { return e, nil }
}

func newTestEngine(t *testing.T, cfg EngineConfig) *Engine {
	t.Helper()
	e, err := NewEngine(cfg)
	require.NoError(t, err)
	return e
}

func TestEngine_DeterministicKeyword(t *testing.T) {
	var factoryCalls atomic.Int32
	emb := newStub(nil)
	engine := newTestEngine(t, EngineConfig{
		Factory: func(context.Context) (Embedder, error) {
			factoryCalls.Add(1)
			return emb, nil
		},
		Keywords: []Keyword{{Keyword: "marmoset", Targets: []string{"Animal", "Animal-agent"}}},
	})

	matches, err := engine.Search(context.Background(), "  Marmoset ")
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "Animal", matches[0].Tag)
	assert.Equal(t, "Animal-agent", matches[1].Tag)
	for _, m := range matches {
		assert.Equal(t, DeterministicScore, m.Similarity)
		assert.Equal(t, SourceKeyword, m.Source)
	}

	assert.Zero(t, factoryCalls.Load())
	assert.Zero(t, emb.embeds.Load())
}

func TestEngine_DeterministicKeywordPrefixedTarget(t *testing.T) {
	engine := newTestEngine(t, EngineConfig{
		Keywords: []Keyword{{Keyword: "blink artifact", Targets: []string{"sc:Eye-blink-artifact"}}},
	})

	matches, err := engine.Search(context.Background(), "Blink Artifact")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "sc", matches[0].Prefix)
	assert.Equal(t, "Eye-blink-artifact", matches[0].Tag)
	assert.Equal(t, "sc:Eye-blink-artifact", matches[0].Name())
}

func TestEngine_DirectMatches(t *testing.T) {
	store := NewStore("stub")
	store.PutTag(TagEmbedding{TagID: "Animal", Vector: []float32{0.5, 0.8660254}})
	store.PutTag(TagEmbedding{TagID: "Organism", Vector: []float32{0.8, 0.6}})
	store.PutTag(TagEmbedding{TagID: "Human", Vector: []float32{0.3, 0.9539392}})

	emb := newStub(map[string][]float32{"primate": {1, 0}})
	engine := newTestEngine(t, EngineConfig{Factory: staticFactory(emb), Store: store})

	matches, err := engine.Search(context.Background(), "primate")
	require.NoError(t, err)
	require.Len(t, matches, 2, "Human is below the direct threshold")
	assert.Equal(t, "Organism", matches[0].Tag)
	assert.InDelta(t, 0.8, matches[0].Similarity, 1e-5)
	assert.Equal(t, SourceDirect, matches[0].Source)
	assert.Equal(t, "Animal", matches[1].Tag)
	assert.InDelta(t, 0.5, matches[1].Similarity, 1e-5)
}

func TestEngine_CombinedScore(t *testing.T) {
	store := NewStore("stub")
	store.PutTag(TagEmbedding{TagID: "Animal", Vector: []float32{0.5, 0.8660254}})
	store.PutKeyword(KeywordEmbedding{Keyword: "monkey", Targets: []string{"Animal"}, Vector: []float32{0.65, 0.7599342}})
	store.PutKeyword(KeywordEmbedding{Keyword: "agent", Targets: []string{"Agent"}, Vector: []float32{0.7, 0.7141428}})
	store.PutKeyword(KeywordEmbedding{Keyword: "far away", Targets: []string{"Item"}, Vector: []float32{0, 1}})

	opts := DefaultOptions()
	opts.Boost = 1.1
	opts.Cap = 0.99

	emb := newStub(map[string][]float32{"primate": {1, 0}})
	engine := newTestEngine(t, EngineConfig{Factory: staticFactory(emb), Store: store, Options: opts})

	matches, err := engine.Search(context.Background(), "primate")
	require.NoError(t, err)
	require.Len(t, matches, 2)

	byTag := make(map[string]Match)
	for _, m := range matches {
		byTag[m.Tag] = m
	}

	animal := byTag["Animal"]
	assert.Equal(t, SourceCombined, animal.Source)
	assert.Equal(t, 1, animal.Votes)
	want := 0.65*(1+math.Log(2)*opts.VoteWeight)*opts.Boost + 0.5*opts.DirectWeight
	assert.InDelta(t, want, animal.Similarity, 1e-4)

	// No direct match: no boost and no direct term.
	agent := byTag["Agent"]
	assert.InDelta(t, 0.7*(1+math.Log(2)*opts.VoteWeight), agent.Similarity, 1e-4)

	assert.NotContains(t, byTag, "Item")
}

func TestEngine_MonotonicBoost(t *testing.T) {
	tagVector := []float32{0.5, 0.8660254}
	emb := newStub(map[string][]float32{"primate": {1, 0}})

	directOnly := NewStore("stub")
	directOnly.PutTag(TagEmbedding{TagID: "Animal", Vector: tagVector})
	withVotes := NewStore("stub")
	withVotes.PutTag(TagEmbedding{TagID: "Animal", Vector: tagVector})
	withVotes.PutKeyword(KeywordEmbedding{Keyword: "monkey", Targets: []string{"Animal"}, Vector: []float32{0.65, 0.7599342}})

	search := func(store *Store) Match {
		engine := newTestEngine(t, EngineConfig{Factory: staticFactory(emb), Store: store})
		matches, err := engine.Search(context.Background(), "primate")
		require.NoError(t, err)
		require.Len(t, matches, 1)
		return matches[0]
	}

	direct := search(directOnly)
	combined := search(withVotes)
	assert.GreaterOrEqual(t, combined.Similarity, direct.Similarity)
	assert.Less(t, combined.Similarity, DeterministicScore)
}

func TestEngine_VotesAccumulate(t *testing.T) {
	store := NewStore("stub")
	store.PutKeyword(KeywordEmbedding{Keyword: "monkey", Targets: []string{"Animal"}, Vector: []float32{0.7, 0.7141428}})
	store.PutKeyword(KeywordEmbedding{Keyword: "ape", Targets: []string{"Animal", "Animal-agent"}, Vector: []float32{0.8, 0.6}})

	emb := newStub(map[string][]float32{"primate": {1, 0}})
	engine := newTestEngine(t, EngineConfig{Factory: staticFactory(emb), Store: store})

	matches, err := engine.Search(context.Background(), "primate")
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "Animal", matches[0].Tag)
	assert.Equal(t, 2, matches[0].Votes)
	assert.Equal(t, "Animal-agent", matches[1].Tag)
	assert.Equal(t, 1, matches[1].Votes)
}

func TestEngine_QueryVectorCached(t *testing.T) {
	emb := newStub(nil)
	engine := newTestEngine(t, EngineConfig{Factory: staticFactory(emb)})

	for range 3 {
		_, err := engine.Search(context.Background(), "primate")
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), emb.embeds.Load())

	engine.Reset()
	_, err := engine.Search(context.Background(), "primate")
	require.NoError(t, err)
	assert.Equal(t, int32(2), emb.embeds.Load())
}

func TestEngine_ModelInitCoalesced(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	var calls atomic.Int32
	release := make(chan struct{})
	emb := newStub(nil)
	engine := newTestEngine(t, EngineConfig{
		Factory: func(context.Context) (Embedder, error) {
			calls.Add(1)
			<-release
			return emb, nil
		},
	})

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := engine.Search(context.Background(), fmt.Sprintf("query %d", i))
			assert.NoError(t, err)
		}()
	}
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, int32(8), emb.embeds.Load())
}

func TestEngine_ModelLoadFailureDisablesTier(t *testing.T) {
	var calls atomic.Int32
	engine := newTestEngine(t, EngineConfig{
		Factory: func(context.Context) (Embedder, error) {
			calls.Add(1)
			return nil, errors.New("connection refused")
		},
		Keywords: []Keyword{{Keyword: "marmoset", Targets: []string{"Animal"}}},
	})

	matches, err := engine.Search(context.Background(), "primate")
	require.NoError(t, err)
	assert.Empty(t, matches)
	assert.False(t, engine.Enabled())

	_, err = engine.Search(context.Background(), "another")
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())

	// The keyword tier still answers.
	matches, err = engine.Search(context.Background(), "marmoset")
	require.NoError(t, err)
	assert.Len(t, matches, 1)

	err = engine.IndexVocabulary(context.Background(), schematest.Vocabulary())
	assert.ErrorIs(t, err, apperrors.ErrModelLoad)

	engine.Reset()
	assert.True(t, engine.Enabled())
	_, err = engine.Search(context.Background(), "primate")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestEngine_NoFactory(t *testing.T) {
	engine := newTestEngine(t, EngineConfig{})
	assert.False(t, engine.Enabled())

	matches, err := engine.Search(context.Background(), "primate")
	require.NoError(t, err)
	assert.Nil(t, matches)

	matches, err = engine.Search(context.Background(), "   ")
	require.NoError(t, err)
	assert.Nil(t, matches)
}

func TestEngine_SearchHonorsCancellation(t *testing.T) {
	release := make(chan struct{})
	engine := newTestEngine(t, EngineConfig{
		Factory: func(context.Context) (Embedder, error) {
			<-release
			return newStub(nil), nil
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := engine.Search(ctx, "primate")
	assert.ErrorIs(t, err, context.Canceled)

	close(release)
	// The cancelled caller did not poison the shared initialization.
	_, err = engine.Search(context.Background(), "primate")
	require.NoError(t, err)
	assert.True(t, engine.Enabled())
}

func TestEngine_IndexVocabulary(t *testing.T) {
	cache, err := OpenVectorCache(CacheConfig{InMemory: true})
	require.NoError(t, err)
	defer cache.Close()

	vocab := schematest.Vocabulary()
	keywords := []Keyword{
		{Keyword: "marmoset", Targets: []string{"Animal", "Animal-agent"}},
		{Keyword: "blink", Targets: []string{"sc:Eye-blink-artifact"}},
	}

	first := newStub(nil)
	engine := newTestEngine(t, EngineConfig{Factory: staticFactory(first), Keywords: keywords, Cache: cache})
	require.NoError(t, engine.IndexVocabulary(context.Background(), vocab))

	tags, kws := engine.Store().Len()
	assert.Equal(t, len(vocab.AllTags()), tags)
	assert.Equal(t, 2, kws)
	assert.True(t, engine.Store().HasTag("sc", "Artifact"))
	assert.Equal(t, int32(1), first.batches.Load())

	// Everything is indexed already.
	require.NoError(t, engine.IndexVocabulary(context.Background(), vocab))
	assert.Equal(t, int32(1), first.batches.Load())

	// A fresh store is filled from the cache without inference.
	second := newStub(nil)
	fresh := newTestEngine(t, EngineConfig{Factory: staticFactory(second), Keywords: keywords, Cache: cache})
	require.NoError(t, fresh.IndexVocabulary(context.Background(), vocab))
	assert.Zero(t, second.batches.Load())
	tags, kws = fresh.Store().Len()
	assert.Equal(t, len(vocab.AllTags()), tags)
	assert.Equal(t, 2, kws)
}
