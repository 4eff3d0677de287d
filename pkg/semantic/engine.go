package semantic

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	apperrors "github.com/hed-standard/hed-lsp/pkg/common/errors"
	"github.com/hed-standard/hed-lsp/pkg/schema"
)

// DeterministicScore is the similarity of an exact keyword hit. Inferred
// matches are always capped below it.
const DeterministicScore = 0.95

// Match sources.
const (
	SourceKeyword  = "keyword"
	SourceCombined = "combined"
	SourceDirect   = "direct"
)

// Options tunes the embedding tier.
type Options struct {
	KeywordThreshold float64 // minimum similarity for a keyword to vote
	DirectThreshold  float64 // minimum similarity for a direct tag match
	TopKeywords      int     // keywords allowed to vote
	VoteWeight       float64 // k in the vote term
	Boost            float64 // applied when a voted tag is also a direct match
	DirectWeight     float64 // w, weight of the direct similarity in combined scores
	Cap              float64
	Limit            int
	QueryCacheSize   int
}

// DefaultOptions returns the tuned defaults.
func DefaultOptions() Options {
	return Options{
		KeywordThreshold: 0.6,
		DirectThreshold:  0.45,
		TopKeywords:      5,
		VoteWeight:       0.2,
		Boost:            1.2,
		DirectWeight:     0.3,
		Cap:              0.94,
		Limit:            10,
		QueryCacheSize:   256,
	}
}

// Match is one ranked tag.
type Match struct {
	Tag        string  `json:"tag"`
	Prefix     string  `json:"prefix,omitempty"`
	Similarity float64 `json:"similarity"`
	Source     string  `json:"source"`
	Votes      int     `json:"votes,omitempty"`
}

// Name returns the tag qualified with its prefix.
func (m Match) Name() string {
	return tagKey(m.Prefix, m.Tag)
}

// EngineConfig wires an Engine.
type EngineConfig struct {
	// Factory creates the embedding model on first use. Nil disables the
	// embedding tier; the keyword fast path still works.
	Factory  ModelFactory
	Store    *Store
	Keywords []Keyword
	// Cache persists vectors produced by IndexVocabulary. Optional.
	Cache   *VectorCache
	Options Options
}

type modelFuture struct {
	done     chan struct{}
	embedder Embedder
	err      error
}

// Engine ranks vocabulary tags against free-text queries. It is safe for
// concurrent use.
type Engine struct {
	opts     Options
	factory  ModelFactory
	store    *Store
	cache    *VectorCache
	keywords map[string]Keyword

	queries *lru.Cache[string, []float32]

	mu       sync.Mutex
	future   *modelFuture
	disabled bool
}

// NewEngine creates an engine. Zero options fall back to DefaultOptions.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	opts := cfg.Options
	if opts == (Options{}) {
		opts = DefaultOptions()
	}
	if opts.QueryCacheSize <= 0 {
		opts.QueryCacheSize = DefaultOptions().QueryCacheSize
	}

	queries, err := lru.New[string, []float32](opts.QueryCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create query cache: %w", err)
	}

	store := cfg.Store
	if store == nil {
		store = NewStore("")
	}

	keywords := make(map[string]Keyword)
	for _, kw := range MergeKeywords(cfg.Keywords) {
		keywords[kw.Keyword] = kw
	}

	return &Engine{
		opts:     opts,
		factory:  cfg.Factory,
		store:    store,
		cache:    cfg.Cache,
		keywords: keywords,
		queries:  queries,
	}, nil
}

// Store returns the engine's vector store.
func (e *Engine) Store() *Store {
	return e.store
}

// Enabled reports whether the embedding tier can still be used.
func (e *Engine) Enabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.factory != nil && !e.disabled
}

// Lookup returns the deterministic keyword hits for query, or nil.
func (e *Engine) Lookup(query string) []Match {
	kw, ok := e.keywords[keywordKey(query)]
	if !ok {
		return nil
	}
	matches := make([]Match, 0, len(kw.Targets))
	for _, target := range kw.Targets {
		prefix, tag := splitTarget(target)
		matches = append(matches, Match{Tag: tag, Prefix: prefix, Similarity: DeterministicScore, Source: SourceKeyword})
	}
	return matches
}

// Search ranks tags for query. An exact keyword hit returns its targets
// without touching the model. A model that fails to load disables the
// embedding tier and Search returns no inferred matches.
func (e *Engine) Search(ctx context.Context, query string) ([]Match, error) {
	query = keywordKey(query)
	if query == "" {
		return nil, nil
	}
	if matches := e.Lookup(query); matches != nil {
		return matches, nil
	}
	if !e.Enabled() {
		return nil, nil
	}

	vec, err := e.queryVector(ctx, query)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// A single failed embedding call degrades to no results.
		slog.Debug("semantic query embedding failed", "query", query, "error", err)
		return nil, nil
	}

	return e.rank(vec), nil
}

func (e *Engine) queryVector(ctx context.Context, query string) ([]float32, error) {
	if vec, ok := e.queries.Get(query); ok {
		return vec, nil
	}
	model, err := e.model(ctx)
	if err != nil {
		return nil, err
	}
	vec, err := model.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	vec = Normalize(vec)
	e.queries.Add(query, vec)
	return vec, nil
}

type vote struct {
	prefix string
	tag    string
	maxSim float64
	votes  int
}

func (e *Engine) rank(query []float32) []Match {
	type scored struct {
		kw  KeywordEmbedding
		sim float64
	}
	var voters []scored
	for _, kw := range e.store.Keywords() {
		if sim := Dot(query, kw.Vector); sim >= e.opts.KeywordThreshold {
			voters = append(voters, scored{kw: kw, sim: sim})
		}
	}
	slices.SortStableFunc(voters, func(a, b scored) int { return cmp.Compare(b.sim, a.sim) })
	if e.opts.TopKeywords > 0 && len(voters) > e.opts.TopKeywords {
		voters = voters[:e.opts.TopKeywords]
	}

	votes := make(map[string]*vote)
	for _, v := range voters {
		for _, target := range v.kw.Targets {
			prefix, tag := splitTarget(target)
			key := tagKey(prefix, tag)
			entry, ok := votes[key]
			if !ok {
				entry = &vote{prefix: prefix, tag: tag}
				votes[key] = entry
			}
			entry.votes++
			entry.maxSim = max(entry.maxSim, v.sim)
		}
	}

	direct := make(map[string]float64)
	directTags := make(map[string]TagEmbedding)
	for _, t := range e.store.Tags() {
		if sim := Dot(query, t.Vector); sim >= e.opts.DirectThreshold {
			direct[t.Key()] = sim
			directTags[t.Key()] = t
		}
	}

	var matches []Match
	for key, v := range votes {
		boost := 1.0
		d, ok := direct[key]
		if ok {
			boost = e.opts.Boost
		}
		score := v.maxSim*(1+math.Log(float64(v.votes+1))*e.opts.VoteWeight)*boost + d*e.opts.DirectWeight
		matches = append(matches, Match{
			Tag:        v.tag,
			Prefix:     v.prefix,
			Similarity: min(score, e.opts.Cap),
			Source:     SourceCombined,
			Votes:      v.votes,
		})
	}
	for key, d := range direct {
		if _, ok := votes[key]; ok {
			continue
		}
		t := directTags[key]
		matches = append(matches, Match{Tag: t.TagID, Prefix: t.Prefix, Similarity: min(d, e.opts.Cap), Source: SourceDirect})
	}

	slices.SortFunc(matches, func(a, b Match) int {
		if c := cmp.Compare(b.Similarity, a.Similarity); c != 0 {
			return c
		}
		return strings.Compare(a.Name(), b.Name())
	})
	if e.opts.Limit > 0 && len(matches) > e.opts.Limit {
		matches = matches[:e.opts.Limit]
	}
	return matches
}

// model returns the embedder, creating it on first use. Concurrent callers
// share one initialization; a failure disables the embedding tier.
func (e *Engine) model(ctx context.Context) (Embedder, error) {
	e.mu.Lock()
	if e.factory == nil || e.disabled {
		e.mu.Unlock()
		return nil, apperrors.ErrModelLoad
	}
	f := e.future
	if f == nil {
		f = &modelFuture{done: make(chan struct{})}
		e.future = f
		go e.resolve(context.WithoutCancel(ctx), f)
	}
	e.mu.Unlock()

	select {
	case <-f.done:
		return f.embedder, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (e *Engine) resolve(ctx context.Context, f *modelFuture) {
	defer close(f.done)
	embedder, err := e.factory(ctx)
	if err != nil {
		f.err = fmt.Errorf("%w: %w", apperrors.ErrModelLoad, err)
		e.mu.Lock()
		e.disabled = true
		e.mu.Unlock()
		slog.Warn("embedding model unavailable, semantic search disabled", "error", err)
		return
	}
	if model := e.store.Model(); model != "" && model != embedder.Name() {
		slog.Warn("embedding store was built with a different model", "store", model, "model", embedder.Name())
	}
	slog.Info("embedding model ready", "model", embedder.Name())
	f.embedder = embedder
}

// IndexVocabulary embeds the vocabulary tags and keywords that have no vector
// yet. Vectors found in the cache are reused; new ones are written back.
func (e *Engine) IndexVocabulary(ctx context.Context, vocab *schema.Vocabulary) error {
	model, err := e.model(ctx)
	if err != nil {
		return err
	}
	name := model.Name()

	var (
		texts   []string
		pending []func([]float32)
	)
	for _, t := range vocab.AllTags() {
		if e.store.HasTag(t.Prefix, t.ShortForm) {
			continue
		}
		tagEntry := t
		text := tagText(tagEntry)
		put := func(vec []float32) {
			e.store.PutTag(TagEmbedding{TagID: tagEntry.ShortForm, Prefix: tagEntry.Prefix, Vector: vec})
		}
		if vec, ok := e.cached(name, text); ok {
			put(vec)
			continue
		}
		texts = append(texts, text)
		pending = append(pending, put)
	}
	for _, kw := range e.keywords {
		if e.store.HasKeyword(kw.Keyword) {
			continue
		}
		keyword := kw
		put := func(vec []float32) {
			e.store.PutKeyword(KeywordEmbedding{Keyword: keyword.Keyword, Targets: keyword.Targets, Vector: vec})
		}
		if vec, ok := e.cached(name, keyword.Keyword); ok {
			put(vec)
			continue
		}
		texts = append(texts, keyword.Keyword)
		pending = append(pending, put)
	}

	if len(texts) == 0 {
		return nil
	}
	slog.Info("embedding vocabulary", "texts", len(texts), "model", name)

	vecs, err := model.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed vocabulary: %w", err)
	}
	if len(vecs) != len(texts) {
		return fmt.Errorf("%w: embedder returned %d vectors for %d texts", apperrors.ErrInternal, len(vecs), len(texts))
	}
	for i, vec := range vecs {
		pending[i](Normalize(vec))
	}
	if e.cache != nil {
		if err := e.cache.PutBatch(name, texts, vecs); err != nil {
			slog.Warn("failed to persist vocabulary vectors", "error", err)
		}
	}
	return nil
}

func (e *Engine) cached(model, text string) ([]float32, bool) {
	if e.cache == nil {
		return nil, false
	}
	return e.cache.Get(model, text)
}

func tagText(t *schema.TagEntry) string {
	if t.Description == "" {
		return t.ShortForm
	}
	return t.ShortForm + ": " + t.Description
}

// Reset drops the query cache and the memoized model so the next search
// re-initializes it.
func (e *Engine) Reset() {
	e.queries.Purge()

	e.mu.Lock()
	f := e.future
	e.future = nil
	e.disabled = false
	e.mu.Unlock()

	if f != nil {
		go func() {
			<-f.done
			if c, ok := f.embedder.(Closer); ok {
				_ = c.Close()
			}
		}()
	}
}

// Close releases the model and the vector cache.
func (e *Engine) Close() error {
	e.mu.Lock()
	f := e.future
	e.future = nil
	e.mu.Unlock()

	if f != nil {
		<-f.done
		if c, ok := f.embedder.(Closer); ok {
			_ = c.Close()
		}
	}
	if e.cache != nil {
		return e.cache.Close()
	}
	return nil
}
