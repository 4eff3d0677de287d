// Package workspace ties the engine together for one client: it tracks open
// documents, validates them on change with a debounce, and answers
// completion, hover and definition requests.
package workspace

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hed-standard/hed-lsp/internal/manager"
	apperrors "github.com/hed-standard/hed-lsp/pkg/common/errors"
	"github.com/hed-standard/hed-lsp/pkg/completion"
	"github.com/hed-standard/hed-lsp/pkg/config"
	"github.com/hed-standard/hed-lsp/pkg/diagnostics"
	"github.com/hed-standard/hed-lsp/pkg/region"
	"github.com/hed-standard/hed-lsp/pkg/scan"
	"github.com/hed-standard/hed-lsp/pkg/schema"
	"github.com/hed-standard/hed-lsp/pkg/semantic"
	"github.com/hed-standard/hed-lsp/pkg/validator"
)

// Publisher receives the diagnostics of a document. An empty slice clears
// them.
type Publisher func(uri string, version int, diags []diagnostics.Diagnostic)

// Options wires a Session. Builder defaults to an XMLBuilder over
// Config.SchemaDir and Validator to the builtin validator.
type Options struct {
	Config    config.Config
	Builder   schema.Builder
	Validator validator.Validator
	Semantic  *semantic.Engine
	Publish   Publisher
}

// CompletionItem is a candidate with its replace range in document
// coordinates.
type CompletionItem struct {
	completion.Candidate
	Range region.Range `json:"range"`
}

// Session owns the caches and engines serving one client.
type Session struct {
	id  string
	log *slog.Logger

	schemas   *manager.SchemaManager
	semantic  *semantic.Engine
	validator validator.Validator
	publish   Publisher
	debounce  *debouncer

	ctx    context.Context
	cancel context.CancelFunc
	bg     sync.WaitGroup

	mu         sync.RWMutex
	cfg        config.Config
	mapper     *diagnostics.Mapper
	completion *completion.Engine
	docs       map[string]*snapshot
	indexed    map[string]bool
	watcher    *Watcher
}

// NewSession creates a session. The configuration must be valid.
func NewSession(opts Options) (*Session, error) {
	if err := opts.Config.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
	}
	builder := opts.Builder
	if builder == nil {
		builder = schema.NewXMLBuilder(opts.Config.SchemaDir)
	}
	v := opts.Validator
	if v == nil {
		v = validator.NewBuiltin()
	}
	publish := opts.Publish
	if publish == nil {
		publish = func(string, int, []diagnostics.Diagnostic) {}
	}

	id := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:        id,
		log:       slog.With("session", id),
		schemas:   manager.NewSchemaManager(builder),
		semantic:  opts.Semantic,
		validator: v,
		publish:   publish,
		debounce:  newDebouncer(debounceDelay(opts.Config)),
		ctx:       ctx,
		cancel:    cancel,
		docs:      make(map[string]*snapshot),
		indexed:   make(map[string]bool),
	}
	s.applyConfig(opts.Config)
	s.log.Info("session started", "schemaVersion", opts.Config.SchemaVersion, "semantic", opts.Config.EnableSemanticSearch)
	return s, nil
}

func debounceDelay(cfg config.Config) time.Duration {
	return time.Duration(cfg.DebounceMs) * time.Millisecond
}

// applyConfig rebuilds the config-dependent engines. Callers hold no lock.
func (s *Session) applyConfig(cfg config.Config) {
	var searcher completion.Searcher
	if s.semantic != nil && cfg.EnableSemanticSearch {
		searcher = s.semantic
	}

	s.mu.Lock()
	s.cfg = cfg
	s.mapper = diagnostics.NewMapper(s.validator, validator.Flags{CheckForWarnings: cfg.CheckForWarnings})
	s.completion = completion.NewEngine(searcher, completion.DefaultOptions())
	s.indexed = make(map[string]bool)
	s.mu.Unlock()

	s.debounce.setDelay(debounceDelay(cfg))
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Config returns the current settings.
func (s *Session) Config() config.Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Open starts tracking a document and validates it.
func (s *Session) Open(ctx context.Context, uri string, version int, text string) {
	snap := newSnapshot(uri, version, text)
	s.mu.Lock()
	s.docs[uri] = snap
	w := s.watcher
	s.mu.Unlock()

	if w != nil {
		w.watchDocument(snap.path)
	}
	s.log.Debug("document opened", "uri", uri, "regions", len(snap.regions))
	s.revalidate(ctx, uri)
}

// Change replaces the document text. Validation follows after the debounce
// delay when validateOnChange is set; the latest change wins.
func (s *Session) Change(ctx context.Context, uri string, version int, text string) {
	snap := newSnapshot(uri, version, text)
	s.mu.Lock()
	s.docs[uri] = snap
	onChange := s.cfg.ValidateOnChange
	s.mu.Unlock()

	if onChange {
		s.schedule(uri)
	}
}

// Save validates the document immediately, dropping any pending change
// validation.
func (s *Session) Save(ctx context.Context, uri string) {
	s.debounce.Cancel(uri)
	s.revalidate(ctx, uri)
}

// Close stops tracking the document and clears its diagnostics.
func (s *Session) Close(uri string) {
	s.debounce.Cancel(uri)
	s.mu.Lock()
	snap, ok := s.docs[uri]
	delete(s.docs, uri)
	s.mu.Unlock()
	if ok {
		s.publish(uri, snap.version, nil)
	}
}

func (s *Session) schedule(uri string) {
	s.debounce.Debounce(uri, func() {
		s.revalidate(s.ctx, uri)
	})
}

func (s *Session) snapshot(uri string) *snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.docs[uri]
}

func (s *Session) document(uri string) (*snapshot, error) {
	snap := s.snapshot(uri)
	if snap == nil {
		return nil, fmt.Errorf("%w: document %s is not open", apperrors.ErrNotFound, uri)
	}
	return snap, nil
}

// revalidate validates the current snapshot and publishes the result unless
// a newer snapshot replaced it meanwhile.
func (s *Session) revalidate(ctx context.Context, uri string) {
	snap := s.snapshot(uri)
	if snap == nil {
		return
	}
	diags := s.validateSnapshot(ctx, snap)
	if ctx.Err() != nil {
		return
	}
	if s.snapshot(uri) != snap {
		s.log.Debug("dropping stale diagnostics", "uri", uri, "version", snap.version)
		return
	}
	s.publish(uri, snap.version, diags)
}

// Validate returns the diagnostics of an open document.
func (s *Session) Validate(ctx context.Context, uri string) ([]diagnostics.Diagnostic, error) {
	snap, err := s.document(uri)
	if err != nil {
		return nil, err
	}
	return s.validateSnapshot(ctx, snap), nil
}

// ValidateText validates a document that is not open. path selects the
// format and the dataset descriptor.
func (s *Session) ValidateText(ctx context.Context, path, text string) []diagnostics.Diagnostic {
	return s.validateSnapshot(ctx, newSnapshot(path, 0, text))
}

func (s *Session) validateSnapshot(ctx context.Context, snap *snapshot) []diagnostics.Diagnostic {
	if len(snap.regions) == 0 {
		return []diagnostics.Diagnostic{}
	}
	version := s.versionFor(ctx, snap.path)
	vocab, err := s.schemas.Load(ctx, version)
	if err != nil {
		s.log.Warn("schema load failed", "uri", snap.uri, "version", version, "error", err)
		return []diagnostics.Diagnostic{diagnostics.LoadFailure(version, err)}
	}
	s.index(vocab)

	s.mu.RLock()
	mapper, limit := s.mapper, s.cfg.MaxNumberOfProblems
	s.mu.RUnlock()

	return s.capDiagnostics(mapper.Document(ctx, snap.regions, vocab, snap.lines), limit, snap.uri)
}

// capDiagnostics applies maxNumberOfProblems (0 means no cap) and never
// returns nil.
func (s *Session) capDiagnostics(diags []diagnostics.Diagnostic, limit int, source string) []diagnostics.Diagnostic {
	if diags == nil {
		return []diagnostics.Diagnostic{}
	}
	if limit > 0 && len(diags) > limit {
		s.log.Debug("diagnostics capped", "source", source, "found", len(diags), "limit", limit)
		diags = diags[:limit]
	}
	return diags
}

// ValidateString validates one HED string against version, or the
// configured version when empty.
func (s *Session) ValidateString(ctx context.Context, version, hed string) ([]diagnostics.Diagnostic, error) {
	vocab, err := s.Vocabulary(ctx, version)
	if err != nil {
		return nil, err
	}
	lines := region.NewLineIndex(hed)
	r := region.Region{
		Content: hed,
		Range:   region.Range{Start: lines.PositionAt(0), End: lines.PositionAt(len(hed))},
	}

	s.mu.RLock()
	mapper, limit := s.mapper, s.cfg.MaxNumberOfProblems
	s.mu.RUnlock()

	return s.capDiagnostics(mapper.Document(ctx, []region.Region{r}, vocab, lines), limit, "string"), nil
}

// Vocabulary loads the vocabulary for version, or the configured version
// when empty.
func (s *Session) Vocabulary(ctx context.Context, version string) (*schema.Vocabulary, error) {
	if version == "" {
		version = s.Config().SchemaVersion
	}
	vocab, err := s.schemas.Load(ctx, version)
	if err != nil {
		return nil, err
	}
	s.index(vocab)
	return vocab, nil
}

func (s *Session) vocabularyFor(ctx context.Context, path string) (*schema.Vocabulary, error) {
	vocab, err := s.schemas.Load(ctx, s.versionFor(ctx, path))
	if err != nil {
		return nil, err
	}
	s.index(vocab)
	return vocab, nil
}

// versionFor prefers the version declared by the document's dataset
// descriptor over the configured one.
func (s *Session) versionFor(ctx context.Context, path string) string {
	if path != "" && path != "." {
		if spec, ok := s.schemas.DetectVersion(ctx, path); ok {
			return spec.String()
		}
	}
	return s.Config().SchemaVersion
}

// Complete returns completion candidates at pos in an open document.
func (s *Session) Complete(ctx context.Context, uri string, pos region.Position) ([]CompletionItem, error) {
	snap, err := s.document(uri)
	if err != nil {
		return nil, err
	}
	r, offset, ok := snap.regionAt(pos)
	if !ok {
		return nil, nil
	}
	vocab, err := s.vocabularyFor(ctx, snap.path)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	engine := s.completion
	s.mu.RUnlock()

	candidates := engine.Complete(ctx, completion.Request{
		Vocabulary:  vocab,
		Content:     r.Content,
		Offset:      offset,
		Definitions: snap.defs,
	})
	items := make([]CompletionItem, len(candidates))
	for i, c := range candidates {
		items[i] = CompletionItem{Candidate: c, Range: r.Span(snap.lines, c.ReplaceStart, c.ReplaceEnd)}
	}
	return items, nil
}

// CompleteString returns completion candidates for a standalone HED string.
// Definitions declared in the string itself are offered after Def/.
func (s *Session) CompleteString(ctx context.Context, version, hed string, offset int) ([]completion.Candidate, error) {
	if offset < 0 || offset > len(hed) {
		return nil, fmt.Errorf("%w: offset %d outside string of length %d", apperrors.ErrInvalidInput, offset, len(hed))
	}
	vocab, err := s.Vocabulary(ctx, version)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	engine := s.completion
	s.mu.RUnlock()

	return engine.Complete(ctx, completion.Request{
		Vocabulary:  vocab,
		Content:     hed,
		Offset:      offset,
		Definitions: scan.ExtractDefinitions([]region.Region{{Content: hed}}),
	}), nil
}

// Search ranks tags for a free-text query. It returns nothing when semantic
// search is off.
func (s *Session) Search(ctx context.Context, query string) ([]semantic.Match, error) {
	if s.semantic == nil || !s.Config().EnableSemanticSearch {
		return nil, nil
	}
	return s.semantic.Search(ctx, query)
}

// index embeds the tags of vocab in the background, once per version, when
// an embedding provider is configured.
func (s *Session) index(vocab *schema.Vocabulary) {
	if s.semantic == nil {
		return
	}
	key := vocab.Spec.String()

	s.mu.Lock()
	if !s.cfg.EmbeddingEnabled() || s.indexed[key] || s.ctx.Err() != nil {
		s.mu.Unlock()
		return
	}
	s.indexed[key] = true
	s.bg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.bg.Done()
		if err := s.semantic.IndexVocabulary(s.ctx, vocab); err != nil {
			s.log.Warn("vocabulary indexing failed", "spec", key, "error", err)
			return
		}
		s.log.Debug("vocabulary indexed", "spec", key)
	}()
}

// UpdateSettings applies new settings, clears the schema and semantic caches
// and revalidates the open documents.
func (s *Session) UpdateSettings(cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
	}
	s.applyConfig(cfg)
	s.schemas.Clear()
	if s.semantic != nil {
		s.semantic.Reset()
	}

	s.mu.RLock()
	uris := make([]string, 0, len(s.docs))
	for uri := range s.docs {
		uris = append(uris, uri)
	}
	s.mu.RUnlock()

	for _, uri := range uris {
		s.schedule(uri)
	}
	s.log.Info("settings updated", "schemaVersion", cfg.SchemaVersion, "documents", len(uris))
	return nil
}

// InvalidateUnder forgets the detected schema versions below dir and
// revalidates the open documents there.
func (s *Session) InvalidateUnder(dir string) {
	s.schemas.InvalidateUnder(dir)

	s.mu.RLock()
	var uris []string
	for uri, snap := range s.docs {
		if isUnder(snap.path, dir) {
			uris = append(uris, uri)
		}
	}
	s.mu.RUnlock()

	for _, uri := range uris {
		s.schedule(uri)
	}
}

// Shutdown cancels pending validations and background work and waits for
// them to finish.
func (s *Session) Shutdown() {
	s.cancel()
	s.mu.Lock()
	w := s.watcher
	s.watcher = nil
	s.mu.Unlock()
	if w != nil {
		w.Stop()
	}
	s.debounce.Stop()
	s.bg.Wait()
	s.log.Info("session stopped")
}
