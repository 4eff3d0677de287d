package manager

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	apperrors "github.com/hed-standard/hed-lsp/pkg/common/errors"
	"github.com/hed-standard/hed-lsp/pkg/schema"
)

const (
	// MaxCachedVocabularies bounds the vocabulary LRU.
	MaxCachedVocabularies = 10
	// MaxDescriptorDepth bounds the upward descriptor search.
	MaxDescriptorDepth = 10
	// DescriptorFile is the dataset descriptor holding HEDVersion.
	DescriptorFile = "dataset_description.json"
	// MaxDetectedVersions bounds the per-document detection cache.
	MaxDetectedVersions = 1024
)

// SchemaManager loads and caches vocabularies by canonical version spec and
// remembers the version detected for each document.
type SchemaManager struct {
	builder      schema.Builder
	vocabularies *lru.Cache[string, *schema.Vocabulary]
	group        singleflight.Group
	detected     *expirable.LRU[string, detection]
}

type detection struct {
	spec  schema.VersionSpec
	found bool
}

// NewSchemaManager creates a SchemaManager over builder.
func NewSchemaManager(builder schema.Builder) *SchemaManager {
	cache, _ := lru.NewWithEvict[string, *schema.Vocabulary](MaxCachedVocabularies, func(key string, _ *schema.Vocabulary) {
		slog.Debug("vocabulary evicted", "spec", key)
	})
	return &SchemaManager{
		builder:      builder,
		vocabularies: cache,
		detected:     expirable.NewLRU[string, detection](MaxDetectedVersions, nil, 0),
	}
}

// Load returns the vocabulary for raw, building it on a cache miss.
// Concurrent loads of the same spec share one build, which outlives any
// caller that gives up. Failures are wrapped in ErrSchemaLoad and never cached.
func (m *SchemaManager) Load(ctx context.Context, raw string) (*schema.Vocabulary, error) {
	spec, err := schema.ParseVersionSpec(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrSchemaLoad, err)
	}
	key := spec.String()

	if v, ok := m.vocabularies.Get(key); ok {
		return v, nil
	}

	// The build belongs to every caller of the flight, so no single caller's
	// cancellation may abort it. Each caller still stops waiting on its own ctx.
	buildCtx := context.WithoutCancel(ctx)
	ch := m.group.DoChan(key, func() (interface{}, error) {
		// Double-check: a previous flight may have finished between Get and Do.
		if v, ok := m.vocabularies.Get(key); ok {
			return v, nil
		}
		v, err := m.builder.Build(buildCtx, spec)
		if err != nil {
			return nil, err
		}
		m.vocabularies.Add(key, v)
		slog.Info("vocabulary loaded", "spec", key, "tags", len(v.AllTags()))
		return v, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %s: %w", apperrors.ErrSchemaLoad, key, ctx.Err())
	case res = <-ch:
	}
	if res.Err != nil {
		slog.Warn("vocabulary load failed", "spec", key, "error", res.Err)
		return nil, fmt.Errorf("%w: %s: %w", apperrors.ErrSchemaLoad, key, res.Err)
	}
	if res.Shared {
		slog.Debug("vocabulary load coalesced", "spec", key)
	}
	return res.Val.(*schema.Vocabulary), nil
}

// Cached reports whether the vocabulary for raw is in the cache.
func (m *SchemaManager) Cached(raw string) bool {
	spec, err := schema.ParseVersionSpec(raw)
	if err != nil {
		return false
	}
	return m.vocabularies.Contains(spec.String())
}

// DetectVersion finds the HEDVersion declared by the nearest dataset
// descriptor above documentPath. The result, including a miss, is cached per
// document until Invalidate or Clear.
func (m *SchemaManager) DetectVersion(ctx context.Context, documentPath string) (schema.VersionSpec, bool) {
	key := filepath.Clean(documentPath)

	if d, ok := m.detected.Get(key); ok {
		return d.spec, d.found
	}

	spec, found := detectVersion(ctx, key)

	m.detected.Add(key, detection{spec: spec, found: found})
	return spec, found
}

// Invalidate drops the detected version of one document.
func (m *SchemaManager) Invalidate(documentPath string) {
	m.detected.Remove(filepath.Clean(documentPath))
}

// InvalidateUnder drops the detected versions of every document below dir.
func (m *SchemaManager) InvalidateUnder(dir string) {
	prefix := filepath.Clean(dir) + string(filepath.Separator)
	for _, doc := range m.detected.Keys() {
		if strings.HasPrefix(doc, prefix) {
			m.detected.Remove(doc)
		}
	}
}

// Clear empties both the vocabulary and the detected-version caches.
func (m *SchemaManager) Clear() {
	m.vocabularies.Purge()
	m.detected.Purge()
}

type descriptor struct {
	HEDVersion json.RawMessage `json:"HEDVersion"`
}

func detectVersion(ctx context.Context, documentPath string) (schema.VersionSpec, bool) {
	dir := filepath.Dir(documentPath)
	for depth := 0; depth < MaxDescriptorDepth; depth++ {
		if ctx.Err() != nil {
			return schema.VersionSpec{}, false
		}
		path := filepath.Join(dir, DescriptorFile)
		if data, err := os.ReadFile(path); err == nil {
			spec, err := parseDescriptor(data)
			if err != nil {
				slog.Warn("ignoring dataset descriptor", "path", path, "error", err)
				return schema.VersionSpec{}, false
			}
			slog.Debug("schema version detected", "document", documentPath, "descriptor", path, "spec", spec.String())
			return spec, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return schema.VersionSpec{}, false
}

func parseDescriptor(data []byte) (schema.VersionSpec, error) {
	var d descriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return schema.VersionSpec{}, err
	}
	if len(d.HEDVersion) == 0 {
		return schema.VersionSpec{}, fmt.Errorf("%w: no HEDVersion", apperrors.ErrNotFound)
	}

	var single string
	if err := json.Unmarshal(d.HEDVersion, &single); err == nil {
		return schema.ParseVersionSpec(single)
	}
	var list []string
	if err := json.Unmarshal(d.HEDVersion, &list); err != nil {
		return schema.VersionSpec{}, fmt.Errorf("%w: HEDVersion must be a string or a list of strings", apperrors.ErrInvalidInput)
	}
	return schema.ParseVersionSpec(schema.NormalizeList(list))
}
