package semantic

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/klauspost/compress/s2"

	"github.com/hed-standard/hed-lsp/pkg/schema"
)

// CompressedSuffix marks an S2-compressed store file.
const CompressedSuffix = ".s2"

// TagEmbedding is the vector of one vocabulary tag.
type TagEmbedding struct {
	TagID  string    `json:"tag"`
	Prefix string    `json:"prefix,omitempty"`
	Vector []float32 `json:"vector"`
}

// Key identifies the tag across namespaces.
func (t TagEmbedding) Key() string {
	return tagKey(t.Prefix, t.TagID)
}

// KeywordEmbedding is the vector of one keyword anchor.
type KeywordEmbedding struct {
	Keyword string    `json:"keyword"`
	Targets []string  `json:"targets"`
	Vector  []float32 `json:"vector"`
}

// Store holds tag and keyword vectors. It is safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	model    string
	tags     []TagEmbedding
	tagIndex map[string]int
	keywords []KeywordEmbedding
	kwIndex  map[string]int
}

type storeFile struct {
	Model    string             `json:"model"`
	Tags     []TagEmbedding     `json:"tags"`
	Keywords []KeywordEmbedding `json:"keywords"`
}

// NewStore creates an empty store for vectors produced by model.
func NewStore(model string) *Store {
	return &Store{model: model, tagIndex: make(map[string]int), kwIndex: make(map[string]int)}
}

// LoadStore reads a precomputed embedding file. Vectors are normalized on
// load. Files ending in .s2 are S2-compressed JSON.
func LoadStore(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read embedding store: %w", err)
	}
	if strings.HasSuffix(path, CompressedSuffix) {
		data, err = s2.Decode(nil, data)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress embedding store %s: %w", path, err)
		}
	}
	var f storeFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse embedding store %s: %w", path, err)
	}

	s := NewStore(f.Model)
	for _, t := range f.Tags {
		s.PutTag(t)
	}
	for _, kw := range f.Keywords {
		s.PutKeyword(kw)
	}
	return s, nil
}

// Save writes the store in the format LoadStore reads, compressed when path
// ends in .s2.
func (s *Store) Save(path string) error {
	s.mu.RLock()
	f := storeFile{Model: s.model, Tags: s.tags, Keywords: s.keywords}
	data, err := json.Marshal(f)
	s.mu.RUnlock()
	if err != nil {
		return err
	}
	if strings.HasSuffix(path, CompressedSuffix) {
		data = s2.Encode(nil, data)
	}
	return os.WriteFile(path, data, 0o644)
}

// Model returns the name of the model the vectors came from.
func (s *Store) Model() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.model
}

// PutTag adds or replaces a tag vector.
func (s *Store) PutTag(t TagEmbedding) {
	if len(t.Vector) == 0 {
		return
	}
	t.Vector = Normalize(append([]float32(nil), t.Vector...))
	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.tagIndex[t.Key()]; ok {
		s.tags[i] = t
		return
	}
	s.tagIndex[t.Key()] = len(s.tags)
	s.tags = append(s.tags, t)
}

// PutKeyword adds or replaces a keyword vector.
func (s *Store) PutKeyword(kw KeywordEmbedding) {
	kw.Keyword = keywordKey(kw.Keyword)
	if kw.Keyword == "" || len(kw.Vector) == 0 {
		return
	}
	kw.Vector = Normalize(append([]float32(nil), kw.Vector...))
	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.kwIndex[kw.Keyword]; ok {
		s.keywords[i] = kw
		return
	}
	s.kwIndex[kw.Keyword] = len(s.keywords)
	s.keywords = append(s.keywords, kw)
}

// HasTag reports whether a vector exists for the tag.
func (s *Store) HasTag(prefix, tag string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.tagIndex[tagKey(prefix, tag)]
	return ok
}

// HasKeyword reports whether a vector exists for the keyword.
func (s *Store) HasKeyword(keyword string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.kwIndex[keywordKey(keyword)]
	return ok
}

// Tags returns a snapshot of the tag vectors.
func (s *Store) Tags() []TagEmbedding {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]TagEmbedding(nil), s.tags...)
}

// Keywords returns a snapshot of the keyword vectors.
func (s *Store) Keywords() []KeywordEmbedding {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]KeywordEmbedding(nil), s.keywords...)
}

// Len returns the number of tag and keyword vectors.
func (s *Store) Len() (tags, keywords int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tags), len(s.keywords)
}

func tagKey(prefix, tag string) string {
	if prefix == "" {
		return tag
	}
	return prefix + ":" + tag
}

// splitTarget splits a keyword target into prefix and tag.
func splitTarget(target string) (string, string) {
	return schema.SplitPrefix(target)
}
