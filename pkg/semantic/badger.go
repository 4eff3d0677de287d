package semantic

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	apperrors "github.com/hed-standard/hed-lsp/pkg/common/errors"
)

// CacheConfig configures the on-disk vector cache.
type CacheConfig struct {
	// Dir is where badger keeps its files. Ignored when InMemory is set.
	Dir string
	// InMemory keeps the cache in memory only (useful for testing).
	InMemory bool
	// ReadOnly opens an existing cache without writing to it.
	ReadOnly bool
	// Compression enables ZSTD compression of values.
	Compression bool
}

// Validate checks the configuration.
func (c CacheConfig) Validate() error {
	if c.Dir == "" && !c.InMemory {
		return fmt.Errorf("Dir must be specified when InMemory is false")
	}
	return nil
}

func buildBadgerOptions(cfg CacheConfig) badger.Options {
	if cfg.InMemory {
		opts := badger.DefaultOptions("")
		opts.InMemory = true
		opts.Logger = nil
		return opts
	}

	opts := badger.DefaultOptions(cfg.Dir)
	opts.Logger = nil
	opts.ReadOnly = cfg.ReadOnly
	opts.DetectConflicts = false
	// Vectors are small; keep the memory footprint of an editor helper low.
	opts.MemTableSize = 16 << 20
	opts.NumMemtables = 2
	opts.BlockCacheSize = 32 << 20
	opts.IndexCacheSize = 16 << 20
	if cfg.Compression {
		opts.Compression = options.ZSTD
	} else {
		opts.Compression = options.None
	}
	return opts
}

// VectorCache persists generated embeddings keyed by model and text, so
// IndexVocabulary does not pay for the same inference twice.
type VectorCache struct {
	db *badger.DB
}

// OpenVectorCache opens (or creates) the cache.
func OpenVectorCache(cfg CacheConfig) (*VectorCache, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	db, err := badger.Open(buildBadgerOptions(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open vector cache: %w", err)
	}
	return &VectorCache{db: db}, nil
}

// Key: "vec:<model>\x00<text>".
func cacheKey(model, text string) []byte {
	key := make([]byte, 0, 4+len(model)+1+len(text))
	key = append(key, "vec:"...)
	key = append(key, model...)
	key = append(key, 0)
	return append(key, text...)
}

func encodeVector(vec []float32) []byte {
	value := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(value[i*4:(i+1)*4], math.Float32bits(v))
	}
	return value
}

func decodeVector(val []byte) []float32 {
	vec := make([]float32, len(val)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(val[i*4 : (i+1)*4]))
	}
	return vec
}

// Get returns the cached vector of text under model.
func (c *VectorCache) Get(model, text string) ([]float32, bool) {
	var vec []float32
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(cacheKey(model, text))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			vec = decodeVector(val)
			return nil
		})
	})
	if err != nil {
		if !errors.Is(err, badger.ErrKeyNotFound) {
			slog.Warn("vector cache read failed", "error", err)
		}
		return nil, false
	}
	return vec, true
}

// PutBatch stores vectors for texts under model in one write batch.
func (c *VectorCache) PutBatch(model string, texts []string, vecs [][]float32) error {
	if len(texts) != len(vecs) {
		return fmt.Errorf("%w: vector cache got %d texts but %d vectors", apperrors.ErrInternal, len(texts), len(vecs))
	}
	batch := c.db.NewWriteBatch()
	defer batch.Cancel()

	for i, text := range texts {
		if err := batch.Set(cacheKey(model, text), encodeVector(vecs[i])); err != nil {
			return fmt.Errorf("failed to write vector: %w", err)
		}
	}
	if err := batch.Flush(); err != nil {
		slog.Error("failed to flush vector batch", "error", err)
		return err
	}
	return nil
}

// Close closes the underlying database.
func (c *VectorCache) Close() error {
	return c.db.Close()
}
