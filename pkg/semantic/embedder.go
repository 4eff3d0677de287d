// Package semantic ranks vocabulary tags against free-text queries using a
// curated keyword index and tag embeddings.
package semantic

import (
	"context"
	"fmt"
	"log/slog"
)

// Embedder produces embedding vectors for text.
type Embedder interface {
	// Embed returns the embedding of a single text.
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch returns one embedding per text, in order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	// Name identifies the provider and model, e.g. "ollama:nomic-embed-text".
	Name() string
}

// Closer is implemented by embedders holding resources.
type Closer interface {
	Close() error
}

// Provider names accepted by NewEmbedder.
const (
	ProviderNone   = "none"
	ProviderOllama = "ollama"
	ProviderGenAI  = "genai"
)

// EmbedderConfig selects and configures an embedding provider.
type EmbedderConfig struct {
	Provider string `koanf:"provider" yaml:"provider" json:"provider"`
	Model    string `koanf:"model" yaml:"model" json:"model"`
	APIKey   string `koanf:"apiKey" yaml:"apiKey" json:"-"`
	Endpoint string `koanf:"endpoint" yaml:"endpoint" json:"endpoint"`
}

// ModelFactory creates the embedder on first use.
type ModelFactory func(ctx context.Context) (Embedder, error)

// NewEmbedder creates the embedder named by cfg.Provider.
func NewEmbedder(ctx context.Context, cfg EmbedderConfig) (Embedder, error) {
	slog.Debug("creating embedder", "provider", cfg.Provider, "model", cfg.Model, "endpoint", cfg.Endpoint)
	switch cfg.Provider {
	case ProviderOllama:
		return NewOllamaEmbedder(cfg.Endpoint, cfg.Model), nil
	case ProviderGenAI:
		return NewGenAIEmbedder(ctx, cfg.APIKey, cfg.Model)
	case ProviderNone, "":
		return nil, fmt.Errorf("no embedding provider configured")
	}
	return nil, fmt.Errorf("unsupported embedding provider: %s (use %q or %q)", cfg.Provider, ProviderOllama, ProviderGenAI)
}

// FactoryFor returns a ModelFactory building an embedder from cfg.
func FactoryFor(cfg EmbedderConfig) ModelFactory {
	return func(ctx context.Context) (Embedder, error) {
		return NewEmbedder(ctx, cfg)
	}
}
