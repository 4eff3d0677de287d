package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"

	"github.com/hed-standard/hed-lsp/pkg/config"
	"github.com/hed-standard/hed-lsp/pkg/semantic"
	"github.com/hed-standard/hed-lsp/pkg/workspace"
)

// buildSession wires a session with its semantic engine. The returned
// cleanup stops the session and closes the engine.
func buildSession(ctx context.Context, c config.Config) (*workspace.Session, func(), error) {
	engine, err := buildSemantic(c)
	if err != nil {
		return nil, nil, err
	}
	session, stop, err := newSession(c, engine)
	if err != nil {
		engine.Close()
		return nil, nil, err
	}
	if _, err := session.Watch(ctx); err != nil {
		slog.Warn("descriptor watching disabled", "error", err)
	}
	return session, func() {
		stop()
		if err := engine.Close(); err != nil {
			slog.Warn("closing semantic engine", "error", err)
		}
	}, nil
}

func newSession(c config.Config, engine *semantic.Engine) (*workspace.Session, func(), error) {
	session, err := workspace.NewSession(workspace.Options{Config: c, Semantic: engine})
	if err != nil {
		return nil, nil, err
	}
	return session, session.Shutdown, nil
}

// buildSemantic creates the semantic engine. The keyword tier always works;
// the embedding tier needs a provider.
func buildSemantic(c config.Config) (*semantic.Engine, error) {
	e := c.Embedding

	store := semantic.NewStore(e.Model)
	if e.StorePath != "" {
		loaded, err := semantic.LoadStore(e.StorePath)
		switch {
		case err == nil:
			store = loaded
			tags, keywords := store.Len()
			slog.Info("embedding store loaded", "path", e.StorePath, "model", store.Model(), "tags", tags, "keywords", keywords)
		case errors.Is(err, fs.ErrNotExist):
			slog.Info("embedding store not found, starting empty", "path", e.StorePath)
		default:
			return nil, err
		}
	}

	keywords := semantic.DefaultKeywords
	if e.KeywordsPath != "" {
		extra, err := semantic.LoadKeywords(e.KeywordsPath)
		if err != nil {
			return nil, err
		}
		keywords = semantic.MergeKeywords(semantic.DefaultKeywords, extra)
	}

	var cache *semantic.VectorCache
	if e.CachePath != "" {
		var err error
		cache, err = semantic.OpenVectorCache(semantic.CacheConfig{Dir: e.CachePath, Compression: true})
		if err != nil {
			return nil, err
		}
	}

	var factory semantic.ModelFactory
	if c.EmbeddingEnabled() {
		factory = semantic.FactoryFor(e.Embedder())
	}

	engine, err := semantic.NewEngine(semantic.EngineConfig{
		Factory:  factory,
		Store:    store,
		Keywords: keywords,
		Cache:    cache,
	})
	if err != nil {
		if cache != nil {
			cache.Close()
		}
		return nil, err
	}
	return engine, nil
}
