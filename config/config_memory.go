package config

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/becomeliminal/expmem/memory"
	"github.com/becomeliminal/expmem/memory/docstore/filesystem"
	"github.com/becomeliminal/expmem/memory/docstore/sqlite"
	"github.com/becomeliminal/expmem/memory/embedder/cache"
	"github.com/becomeliminal/expmem/memory/embedder/mock"
	"github.com/becomeliminal/expmem/memory/merger"
	"github.com/becomeliminal/expmem/memory/merger/anthropic"
	"github.com/becomeliminal/expmem/memory/merger/openai"
	"github.com/becomeliminal/expmem/memory/retriever/chromem"
	retrievermock "github.com/becomeliminal/expmem/memory/retriever/mock"
)

// newONNXEmbedder is set by config_onnx.go when built with -tags onnx.
var newONNXEmbedder func(EmbedderConfig) (memory.Embedder, func() error, error)

// Runtime is an opened store together with the resources it owns.
type Runtime struct {
	Store *memory.Store

	closers []func() error
}

// Close releases everything Open created, last opened first.
func (r *Runtime) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Open builds every backend named by c and opens the store over them.
func (c *Config) Open(ctx context.Context, opts ...memory.Option) (*Runtime, error) {
	rt := &Runtime{}
	fail := func(err error) (*Runtime, error) {
		_ = rt.Close()
		return nil, err
	}

	docs, err := c.openDocuments(ctx)
	if err != nil {
		return fail(err)
	}
	// The store closes docs.

	retriever, closeRetriever, err := c.openRetriever()
	if err != nil {
		docs.Close()
		return fail(err)
	}
	if closeRetriever != nil {
		rt.closers = append(rt.closers, closeRetriever)
	}

	storeOpts := []memory.Option{memory.WithConfig(c.MemoryOptions())}
	if m := c.openMerger(); m != nil {
		storeOpts = append(storeOpts, memory.WithMerger(m))
	}
	storeOpts = append(storeOpts, opts...)

	s, err := memory.Open(ctx, docs, retriever, storeOpts...)
	if err != nil {
		docs.Close()
		return fail(err)
	}
	rt.Store = s
	rt.closers = append(rt.closers, s.Close)

	log.WithFields(log.Fields{
		"store":     c.Store.Backend,
		"retriever": c.Retriever.Backend,
		"embedder":  c.Embedder.Backend,
		"merger":    c.Merger.Backend,
	}).Debug("opened memory store")
	return rt, nil
}

func (c *Config) openDocuments(ctx context.Context) (memory.DocumentStore, error) {
	switch c.Store.Backend {
	case "sqlite":
		return sqlite.Open(ctx, c.Store.SQLitePath)
	default:
		return filesystem.New(c.Store.Dir)
	}
}

func (c *Config) openRetriever() (memory.Retriever, func() error, error) {
	if c.Retriever.Backend == "mock" {
		return retrievermock.New(), nil, nil
	}

	embedder, closeEmbedder, err := c.openEmbedder()
	if err != nil {
		return nil, nil, err
	}

	var opts []chromem.Option
	if c.Retriever.PersistDir != "" {
		opts = append(opts, chromem.WithPersistence(c.Retriever.PersistDir, c.Retriever.Compress))
	}
	if c.Retriever.Collection != "" {
		opts = append(opts, chromem.WithCollection(c.Retriever.Collection))
	}
	r, err := chromem.New(embedder, opts...)
	if err != nil {
		if closeEmbedder != nil {
			closeEmbedder()
		}
		return nil, nil, err
	}
	return r, closeEmbedder, nil
}

func (c *Config) openEmbedder() (memory.Embedder, func() error, error) {
	var (
		embedder memory.Embedder
		closer   func() error
	)
	switch c.Embedder.Backend {
	case "onnx":
		if newONNXEmbedder == nil {
			return nil, nil, errors.New("config: embedder.backend onnx requires building with -tags onnx")
		}
		e, cl, err := newONNXEmbedder(c.Embedder)
		if err != nil {
			return nil, nil, fmt.Errorf("onnx embedder: %w", err)
		}
		embedder, closer = e, cl
	default:
		if c.Embedder.Dimensions > 0 {
			embedder = mock.NewWithDimensions(c.Embedder.Dimensions)
		} else {
			embedder = mock.New()
		}
	}

	if c.Embedder.CacheSize <= 0 {
		return embedder, closer, nil
	}
	cached, err := cache.New(embedder, cache.Config{MaxEntries: c.Embedder.CacheSize})
	if err != nil {
		if closer != nil {
			closer()
		}
		return nil, nil, err
	}
	inner := closer
	return cached, func() error {
		cached.Close()
		if inner != nil {
			return inner()
		}
		return nil
	}, nil
}

func (c *Config) openMerger() memory.Merger {
	var m memory.Merger
	switch c.Merger.Backend {
	case "anthropic":
		m = anthropic.New(c.Merger.APIKey, []anthropic.Option{anthropic.WithModel(c.Merger.Model)})
	case "openai":
		m = openai.New(c.Merger.APIKey, c.Merger.BaseURL, c.Merger.Model)
	default:
		return nil
	}
	return merger.Limited(m, merger.NewLimiter(c.Merger.RateLimit))
}
