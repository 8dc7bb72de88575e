package cmd

import (
	"log/slog"

	"github.com/vibhup/docrag/internal/chunk"
	"github.com/vibhup/docrag/internal/config"
	"github.com/vibhup/docrag/internal/embed"
	"github.com/vibhup/docrag/internal/errors"
	"github.com/vibhup/docrag/internal/rag"
	"github.com/vibhup/docrag/internal/token"
	"github.com/vibhup/docrag/internal/vector"
)

// newChunker builds the document chunker from configuration. The exact
// tokenizer is preferred; the estimator fallback is logged once.
func newChunker(cfg *config.Config) *chunk.Chunker {
	counter := newCounter()
	return chunk.New(counter, chunk.Options{
		MaxTokens:      cfg.Chunking.MaxTokens,
		OverlapTokens:  cfg.Chunking.OverlapTokens,
		MinChunkTokens: cfg.Chunking.MinChunkTokens,
	})
}

func newCounter() token.Counter {
	counter, exact := token.NewCounter()
	if !exact {
		slog.Warn("tokenizer encoding unavailable, using character estimate")
	}
	return counter
}

// newEmbedder builds the embedding client, wrapped in an LRU cache when
// cache_size is positive.
func newEmbedder(cfg *config.Config) (embed.Embedder, error) {
	titan, err := embed.NewTitanEmbedder(embed.TitanConfig{
		Endpoint:   cfg.Embedding.Endpoint,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Normalize:  cfg.Embedding.Normalize,
		APIKey:     cfg.Embedding.APIKey,
		Timeout:    cfg.Embedding.Timeout.Std(),
		Retry:      errors.DefaultRetryConfig(),
	})
	if err != nil {
		return nil, err
	}
	if cfg.Embedding.CacheSize > 0 {
		return embed.NewCachedEmbedder(titan, cfg.Embedding.CacheSize), nil
	}
	return titan, nil
}

// newVectorIndex builds the configured vector index backend.
func newVectorIndex(cfg *config.Config) (vector.Index, error) {
	switch cfg.Vector.Backend {
	case "remote":
		return vector.NewRemoteIndex(vector.RemoteConfig{
			Endpoint:  cfg.Vector.Endpoint,
			Bucket:    cfg.Vector.Bucket,
			IndexName: cfg.Vector.IndexName,
			APIKey:    cfg.Vector.APIKey,
			Retry:     errors.DefaultRetryConfig(),
		})
	default:
		return vector.OpenLocal(vector.LocalConfig{
			Dir:        cfg.Vector.Dir,
			Dimensions: cfg.Embedding.Dimensions,
		})
	}
}

// newSynthesizer builds the answer generation client.
func newSynthesizer(cfg *config.Config) (rag.Synthesizer, error) {
	return rag.NewClaudeSynthesizer(rag.SynthesizerConfig{
		Endpoint:    cfg.Synthesis.Endpoint,
		Model:       cfg.Synthesis.Model,
		MaxTokens:   cfg.Synthesis.MaxTokens,
		Temperature: cfg.Synthesis.Temperature,
		APIKey:      cfg.Synthesis.APIKey,
		Timeout:     cfg.Synthesis.Timeout.Std(),
		Retry:       errors.DefaultRetryConfig(),
	})
}
