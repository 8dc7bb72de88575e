package embed

import (
	"context"
	"math"
	"time"
)

const (
	// DefaultModel is the embedding model invoked when none is configured.
	DefaultModel = "amazon.titan-embed-text-v2:0"

	// DefaultDimensions is the output dimension requested from the model.
	DefaultDimensions = 1024

	// MaxInputTokens is the model's hard input limit. Chunking keeps well
	// under this, but oversized chunks may still approach it.
	MaxInputTokens = 8192

	// DefaultTimeout bounds a single model invocation.
	DefaultTimeout = 30 * time.Second

	// DefaultCacheSize is the number of embeddings kept by CachedEmbedder.
	// At 1024 dimensions * 4 bytes * 1000 entries it stays around 4MB.
	DefaultCacheSize = 1000
)

// Result is one computed embedding with the model's token accounting.
type Result struct {
	Vector     []float32
	Dimensions int
	TokenCount int // Input tokens as counted by the model itself
	Normalized bool
}

// Record is a persisted embedding keyed by the chunk it was computed from.
type Record struct {
	ChunkID    string    `json:"chunk_id"`
	Vector     []float32 `json:"vector"`
	Dimensions int       `json:"dimensions"`
	Model      string    `json:"model"`
	Normalized bool      `json:"normalized"`
	TokenCount int       `json:"token_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed computes the embedding for a single text.
	Embed(ctx context.Context, text string) (Result, error)

	// Dimensions returns the embedding dimension.
	Dimensions() int

	// ModelName returns the model identifier.
	ModelName() string

	// Close releases resources.
	Close() error
}

// normalizeVector scales a vector to unit length. Zero vectors are
// returned unchanged.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}

	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}

	normalized := make([]float32, len(v))
	for i, val := range v {
		normalized[i] = float32(float64(val) / magnitude)
	}
	return normalized
}
