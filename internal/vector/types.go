// Package vector provides similarity search over chunk embeddings, either
// through a remote vector bucket API or a local on-disk index.
package vector

import (
	"context"
	"math"
)

const (
	// DefaultTopK is the number of neighbors returned when unspecified.
	DefaultTopK = 5

	// PreviewLength is the number of characters of chunk content carried
	// in result metadata.
	PreviewLength = 200
)

// Metadata is the closed set of attributes stored alongside a vector and
// returned with search results.
type Metadata struct {
	ServiceName    string `json:"service_name,omitempty"`
	DocumentType   string `json:"document_type,omitempty"`
	SourceFile     string `json:"source_file,omitempty"`
	Title          string `json:"title,omitempty"`
	Section        string `json:"section,omitempty"`
	ContentPreview string `json:"content_preview,omitempty"`
	ContentLength  int    `json:"content_length,omitempty"`
	TokenCount     int    `json:"token_count,omitempty"`
	Timestamp      string `json:"timestamp,omitempty"`
}

// Entry is one vector to insert, keyed by its chunk ID.
type Entry struct {
	ID       string
	Vector   []float32
	Metadata Metadata
}

// QueryOptions controls a similarity search.
type QueryOptions struct {
	// TopK is the number of neighbors to return. Zero means DefaultTopK.
	TopK int

	// ReturnMetadata includes stored metadata on each result.
	ReturnMetadata bool

	// ServiceFilter restricts results to one service when non-empty.
	ServiceFilter string
}

func (o QueryOptions) withDefaults() QueryOptions {
	if o.TopK <= 0 {
		o.TopK = DefaultTopK
	}
	return o
}

// SearchResult is one ranked neighbor.
type SearchResult struct {
	ID         string
	Distance   float32
	Similarity float64 // Percentage in [0, 100], derived from distance
	Metadata   Metadata
}

// Index is a store of chunk embeddings supporting nearest-neighbor search.
type Index interface {
	// Insert adds or replaces vectors by ID.
	Insert(ctx context.Context, entries []Entry) error

	// Query returns the nearest neighbors of the given vector, ordered by
	// descending similarity. An empty index yields an empty slice.
	Query(ctx context.Context, query []float32, opts QueryOptions) ([]SearchResult, error)

	// Close releases resources.
	Close() error
}

// Preview truncates content to PreviewLength characters for metadata,
// rune-safe so multi-byte text never splits mid-character.
func Preview(content string) string {
	runes := []rune(content)
	if len(runes) <= PreviewLength {
		return content
	}
	return string(runes[:PreviewLength]) + "..."
}

// similarityFromDistance maps a cosine distance to the 0-100 similarity
// scale reported to users.
func similarityFromDistance(distance float32) float64 {
	sim := (1 - float64(distance)) * 100
	return math.Max(0, math.Min(100, sim))
}

// normalizeInPlace scales a vector to unit length.
func normalizeInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return
	}
	for i, val := range v {
		v[i] = float32(float64(val) / magnitude)
	}
}
