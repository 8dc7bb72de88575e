package chunk

import (
	"time"
)

// Chunk size defaults. MaxTokens is deliberately conservative against the
// embedding model's 8192-token hard limit.
const (
	DefaultMaxTokens      = 6000
	DefaultOverlapTokens  = 200
	DefaultMinChunkTokens = 100
)

// Options configures the document chunker.
type Options struct {
	MaxTokens      int // Maximum tokens per chunk (zero: DefaultMaxTokens)
	OverlapTokens  int // Tokens carried between consecutive chunks; zero disables overlap
	MinChunkTokens int // Floor below which a chunk is merged with a neighbor (zero: DefaultMinChunkTokens)
}

// DefaultOptions returns the standard chunking configuration.
func DefaultOptions() Options {
	return Options{
		MaxTokens:      DefaultMaxTokens,
		OverlapTokens:  DefaultOverlapTokens,
		MinChunkTokens: DefaultMinChunkTokens,
	}
}

// withDefaults sanitizes the options. OverlapTokens zero is respected as
// an explicit no-overlap setting; the overlap window must stay below
// MaxTokens so every chunk makes forward progress.
func (o Options) withDefaults() Options {
	if o.MaxTokens <= 0 {
		o.MaxTokens = DefaultMaxTokens
	}
	if o.OverlapTokens < 0 {
		o.OverlapTokens = 0
	}
	if o.OverlapTokens >= o.MaxTokens {
		o.OverlapTokens = o.MaxTokens - 1
	}
	if o.MinChunkTokens <= 0 {
		o.MinChunkTokens = DefaultMinChunkTokens
	}
	return o
}

// Document is the input to the chunker: one source document with identity
// and provenance metadata.
type Document struct {
	ID         string   // Stable document identifier
	SourceFile string   // Original file name
	Content    string   // Raw markdown text
	Meta       Metadata // Provenance carried onto every chunk
}

// Section is one heading-delimited unit of a document. Sections form a
// total order matching document appearance order and are discarded after
// chunking.
type Section struct {
	DocID   string
	Title   string
	Level   int    // Heading level 1-6; preamble sections use level 1
	Ordinal int    // 0-based position within the document
	Body    string // Heading line plus all text up to the next significant heading
}

// Metadata is the closed set of provenance fields attached to a chunk.
// Extra holds deployment-specific attributes that have no named field.
type Metadata struct {
	ServiceName  string            `json:"service_name,omitempty"`
	DocumentType string            `json:"document_type,omitempty"`
	SourceFile   string            `json:"source_file,omitempty"`
	ProcessedAt  time.Time         `json:"processed_at,omitempty"`
	Extra        map[string]string `json:"extra,omitempty"`
}

// Chunk is a token-bounded span of document text ready for embedding.
// Immutable once created.
type Chunk struct {
	ID           string   `json:"chunk_id"`
	DocID        string   `json:"source_doc"`
	DocTitle     string   `json:"title"`
	SectionTitle string   `json:"section"`
	Body         string   `json:"content"`
	TokenCount   int      `json:"token_count"`
	CharCount    int      `json:"char_count"`
	Ordinal      int      `json:"chunk_index"`  // 1-based, contiguous per document
	TotalChunks  int      `json:"total_chunks"` // Identical on every chunk of a document
	Overlap      bool     `json:"overlap_with_previous"`
	Oversized    bool     `json:"oversized,omitempty"` // Exceeds MaxTokens even at sentence granularity
	Metadata     Metadata `json:"metadata"`
}
