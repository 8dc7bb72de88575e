package rag

import (
	"fmt"
	"strings"

	"github.com/vibhup/docrag/internal/token"
	"github.com/vibhup/docrag/internal/vector"
)

// DefaultMaxContextTokens bounds the assembled documentation context so
// the prompt stays well inside the generation model's window.
const DefaultMaxContextTokens = 8000

// Source describes one retrieved chunk as cited in a response. Source
// numbers match the **Source N** blocks in the prompt context.
type Source struct {
	Number      int     `json:"source_number"`
	ChunkID     string  `json:"chunk_id"`
	Title       string  `json:"title,omitempty"`
	Section     string  `json:"section,omitempty"`
	ServiceName string  `json:"service_name,omitempty"`
	SourceFile  string  `json:"source_file,omitempty"`
	Similarity  float64 `json:"similarity"`
	Preview     string  `json:"preview,omitempty"`
}

// Assembled is the documentation context built from search results.
type Assembled struct {
	Text       string
	Sources    []Source
	TokensUsed int
	Dropped    int // Results dropped whole to honor the token budget
}

// AssembleContext formats ranked search results into numbered source
// blocks within a token budget. A result whose block would overflow the
// budget is dropped whole, never truncated, and later results still get
// a chance to fit.
func AssembleContext(results []vector.SearchResult, counter token.Counter, maxTokens int) Assembled {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxContextTokens
	}

	var b strings.Builder
	var sources []Source
	used := 0
	dropped := 0

	for _, r := range results {
		block := formatSourceBlock(len(sources)+1, r)
		cost := counter.Count(block)
		if used+cost > maxTokens {
			dropped++
			continue
		}

		b.WriteString(block)
		used += cost

		sources = append(sources, Source{
			Number:      len(sources) + 1,
			ChunkID:     r.ID,
			Title:       r.Metadata.Title,
			Section:     r.Metadata.Section,
			ServiceName: r.Metadata.ServiceName,
			SourceFile:  r.Metadata.SourceFile,
			Similarity:  r.Similarity,
			Preview:     r.Metadata.ContentPreview,
		})
	}

	return Assembled{
		Text:       strings.TrimRight(b.String(), "\n"),
		Sources:    sources,
		TokensUsed: used,
		Dropped:    dropped,
	}
}

func formatSourceBlock(number int, r vector.SearchResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**Source %d** (Similarity: %.1f%%)\n", number, r.Similarity)

	var origin []string
	if r.Metadata.ServiceName != "" {
		origin = append(origin, "Service: "+r.Metadata.ServiceName)
	}
	if r.Metadata.Title != "" {
		origin = append(origin, "Document: "+r.Metadata.Title)
	}
	if r.Metadata.Section != "" {
		origin = append(origin, "Section: "+r.Metadata.Section)
	}
	if len(origin) > 0 {
		b.WriteString(strings.Join(origin, " | "))
		b.WriteString("\n")
	}

	b.WriteString(r.Metadata.ContentPreview)
	b.WriteString("\n\n")
	return b.String()
}
