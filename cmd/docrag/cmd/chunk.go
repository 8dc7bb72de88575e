package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/vibhup/docrag/internal/chunk"
	"github.com/vibhup/docrag/internal/errors"
	"github.com/vibhup/docrag/internal/index"
	"github.com/vibhup/docrag/internal/output"
)

// chunkOptions holds CLI flags for chunk.
type chunkOptions struct {
	format    string // "text", "json"
	maxTokens int
	overlap   int
}

// newChunkCmd creates the chunk command: run the chunker over one file
// without embedding or indexing, to inspect chunk boundaries.
func newChunkCmd() *cobra.Command {
	var opts chunkOptions

	cmd := &cobra.Command{
		Use:   "chunk <file>",
		Short: "Chunk a markdown file and print the result",
		Long: `Chunk a single markdown file along heading boundaries and print the
resulting chunks. No embedding or indexing happens; use this to inspect
how a document will be split before running 'docrag index'.

Examples:
  docrag chunk docs/s3-userguide.md
  docrag chunk docs/s3-userguide.md --format json
  docrag chunk README.md --max-tokens 500 --overlap 50`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChunk(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	cmd.Flags().IntVar(&opts.maxTokens, "max-tokens", 0, "Maximum tokens per chunk (default from config)")
	cmd.Flags().IntVar(&opts.overlap, "overlap", 0, "Overlap tokens between chunks (default from config)")

	return cmd
}

func runChunk(cmd *cobra.Command, path string, opts chunkOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if opts.maxTokens > 0 {
		cfg.Chunking.MaxTokens = opts.maxTokens
	}
	if opts.overlap > 0 {
		cfg.Chunking.OverlapTokens = opts.overlap
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return errors.New(errors.ErrCodeFileRead, fmt.Sprintf("failed to read %s", path), err)
	}

	base := filepath.Base(path)
	doc := chunk.Document{
		ID:         strings.TrimSuffix(base, filepath.Ext(base)),
		SourceFile: base,
		Content:    string(data),
		Meta: chunk.Metadata{
			ServiceName:  index.ServiceFromFile(base),
			DocumentType: "markdown",
			ProcessedAt:  time.Now().UTC(),
		},
	}

	chunks, err := newChunker(cfg).ChunkDocument(doc)
	if err != nil {
		return err
	}

	out := output.New(cmd.OutOrStdout())
	if opts.format == "json" {
		return out.JSON(chunks)
	}

	out.Statusf("📄", "%s: %d chunk(s)", path, len(chunks))
	for _, c := range chunks {
		out.Newline()
		out.Rule()
		flags := ""
		if c.Overlap {
			flags += " overlap"
		}
		if c.Oversized {
			flags += " oversized"
		}
		out.Statusf("", "[%d/%d] %s  (%d tokens%s)", c.Ordinal, c.TotalChunks, c.SectionTitle, c.TokenCount, flags)
		out.Status("", preview(c.Body))
	}
	return nil
}

func preview(body string) string {
	const max = 160
	body = strings.Join(strings.Fields(body), " ")
	runes := []rune(body)
	if len(runes) <= max {
		return body
	}
	return string(runes[:max]) + "..."
}
