// Package index turns a directory of markdown documentation into an
// embedded, searchable corpus.
package index

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vibhup/docrag/internal/chunk"
	"github.com/vibhup/docrag/internal/embed"
	"github.com/vibhup/docrag/internal/errors"
	"github.com/vibhup/docrag/internal/vector"
)

// DefaultConcurrency is the number of documents processed in parallel.
// Embedding dominates the cost, so this also bounds in-flight model calls.
const DefaultConcurrency = 4

// Config configures an indexing run.
type Config struct {
	// DocsDir is the root directory scanned for .md files.
	DocsDir string

	// ChunksDir, when set, receives one JSON file of chunks per document.
	ChunksDir string

	// DocumentType stamps chunk metadata. Defaults to "markdown".
	DocumentType string

	// Concurrency bounds parallel document processing.
	Concurrency int
}

// Record is the persisted form of one chunk: every chunk attribute plus
// the embedding computed for it.
type Record struct {
	chunk.Chunk
	Embedding embed.Record `json:"embedding"`
}

// Failure records one document that could not be indexed.
type Failure struct {
	File  string `json:"file"`
	Error string `json:"error"`
}

// Stats summarizes an indexing run.
type Stats struct {
	DocumentsProcessed int           `json:"documents_processed"`
	DocumentsFailed    int           `json:"documents_failed"`
	ChunksCreated      int           `json:"chunks_created"`
	VectorsIndexed     int           `json:"vectors_indexed"`
	OversizedChunks    int           `json:"oversized_chunks"`
	TokensEmbedded     int           `json:"tokens_embedded"`
	Failures           []Failure     `json:"failures,omitempty"`
	Duration           time.Duration `json:"-"`
	DurationSeconds    float64       `json:"duration_seconds"`
}

// Indexer chunks, embeds and stores documents.
type Indexer struct {
	chunker  *chunk.Chunker
	embedder embed.Embedder
	index    vector.Index
	config   Config
	logger   *slog.Logger
}

// New creates an indexer.
func New(chunker *chunk.Chunker, embedder embed.Embedder, index vector.Index, cfg Config, logger *slog.Logger) *Indexer {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.DocumentType == "" {
		cfg.DocumentType = "markdown"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{
		chunker:  chunker,
		embedder: embedder,
		index:    index,
		config:   cfg,
		logger:   logger,
	}
}

// IndexDirectory indexes every markdown file under DocsDir. A failing
// document is recorded and skipped; it never aborts the batch. The
// returned error is reserved for whole-run failures such as an unreadable
// directory or a cancelled context.
func (ix *Indexer) IndexDirectory(ctx context.Context) (*Stats, error) {
	started := time.Now()

	files, err := ix.collectFiles()
	if err != nil {
		return nil, err
	}

	stats := &Stats{}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.config.Concurrency)

	for _, file := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			docStats, err := ix.IndexDocument(gctx, file)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				stats.DocumentsFailed++
				stats.Failures = append(stats.Failures, Failure{File: file, Error: err.Error()})
				ix.logger.Error("document failed",
					slog.String("file", file),
					slog.String("error", err.Error()))
				return nil
			}
			stats.DocumentsProcessed++
			stats.ChunksCreated += docStats.ChunksCreated
			stats.VectorsIndexed += docStats.VectorsIndexed
			stats.OversizedChunks += docStats.OversizedChunks
			stats.TokensEmbedded += docStats.TokensEmbedded
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	stats.Duration = time.Since(started)
	stats.DurationSeconds = stats.Duration.Seconds()

	ix.logger.Info("indexing complete",
		slog.Int("documents", stats.DocumentsProcessed),
		slog.Int("failed", stats.DocumentsFailed),
		slog.Int("chunks", stats.ChunksCreated),
		slog.Duration("duration", stats.Duration))

	return stats, nil
}

// IndexDocument chunks, embeds and stores one file.
func (ix *Indexer) IndexDocument(ctx context.Context, path string) (*Stats, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(errors.ErrCodeFileRead, "failed to read document", err)
	}

	docID := ix.docID(path)
	doc := chunk.Document{
		ID:         docID,
		SourceFile: filepath.Base(path),
		Content:    string(content),
		Meta: chunk.Metadata{
			ServiceName:  ServiceFromFile(path),
			DocumentType: ix.config.DocumentType,
			ProcessedAt:  time.Now().UTC(),
		},
	}

	chunks, err := ix.chunker.ChunkDocument(doc)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		ix.logger.Debug("document is empty, skipping", slog.String("file", path))
		return &Stats{DocumentsProcessed: 1}, nil
	}

	entries := make([]vector.Entry, 0, len(chunks))
	records := make([]Record, 0, len(chunks))
	docStats := &Stats{ChunksCreated: len(chunks)}

	for _, c := range chunks {
		res, err := ix.embedder.Embed(ctx, c.Body)
		if err != nil {
			return nil, err
		}
		docStats.TokensEmbedded += res.TokenCount
		if c.Oversized {
			docStats.OversizedChunks++
		}

		records = append(records, Record{
			Chunk: c,
			Embedding: embed.Record{
				ChunkID:    c.ID,
				Vector:     res.Vector,
				Dimensions: res.Dimensions,
				Model:      ix.embedder.ModelName(),
				Normalized: res.Normalized,
				TokenCount: res.TokenCount,
				CreatedAt:  time.Now().UTC(),
			},
		})

		entries = append(entries, vector.Entry{
			ID:     c.ID,
			Vector: res.Vector,
			Metadata: vector.Metadata{
				ServiceName:    c.Metadata.ServiceName,
				DocumentType:   c.Metadata.DocumentType,
				SourceFile:     c.Metadata.SourceFile,
				Title:          c.DocTitle,
				Section:        c.SectionTitle,
				ContentPreview: vector.Preview(c.Body),
				ContentLength:  c.CharCount,
				TokenCount:     c.TokenCount,
				Timestamp:      c.Metadata.ProcessedAt.Format(time.RFC3339),
			},
		})
	}

	if err := ix.index.Insert(ctx, entries); err != nil {
		return nil, err
	}
	docStats.VectorsIndexed = len(entries)

	if ix.config.ChunksDir != "" {
		if err := ix.writeChunks(docID, records); err != nil {
			return nil, err
		}
	}

	ix.logger.Debug("document indexed",
		slog.String("file", path),
		slog.Int("chunks", len(chunks)))

	return docStats, nil
}

// collectFiles lists markdown files under DocsDir, sorted by the walk's
// lexical order so runs are deterministic.
func (ix *Indexer) collectFiles() ([]string, error) {
	info, err := os.Stat(ix.config.DocsDir)
	if err != nil {
		return nil, errors.New(errors.ErrCodeFileNotFound, "documentation directory not found", err)
	}
	if !info.IsDir() {
		return nil, errors.ValidationError(fmt.Sprintf("%s is not a directory", ix.config.DocsDir), nil)
	}

	var files []string
	err = filepath.WalkDir(ix.config.DocsDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if IsMarkdown(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.New(errors.ErrCodeFileRead, "failed to scan documentation directory", err)
	}
	return files, nil
}

// writeChunks persists a document's chunk records as JSON, atomically.
func (ix *Indexer) writeChunks(docID string, records []Record) error {
	if err := os.MkdirAll(ix.config.ChunksDir, 0o755); err != nil {
		return errors.New(errors.ErrCodeRecordWrite, "failed to create chunks directory", err)
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return errors.New(errors.ErrCodeRecordWrite, "failed to marshal chunks", err)
	}

	name := strings.NewReplacer("/", "__", "\\", "__").Replace(docID) + ".json"
	path := filepath.Join(ix.config.ChunksDir, name)
	tmp := path + ".tmp"

	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.New(errors.ErrCodeRecordWrite, "failed to write chunks file", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return errors.New(errors.ErrCodeRecordWrite, "failed to replace chunks file", err)
	}
	return nil
}

// docID is the file's path relative to DocsDir, without the extension.
func (ix *Indexer) docID(path string) string {
	rel, err := filepath.Rel(ix.config.DocsDir, path)
	if err != nil {
		rel = filepath.Base(path)
	}
	rel = filepath.ToSlash(rel)
	return strings.TrimSuffix(rel, filepath.Ext(rel))
}

// IsMarkdown reports whether the path names a markdown file.
func IsMarkdown(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".md" || ext == ".markdown"
}

// ServiceFromFile derives the service name from a documentation file
// name: the leading token before the first separator, lowercased.
// "s3-user-guide.md" yields "s3".
func ServiceFromFile(path string) string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	base = strings.ToLower(base)
	for i, r := range base {
		if r == '-' || r == '_' || r == '.' {
			return base[:i]
		}
	}
	return base
}
