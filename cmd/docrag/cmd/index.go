package cmd

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vibhup/docrag/internal/index"
	"github.com/vibhup/docrag/internal/output"
)

// indexOptions holds CLI flags for index.
type indexOptions struct {
	docsDir     string
	chunksDir   string
	concurrency int
	watch       bool
	format      string // "text", "json"
}

// newIndexCmd creates the index command.
func newIndexCmd() *cobra.Command {
	var opts indexOptions

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Chunk, embed and index documentation",
		Long: `Walk the documentation directory, chunk every markdown file, embed
the chunks and insert them into the vector index.

With --watch, docrag keeps running after the initial pass and
re-indexes files as they change.

Examples:
  docrag index --docs ./docs
  docrag index --docs ./docs --chunks-dir ./chunks
  docrag index --docs ./docs --watch`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIndex(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.docsDir, "docs", "", "Documentation directory (default from config)")
	cmd.Flags().StringVar(&opts.chunksDir, "chunks-dir", "", "Write chunk JSON files here (optional)")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 0, "Parallel document workers (default from config)")
	cmd.Flags().BoolVarP(&opts.watch, "watch", "w", false, "Keep watching for file changes after the initial pass")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, opts indexOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if opts.docsDir != "" {
		cfg.Indexing.DocsDir = opts.docsDir
	}
	if opts.chunksDir != "" {
		cfg.Indexing.ChunksDir = opts.chunksDir
	}
	if opts.concurrency > 0 {
		cfg.Indexing.Concurrency = opts.concurrency
	}

	out := output.New(cmd.OutOrStdout())

	embedder, err := newEmbedder(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = embedder.Close() }()

	vectorIndex, err := newVectorIndex(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = vectorIndex.Close() }()

	indexer := index.New(newChunker(cfg), embedder, vectorIndex, index.Config{
		DocsDir:     cfg.Indexing.DocsDir,
		ChunksDir:   cfg.Indexing.ChunksDir,
		Concurrency: cfg.Indexing.Concurrency,
	}, slog.Default())

	out.Statusf("📚", "indexing %s", cfg.Indexing.DocsDir)
	stats, err := indexer.IndexDirectory(ctx)
	if err != nil {
		return err
	}

	if opts.format == "json" {
		if err := out.JSON(stats); err != nil {
			return err
		}
	} else {
		out.Stats(stats)
	}
	if stats.DocumentsFailed == 0 {
		out.Success("index complete")
	} else {
		out.Warningf("index complete with %d failure(s)", stats.DocumentsFailed)
	}

	if !opts.watch {
		return nil
	}

	watcher, err := index.NewWatcher(indexer, index.DefaultDebounceWindow, slog.Default())
	if err != nil {
		return err
	}

	watchCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	out.Statusf("👀", "watching %s for changes (Ctrl-C to stop)", cfg.Indexing.DocsDir)
	if err := watcher.Run(watchCtx); err != nil && watchCtx.Err() == nil {
		return err
	}
	out.Newline()
	out.Success("watch stopped")
	return nil
}
