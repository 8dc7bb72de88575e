package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vibhup/docrag/internal/output"
	"github.com/vibhup/docrag/internal/rag"
)

// queryOptions holds CLI flags for query.
type queryOptions struct {
	topK    int
	service string
	format  string // "text", "json"
	verbose bool
}

// newQueryCmd creates the query command.
func newQueryCmd() *cobra.Command {
	var opts queryOptions

	cmd := &cobra.Command{
		Use:   "query <question>",
		Short: "Ask a question against the indexed documentation",
		Long: `Embed the question, retrieve the most similar documentation chunks
and synthesize a cited answer.

Examples:
  docrag query "How does S3 versioning work?"
  docrag query "How do I size a Lambda function?" --service lambda
  docrag query "What is a DynamoDB partition key?" --top-k 3 --format json
  docrag query "How do security groups differ from NACLs?" --verbose`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.Join(args, " ")
			return runQuery(cmd.Context(), cmd, question, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.topK, "top-k", "k", 0, "Number of chunks to retrieve (default from config)")
	cmd.Flags().StringVarP(&opts.service, "service", "s", "", "Restrict retrieval to one service (e.g. s3, lambda)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Show the execution trace")

	return cmd
}

func runQuery(ctx context.Context, cmd *cobra.Command, question string, opts queryOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if opts.topK > 0 {
		cfg.Query.TopK = opts.topK
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

	synth, err := newSynthesizer(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = synth.Close() }()

	pipeline := rag.NewPipeline(embedder, vectorIndex, synth, newCounter(), slog.Default())

	resp, err := pipeline.Query(ctx, question, rag.QueryOptions{
		TopK:             cfg.Query.TopK,
		ServiceFilter:    opts.service,
		MaxContextTokens: cfg.Query.MaxContextTokens,
	})
	if err != nil {
		return err
	}

	if opts.format == "json" {
		return out.JSON(resp)
	}
	out.Response(resp, opts.verbose)
	return nil
}
