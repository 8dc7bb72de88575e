package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/vibhup/docrag/internal/embed"
	"github.com/vibhup/docrag/internal/errors"
	"github.com/vibhup/docrag/internal/token"
	"github.com/vibhup/docrag/internal/trace"
	"github.com/vibhup/docrag/internal/vector"
)

// Stage identifies where a request is in the pipeline. Failures are
// tagged with the stage they occurred in.
type Stage string

const (
	StageReceived     Stage = "received"
	StageEmbedding    Stage = "embedding"
	StageSearching    Stage = "searching"
	StageAssembling   Stage = "assembling_context"
	StageSynthesizing Stage = "synthesizing"
	StageCompleted    Stage = "completed"
	StageFailed       Stage = "failed"
)

// noResultsAnswer is returned when the index has nothing relevant. No
// synthesis call is made in that case.
const noResultsAnswer = "No relevant documentation was found for this question. " +
	"Try rephrasing it, or ask about a specific service such as S3, EC2 or Lambda."

// Response is the complete result of one pipeline run.
type Response struct {
	Question           string      `json:"question"`
	Answer             string      `json:"answer"`
	Sections           Sections    `json:"sections"`
	Sources            []Source    `json:"sources"`
	Timestamp          time.Time   `json:"timestamp"`
	ModelUsed          string      `json:"model_used"`
	DocumentsRetrieved int         `json:"documents_retrieved"`
	TechnicalDetails   trace.Trace `json:"technical_details"`
}

// QueryOptions tunes one pipeline run.
type QueryOptions struct {
	// TopK is the number of chunks to retrieve. Zero uses the index default.
	TopK int

	// ServiceFilter restricts retrieval to one service when non-empty.
	ServiceFilter string

	// MaxContextTokens bounds the assembled context. Zero uses
	// DefaultMaxContextTokens.
	MaxContextTokens int
}

// Pipeline wires embedding, retrieval, context assembly and synthesis
// into the question-answering flow. Safe for concurrent use; each run
// gets its own tracker.
type Pipeline struct {
	embedder embed.Embedder
	index    vector.Index
	synth    Synthesizer
	counter  token.Counter
	logger   *slog.Logger
}

// NewPipeline assembles a pipeline from its stages.
func NewPipeline(embedder embed.Embedder, index vector.Index, synth Synthesizer, counter token.Counter, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		embedder: embedder,
		index:    index,
		synth:    synth,
		counter:  counter,
		logger:   logger,
	}
}

// Query answers a question from the indexed documentation. The returned
// response always carries the execution trace; on error the stage tag
// and the trace collected so far are attached to the error instead.
func (p *Pipeline) Query(ctx context.Context, question string, opts QueryOptions) (*Response, error) {
	tracker := trace.NewTracker()
	started := time.Now().UTC()

	question = strings.TrimSpace(question)
	if question == "" {
		return nil, errors.New(errors.ErrCodeQueryEmpty, "question is empty", nil).
			WithStage(string(StageReceived))
	}

	tracker.AddStep(string(StageReceived), "question received", trace.StatusCompleted)
	p.logger.Info("query received", slog.String("stage", string(StageReceived)))

	// Embed the question.
	tracker.AddStep(string(StageEmbedding), "embedding the question", trace.StatusStarted)
	embedded, err := p.embedder.Embed(ctx, question)
	if err != nil {
		return nil, p.fail(tracker, StageEmbedding, err)
	}
	tracker.AddAPICall("embedding", "invoke", map[string]string{
		"model":        p.embedder.ModelName(),
		"input_tokens": fmt.Sprintf("%d", embedded.TokenCount),
	})
	tracker.AddStep(string(StageEmbedding), "embedding the question", trace.StatusCompleted)

	// Search the index.
	tracker.AddStep(string(StageSearching), "searching the vector index", trace.StatusStarted)
	results, err := p.index.Query(ctx, embedded.Vector, vector.QueryOptions{
		TopK:           opts.TopK,
		ReturnMetadata: true,
		ServiceFilter:  opts.ServiceFilter,
	})
	if err != nil {
		return nil, p.fail(tracker, StageSearching, err)
	}
	tracker.AddAPICall("vectors", "QueryVectors", map[string]string{
		"results": fmt.Sprintf("%d", len(results)),
	})
	tracker.AddStep(string(StageSearching), "searching the vector index", trace.StatusCompleted)
	tracker.AddMetric("documents_retrieved", float64(len(results)))

	// Nothing relevant: answer without synthesis.
	if len(results) == 0 {
		tracker.AddStep(string(StageCompleted), "no matching documentation", trace.StatusCompleted)
		p.logger.Info("query completed without results", slog.String("stage", string(StageCompleted)))
		return &Response{
			Question:           question,
			Answer:             noResultsAnswer,
			Sections:           Sections{Answer: noResultsAnswer},
			Sources:            []Source{},
			Timestamp:          started,
			ModelUsed:          p.synth.ModelName(),
			DocumentsRetrieved: 0,
			TechnicalDetails:   tracker.Summary(),
		}, nil
	}

	// Assemble the documentation context.
	tracker.AddStep(string(StageAssembling), "assembling documentation context", trace.StatusStarted)
	assembled := AssembleContext(results, p.counter, opts.MaxContextTokens)
	tracker.AddMetric("context_tokens", float64(assembled.TokensUsed))
	if assembled.Dropped > 0 {
		tracker.AddMetric("context_chunks_dropped", float64(assembled.Dropped))
		p.logger.Warn("context budget dropped chunks",
			slog.Int("dropped", assembled.Dropped),
			slog.String("stage", string(StageAssembling)))
	}
	tracker.AddStep(string(StageAssembling), "assembling documentation context", trace.StatusCompleted)

	// Generate the answer.
	tracker.AddStep(string(StageSynthesizing), "generating the answer", trace.StatusStarted)
	answer, err := p.synth.Synthesize(ctx, question, assembled.Text)
	if err != nil {
		return nil, p.fail(tracker, StageSynthesizing, err)
	}
	tracker.AddAPICall("generation", "invoke", map[string]string{
		"model":         answer.ModelUsed,
		"input_tokens":  fmt.Sprintf("%d", answer.InputTokens),
		"output_tokens": fmt.Sprintf("%d", answer.OutputTokens),
	})
	tracker.AddStep(string(StageSynthesizing), "generating the answer", trace.StatusCompleted)
	tracker.AddStep(string(StageCompleted), "response assembled", trace.StatusCompleted)

	p.logger.Info("query completed",
		slog.Int("documents_retrieved", len(results)),
		slog.Int("sources_used", len(assembled.Sources)),
		slog.String("stage", string(StageCompleted)))

	return &Response{
		Question:           question,
		Answer:             answer.Text,
		Sections:           answer.Sections,
		Sources:            assembled.Sources,
		Timestamp:          started,
		ModelUsed:          answer.ModelUsed,
		DocumentsRetrieved: len(results),
		TechnicalDetails:   tracker.Summary(),
	}, nil
}

// fail records the failed stage and tags the error with it. The trace
// collected so far rides along as an error detail so a failed run still
// shows where the time went.
func (p *Pipeline) fail(tracker *trace.Tracker, stage Stage, err error) error {
	tracker.AddStep(string(stage), "stage failed", trace.StatusFailed)
	p.logger.Error("pipeline stage failed",
		slog.String("stage", string(stage)),
		slog.String("error", err.Error()))

	pe, ok := errors.FromError(err)
	if !ok {
		pe = errors.InternalError("pipeline stage failed", err)
	}
	if pe.Stage == "" {
		pe = pe.WithStage(string(stage))
	}
	if summary, merr := json.Marshal(tracker.Summary()); merr == nil {
		pe = pe.WithDetail("trace", string(summary))
	}
	return pe
}
