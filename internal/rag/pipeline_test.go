package rag

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vibhup/docrag/internal/embed"
	"github.com/vibhup/docrag/internal/errors"
	"github.com/vibhup/docrag/internal/trace"
	"github.com/vibhup/docrag/internal/vector"
)

type fakeEmbedder struct {
	err   error
	calls int
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) (embed.Result, error) {
	f.calls++
	if f.err != nil {
		return embed.Result{}, f.err
	}
	return embed.Result{Vector: []float32{0.1, 0.2}, Dimensions: 2, TokenCount: len(text)}, nil
}

func (f *fakeEmbedder) Dimensions() int   { return 2 }
func (f *fakeEmbedder) ModelName() string { return "fake-embed" }
func (f *fakeEmbedder) Close() error      { return nil }

type fakeIndex struct {
	results  []vector.SearchResult
	err      error
	lastOpts vector.QueryOptions
}

func (f *fakeIndex) Insert(context.Context, []vector.Entry) error { return nil }

func (f *fakeIndex) Query(_ context.Context, _ []float32, opts vector.QueryOptions) ([]vector.SearchResult, error) {
	f.lastOpts = opts
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

func (f *fakeIndex) Close() error { return nil }

type fakeSynth struct {
	err         error
	calls       int
	lastContext string
}

func (f *fakeSynth) Synthesize(_ context.Context, _, docContext string) (Answer, error) {
	f.calls++
	f.lastContext = docContext
	if f.err != nil {
		return Answer{}, f.err
	}
	return Answer{Text: "## Answer\nGenerated.", ModelUsed: "fake-model", InputTokens: 10, OutputTokens: 5}, nil
}

func (f *fakeSynth) ModelName() string { return "fake-model" }
func (f *fakeSynth) Close() error      { return nil }

func testPipeline(idx *fakeIndex, emb *fakeEmbedder, syn *fakeSynth) *Pipeline {
	return NewPipeline(emb, idx, syn, wordCounter{}, nil)
}

func twoResults() []vector.SearchResult {
	return []vector.SearchResult{
		searchResult("aaaa_001", "s3", "S3 Guide", "Versioning keeps variants.", 88),
		searchResult("bbbb_002", "s3", "S3 Pricing", "Requests are billed per call.", 70),
	}
}

func TestPipeline_Query(t *testing.T) {
	emb := &fakeEmbedder{}
	idx := &fakeIndex{results: twoResults()}
	syn := &fakeSynth{}
	p := testPipeline(idx, emb, syn)

	resp, err := p.Query(context.Background(), "  How does S3 versioning work?  ", QueryOptions{TopK: 2})

	require.NoError(t, err)
	assert.Equal(t, "How does S3 versioning work?", resp.Question)
	assert.Equal(t, "## Answer\nGenerated.", resp.Answer)
	assert.Equal(t, "fake-model", resp.ModelUsed)
	assert.Equal(t, 2, resp.DocumentsRetrieved)
	assert.False(t, resp.Timestamp.IsZero())

	require.Len(t, resp.Sources, 2)
	assert.Equal(t, "aaaa_001", resp.Sources[0].ChunkID)
	assert.Contains(t, syn.lastContext, "**Source 1**")

	// Retrieval always asks for metadata; the context needs it.
	assert.True(t, idx.lastOpts.ReturnMetadata)
	assert.Equal(t, 2, idx.lastOpts.TopK)

	// The trace covers every stage of the run.
	stages := map[string]bool{}
	for _, s := range resp.TechnicalDetails.Steps {
		stages[s.Step] = true
	}
	for _, want := range []Stage{StageReceived, StageEmbedding, StageSearching, StageAssembling, StageSynthesizing, StageCompleted} {
		assert.True(t, stages[string(want)], "missing stage %s in trace", want)
	}
	assert.Equal(t, 2.0, resp.TechnicalDetails.Metrics["documents_retrieved"])
	assert.NotEmpty(t, resp.TechnicalDetails.APICalls)
}

func TestPipeline_EmptyQuestion(t *testing.T) {
	p := testPipeline(&fakeIndex{}, &fakeEmbedder{}, &fakeSynth{})

	_, err := p.Query(context.Background(), "   ", QueryOptions{})

	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeQueryEmpty, errors.GetCode(err))
	assert.Equal(t, string(StageReceived), errors.GetStage(err))
}

func TestPipeline_NoResultsShortCircuits(t *testing.T) {
	syn := &fakeSynth{}
	p := testPipeline(&fakeIndex{results: nil}, &fakeEmbedder{}, syn)

	resp, err := p.Query(context.Background(), "question about nothing indexed", QueryOptions{})

	require.NoError(t, err)
	assert.Equal(t, noResultsAnswer, resp.Answer)
	assert.NotNil(t, resp.Sources)
	assert.Empty(t, resp.Sources)
	assert.Zero(t, resp.DocumentsRetrieved)
	assert.Zero(t, syn.calls, "synthesis must be skipped without results")
}

func TestPipeline_ServiceFilterPropagates(t *testing.T) {
	idx := &fakeIndex{results: twoResults()}
	p := testPipeline(idx, &fakeEmbedder{}, &fakeSynth{})

	_, err := p.Query(context.Background(), "question", QueryOptions{ServiceFilter: "ec2"})

	require.NoError(t, err)
	assert.Equal(t, "ec2", idx.lastOpts.ServiceFilter)
}

func TestPipeline_StageTagging(t *testing.T) {
	t.Run("embedding failure", func(t *testing.T) {
		emb := &fakeEmbedder{err: errors.EmbeddingError("model down", nil)}
		p := testPipeline(&fakeIndex{}, emb, &fakeSynth{})

		_, err := p.Query(context.Background(), "question", QueryOptions{})

		require.Error(t, err)
		assert.Equal(t, errors.ErrCodeEmbeddingFailed, errors.GetCode(err))
		assert.Equal(t, string(StageEmbedding), errors.GetStage(err))
	})

	t.Run("search failure", func(t *testing.T) {
		idx := &fakeIndex{err: errors.SearchError("index unreachable", nil)}
		p := testPipeline(idx, &fakeEmbedder{}, &fakeSynth{})

		_, err := p.Query(context.Background(), "question", QueryOptions{})

		require.Error(t, err)
		assert.Equal(t, errors.ErrCodeSearchFailed, errors.GetCode(err))
		assert.Equal(t, string(StageSearching), errors.GetStage(err))
	})

	t.Run("synthesis failure", func(t *testing.T) {
		syn := &fakeSynth{err: errors.SynthesisError("generation failed", nil)}
		p := testPipeline(&fakeIndex{results: twoResults()}, &fakeEmbedder{}, syn)

		_, err := p.Query(context.Background(), "question", QueryOptions{})

		require.Error(t, err)
		assert.Equal(t, errors.ErrCodeSynthesisFailed, errors.GetCode(err))
		assert.Equal(t, string(StageSynthesizing), errors.GetStage(err))
	})
}

func TestPipeline_FailureCarriesTrace(t *testing.T) {
	syn := &fakeSynth{err: errors.SynthesisError("generation failed", nil)}
	p := testPipeline(&fakeIndex{results: twoResults()}, &fakeEmbedder{}, syn)

	_, err := p.Query(context.Background(), "question", QueryOptions{})

	require.Error(t, err)
	pe, ok := errors.FromError(err)
	require.True(t, ok)
	require.NotEmpty(t, pe.Details["trace"])

	// The detail is the trace collected up to the failure, ending with
	// the failed step.
	var tr trace.Trace
	require.NoError(t, json.Unmarshal([]byte(pe.Details["trace"]), &tr))
	require.NotEmpty(t, tr.Steps)
	last := tr.Steps[len(tr.Steps)-1]
	assert.Equal(t, string(StageSynthesizing), last.Step)
	assert.Equal(t, trace.StatusFailed, last.Status)
	assert.Equal(t, 2.0, tr.Metrics["documents_retrieved"])
}
