package rag

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vibhup/docrag/internal/errors"
)

func synthServer(t *testing.T, handler http.HandlerFunc) *ClaudeSynthesizer {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	s, err := NewClaudeSynthesizer(SynthesizerConfig{
		Endpoint: srv.URL,
		Retry: errors.RetryConfig{
			MaxRetries:   2,
			InitialDelay: time.Millisecond,
			MaxDelay:     5 * time.Millisecond,
			Multiplier:   2.0,
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestClaudeSynthesizer_Synthesize(t *testing.T) {
	// Given a server that records the invocation body
	var got synthesisRequest
	s := synthServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/model/"+DefaultGenerationModel+"/invoke", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]any{{"type": "text", "text": "## Answer\nVersioning keeps variants."}},
			"usage":   map[string]any{"input_tokens": 812, "output_tokens": 96},
		})
	})

	// When an answer is synthesized
	answer, err := s.Synthesize(context.Background(), "How does versioning work?", "**Source 1**\ndocs")

	// Then the request carries the full invocation contract
	require.NoError(t, err)
	assert.Equal(t, DefaultAnthropicVersion, got.AnthropicVersion)
	assert.Equal(t, DefaultMaxAnswerTokens, got.MaxTokens)
	assert.InDelta(t, DefaultTemperature, got.Temperature, 1e-9)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
	assert.Contains(t, got.Messages[0].Content, "Question: How does versioning work?")
	assert.Contains(t, got.Messages[0].Content, "**Source 1**\ndocs")

	// And the answer carries text and token accounting
	assert.Equal(t, "## Answer\nVersioning keeps variants.", answer.Text)
	assert.Equal(t, DefaultGenerationModel, answer.ModelUsed)
	assert.Equal(t, 812, answer.InputTokens)
	assert.Equal(t, 96, answer.OutputTokens)
}

func TestClaudeSynthesizer_EmptyQuestionRejected(t *testing.T) {
	s := synthServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected for empty question")
	})

	_, err := s.Synthesize(context.Background(), "  ", "context")

	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeQueryEmpty, errors.GetCode(err))
}

func TestClaudeSynthesizer_EmptyAnswerRejected(t *testing.T) {
	s := synthServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"content": []any{}})
	})

	_, err := s.Synthesize(context.Background(), "question", "context")

	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeSynthesisFailed, errors.GetCode(err))
}

func TestClaudeSynthesizer_StatusMapping(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantCode  string
		wantCalls int
	}{
		{"throttling fails fast", http.StatusTooManyRequests, errors.ErrCodeThrottled, 1},
		{"auth failure fails fast", http.StatusForbidden, errors.ErrCodeAuthFailed, 1},
		{"server errors are retried", http.StatusServiceUnavailable, errors.ErrCodeNetworkUnavailable, 3},
		{"client errors fail as synthesis errors", http.StatusBadRequest, errors.ErrCodeSynthesisFailed, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			s := synthServer(t, func(w http.ResponseWriter, r *http.Request) {
				calls++
				w.WriteHeader(tt.status)
			})

			_, err := s.Synthesize(context.Background(), "question", "context")

			require.Error(t, err)
			assert.Equal(t, tt.wantCode, errors.GetCode(err))
			assert.Equal(t, tt.wantCalls, calls)
		})
	}
}

func TestNewClaudeSynthesizer_RequiresEndpoint(t *testing.T) {
	_, err := NewClaudeSynthesizer(SynthesizerConfig{})

	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConfigInvalid, errors.GetCode(err))
}
