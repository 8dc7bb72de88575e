package rag

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/vibhup/docrag/internal/errors"
)

const (
	// DefaultGenerationModel is the answer model invoked when none is
	// configured.
	DefaultGenerationModel = "anthropic.claude-3-5-sonnet-20240620-v1:0"

	// DefaultMaxAnswerTokens bounds the generated answer.
	DefaultMaxAnswerTokens = 4000

	// DefaultTemperature keeps answers close to the documentation.
	DefaultTemperature = 0.1

	// DefaultAnthropicVersion is the invoke API version header.
	DefaultAnthropicVersion = "bedrock-2023-05-31"

	// DefaultSynthesisTimeout bounds one generation call. Generation is
	// much slower than embedding or search.
	DefaultSynthesisTimeout = 120 * time.Second
)

// promptTemplate is the fixed answer prompt. The two placeholders are the
// assembled documentation context and the user's question.
const promptTemplate = `You are an AWS documentation assistant. Answer the question using only the documentation excerpts below. If the excerpts do not contain the answer, say so plainly.

Documentation excerpts:
%s

Question: %s

Structure your response with exactly these sections:

## Answer
A direct answer to the question.

## Key Points
The most important facts, as a short bullet list.

## Recommendations
Practical guidance the documentation supports. Write "None" if it supports none.

## Sources
The source numbers you relied on, e.g. "Source 1, Source 3".

## Related Questions
Up to three follow-up questions these excerpts can answer.`

// BuildPrompt renders the fixed answer prompt.
func BuildPrompt(question, docContext string) string {
	return fmt.Sprintf(promptTemplate, docContext, question)
}

// Answer is one generated answer with the model's token accounting.
// Sections holds the same text decomposed along the prompt's headings.
type Answer struct {
	Text         string
	Sections     Sections
	ModelUsed    string
	InputTokens  int
	OutputTokens int
}

// Synthesizer turns a question plus documentation context into an answer.
type Synthesizer interface {
	Synthesize(ctx context.Context, question, docContext string) (Answer, error)
	ModelName() string
	Close() error
}

// SynthesizerConfig configures the Claude synthesis client.
type SynthesizerConfig struct {
	// Endpoint is the model runtime base URL.
	Endpoint string

	// Model is the model identifier placed in the invoke path.
	Model string

	// MaxTokens bounds the generated answer.
	MaxTokens int

	// Temperature controls sampling. Zero uses DefaultTemperature.
	Temperature float64

	// AnthropicVersion is the invoke API version.
	AnthropicVersion string

	// APIKey, when set, is sent as a bearer token.
	APIKey string

	Timeout  time.Duration
	Retry    errors.RetryConfig
	PoolSize int
}

type synthesisMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type synthesisRequest struct {
	AnthropicVersion string             `json:"anthropic_version"`
	MaxTokens        int                `json:"max_tokens"`
	Temperature      float64            `json:"temperature"`
	Messages         []synthesisMessage `json:"messages"`
}

type synthesisResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// ClaudeSynthesizer generates answers through a Claude-style HTTP invoke
// API. Safe for concurrent use.
type ClaudeSynthesizer struct {
	client    *http.Client
	transport *http.Transport
	config    SynthesizerConfig

	mu     sync.RWMutex
	closed bool
}

var _ Synthesizer = (*ClaudeSynthesizer)(nil)

// NewClaudeSynthesizer creates a synthesis client.
func NewClaudeSynthesizer(cfg SynthesizerConfig) (*ClaudeSynthesizer, error) {
	if cfg.Endpoint == "" {
		return nil, errors.ConfigError("synthesis endpoint is required", nil)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultGenerationModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxAnswerTokens
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = DefaultTemperature
	}
	if cfg.AnthropicVersion == "" {
		cfg.AnthropicVersion = DefaultAnthropicVersion
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultSynthesisTimeout
	}
	if cfg.Retry.MaxRetries == 0 {
		cfg.Retry = errors.DefaultRetryConfig()
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 2
	}

	transport := &http.Transport{
		MaxIdleConns:        cfg.PoolSize,
		MaxIdleConnsPerHost: cfg.PoolSize,
		IdleConnTimeout:     30 * time.Second,
	}

	return &ClaudeSynthesizer{
		client:    &http.Client{Transport: transport},
		transport: transport,
		config:    cfg,
	}, nil
}

// Synthesize generates an answer for the question grounded in the given
// documentation context.
func (s *ClaudeSynthesizer) Synthesize(ctx context.Context, question, docContext string) (Answer, error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return Answer{}, errors.SynthesisError("synthesizer is closed", nil)
	}
	s.mu.RUnlock()

	if strings.TrimSpace(question) == "" {
		return Answer{}, errors.New(errors.ErrCodeQueryEmpty, "question is empty", nil)
	}

	prompt := BuildPrompt(question, docContext)

	return errors.RetryWithResult(ctx, s.config.Retry, func() (Answer, error) {
		return s.invoke(ctx, prompt)
	})
}

func (s *ClaudeSynthesizer) invoke(ctx context.Context, prompt string) (Answer, error) {
	reqBody := synthesisRequest{
		AnthropicVersion: s.config.AnthropicVersion,
		MaxTokens:        s.config.MaxTokens,
		Temperature:      s.config.Temperature,
		Messages: []synthesisMessage{
			{Role: "user", Content: prompt},
		},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return Answer{}, errors.SynthesisError("failed to marshal request", err)
	}

	url := fmt.Sprintf("%s/model/%s/invoke", strings.TrimRight(s.config.Endpoint, "/"), s.config.Model)

	reqCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return Answer{}, errors.SynthesisError("failed to create request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if s.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.config.APIKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		if stderrors.Is(err, context.DeadlineExceeded) || reqCtx.Err() == context.DeadlineExceeded {
			return Answer{}, errors.New(errors.ErrCodeNetworkTimeout, "synthesis request timed out", err)
		}
		return Answer{}, errors.New(errors.ErrCodeNetworkUnavailable, "synthesis endpoint unreachable", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Answer{}, synthesisStatusError(resp.StatusCode, string(body))
	}

	var result synthesisResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Answer{}, errors.SynthesisError("failed to decode response", err)
	}
	if len(result.Content) == 0 || strings.TrimSpace(result.Content[0].Text) == "" {
		return Answer{}, errors.SynthesisError("model returned no answer text", nil)
	}

	text := result.Content[0].Text
	return Answer{
		Text:         text,
		Sections:     SplitAnswer(text),
		ModelUsed:    s.config.Model,
		InputTokens:  result.Usage.InputTokens,
		OutputTokens: result.Usage.OutputTokens,
	}, nil
}

func synthesisStatusError(status int, body string) *errors.PipelineError {
	msg := fmt.Sprintf("synthesis failed with status %d: %s", status, strings.TrimSpace(body))
	switch {
	case status == http.StatusTooManyRequests:
		return errors.New(errors.ErrCodeThrottled, msg, nil)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return errors.New(errors.ErrCodeAuthFailed, msg, nil)
	case status >= 500:
		return errors.New(errors.ErrCodeNetworkUnavailable, msg, nil)
	default:
		return errors.SynthesisError(msg, nil)
	}
}

// ModelName returns the model identifier.
func (s *ClaudeSynthesizer) ModelName() string {
	return s.config.Model
}

// Close shuts down idle connections.
func (s *ClaudeSynthesizer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.transport.CloseIdleConnections()
	return nil
}
