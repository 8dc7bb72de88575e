package embed

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

// TitanConfig configures the Titan embedding client.
type TitanConfig struct {
	// Endpoint is the model runtime base URL, e.g.
	// https://bedrock-runtime.us-east-1.amazonaws.com
	Endpoint string

	// Model is the model identifier placed in the invoke path.
	Model string

	// Dimensions is the requested output dimension.
	Dimensions int

	// Normalize asks the model for unit-length vectors.
	Normalize bool

	// APIKey, when set, is sent as a bearer token.
	APIKey string

	Timeout time.Duration
	Retry   errors.RetryConfig

	// PoolSize bounds idle HTTP connections.
	PoolSize int
}

// titanRequest is the model invocation body.
type titanRequest struct {
	InputText      string   `json:"inputText"`
	Dimensions     int      `json:"dimensions"`
	Normalize      bool     `json:"normalize"`
	EmbeddingTypes []string `json:"embeddingTypes"`
}

// titanResponse is the model invocation result.
type titanResponse struct {
	Embedding           []float32 `json:"embedding"`
	InputTextTokenCount int       `json:"inputTextTokenCount"`
}

// TitanEmbedder generates embeddings through a Titan-style HTTP invoke
// API. Safe for concurrent use.
type TitanEmbedder struct {
	client    *http.Client
	transport *http.Transport
	config    TitanConfig

	mu     sync.RWMutex
	closed bool
}

var _ Embedder = (*TitanEmbedder)(nil)

// NewTitanEmbedder creates a Titan embedding client.
func NewTitanEmbedder(cfg TitanConfig) (*TitanEmbedder, error) {
	if cfg.Endpoint == "" {
		return nil, errors.ConfigError("embedding endpoint is required", nil)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = DefaultDimensions
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Retry.MaxRetries == 0 {
		cfg.Retry = errors.DefaultRetryConfig()
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 4
	}

	transport := &http.Transport{
		MaxIdleConns:        cfg.PoolSize,
		MaxIdleConnsPerHost: cfg.PoolSize,
		IdleConnTimeout:     30 * time.Second,
	}

	// No client-level timeout: each request carries its own context
	// deadline so retries get a fresh budget.
	return &TitanEmbedder{
		client:    &http.Client{Transport: transport},
		transport: transport,
		config:    cfg,
	}, nil
}

// Embed computes the embedding for text. Transient transport failures are
// retried with backoff; throttling and auth failures surface immediately.
func (e *TitanEmbedder) Embed(ctx context.Context, text string) (Result, error) {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return Result{}, errors.EmbeddingError("embedder is closed", nil)
	}
	e.mu.RUnlock()

	if strings.TrimSpace(text) == "" {
		return Result{}, errors.New(errors.ErrCodeInvalidInput, "cannot embed empty text", nil)
	}

	return errors.RetryWithResult(ctx, e.config.Retry, func() (Result, error) {
		return e.invoke(ctx, text)
	})
}

// invoke performs a single model invocation.
func (e *TitanEmbedder) invoke(ctx context.Context, text string) (Result, error) {
	reqBody := titanRequest{
		InputText:      text,
		Dimensions:     e.config.Dimensions,
		Normalize:      e.config.Normalize,
		EmbeddingTypes: []string{"float"},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return Result{}, errors.EmbeddingError("failed to marshal request", err)
	}

	url := fmt.Sprintf("%s/model/%s/invoke", strings.TrimRight(e.config.Endpoint, "/"), e.config.Model)

	reqCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return Result{}, errors.EmbeddingError("failed to create request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if e.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.config.APIKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		if stderrors.Is(err, context.DeadlineExceeded) || reqCtx.Err() == context.DeadlineExceeded {
			return Result{}, errors.New(errors.ErrCodeNetworkTimeout, "embedding request timed out", err)
		}
		return Result{}, errors.New(errors.ErrCodeNetworkUnavailable, "embedding endpoint unreachable", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Result{}, statusError(resp.StatusCode, string(body))
	}

	var result titanResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Result{}, errors.EmbeddingError("failed to decode response", err)
	}
	if len(result.Embedding) == 0 {
		return Result{}, errors.EmbeddingError("model returned an empty embedding", nil)
	}

	vec := result.Embedding
	if e.config.Normalize {
		vec = normalizeVector(vec)
	}

	return Result{
		Vector:     vec,
		Dimensions: len(vec),
		TokenCount: result.InputTextTokenCount,
		Normalized: e.config.Normalize,
	}, nil
}

// statusError maps an HTTP status to the pipeline error taxonomy.
// Throttling is deliberately not retryable here: hammering a throttled
// endpoint makes the condition worse.
func statusError(status int, body string) *errors.PipelineError {
	msg := fmt.Sprintf("embedding failed with status %d: %s", status, strings.TrimSpace(body))
	switch {
	case status == http.StatusTooManyRequests:
		return errors.New(errors.ErrCodeThrottled, msg, nil)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return errors.New(errors.ErrCodeAuthFailed, msg, nil)
	case status >= 500:
		return errors.New(errors.ErrCodeNetworkUnavailable, msg, nil)
	default:
		return errors.EmbeddingError(msg, nil)
	}
}

// Dimensions returns the configured output dimension.
func (e *TitanEmbedder) Dimensions() int {
	return e.config.Dimensions
}

// ModelName returns the model identifier.
func (e *TitanEmbedder) ModelName() string {
	return e.config.Model
}

// Close shuts down idle connections. Further calls to Embed fail.
func (e *TitanEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	e.transport.CloseIdleConnections()
	return nil
}
