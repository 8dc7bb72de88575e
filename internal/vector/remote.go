package vector

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
	// DefaultRemoteTimeout bounds a single API call.
	DefaultRemoteTimeout = 30 * time.Second

	// maxPutBatch is the API's per-request vector limit.
	maxPutBatch = 500
)

// RemoteConfig configures the remote vector bucket client.
type RemoteConfig struct {
	// Endpoint is the vector service base URL.
	Endpoint string

	// Bucket is the vector bucket name.
	Bucket string

	// IndexName is the index within the bucket.
	IndexName string

	// APIKey, when set, is sent as a bearer token.
	APIKey string

	Timeout  time.Duration
	Retry    errors.RetryConfig
	PoolSize int
}

type vectorData struct {
	Float32 []float32 `json:"float32"`
}

type queryVectorsRequest struct {
	VectorBucketName string            `json:"vectorBucketName"`
	IndexName        string            `json:"indexName"`
	QueryVector      vectorData        `json:"queryVector"`
	TopK             int               `json:"topK"`
	ReturnDistance   bool              `json:"returnDistance"`
	ReturnMetadata   bool              `json:"returnMetadata"`
	Filter           map[string]string `json:"filter,omitempty"`
}

type queryVectorsResponse struct {
	Vectors []struct {
		Key      string   `json:"key"`
		Distance float32  `json:"distance"`
		Metadata Metadata `json:"metadata"`
	} `json:"vectors"`
}

type putVector struct {
	Key      string     `json:"key"`
	Data     vectorData `json:"data"`
	Metadata Metadata   `json:"metadata"`
}

type putVectorsRequest struct {
	VectorBucketName string      `json:"vectorBucketName"`
	IndexName        string      `json:"indexName"`
	Vectors          []putVector `json:"vectors"`
}

// RemoteIndex talks to a vector bucket service over HTTP. Safe for
// concurrent use.
type RemoteIndex struct {
	client    *http.Client
	transport *http.Transport
	config    RemoteConfig

	mu     sync.RWMutex
	closed bool
}

var _ Index = (*RemoteIndex)(nil)

// NewRemoteIndex creates a remote vector index client.
func NewRemoteIndex(cfg RemoteConfig) (*RemoteIndex, error) {
	if cfg.Endpoint == "" {
		return nil, errors.ConfigError("vector endpoint is required", nil)
	}
	if cfg.Bucket == "" || cfg.IndexName == "" {
		return nil, errors.ConfigError("vector bucket and index name are required", nil)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRemoteTimeout
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

	return &RemoteIndex{
		client:    &http.Client{Transport: transport},
		transport: transport,
		config:    cfg,
	}, nil
}

// Insert uploads vectors in API-sized batches. A failed batch fails the
// whole call; earlier batches stay written, and re-inserting is safe
// because keys overwrite.
func (r *RemoteIndex) Insert(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	if err := r.checkOpen(); err != nil {
		return err
	}

	for start := 0; start < len(entries); start += maxPutBatch {
		end := start + maxPutBatch
		if end > len(entries) {
			end = len(entries)
		}

		batch := make([]putVector, 0, end-start)
		for _, e := range entries[start:end] {
			if e.ID == "" {
				return errors.ValidationError("vector entry has no ID", nil)
			}
			batch = append(batch, putVector{
				Key:      e.ID,
				Data:     vectorData{Float32: e.Vector},
				Metadata: e.Metadata,
			})
		}

		req := putVectorsRequest{
			VectorBucketName: r.config.Bucket,
			IndexName:        r.config.IndexName,
			Vectors:          batch,
		}

		err := errors.Retry(ctx, r.config.Retry, func() error {
			return r.post(ctx, "PutVectors", req, nil, errors.ErrCodeIndexFailed)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Query searches the remote index.
func (r *RemoteIndex) Query(ctx context.Context, query []float32, opts QueryOptions) ([]SearchResult, error) {
	if err := r.checkOpen(); err != nil {
		return nil, err
	}
	if len(query) == 0 {
		return nil, errors.ValidationError("query vector is empty", nil)
	}
	opts = opts.withDefaults()

	req := queryVectorsRequest{
		VectorBucketName: r.config.Bucket,
		IndexName:        r.config.IndexName,
		QueryVector:      vectorData{Float32: query},
		TopK:             opts.TopK,
		ReturnDistance:   true,
		ReturnMetadata:   opts.ReturnMetadata,
	}
	if opts.ServiceFilter != "" {
		req.Filter = map[string]string{"service_name": opts.ServiceFilter}
	}

	var resp queryVectorsResponse
	err := errors.Retry(ctx, r.config.Retry, func() error {
		return r.post(ctx, "QueryVectors", req, &resp, errors.ErrCodeSearchFailed)
	})
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, len(resp.Vectors))
	for _, v := range resp.Vectors {
		results = append(results, SearchResult{
			ID:         v.Key,
			Distance:   v.Distance,
			Similarity: similarityFromDistance(v.Distance),
			Metadata:   v.Metadata,
		})
	}
	return results, nil
}

// post performs one API call. Out may be nil when the response body is
// not needed.
func (r *RemoteIndex) post(ctx context.Context, operation string, in any, out any, failCode string) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return errors.New(failCode, "failed to marshal request", err)
	}

	url := strings.TrimRight(r.config.Endpoint, "/") + "/" + operation

	reqCtx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return errors.New(failCode, "failed to create request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.config.APIKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		if stderrors.Is(err, context.DeadlineExceeded) || reqCtx.Err() == context.DeadlineExceeded {
			return errors.New(errors.ErrCodeNetworkTimeout, operation+" timed out", err)
		}
		return errors.New(errors.ErrCodeNetworkUnavailable, "vector endpoint unreachable", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return wireError(resp.StatusCode, operation, string(body), failCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.New(failCode, "failed to decode response", err)
	}
	return nil
}

// wireError maps an HTTP status to the error taxonomy. Throttling and
// auth failures are not retried.
func wireError(status int, operation, body, failCode string) *errors.PipelineError {
	msg := fmt.Sprintf("%s failed with status %d: %s", operation, status, strings.TrimSpace(body))
	switch {
	case status == http.StatusTooManyRequests:
		return errors.New(errors.ErrCodeThrottled, msg, nil)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return errors.New(errors.ErrCodeAuthFailed, msg, nil)
	case status >= 500:
		return errors.New(errors.ErrCodeNetworkUnavailable, msg, nil)
	default:
		return errors.New(failCode, msg, nil)
	}
}

func (r *RemoteIndex) checkOpen() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return errors.SearchError("index client is closed", nil)
	}
	return nil
}

// Close shuts down idle connections.
func (r *RemoteIndex) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	r.transport.CloseIdleConnections()
	return nil
}
