// Package rag queries the upstream RAG search service, caches its answers
// and flags ambiguous product matches.
package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/chem-advisor/internal/config"
	"github.com/sells-group/chem-advisor/internal/resilience"
)

// Upstream returns the raw payload for a search query.
type Upstream interface {
	Query(ctx context.Context, query string) (json.RawMessage, error)
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithRetry overrides the retry policy.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *Client) { c.retry = cfg }
}

// WithBreaker shares a circuit breaker, e.g. one from resilience.ServiceBreakers.
func WithBreaker(cb *resilience.CircuitBreaker) Option {
	return func(c *Client) { c.breaker = cb }
}

// Client calls POST {base}/search on the RAG service.
type Client struct {
	baseURL string
	key     string
	http    *http.Client
	limiter *rate.Limiter
	retry   resilience.RetryConfig
	breaker *resilience.CircuitBreaker
}

// NewClient creates a RAG client from cfg.
func NewClient(cfg config.RAGConfig, opts ...Option) *Client {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}

	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		key:     cfg.Key,
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(limit, 1),
		retry:   resilience.ServiceRetry("rag", "search", cfg.MaxRetries),
		breaker: resilience.NewCircuitBreaker(resilience.FromCircuitConfig("rag", cfg.CircuitFailureThreshold, cfg.CircuitResetSecs)),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Query sends one search request, retrying transient failures behind the
// circuit breaker.
func (c *Client) Query(ctx context.Context, query string) (json.RawMessage, error) {
	if c.baseURL == "" {
		return nil, eris.New("rag: base_url is not configured")
	}

	body, err := json.Marshal(map[string]string{"query": query})
	if err != nil {
		return nil, eris.Wrap(err, "rag: marshal request")
	}

	return resilience.ExecuteVal(ctx, c.breaker, func(ctx context.Context) (json.RawMessage, error) {
		return resilience.DoVal(ctx, c.retry, func(ctx context.Context) (json.RawMessage, error) {
			return c.post(ctx, body)
		})
	})
}

func (c *Client) post(ctx context.Context, body []byte) (json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "rag: rate limiter")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "rag: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.key != "" {
		req.Header.Set("Authorization", "Bearer "+c.key)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "rag: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "rag: read response body")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, resilience.StatusError("rag", resp.StatusCode, data)
	}

	if !json.Valid(data) {
		return nil, eris.New("rag: response is not valid JSON")
	}
	return json.RawMessage(data), nil
}
