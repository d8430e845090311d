// Package llm defines the single capability the core requires from a
// language-model backend, plus a retrying HTTP-based implementation. This
// replaces a multi-provider trait
// hierarchy with one capability interface selected and injected at
// configuration time; the core has no knowledge of provider variants.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-retryablehttp"
)

// Client is the capability the extractor depends on: render a prompt,
// get back a JSON document as a string. Concrete providers (OpenAI,
// Anthropic, Groq, a local Ollama-style server) implement this by
// constructing an HTTPClient with the right endpoint/headers; the core
// never branches on provider identity.
type Client interface {
	Parse(ctx context.Context, prompt string) (string, error)
}

// maxFailCount is the number of consecutive failures after which the
// client stops attempting requests for the rest of its lifetime; a success
// before that point resets the counter. Grounded on turborepo's internal/client/client.go circuit breaker
// (_maxRemoteFailCount).
const maxFailCount = uint64(3)

// ErrTooManyFailures is returned once maxFailCount consecutive failures
// have occurred, short-circuiting further attempts.
var ErrTooManyFailures = errors.New("llm: too many consecutive failures, skipping request")

// HTTPClient is an HTTP-backed Client wired to a single provider endpoint.
// Grounded on turborepo's internal/client/client.go APIClient: the same
// retryablehttp.Client construction (RetryWaitMin/Max, DefaultBackoff) and
// fail-count circuit breaker, generalized from Vercel's cache API to a
// single endpoint expecting {prompt} and returning {json_string}.
type HTTPClient struct {
	endpoint   string
	apiKey     string
	httpClient *retryablehttp.Client

	failCount uint64
}

// Options configures an HTTPClient.
type Options struct {
	Endpoint   string
	APIKey     string
	Timeout    time.Duration
	RetryMax   int
	Logger     hclog.Logger
}

// NewHTTPClient builds an HTTPClient against a single provider endpoint.
func NewHTTPClient(opts Options) *HTTPClient {
	logger := opts.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	retryMax := opts.RetryMax
	if retryMax <= 0 {
		retryMax = 2
	}
	c := &HTTPClient{
		endpoint: opts.Endpoint,
		apiKey:   opts.APIKey,
		httpClient: &retryablehttp.Client{
			HTTPClient: &http.Client{Timeout: timeout},
			RetryWaitMin: 2 * time.Second,
			RetryWaitMax: 10 * time.Second,
			RetryMax:     retryMax,
			Backoff:      retryablehttp.DefaultBackoff,
			Logger:       logger,
		},
	}
	c.httpClient.CheckRetry = c.checkRetry
	return c
}

type requestBody struct {
	Prompt string `json:"prompt"`
}

type responseBody struct {
	Result string `json:"result"`
}

// Parse sends prompt to the configured endpoint and returns the raw JSON
// string the provider returned. The core is responsible for everything
// upstream of this call (token budgeting, preprocessing); Parse just does
// the network round trip with retry.
func (c *HTTPClient) Parse(ctx context.Context, prompt string) (string, error) {
	if atomic.LoadUint64(&c.failCount) >= maxFailCount {
		return "", ErrTooManyFailures
	}

	body, err := json.Marshal(requestBody{Prompt: prompt})
	if err != nil {
		return "", fmt.Errorf("llm: encoding request: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("llm: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		atomic.AddUint64(&c.failCount, 1)
		return "", fmt.Errorf("llm: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		atomic.AddUint64(&c.failCount, 1)
		return "", fmt.Errorf("llm: reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		atomic.AddUint64(&c.failCount, 1)
		return "", fmt.Errorf("llm: provider returned %s: %s", resp.Status, string(raw))
	}

	var parsed responseBody
	if err := json.Unmarshal(raw, &parsed); err != nil {
		// Some providers return the findings JSON document directly as
		// the body rather than wrapped in {"result": ...}; fall back to
		// treating the whole body as the result.
		atomic.StoreUint64(&c.failCount, 0)
		return string(raw), nil
	}
	atomic.StoreUint64(&c.failCount, 0)
	return parsed.Result, nil
}

func (c *HTTPClient) checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return true, nil
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return true, nil
	}
	if resp.StatusCode == 0 || (resp.StatusCode >= 500 && resp.StatusCode != 501) {
		return true, fmt.Errorf("llm: unexpected HTTP status %s", resp.Status)
	}
	return false, nil
}
