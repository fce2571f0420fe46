// Package vllm implements a client for the OpenAI-compatible HTTP API served
// by vLLM: completions, chat completions, streaming and the tokenizer
// endpoints.
//
// Each Client owns its connection pool. Requests beyond the pool size block
// until a connection is released instead of opening new sockets.
package vllm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/papercomputeco/spyre/pkg/llm"
	"github.com/papercomputeco/spyre/pkg/logger"
	"github.com/papercomputeco/spyre/pkg/metrics"
)

const (
	// DefaultBaseURL is the default vLLM server URL.
	DefaultBaseURL = "http://localhost:8000"

	// DefaultPoolSize is the default maximum number of connections per host.
	DefaultPoolSize = 10

	PathCompletions     = "/v1/completions"
	PathChatCompletions = "/v1/chat/completions"
	PathTokenize        = "/tokenize"
	PathDetokenize      = "/detokenize"
)

// Config holds configuration for the vLLM client.
type Config struct {
	// BaseURL is the server URL (e.g., "http://localhost:8000").
	// Defaults to DefaultBaseURL if empty.
	BaseURL string

	// Model is filled into requests that leave their model empty.
	Model string

	// PoolSize bounds concurrent connections to the server.
	// Defaults to DefaultPoolSize if zero.
	PoolSize int

	// Timeout bounds a whole request including reading the body. Zero
	// leaves requests unbounded, which streaming generations may need.
	Timeout time.Duration

	// RateLimit caps outgoing requests per second. Zero disables limiting.
	RateLimit float64

	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Client talks to a single vLLM server.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// NewClient creates a new vLLM client with its own bounded connection pool.
func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base URL %q must use http or https", baseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("base URL %q has no host", baseURL)
	}

	poolSize := cfg.PoolSize
	if poolSize == 0 {
		poolSize = DefaultPoolSize
	}
	if poolSize < 0 {
		return nil, fmt.Errorf("pool size must be positive, got %d", poolSize)
	}

	if cfg.RateLimit < 0 {
		return nil, fmt.Errorf("rate limit must not be negative, got %v", cfg.RateLimit)
	}

	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxConnsPerHost = poolSize
	transport.MaxIdleConnsPerHost = poolSize
	transport.MaxIdleConns = poolSize

	c := &Client{
		baseURL: baseURL,
		model:   cfg.Model,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		logger:  log.With("component", "vllm"),
		metrics: cfg.Metrics,
	}

	if cfg.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), max(1, int(cfg.RateLimit)))
	}

	return c, nil
}

// Model returns the configured default model.
func (c *Client) Model() string {
	return c.model
}

// BaseURL returns the server URL requests are sent to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Close releases idle pooled connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// Completions sends one POST to /v1/completions and returns every choice.
// A []string prompt yields one choice per prompt.
func (c *Client) Completions(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	r := *req
	if r.Model == "" {
		r.Model = c.model
	}
	r.Stream = false

	var resp llm.CompletionResponse
	if err := c.doJSON(ctx, PathCompletions, &r, &resp); err != nil {
		return nil, err
	}

	return &resp, nil
}

// Complete returns the trimmed text of the first completion choice.
func (c *Client) Complete(ctx context.Context, req *llm.CompletionRequest) llm.Result {
	resp, err := c.Completions(ctx, req)
	if err != nil {
		return llm.Failure(err)
	}

	if len(resp.Choices) == 0 {
		return llm.Failure(fmt.Errorf("%w: no choices returned", ErrShape))
	}

	return llm.Success(strings.TrimSpace(resp.Choices[0].Text))
}

// ChatCompletions sends one POST to /v1/chat/completions.
func (c *Client) ChatCompletions(ctx context.Context, req *llm.ChatRequest) (*llm.CompletionResponse, error) {
	r := *req
	if r.Model == "" {
		r.Model = c.model
	}
	r.Stream = false

	var resp llm.CompletionResponse
	if err := c.doJSON(ctx, PathChatCompletions, &r, &resp); err != nil {
		return nil, err
	}

	return &resp, nil
}

// Chat returns the message content of the first chat choice.
func (c *Client) Chat(ctx context.Context, req *llm.ChatRequest) llm.Result {
	resp, err := c.ChatCompletions(ctx, req)
	if err != nil {
		return llm.Failure(err)
	}

	if len(resp.Choices) == 0 {
		return llm.Failure(fmt.Errorf("%w: no choices returned", ErrShape))
	}
	if resp.Choices[0].Message == nil {
		return llm.Failure(fmt.Errorf("%w: first choice has no message", ErrShape))
	}

	return llm.Success(resp.Choices[0].Message.Content)
}

// ChatStream opens a streaming chat completion. A non-2xx status is returned
// as an error before any delta is read.
func (c *Client) ChatStream(ctx context.Context, req *llm.ChatRequest) (*Stream, error) {
	r := *req
	if r.Model == "" {
		r.Model = c.model
	}
	r.Stream = true

	return c.openStream(ctx, PathChatCompletions, &r)
}

// CompleteStream opens a streaming completion.
func (c *Client) CompleteStream(ctx context.Context, req *llm.CompletionRequest) (*Stream, error) {
	r := *req
	if r.Model == "" {
		r.Model = c.model
	}
	r.Stream = true

	return c.openStream(ctx, PathCompletions, &r)
}

// Tokenize returns the token ids of text.
func (c *Client) Tokenize(ctx context.Context, text string) ([]llm.TokenID, error) {
	var resp llm.TokenizeResponse
	err := c.doJSON(ctx, PathTokenize, &llm.TokenizeRequest{Model: c.model, Prompt: text}, &resp)
	if err != nil {
		return nil, fmt.Errorf("tokenizing: %w", err)
	}

	if resp.Tokens == nil {
		return nil, fmt.Errorf("tokenizing: %w: missing tokens field", ErrShape)
	}

	return resp.Tokens, nil
}

// Detokenize returns the text for the given token ids.
func (c *Client) Detokenize(ctx context.Context, tokens []llm.TokenID) (string, error) {
	if tokens == nil {
		tokens = []llm.TokenID{}
	}

	var resp llm.DetokenizeResponse
	err := c.doJSON(ctx, PathDetokenize, &llm.DetokenizeRequest{Model: c.model, Tokens: tokens}, &resp)
	if err != nil {
		return "", fmt.Errorf("detokenizing: %w", err)
	}

	if resp.Prompt == nil {
		return "", fmt.Errorf("detokenizing: %w: missing prompt field", ErrShape)
	}

	return *resp.Prompt, nil
}

// doJSON posts in and decodes the response body into out.
func (c *Client) doJSON(ctx context.Context, path string, in, out any) (err error) {
	start := time.Now()
	defer func() {
		c.metrics.ObserveRemote(path, err, time.Since(start))
	}()

	resp, err := c.post(ctx, path, in)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decoding response: %v", ErrShape, err)
	}

	c.logger.Debug("received response",
		"endpoint", path,
		"duration", time.Since(start),
	)

	return nil
}

func (c *Client) openStream(ctx context.Context, path string, in any) (*Stream, error) {
	start := time.Now()
	resp, err := c.post(ctx, path, in)
	c.metrics.ObserveRemote(path, err, time.Since(start))
	if err != nil {
		return nil, err
	}

	return newStream(resp.Body, c.logger, c.metrics), nil
}

// post sends a JSON body and returns the response when the status is 2xx.
// The caller owns the response body.
func (c *Client) post(ctx context.Context, path string, in any) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: waiting for rate limiter: %v", ErrTransport, err)
		}
	}

	jsonBody, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("sending request",
		"endpoint", path,
		"bytes", len(jsonBody),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: sending request: %v", ErrTransport, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	return resp, nil
}
