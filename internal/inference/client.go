// Package inference implements the pipeline's inference stage: a
// chat-completions HTTP client with bounded retries, exponential backoff,
// and a deterministic mock fallback for credential-less development runs.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/promptops/llmpipe/internal/core/domain"
	"github.com/promptops/llmpipe/internal/core/ports"
	"github.com/promptops/llmpipe/internal/metrics"
)

const (
	defaultAPIURL     = "https://api.openai.com/v1/chat/completions"
	defaultModel      = "gpt-3.5-turbo"
	defaultTimeout    = 10 * time.Second
	defaultMaxRetries = 3

	systemInstruction = "You are a helpful assistant."

	// mockEchoLimit caps how much of the prompt the mock response echoes.
	mockEchoLimit = 50
	// mockCompletionTokens is the fixed completion count the mock reports.
	mockCompletionTokens = 10
)

// Config holds the client tunables. Zero values fall back to defaults in
// NewClient; an empty APIKey selects the mock path.
type Config struct {
	APIURL     string
	APIKey     string
	Model      string
	Timeout    time.Duration
	MaxRetries int
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithMetrics sets the metrics sink for token usage and latency.
func WithMetrics(collector ports.MetricsCollector) Option {
	return func(c *Client) {
		c.metrics = collector
	}
}

// WithSleep replaces the backoff sleep primitive. Tests substitute a
// zero-delay or instrumented version to avoid real waiting.
func WithSleep(sleep func(time.Duration)) Option {
	return func(c *Client) {
		c.sleep = sleep
	}
}

// Client sends composed prompts to a chat-completions endpoint.
type Client struct {
	apiURL     string
	apiKey     string
	model      string
	maxRetries int
	httpClient *http.Client
	logger     *slog.Logger
	metrics    ports.MetricsCollector
	sleep      func(time.Duration)
}

// NewClient creates an inference client.
func NewClient(cfg Config, opts ...Option) *Client {
	if cfg.APIURL == "" {
		cfg.APIURL = defaultAPIURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}

	c := &Client{
		apiURL:     cfg.APIURL,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		maxRetries: cfg.MaxRetries,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     slog.Default(),
		metrics:    metrics.Nop{},
		sleep:      time.Sleep,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// protocolError marks a non-200 application response on a single attempt.
type protocolError struct {
	status int
	body   string
}

func (e *protocolError) Error() string {
	return fmt.Sprintf("API error: %d, %s", e.status, e.body)
}

// Complete sends the prompt and returns the model output. With no API key
// configured it returns a deterministic mock result without touching the
// network. Both transport failures and non-200 responses consume the same
// attempt budget with exponential backoff (1s, 2s, 4s, ...); the terminal
// error distinguishes transport exhaustion from protocol exhaustion.
func (c *Client) Complete(ctx context.Context, prompt string) (*domain.InferenceResult, error) {
	if prompt == "" {
		return nil, domain.Errorf(domain.KindInput, "cannot run inference with empty prompt")
	}

	if c.apiKey == "" {
		c.logger.Warn("using mock LLM response (no API key provided)")
		return mockResult(prompt), nil
	}

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemInstruction},
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return nil, domain.WrapError(domain.KindInput, err, "marshal inference request")
	}

	start := time.Now()
	var lastProtocol bool

	for attempt := 0; attempt < c.maxRetries; attempt++ {
		result, err := c.do(ctx, body)
		if err == nil {
			c.metrics.RecordTokenUsage(result.Usage)
			c.metrics.TimeInference(start)
			return result, nil
		}

		var perr *protocolError
		lastProtocol = errors.As(err, &perr)
		c.logger.Error("request failed",
			slog.Int("attempt", attempt+1),
			slog.Int("max_retries", c.maxRetries),
			slog.String("error", err.Error()),
		)

		if attempt == c.maxRetries-1 {
			break
		}
		c.sleep(time.Duration(1<<attempt) * time.Second)
	}

	if lastProtocol {
		return nil, domain.Errorf(domain.KindProtocol, "inference failed")
	}
	return nil, domain.Errorf(domain.KindTransport, "failed to get response after %d attempts", c.maxRetries)
}

// do performs one attempt. Connection errors and malformed bodies surface
// as plain errors; non-200 statuses surface as *protocolError.
func (c *Client) do(ctx context.Context, body []byte) (*domain.InferenceResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &protocolError{status: resp.StatusCode, body: truncate(string(respBody), 200)}
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("malformed response: no choices")
	}

	result := &domain.InferenceResult{Content: parsed.Choices[0].Message.Content}
	if parsed.Usage != (domain.Usage{}) {
		usage := parsed.Usage
		result.Usage = &usage
	}
	return result, nil
}

// mockResult synthesizes the no-credential response: a truncated echo of
// the prompt with usage approximated by whitespace word count.
func mockResult(prompt string) *domain.InferenceResult {
	promptTokens := len(strings.Fields(prompt))
	return &domain.InferenceResult{
		Content: fmt.Sprintf("[Development Mode] Mock response for: %s...", truncate(prompt, mockEchoLimit)),
		Usage: &domain.Usage{
			PromptTokens:     promptTokens,
			CompletionTokens: mockCompletionTokens,
			TotalTokens:      promptTokens + mockCompletionTokens,
		},
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

var _ ports.Inferencer = (*Client)(nil)
