package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"contentfactory/internal/services"
)

const (
	defaultBaseURL        = "https://openrouter.ai/api/v1/chat/completions"
	defaultHTTPTimeout    = 120 * time.Second
	defaultRetryMaxDelay  = 10 * time.Second
	defaultRetryBaseDelay = 1 * time.Second
	defaultRetryAttempts  = 5
)

// Config captures the runtime settings required to talk to the Generation Service.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	TimeoutSeconds int
}

// Prompt is one structured generation request. When Schema is set the
// response is constrained to it; otherwise any JSON object is accepted.
type Prompt struct {
	System      string
	User        string
	Temperature float64
	SchemaName  string
	Schema      map[string]any
}

// Client wraps an OpenAI-compatible chat completion endpoint (OpenRouter by default).
type Client struct {
	cfg        Config
	httpClient *http.Client

	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
	sleeper          func(time.Duration)
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRetryMaxAttempts overrides the default attempt count (defaults to 5).
func WithRetryMaxAttempts(attempts int) Option {
	return func(c *Client) {
		c.retryMaxAttempts = attempts
	}
}

// WithRetryBackoff overrides the retry backoff delays.
func WithRetryBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.retryBaseDelay = baseDelay
		c.retryMaxDelay = maxDelay
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		c.sleeper = sleeper
	}
}

// NewClient constructs a client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			APIKey:         strings.TrimSpace(cfg.APIKey),
			BaseURL:        strings.TrimSpace(cfg.BaseURL),
			Model:          strings.TrimSpace(cfg.Model),
			Referer:        strings.TrimSpace(cfg.Referer),
			Title:          strings.TrimSpace(cfg.Title),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient:       &http.Client{Timeout: timeout},
		retryMaxAttempts: defaultRetryAttempts,
		retryBaseDelay:   defaultRetryBaseDelay,
		retryMaxDelay:    defaultRetryMaxDelay,
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = defaultBaseURL
	}
	return client
}

// Model reports the configured model identifier.
func (c *Client) Model() string {
	return c.cfg.Model
}

// Generate issues one structured completion and returns the raw JSON payload
// produced by the model. Transient failures are retried inside the call.
func (c *Client) Generate(ctx context.Context, prompt Prompt) (string, error) {
	system := strings.TrimSpace(prompt.System)
	user := strings.TrimSpace(prompt.User)
	switch {
	case system == "":
		return "", fmt.Errorf("llm generate: system prompt required: %w", services.ErrValidation)
	case user == "":
		return "", fmt.Errorf("llm generate: user prompt required: %w", services.ErrValidation)
	case c.cfg.APIKey == "":
		return "", fmt.Errorf("llm generate: api key required: %w", services.ErrConfiguration)
	}
	payload := chatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature:    prompt.Temperature,
		ResponseFormat: responseFormat(prompt),
	}
	return c.completionContentWithRetry(ctx, payload, "llm generate")
}

// GenerateInto runs Generate and decodes the payload into target.
func (c *Client) GenerateInto(ctx context.Context, prompt Prompt, target any) (string, error) {
	content, err := c.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	if err := DecodeLLMJSON(content, target); err != nil {
		return content, fmt.Errorf("llm generate: parse payload: %w: %w", services.ErrValidation, err)
	}
	return content, nil
}

// CompleteJSON issues a deterministic JSON-only completion with the supplied prompts.
func (c *Client) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return c.Generate(ctx, Prompt{System: systemPrompt, User: userPrompt})
}

// HealthCheck issues a fast ping to verify the API key and model are usable.
func (c *Client) HealthCheck(ctx context.Context) error {
	if c.cfg.APIKey == "" {
		return fmt.Errorf("llm health: api key required: %w", services.ErrConfiguration)
	}
	var parsed struct {
		OK bool `json:"ok"`
	}
	if _, err := c.GenerateInto(ctx, Prompt{
		System: "You must respond with JSON only.",
		User:   `Respond with {"ok":true}`,
	}, &parsed); err != nil {
		return fmt.Errorf("llm health: %w", err)
	}
	if !parsed.OK {
		return errors.New("llm health: unexpected response")
	}
	return nil
}

func responseFormat(prompt Prompt) any {
	if prompt.Schema == nil {
		return map[string]string{"type": "json_object"}
	}
	name := strings.TrimSpace(prompt.SchemaName)
	if name == "" {
		name = "response"
	}
	return map[string]any{
		"type": "json_schema",
		"json_schema": map[string]any{
			"name":   name,
			"schema": prompt.Schema,
		},
	}
}
