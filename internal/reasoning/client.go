// Package reasoning adapts a chat-completions client to the ports.Completer
// capability used by the extractor, classifier and historian.
package reasoning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tjfontaine/helpdesk-router/internal/api/openai"
	"github.com/tjfontaine/helpdesk-router/internal/core/ports"
	"github.com/tjfontaine/helpdesk-router/internal/pkg/config"
	"github.com/tjfontaine/helpdesk-router/internal/tokens"
)

// DefaultSeed is sent with every request so repeated prompts sample the same way.
const DefaultSeed = 42

var (
	// ErrNotConfigured is returned by Unavailable.
	ErrNotConfigured = errors.New("reasoning service not configured")
	// ErrEmptyCompletion is returned when the service answers without content.
	ErrEmptyCompletion = errors.New("empty completion")
)

// Option configures the Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithMaxPromptTokens bounds the user prompt. Zero disables truncation.
func WithMaxPromptTokens(n int) Option {
	return func(c *Client) {
		c.maxPromptTokens = n
	}
}

// WithSeed overrides DefaultSeed.
func WithSeed(seed int) Option {
	return func(c *Client) {
		c.seed = seed
	}
}

// Client implements ports.Completer over the chat completions API.
type Client struct {
	api             *openai.Client
	model           string
	counter         *tokens.Counter
	maxPromptTokens int
	seed            int
	logger          *slog.Logger
}

var _ ports.Completer = (*Client)(nil)

// New creates a Client sending requests for model through api.
func New(api *openai.Client, model string, opts ...Option) *Client {
	c := &Client{
		api:     api,
		model:   model,
		counter: tokens.NewCounter(model),
		seed:    DefaultSeed,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.counter.Estimated() && c.maxPromptTokens > 0 {
		c.logger.Warn("no tokenizer for model, prompt budget uses character estimates",
			slog.String("model", model))
	}
	return c
}

// NewFromConfig builds a Client from configuration. When neither a base URL
// nor an API key is configured it returns Unavailable, so every caller runs
// on its deterministic fallback.
func NewFromConfig(cfg config.ReasoningConfig, httpClient *http.Client, logger *slog.Logger) ports.Completer {
	if cfg.BaseURL == "" && cfg.APIKey == "" {
		return Unavailable{}
	}
	if httpClient == nil {
		httpClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}

	apiOpts := []openai.ClientOption{openai.WithHTTPClient(httpClient)}
	if cfg.BaseURL != "" {
		apiOpts = append(apiOpts, openai.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Azure {
		apiOpts = append(apiOpts, openai.WithAzureDeployment(cfg.APIVersion))
	}

	opts := []Option{WithLogger(logger), WithMaxPromptTokens(cfg.MaxPromptTokens)}
	if cfg.Seed != 0 {
		opts = append(opts, WithSeed(cfg.Seed))
	}
	return New(openai.NewClient(cfg.APIKey, apiOpts...), cfg.Model, opts...)
}

// Complete sends one system+user exchange and returns the trimmed answer.
func (c *Client) Complete(ctx context.Context, req *ports.CompletionRequest) (string, error) {
	user, truncated := c.counter.Truncate(req.User, c.maxPromptTokens)
	if truncated {
		c.logger.Debug("prompt truncated",
			slog.String("task", req.Task),
			slog.Int("max_tokens", c.maxPromptTokens))
	}

	temperature := float32(0)
	seed := c.seed
	chatReq := &openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: user},
		},
		MaxTokens:   req.MaxTokens,
		Temperature: &temperature,
		Seed:        &seed,
	}
	if req.JSON {
		chatReq.ResponseFormat = &openai.ResponseFormat{Type: "json_object"}
	}

	resp, err := c.api.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return "", fmt.Errorf("%s completion: %w", req.Task, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s completion: %w", req.Task, ErrEmptyCompletion)
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("%s completion: %w", req.Task, ErrEmptyCompletion)
	}
	return content, nil
}

// Unavailable is a Completer that always fails with ErrNotConfigured.
type Unavailable struct{}

// Complete implements ports.Completer.
func (Unavailable) Complete(context.Context, *ports.CompletionRequest) (string, error) {
	return "", ErrNotConfigured
}
