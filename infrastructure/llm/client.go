// Package llm provides a unified interface for interacting with multimodal LLM
// providers with built-in support for rate limiting, circuit breaking, metrics,
// and tracing.
//
// The package abstracts multiple providers (Google Gemini, OpenAI, Anthropic)
// behind a common interface while adding production-ready cross-cutting
// concerns through a middleware pattern. Requests carry a text prompt and any
// number of inline attachments, which is how scanned KYC documents reach the
// model.
//
// Basic usage:
//
//	client, err := llm.NewClient("google", llm.ClientConfig{
//	    Project:  os.Getenv("GOOGLE_CLOUD_PROJECT"),
//	    Location: "europe-west1",
//	    Model:    "gemini-2.5-flash",
//	})
//	completion, err := client.Complete(ctx, prompt, []ports.Attachment{scan}, nil)
//
// Advanced usage with middleware:
//
//	client, err := llm.NewClient("openai", llm.ClientConfig{
//	    APIKey: os.Getenv("OPENAI_API_KEY"),
//	    Model:  "gpt-4o",
//	    Middleware: []llm.Middleware{
//	        llm.RateLimitMiddleware(5, 10),
//	        llm.CircuitBreakerMiddleware(5, 30*time.Second),
//	        llm.MetricsMiddleware(metricsCollector),
//	    },
//	})
package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/ahrav/go-kyc/internal/ports"
)

// CoreLLM defines the minimal interface that LLM providers must implement.
// This interface abstracts the core functionality needed to make requests
// to different LLM services, allowing the middleware system to wrap
// any conforming implementation.
type CoreLLM interface {
	// DoRequest sends a prompt with its attachments to the LLM provider and
	// returns the response.
	// The opts parameter allows provider-specific configuration such as
	// temperature, max tokens, or the response format.
	// Returns the response text, input token count, output token count, and any error.
	DoRequest(
		ctx context.Context,
		prompt string,
		attachments []ports.Attachment,
		opts map[string]any,
	) (
		response string,
		tokensIn, tokensOut int,
		err error,
	)

	// GetModel returns the currently configured model name.
	GetModel() string

	// SetModel updates the model to use for subsequent requests.
	SetModel(model string)
}

// TokenEstimator provides pluggable token estimation strategies.
type TokenEstimator interface {
	// EstimateTokens returns an approximate token count for the given text.
	EstimateTokens(text string) int
}

// Backend selects how the Google provider authenticates.
type Backend string

const (
	// BackendAuto picks Vertex AI when a project is configured and the
	// Gemini API otherwise.
	BackendAuto Backend = ""
	// BackendGeminiAPI authenticates with an API key.
	BackendGeminiAPI Backend = "gemini"
	// BackendVertexAI authenticates with application default credentials
	// against a GCP project and location.
	BackendVertexAI Backend = "vertex"
)

// ClientConfig holds all configuration options for creating an LLM client.
type ClientConfig struct {
	// APIKey authenticates requests to the LLM provider.
	// It may be empty for the Google provider when Project is set.
	APIKey string

	// Project and Location identify the Vertex AI deployment used by the
	// Google provider.
	Project  string
	Location string

	// Backend forces the Google backend. The zero value chooses from the
	// other fields.
	Backend Backend

	// Model specifies which LLM model to use for requests.
	Model string

	// BaseURL overrides the default API endpoint for the provider.
	// Leave empty to use the provider's default endpoint.
	BaseURL string

	// Timeout sets the maximum duration for individual requests.
	// Zero value means no timeout.
	Timeout time.Duration

	// TokenEstimator provides custom token counting logic.
	// If nil, a simple character-based estimator is used.
	TokenEstimator TokenEstimator

	// Middleware allows custom middleware insertion.
	// These are applied in the order specified.
	Middleware []Middleware
}

// Middleware wraps a CoreLLM implementation to add cross-cutting functionality.
type Middleware func(CoreLLM) CoreLLM

// Client implements the ports.LLMClient interface with all cross-cutting concerns.
type Client struct {
	core      CoreLLM
	estimator TokenEstimator
}

var _ ports.LLMClient = (*Client)(nil)

// NewClient creates a new LLM client with the specified provider and configuration.
// This function assembles the middleware chain and validates configuration
// before returning a ready-to-use client instance.
func NewClient(providerType string, config ClientConfig) (*Client, error) {
	if config.APIKey == "" && config.Project == "" {
		return nil, fmt.Errorf("API key or project is required")
	}

	if config.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	factory, ok := providerFactories[providerType]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", providerType)
	}

	core, err := factory(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider: %w", err)
	}

	return newClientFromCore(core, config), nil
}

// newClientFromCore wraps an existing CoreLLM with the configured middleware.
func newClientFromCore(core CoreLLM, config ClientConfig) *Client {
	// Apply middleware in reverse order so the first middleware is the outermost.
	for i := len(config.Middleware) - 1; i >= 0; i-- {
		core = config.Middleware[i](core)
	}

	estimator := config.TokenEstimator
	if estimator == nil {
		estimator = &SimpleTokenEstimator{}
	}

	return &Client{
		core:      core,
		estimator: estimator,
	}
}

// Complete sends a prompt and its attachments to the LLM and returns the
// generated text together with token usage.
func (c *Client) Complete(
	ctx context.Context,
	prompt string,
	attachments []ports.Attachment,
	options map[string]any,
) (ports.Completion, error) {
	model := c.core.GetModel()
	if m, ok := options["model"].(string); ok && m != "" {
		model = m
	}

	text, tokensIn, tokensOut, err := c.core.DoRequest(ctx, prompt, attachments, options)
	if err != nil {
		return ports.Completion{}, err
	}

	return ports.Completion{
		Text:         text,
		Model:        model,
		InputTokens:  tokensIn,
		OutputTokens: tokensOut,
	}, nil
}

// EstimateTokens returns an approximate token count for the given text.
func (c *Client) EstimateTokens(text string) (int, error) {
	return c.estimator.EstimateTokens(text), nil
}

// GetModel returns the currently configured model name from the underlying provider.
func (c *Client) GetModel() string { return c.core.GetModel() }

// SimpleTokenEstimator provides basic character-based token estimation.
// This implementation uses a simple heuristic of approximately 4 characters
// per token.
type SimpleTokenEstimator struct{}

// EstimateTokens returns an approximate token count using character-based heuristics.
func (e *SimpleTokenEstimator) EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}

// ProviderFactory creates a CoreLLM implementation from configuration.
type ProviderFactory func(ClientConfig) (CoreLLM, error)

// providerFactories maps provider names to their constructors.
var providerFactories = map[string]ProviderFactory{}

// RegisterProviderFactory allows registration of custom LLM provider factories.
func RegisterProviderFactory(providerType string, factory ProviderFactory) {
	providerFactories[providerType] = factory
}
