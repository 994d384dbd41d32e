package llm

// registry.go manages clients for several providers behind "provider/model"
// specifications such as "google/gemini-2.5-flash". Clients are created
// lazily and cached, so every document in a run shares one middleware chain
// and therefore one rate limiter and one circuit breaker.

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"
	"time"
)

// Registry provides multi-provider management for LLM clients.
type Registry struct {
	// providers maps provider names to their configuration
	providers map[string]ProviderConfig
	// clients maps "provider/model" keys to their respective clients.
	clients map[string]*Client
	// defaultProvider is used when a specification omits the provider.
	defaultProvider string
	// defaultMiddleware is applied to all providers ahead of provider middleware.
	defaultMiddleware []Middleware
	// defaultTimeout sets the default request timeout for all providers
	defaultTimeout time.Duration
	// getenv resolves credentials; os.Getenv unless overridden.
	getenv func(string) string
	mu     sync.RWMutex
}

// ProviderConfig holds provider-specific configuration.
type ProviderConfig struct {
	// Type specifies the provider implementation type (google, openai, anthropic)
	Type string
	// EnvVar names the environment variable holding the API key
	EnvVar string
	// ProjectEnvVar and LocationEnvVar name the variables holding the Vertex
	// AI project and region. Only the Google provider uses them.
	ProjectEnvVar  string
	LocationEnvVar string
	// DefaultModel specifies the default model to use if not specified
	DefaultModel string
	// SupportedModels lists all models supported by this provider.
	// If empty, no validation is performed.
	SupportedModels []string
	// BaseURL overrides the default API endpoint for the provider
	BaseURL string
	// Middleware specifies provider-specific middleware
	Middleware []Middleware
}

// RegistryConfig holds configuration for the provider registry.
type RegistryConfig struct {
	// Providers defines the available providers and their configurations
	Providers map[string]ProviderConfig
	// DefaultProvider specifies which provider to use when no provider is specified.
	DefaultProvider string
	// DefaultTimeout sets the default request timeout for all providers.
	DefaultTimeout time.Duration
	// DefaultMiddleware specifies default middleware applied to all providers.
	DefaultMiddleware []Middleware
	// Getenv overrides environment lookups, mainly for tests.
	Getenv func(string) string
}

// DefaultProviders lists the vision-capable models the extractor is known to
// work with.
var DefaultProviders = map[string]ProviderConfig{
	"google": {
		Type:           "google",
		EnvVar:         "GOOGLE_API_KEY",
		ProjectEnvVar:  "GOOGLE_CLOUD_PROJECT",
		LocationEnvVar: "GOOGLE_CLOUD_LOCATION",
		DefaultModel:   GoogleDefaultModel,
		SupportedModels: []string{
			"gemini-2.5-pro", "gemini-2.5-flash", "gemini-2.5-flash-lite",
			"gemini-2.0-flash", "gemini-2.0-flash-lite",
			"gemini-1.5-pro", "gemini-1.5-flash",
		},
	},
	"openai": {
		Type:         "openai",
		EnvVar:       "OPENAI_API_KEY",
		DefaultModel: OpenAIDefaultModel,
		SupportedModels: []string{
			"gpt-4.1", "gpt-4.1-mini", "gpt-4.1-nano",
			"gpt-4o", "gpt-4o-mini",
			"o4-mini", "o3",
		},
	},
	"anthropic": {
		Type:         "anthropic",
		EnvVar:       "ANTHROPIC_API_KEY",
		DefaultModel: AnthropicDefaultModel,
		SupportedModels: []string{
			"claude-sonnet-4-20250514", "claude-opus-4-20250514",
			"claude-3-7-sonnet-20250219",
			"claude-3-5-sonnet-20241022", "claude-3-5-haiku-20241022",
		},
	},
}

// NewRegistry creates a new provider registry.
func NewRegistry(config RegistryConfig) (*Registry, error) {
	if config.DefaultProvider == "" {
		return nil, fmt.Errorf("default provider cannot be empty")
	}

	if _, exists := config.Providers[config.DefaultProvider]; !exists {
		return nil, fmt.Errorf("default provider %q not found in providers configuration", config.DefaultProvider)
	}

	getenv := config.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}

	return &Registry{
		providers:         config.Providers,
		clients:           make(map[string]*Client),
		defaultProvider:   config.DefaultProvider,
		defaultMiddleware: config.DefaultMiddleware,
		defaultTimeout:    config.DefaultTimeout,
		getenv:            getenv,
	}, nil
}

// GetDefaultClient returns a client for the default provider and its default model.
func (r *Registry) GetDefaultClient() (*Client, error) {
	providerConfig := r.providers[r.defaultProvider]
	return r.GetClient(r.defaultProvider + "/" + providerConfig.DefaultModel)
}

// GetClient retrieves a client by provider name or model string.
// Supports multiple formats:
//   - "provider": the provider's default model
//   - "provider/model": the given provider and model
//   - "model": a bare model name served by the default provider
//
// Clients are created on first request and cached for reuse.
func (r *Registry) GetClient(spec string) (*Client, error) {
	if spec == "" {
		return nil, fmt.Errorf("provider specification cannot be empty; use GetDefaultClient() for default provider")
	}

	provider, model := r.parseSpec(spec)
	key := buildCacheKey(provider, model)

	r.mu.RLock()
	if client, exists := r.clients[key]; exists {
		r.mu.RUnlock()
		return client, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	if client, exists := r.clients[key]; exists {
		return client, nil
	}

	client, err := r.createClient(provider, model)
	if err != nil {
		return nil, err
	}

	r.clients[key] = client
	return client, nil
}

// RegisterClient registers a client built from explicit configuration under
// a "provider" or "provider/model" name, inheriting the registry defaults.
func (r *Registry) RegisterClient(name string, config ClientConfig) error {
	if name == "" {
		return fmt.Errorf("client name cannot be empty")
	}

	provider, model := r.parseSpec(name)
	if !strings.Contains(name, "/") && config.Model != "" {
		model = config.Model
	}

	providerConfig, exists := r.providers[provider]
	if !exists {
		return fmt.Errorf("unknown provider %q", provider)
	}

	if config.Model == "" {
		config.Model = model
	}
	if config.Timeout == 0 {
		config.Timeout = r.defaultTimeout
	}
	config.Middleware = append(append([]Middleware{}, r.defaultMiddleware...), config.Middleware...)

	client, err := NewClient(providerConfig.Type, config)
	if err != nil {
		return fmt.Errorf("failed to create client %q: %w", name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[buildCacheKey(provider, model)] = client
	return nil
}

// parseSpec extracts provider name and model from a specification string.
func (r *Registry) parseSpec(spec string) (provider, model string) {
	parts := strings.SplitN(spec, "/", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}

	if providerConfig, ok := r.providers[spec]; ok {
		return spec, providerConfig.DefaultModel
	}

	return r.defaultProvider, spec
}

// buildCacheKey creates a consistent cache key from provider and model.
func buildCacheKey(provider, model string) string {
	if model == "" {
		return provider
	}
	return provider + "/" + model
}

// createClient resolves credentials from the environment and builds a client.
func (r *Registry) createClient(provider, model string) (*Client, error) {
	providerConfig, exists := r.providers[provider]
	if !exists {
		return nil, fmt.Errorf("unknown provider %q", provider)
	}

	if len(providerConfig.SupportedModels) > 0 && !slices.Contains(providerConfig.SupportedModels, model) {
		return nil, fmt.Errorf("model %q is not supported by provider %q. Supported models: %v",
			model, provider, providerConfig.SupportedModels)
	}

	config := ClientConfig{
		Model:   model,
		BaseURL: providerConfig.BaseURL,
		Timeout: r.defaultTimeout,
	}
	if err := r.resolveCredentials(provider, providerConfig, &config); err != nil {
		return nil, err
	}

	config.Middleware = append([]Middleware{}, r.defaultMiddleware...)
	config.Middleware = append(config.Middleware, providerConfig.Middleware...)

	return NewClient(providerConfig.Type, config)
}

// resolveCredentials fills the API key or Vertex project from the
// environment. A project takes precedence for providers that accept one.
func (r *Registry) resolveCredentials(provider string, pc ProviderConfig, config *ClientConfig) error {
	if pc.ProjectEnvVar != "" {
		if project := r.getenv(pc.ProjectEnvVar); project != "" {
			config.Project = project
			config.Backend = BackendVertexAI
			if pc.LocationEnvVar != "" {
				config.Location = r.getenv(pc.LocationEnvVar)
			}
			return nil
		}
	}

	if pc.EnvVar != "" {
		config.APIKey = r.getenv(pc.EnvVar)
	}
	if config.APIKey != "" {
		return nil
	}

	if pc.ProjectEnvVar != "" {
		return fmt.Errorf("neither %s nor %s is set for provider %q", pc.ProjectEnvVar, pc.EnvVar, provider)
	}
	return fmt.Errorf("%s environment variable not set for provider %q", pc.EnvVar, provider)
}

// GetRegisteredProviders returns the sorted names of providers with at
// least one cached client.
func (r *Registry) GetRegisteredProviders() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool)
	providers := make([]string, 0, len(r.clients))
	for key := range r.clients {
		provider, _, _ := strings.Cut(key, "/")
		if !seen[provider] {
			seen[provider] = true
			providers = append(providers, provider)
		}
	}
	slices.Sort(providers)
	return providers
}
