package application

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ahrav/go-kyc/internal/domain"
)

// Config is the complete runtime configuration of the KYC engine. It is
// built once at process start from defaults, an optional YAML file and
// the environment, then passed down explicitly.
type Config struct {
	// Provider selects the language model provider.
	Provider string `yaml:"provider" validate:"required,oneof=google openai anthropic"`

	// Model is the model identifier, optionally prefixed with its provider
	// ("google/gemini-2.5-flash"). Empty means the provider's default.
	Model string `yaml:"model" validate:"omitempty,modelname"`

	// Project and Location identify a Vertex AI deployment. When Project is
	// empty the Google provider uses an API key instead.
	Project  string `yaml:"project"`
	Location string `yaml:"location"`

	// Temperature is sent with every model call.
	Temperature float64 `yaml:"temperature" validate:"min=0,max=2"`

	// MaxOutputTokens caps each model answer.
	MaxOutputTokens int `yaml:"max_output_tokens" validate:"min=1,max=32768"`

	// Timeout bounds a single model request.
	Timeout time.Duration `yaml:"timeout" validate:"min=0"`

	// Concurrency is the number of documents processed at once.
	Concurrency int `yaml:"concurrency" validate:"min=1,max=64"`

	// Cache reuses results for documents with identical bytes.
	Cache bool `yaml:"cache"`

	// LogLevel is one of debug, info, warn or error.
	LogLevel string `yaml:"log_level" validate:"oneof=debug info warn error"`

	Retry          RetryConfig          `yaml:"retry"`
	RateLimit      RateLimitConfig      `yaml:"rate_limit"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`

	// Pricing converts token counts into cost.
	Pricing domain.Pricing `yaml:"pricing"`

	// Rules tunes the consistency checks.
	Rules Rules `yaml:"business_rules"`

	// Budget caps model usage for one run.
	Budget BudgetConfig `yaml:"budget"`
}

// RetryConfig controls retries of transient model failures.
type RetryConfig struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int `yaml:"max_retries" validate:"min=0,max=10"`

	// BaseDelay is doubled after each attempt up to MaxDelay.
	BaseDelay time.Duration `yaml:"base_delay" validate:"min=0"`
	MaxDelay  time.Duration `yaml:"max_delay" validate:"min=0"`
}

// RateLimitConfig throttles outgoing model requests.
type RateLimitConfig struct {
	// RequestsPerSecond of zero disables the limiter.
	RequestsPerSecond float64 `yaml:"requests_per_second" validate:"min=0"`
	Burst             int     `yaml:"burst" validate:"min=0"`
}

// CircuitBreakerConfig stops calling a failing provider for a while.
type CircuitBreakerConfig struct {
	// MaxFailures consecutive failures open the breaker. Zero disables it.
	MaxFailures int           `yaml:"max_failures" validate:"min=0"`
	Cooldown    time.Duration `yaml:"cooldown" validate:"min=0"`
}

// BudgetConfig caps model usage. Zero values mean unlimited.
type BudgetConfig struct {
	MaxTokens int64           `yaml:"max_tokens" validate:"min=0"`
	MaxCalls  int64           `yaml:"max_calls" validate:"min=0"`
	MaxCost   decimal.Decimal `yaml:"max_cost"`
}

// Defaults used by DefaultConfig.
const (
	DefaultProvider        = "google"
	DefaultLocation        = "us-central1"
	DefaultTemperature     = 0.1
	DefaultMaxOutputTokens = 2048
	DefaultTimeout         = 60 * time.Second
	DefaultConcurrency     = 4
)

// DefaultConfig returns the configuration used when no file or environment
// override is given. Prices are those of gemini-2.5-flash.
func DefaultConfig() Config {
	return Config{
		Provider:        DefaultProvider,
		Location:        DefaultLocation,
		Temperature:     DefaultTemperature,
		MaxOutputTokens: DefaultMaxOutputTokens,
		Timeout:         DefaultTimeout,
		Concurrency:     DefaultConcurrency,
		LogLevel:        "info",
		Retry: RetryConfig{
			MaxRetries: 3,
			BaseDelay:  time.Second,
			MaxDelay:   30 * time.Second,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 5,
			Burst:             5,
		},
		CircuitBreaker: CircuitBreakerConfig{
			MaxFailures: 5,
			Cooldown:    30 * time.Second,
		},
		Pricing: domain.Pricing{
			InputPerMillion:  decimal.RequireFromString("0.30"),
			OutputPerMillion: decimal.RequireFromString("2.50"),
		},
		Rules: DefaultRules(),
	}
}
