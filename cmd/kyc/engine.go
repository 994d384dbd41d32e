package main

import (
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ahrav/go-kyc/infrastructure/extraction"
	"github.com/ahrav/go-kyc/infrastructure/llm"
	"github.com/ahrav/go-kyc/infrastructure/middleware"
	"github.com/ahrav/go-kyc/internal/application"
	"github.com/ahrav/go-kyc/internal/ports"
)

const serviceName = "kyc"

// engine is the wired pipeline together with the parts the command
// reports on after a run.
type engine struct {
	pipeline   *application.Pipeline
	accountant *middleware.UsageAccountant
}

// buildEngine wires the model client, the extractor chain and the pipeline
// from cfg. Metrics are registered with reg.
func buildEngine(cfg application.Config, reg prometheus.Registerer, getenv func(string) string, log *zap.Logger) (*engine, error) {
	metrics := middleware.NewPrometheusMetrics(reg)

	client, err := newModelClient(cfg, metrics, getenv)
	if err != nil {
		return nil, err
	}
	log.Info("model client ready",
		zap.String("provider", cfg.Provider),
		zap.String("model", client.GetModel()),
	)

	extractor, err := extraction.NewExtractor(client, extraction.Config{
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxOutputTokens,
		Pricing:     cfg.Pricing,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create extractor: %w", err)
	}

	var chain ports.DocumentExtractor = extractor
	if cfg.Cache {
		chain = extraction.NewCachingExtractor(chain)
	}

	accountant := middleware.NewUsageAccountant()
	budget := middleware.Budget{
		MaxTokens: cfg.Budget.MaxTokens,
		MaxCalls:  cfg.Budget.MaxCalls,
		MaxCost:   cfg.Budget.MaxCost,
	}
	chain = middleware.NewBudgetManager(budget, chain, accountant, middleware.NewOTelBudgetObserver(metrics))

	pipeline, err := application.NewPipeline(chain,
		application.NewConsistencyValidator(cfg.Rules, nil),
		application.WithLogger(log),
		application.WithMetrics(metrics),
		application.WithConcurrency(cfg.Concurrency),
	)
	if err != nil {
		return nil, err
	}
	return &engine{pipeline: pipeline, accountant: accountant}, nil
}

// newModelClient resolves the configured provider and model through the
// registry. Middleware runs outermost first: tracing, metrics, retry,
// breaker, rate limit, then the per-attempt timeout.
func newModelClient(cfg application.Config, metrics *middleware.PrometheusMetrics, getenv func(string) string) (*llm.Client, error) {
	registry, err := llm.NewRegistry(llm.RegistryConfig{
		Providers:         llm.DefaultProviders,
		DefaultProvider:   cfg.Provider,
		DefaultTimeout:    cfg.Timeout,
		DefaultMiddleware: clientMiddleware(cfg, metrics),
		Getenv:            registryEnv(cfg, getenv),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create provider registry: %w", err)
	}

	var client *llm.Client
	switch {
	case cfg.Model == "":
		client, err = registry.GetDefaultClient()
	case strings.Contains(cfg.Model, "/"):
		client, err = registry.GetClient(cfg.Model)
	default:
		client, err = registry.GetClient(cfg.Provider + "/" + cfg.Model)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create model client: %w", err)
	}
	return client, nil
}

func clientMiddleware(cfg application.Config, metrics *middleware.PrometheusMetrics) []llm.Middleware {
	mw := []llm.Middleware{
		llm.TracingMiddleware(serviceName),
		llm.MetricsMiddleware(metrics),
	}
	if cfg.Retry.MaxRetries > 0 {
		mw = append(mw, llm.RetryMiddleware(cfg.Retry.MaxRetries, cfg.Retry.BaseDelay, cfg.Retry.MaxDelay))
	}
	if cfg.CircuitBreaker.MaxFailures > 0 {
		mw = append(mw, llm.CircuitBreakerMiddlewareWithMetrics(cfg.CircuitBreaker.MaxFailures, cfg.CircuitBreaker.Cooldown, metrics))
	}
	if cfg.RateLimit.RequestsPerSecond > 0 {
		mw = append(mw, llm.RateLimitMiddleware(rate.Limit(cfg.RateLimit.RequestsPerSecond), cfg.RateLimit.Burst))
	}
	if cfg.Timeout > 0 {
		mw = append(mw, llm.TimeoutMiddleware(cfg.Timeout))
	}
	return mw
}

// registryEnv serves the Vertex project and location from cfg, which may
// come from the YAML file, before falling back to the environment.
func registryEnv(cfg application.Config, getenv func(string) string) func(string) string {
	return func(key string) string {
		switch key {
		case application.EnvCloudProject:
			if cfg.Project != "" {
				return cfg.Project
			}
		case application.EnvCloudLocation:
			if cfg.Project != "" && cfg.Location != "" {
				return cfg.Location
			}
		}
		return getenv(key)
	}
}
