package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ahrav/go-kyc/internal/ports"
)

// Metric names emitted by MetricsMiddleware.
const (
	MetricLatency  = "llm_latency_seconds"
	MetricRequests = "llm_requests_total"
	MetricTokens   = "llm_tokens_total"
)

// metricsLLM implements request metrics collection.
type metricsLLM struct {
	next      CoreLLM
	collector ports.MetricsCollector
}

// MetricsMiddleware creates middleware that collects request metrics.
// This enables monitoring of LLM usage, performance, and costs across providers.
func MetricsMiddleware(collector ports.MetricsCollector) Middleware {
	return func(next CoreLLM) CoreLLM {
		return &metricsLLM{
			next:      next,
			collector: collector,
		}
	}
}

// DoRequest executes the request while collecting latency, outcome, and
// token counters.
func (m *metricsLLM) DoRequest(
	ctx context.Context,
	prompt string,
	attachments []ports.Attachment,
	opts map[string]any,
) (string, int, int, error) {
	start := time.Now()
	response, tokensIn, tokensOut, err := m.next.DoRequest(ctx, prompt, attachments, opts)

	if m.collector == nil {
		return response, tokensIn, tokensOut, err
	}

	labels := map[string]string{
		"provider": providerFromModel(m.next.GetModel()),
		"model":    m.next.GetModel(),
		"status":   requestStatus(ctx, err),
	}

	m.collector.RecordHistogram(MetricLatency, time.Since(start).Seconds(), labels)
	m.collector.RecordCounter(MetricRequests, 1, labels)

	if err == nil {
		in := copyLabels(labels)
		in["token_type"] = "input"
		m.collector.RecordCounter(MetricTokens, float64(tokensIn), in)

		out := copyLabels(labels)
		out["token_type"] = "output"
		m.collector.RecordCounter(MetricTokens, float64(tokensOut), out)
	}

	return response, tokensIn, tokensOut, err
}

// requestStatus maps a request outcome to the status label.
func requestStatus(ctx context.Context, err error) string {
	var perr *ProviderError
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrCircuitOpen):
		return "circuit_open"
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return "timeout"
	case errors.As(err, &perr) && perr.Type == ErrorTypeContentPolicy:
		return "blocked"
	default:
		return "error"
	}
}

// providerFromModel guesses the provider from a model name.
func providerFromModel(model string) string {
	switch {
	case strings.Contains(model, "gpt"), strings.HasPrefix(model, "o1"), strings.HasPrefix(model, "o3"):
		return "openai"
	case strings.Contains(model, "claude"):
		return "anthropic"
	case strings.Contains(model, "gemini"):
		return "google"
	default:
		return "unknown"
	}
}

func copyLabels(labels map[string]string) map[string]string {
	out := make(map[string]string, len(labels)+1)
	for k, v := range labels {
		out[k] = v
	}
	return out
}

// GetModel returns the model name from the wrapped implementation.
func (m *metricsLLM) GetModel() string { return m.next.GetModel() }

// SetModel updates the model name in the wrapped implementation.
func (m *metricsLLM) SetModel(model string) { m.next.SetModel(model) }
