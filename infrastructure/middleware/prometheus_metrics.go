package middleware

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ahrav/go-kyc/infrastructure/llm"
	"github.com/ahrav/go-kyc/internal/ports"
)

// Metric names recorded by the pipeline and the budget guard. The LLM
// metric names live in the llm package.
const (
	MetricDocuments      = "kyc_documents_total"
	MetricDecisions      = "kyc_decisions_total"
	MetricCost           = "kyc_cost_total"
	MetricBudgetExceeded = "budget_exceeded_total"
	MetricTokensUsed     = "budget_tokens_used"
	MetricCallsUsed      = "budget_calls_used"
	MetricCostUsed       = "budget_cost_used"
)

// PrometheusMetrics implements ports.MetricsCollector and
// llm.CircuitBreakerMetrics on top of Prometheus collectors.
type PrometheusMetrics struct {
	llmLatency       *prometheus.HistogramVec
	llmRequests      *prometheus.CounterVec
	llmTokens        *prometheus.CounterVec
	documents        *prometheus.CounterVec
	decisions        *prometheus.CounterVec
	cost             *prometheus.CounterVec
	budgetExceeded   *prometheus.CounterVec
	operationLatency *prometheus.HistogramVec
	operationCounter *prometheus.CounterVec
	histograms       *prometheus.HistogramVec
	systemGauges     *prometheus.GaugeVec
	breakerState     prometheus.Gauge
	breakerEvents    *prometheus.CounterVec
}

// NewPrometheusMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered, which is what tests want.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	factory := promauto.With(reg)

	return &PrometheusMetrics{
		llmLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    llm.MetricLatency,
				Help:    "Latency of language model requests.",
				Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32, 64},
			},
			[]string{"provider", "model", "status"},
		),
		llmRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: llm.MetricRequests,
				Help: "Language model requests by outcome.",
			},
			[]string{"provider", "model", "status"},
		),
		llmTokens: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: llm.MetricTokens,
				Help: "Tokens consumed by language model requests.",
			},
			[]string{"provider", "model", "token_type"},
		),
		documents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricDocuments,
				Help: "Documents processed by kind and outcome.",
			},
			[]string{"kind", "status"},
		),
		decisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricDecisions,
				Help: "Dossier decisions by status.",
			},
			[]string{"status"},
		),
		cost: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricCost,
				Help: "Computed model cost in dollars.",
			},
			[]string{"model"},
		),
		budgetExceeded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricBudgetExceeded,
				Help: "Calls refused because a usage budget was exhausted.",
			},
			[]string{"limit_type"},
		),
		operationLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kyc_operation_duration_seconds",
				Help:    "Duration of pipeline operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "kind"},
		),
		operationCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kyc_operations_total",
				Help: "Counters without a dedicated collector.",
			},
			[]string{"metric"},
		),
		histograms: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kyc_observations",
				Help:    "Histogram values without a dedicated collector.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"metric"},
		),
		systemGauges: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "kyc_system_state",
				Help: "Current values such as budget consumption.",
			},
			[]string{"metric"},
		),
		breakerState: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "llm_circuit_breaker_state",
				Help: "Circuit breaker state: 0 closed, 1 open, 2 half open.",
			},
		),
		breakerEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llm_circuit_breaker_events_total",
				Help: "Circuit breaker trips and request outcomes.",
			},
			[]string{"event"},
		),
	}
}

// RecordLatency implements ports.MetricsCollector.
func (pm *PrometheusMetrics) RecordLatency(operation string, duration time.Duration, labels map[string]string) {
	pm.operationLatency.WithLabelValues(operation, labelOr(labels, "kind", "all")).Observe(duration.Seconds())
}

// RecordCounter implements ports.MetricsCollector.
func (pm *PrometheusMetrics) RecordCounter(metric string, value float64, labels map[string]string) {
	switch metric {
	case llm.MetricRequests:
		pm.llmRequests.WithLabelValues(labels["provider"], labels["model"], labels["status"]).Add(value)
	case llm.MetricTokens:
		pm.llmTokens.WithLabelValues(labels["provider"], labels["model"], labels["token_type"]).Add(value)
	case MetricDocuments:
		pm.documents.WithLabelValues(labelOr(labels, "kind", "unknown"), labels["status"]).Add(value)
	case MetricDecisions:
		pm.decisions.WithLabelValues(labels["status"]).Add(value)
	case MetricCost:
		pm.cost.WithLabelValues(labelOr(labels, "model", "unknown")).Add(value)
	case MetricBudgetExceeded:
		pm.budgetExceeded.WithLabelValues(labels["limit_type"]).Add(value)
	default:
		pm.operationCounter.WithLabelValues(metric).Add(value)
	}
}

// RecordGauge implements ports.MetricsCollector.
func (pm *PrometheusMetrics) RecordGauge(metric string, value float64, _ map[string]string) {
	pm.systemGauges.WithLabelValues(metric).Set(value)
}

// RecordHistogram implements ports.MetricsCollector.
func (pm *PrometheusMetrics) RecordHistogram(metric string, value float64, labels map[string]string) {
	if metric == llm.MetricLatency {
		pm.llmLatency.WithLabelValues(labels["provider"], labels["model"], labels["status"]).Observe(value)
		return
	}
	pm.histograms.WithLabelValues(metric).Observe(value)
}

// RecordState implements llm.CircuitBreakerMetrics.
func (pm *PrometheusMetrics) RecordState(state llm.CircuitBreakerState) {
	pm.breakerState.Set(float64(state))
}

// RecordTrip implements llm.CircuitBreakerMetrics.
func (pm *PrometheusMetrics) RecordTrip() { pm.breakerEvents.WithLabelValues("trip").Inc() }

// RecordSuccess implements llm.CircuitBreakerMetrics.
func (pm *PrometheusMetrics) RecordSuccess() { pm.breakerEvents.WithLabelValues("success").Inc() }

// RecordFailure implements llm.CircuitBreakerMetrics.
func (pm *PrometheusMetrics) RecordFailure() { pm.breakerEvents.WithLabelValues("failure").Inc() }

func labelOr(labels map[string]string, key, fallback string) string {
	if v, ok := labels[key]; ok && v != "" {
		return v
	}
	return fallback
}

var (
	_ ports.MetricsCollector    = (*PrometheusMetrics)(nil)
	_ llm.CircuitBreakerMetrics = (*PrometheusMetrics)(nil)
)
