package middleware

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/go-kyc/internal/domain"
	"github.com/ahrav/go-kyc/internal/ports"
)

const budgetTracerName = "github.com/ahrav/go-kyc/infrastructure/middleware"

// Usage ratios at which span events are emitted.
const (
	warningThreshold  = 0.8
	criticalThreshold = 0.9
)

var _ BudgetObserver = (*OTelBudgetObserver)(nil)

// OTelBudgetObserver traces every guarded extractor call and exports the
// running usage as gauges. The span travels in the context, so one
// observer serves concurrent calls.
type OTelBudgetObserver struct {
	metrics ports.MetricsCollector
	tracer  trace.Tracer
}

// NewOTelBudgetObserver creates an observer using the global tracer
// provider. metrics may be nil.
func NewOTelBudgetObserver(metrics ports.MetricsCollector) *OTelBudgetObserver {
	return NewOTelBudgetObserverWithProvider(metrics, otel.GetTracerProvider())
}

// NewOTelBudgetObserverWithProvider creates an observer with an explicit
// tracer provider.
func NewOTelBudgetObserverWithProvider(metrics ports.MetricsCollector, tp trace.TracerProvider) *OTelBudgetObserver {
	return &OTelBudgetObserver{metrics: metrics, tracer: tp.Tracer(budgetTracerName)}
}

// PreCheck implements BudgetObserver. It starts the span of the call.
func (o *OTelBudgetObserver) PreCheck(ctx context.Context, stage string, usage domain.Usage, budget Budget) context.Context {
	ctx, span := o.tracer.Start(ctx, "budget."+stage)
	span.SetAttributes(attribute.String("budget.stage", stage))
	o.addSpanAttributes(span, usage, budget)
	o.checkBudgetThresholds(span, usage, budget)
	return ctx
}

// PostCheck implements BudgetObserver. It ends the span started by
// PreCheck and records metrics.
func (o *OTelBudgetObserver) PostCheck(ctx context.Context, stage string, usage domain.Usage, budget Budget, elapsed time.Duration, err error) {
	span := trace.SpanFromContext(ctx)
	defer span.End()

	o.addSpanAttributes(span, usage, budget)

	if o.metrics != nil && elapsed > 0 {
		o.metrics.RecordLatency("extractor_"+stage, elapsed, map[string]string{})
	}

	var budgetErr *BudgetExceededError
	switch {
	case errors.As(err, &budgetErr):
		span.AddEvent("budget.exceeded", trace.WithAttributes(
			attribute.String("limit_type", budgetErr.LimitType),
			attribute.String("limit_value", budgetErr.Limit),
			attribute.String("used_value", budgetErr.Used),
		))
		span.SetStatus(codes.Error, "budget limit exceeded")
		if o.metrics != nil {
			o.metrics.RecordCounter(MetricBudgetExceeded, 1, map[string]string{"limit_type": budgetErr.LimitType})
		}
		return
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	default:
		span.SetStatus(codes.Ok, "")
	}

	o.updateMetrics(usage)
}

func (o *OTelBudgetObserver) addSpanAttributes(span trace.Span, usage domain.Usage, budget Budget) {
	span.SetAttributes(
		attribute.Int("budget.tokens_used", usage.TotalTokens()),
		attribute.Int("budget.calls_made", usage.Calls),
		attribute.String("budget.cost_used", usage.Cost.String()),
	)

	if budget.MaxTokens > 0 {
		span.SetAttributes(
			attribute.Int64("budget.max_tokens", budget.MaxTokens),
			attribute.Int64("budget.remaining_tokens", budget.MaxTokens-int64(usage.TotalTokens())),
		)
	}
	if budget.MaxCalls > 0 {
		span.SetAttributes(
			attribute.Int64("budget.max_calls", budget.MaxCalls),
			attribute.Int64("budget.remaining_calls", budget.MaxCalls-int64(usage.Calls)),
		)
	}
	if budget.MaxCost.IsPositive() {
		span.SetAttributes(attribute.String("budget.max_cost", budget.MaxCost.String()))
	}
}

// checkBudgetThresholds adds span events when usage approaches a limit.
func (o *OTelBudgetObserver) checkBudgetThresholds(span trace.Span, usage domain.Usage, budget Budget) {
	if budget.MaxTokens > 0 {
		thresholdEvent(span, "tokens", float64(usage.TotalTokens())/float64(budget.MaxTokens))
	}
	if budget.MaxCalls > 0 {
		thresholdEvent(span, "calls", float64(usage.Calls)/float64(budget.MaxCalls))
	}
	if budget.MaxCost.IsPositive() {
		ratio, _ := usage.Cost.Div(budget.MaxCost).Float64()
		thresholdEvent(span, "cost", ratio)
	}
}

func thresholdEvent(span trace.Span, resource string, ratio float64) {
	name := ""
	switch {
	case ratio >= criticalThreshold:
		name = "budget.threshold.critical"
	case ratio >= warningThreshold:
		name = "budget.threshold.warning"
	default:
		return
	}
	span.AddEvent(name, trace.WithAttributes(
		attribute.String("resource_type", resource),
		attribute.Float64("usage_percentage", ratio*100),
	))
}

func (o *OTelBudgetObserver) updateMetrics(usage domain.Usage) {
	if o.metrics == nil {
		return
	}
	labels := map[string]string{}
	cost, _ := usage.Cost.Float64()
	o.metrics.RecordGauge(MetricTokensUsed, float64(usage.TotalTokens()), labels)
	o.metrics.RecordGauge(MetricCallsUsed, float64(usage.Calls), labels)
	o.metrics.RecordGauge(MetricCostUsed, cost, labels)
}
