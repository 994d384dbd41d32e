package llm

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/go-kyc/internal/ports"
)

// tracerName identifies spans emitted by this package.
const tracerName = "github.com/ahrav/go-kyc/infrastructure/llm"

// tracedLLM wraps each request in an OpenTelemetry span.
type tracedLLM struct {
	next        CoreLLM
	serviceName string
	tracer      trace.Tracer
}

// TracingMiddleware creates middleware that adds distributed tracing to requests
// using the global tracer provider.
func TracingMiddleware(serviceName string) Middleware {
	return TracingMiddlewareWithProvider(serviceName, otel.GetTracerProvider())
}

// TracingMiddlewareWithProvider is TracingMiddleware with an explicit tracer
// provider, which tests use to capture spans.
func TracingMiddlewareWithProvider(serviceName string, tp trace.TracerProvider) Middleware {
	tracer := tp.Tracer(tracerName)
	return func(next CoreLLM) CoreLLM {
		return &tracedLLM{
			next:        next,
			serviceName: serviceName,
			tracer:      tracer,
		}
	}
}

// DoRequest executes the request within a span that records the model,
// attachment sizes, and token usage. Prompt and document contents are never
// recorded because they carry personal data.
func (t *tracedLLM) DoRequest(
	ctx context.Context,
	prompt string,
	attachments []ports.Attachment,
	opts map[string]any,
) (string, int, int, error) {
	var attachmentBytes int
	for _, a := range attachments {
		attachmentBytes += len(a.Data)
	}

	ctx, span := t.tracer.Start(ctx, "llm.request",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("service.name", t.serviceName),
			attribute.String("llm.model", t.next.GetModel()),
			attribute.Int("llm.prompt.length", len(prompt)),
			attribute.Int("llm.attachments.count", len(attachments)),
			attribute.Int("llm.attachments.bytes", attachmentBytes),
		),
	)
	defer span.End()

	response, tokensIn, tokensOut, err := t.next.DoRequest(ctx, prompt, attachments, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return response, tokensIn, tokensOut, err
	}

	span.SetAttributes(
		attribute.Int("llm.tokens.input", tokensIn),
		attribute.Int("llm.tokens.output", tokensOut),
	)
	span.SetStatus(codes.Ok, "")

	return response, tokensIn, tokensOut, nil
}

// GetModel returns the model name from the wrapped implementation.
func (t *tracedLLM) GetModel() string { return t.next.GetModel() }

// SetModel updates the model name in the wrapped implementation.
func (t *tracedLLM) SetModel(m string) { t.next.SetModel(m) }
