// Package ports declares the interfaces the KYC core consumes from the
// outside world: language model clients, the document extraction service
// and metrics sinks.
package ports

import (
	"context"
	"time"

	"github.com/ahrav/go-kyc/internal/domain"
)

// Attachment is an inline binary part sent alongside a prompt, typically a
// scanned document image or PDF.
type Attachment struct {
	// MIMEType is the IANA media type of Data, e.g. "image/jpeg".
	MIMEType string

	// Data holds the raw bytes.
	Data []byte
}

// Completion is the result of a single model call.
type Completion struct {
	// Text is the generated text.
	Text string

	// Model is the model that produced the text.
	Model string

	// InputTokens and OutputTokens are the provider-reported counts.
	// Providers that omit usage metadata leave them at zero.
	InputTokens  int
	OutputTokens int
}

// LLMClient defines the interface for interacting with multimodal Large
// Language Model providers.
// Implementations should handle provider-specific details like
// authentication, request formatting, and response parsing.
type LLMClient interface {
	// Complete sends a prompt and its attachments to the provider and
	// returns the generated text with token usage.
	// The implementation should handle rate limiting, retries, and timeouts.
	//
	// Common options include:
	//   - "temperature": float64 (0.0-1.0)
	//   - "max_tokens": int
	//   - "response_format": "json" to request a JSON-only response
	Complete(ctx context.Context, prompt string, attachments []Attachment, options map[string]any) (Completion, error)

	// EstimateTokens calculates the approximate token count for a given text.
	EstimateTokens(text string) (int, error)

	// GetModel returns the model identifier being used by this client.
	GetModel() string
}

// Source is a document submitted for extraction.
type Source struct {
	// Name identifies the document in results and logs, usually the file name.
	Name string

	// MIMEType is the media type of Data.
	MIMEType string

	// Data holds the raw document bytes.
	Data []byte
}

// Attachment returns the source as a model attachment.
func (s Source) Attachment() Attachment {
	return Attachment{MIMEType: s.MIMEType, Data: s.Data}
}

// DocumentExtractor is the external document extraction service. Each call
// is an independent request/response; usage may be zero when the provider
// does not report it.
type DocumentExtractor interface {
	// Classify guesses which of the supported kinds the document is.
	Classify(ctx context.Context, src Source) (*domain.Classification, domain.Usage, error)

	// Extract reads the fields of a document of the given kind and returns
	// the validated record.
	Extract(ctx context.Context, kind domain.Kind, src Source) (domain.Document, domain.Usage, error)
}

// MetricsCollector defines the interface for collecting operational metrics.
// Implementations should integrate with observability platforms like
// Prometheus or OpenTelemetry.
type MetricsCollector interface {
	// RecordLatency records the execution time of an operation.
	// The labels map provides additional context for the metric.
	RecordLatency(operation string, duration time.Duration, labels map[string]string)

	// RecordCounter increments a counter metric.
	RecordCounter(metric string, value float64, labels map[string]string)

	// RecordGauge sets the current value of a gauge metric.
	RecordGauge(metric string, value float64, labels map[string]string)

	// RecordHistogram records a value in a histogram.
	RecordHistogram(metric string, value float64, labels map[string]string)
}
