// Package extraction reads KYC documents with a multimodal language model.
// It classifies a scanned document, extracts the fields of its kind as JSON
// and turns them into validated domain records.
package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ahrav/go-kyc/internal/domain"
	"github.com/ahrav/go-kyc/internal/ports"
)

var _ ports.DocumentExtractor = (*Extractor)(nil)

// Default generation settings. Extraction wants deterministic output.
const (
	DefaultTemperature = 0.1
	DefaultMaxTokens   = 2048
)

// Config tunes the model calls made by an Extractor.
type Config struct {
	// Temperature is sent with every call.
	Temperature float64 `validate:"min=0,max=2"`

	// MaxTokens caps the length of each answer.
	MaxTokens int `validate:"min=1,max=32768"`

	// Pricing converts token counts into cost.
	Pricing domain.Pricing

	// Now supplies the reference date written into prompts.
	// It defaults to time.Now.
	Now func() time.Time
}

// DefaultConfig returns the settings used when none are given.
func DefaultConfig() Config {
	return Config{Temperature: DefaultTemperature, MaxTokens: DefaultMaxTokens}
}

// Extractor implements ports.DocumentExtractor over a ports.LLMClient.
// It is stateless and safe for concurrent use.
type Extractor struct {
	client    ports.LLMClient
	config    Config
	validator *validator.Validate
}

// classificationResponse is the JSON object the classifier answers with.
type classificationResponse struct {
	Kind       string  `json:"kind" validate:"required"`
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// NewExtractor creates an Extractor. A zero MaxTokens falls back to
// DefaultMaxTokens.
func NewExtractor(client ports.LLMClient, config Config) (*Extractor, error) {
	if client == nil {
		return nil, errors.New("extraction: llm client is required")
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = DefaultMaxTokens
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	v := validator.New()
	if err := v.Struct(config); err != nil {
		return nil, fmt.Errorf("extraction: invalid config: %w", err)
	}
	return &Extractor{client: client, config: config, validator: v}, nil
}

// Classify asks the model which kind of document src is. The returned usage
// is set even when the answer cannot be parsed.
func (e *Extractor) Classify(ctx context.Context, src ports.Source) (*domain.Classification, domain.Usage, error) {
	prompt, err := ClassificationPrompt(domain.DateOf(e.config.Now()))
	if err != nil {
		return nil, domain.Usage{}, err
	}

	raw, usage, err := e.complete(ctx, "classify", prompt, src)
	if err != nil {
		return nil, usage, err
	}

	var resp classificationResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, usage, fmt.Errorf("%w: classification of %s: %w", ports.ErrInvalidResponse, src.Name, err)
	}
	if resp.Kind == "" {
		resp.Kind = resp.Type
	}
	if err := e.validator.Struct(resp); err != nil {
		return nil, usage, fmt.Errorf("%w: classification of %s has no kind", ports.ErrInvalidResponse, src.Name)
	}

	kind, err := domain.ParseKind(resp.Kind)
	if err != nil {
		return nil, usage, fmt.Errorf("%w: classification of %s: %w", ports.ErrInvalidResponse, src.Name, err)
	}

	return &domain.Classification{
		Kind:       kind,
		Confidence: min(max(resp.Confidence, 0), 1),
		Reason:     resp.Reason,
	}, usage, nil
}

// Extract reads the fields of a document of the given kind. A payload that
// decodes but breaks a record constraint returns the *domain.FormatError
// unchanged; an unreadable payload wraps ports.ErrInvalidResponse.
func (e *Extractor) Extract(ctx context.Context, kind domain.Kind, src ports.Source) (domain.Document, domain.Usage, error) {
	if !kind.Valid() {
		return nil, domain.Usage{}, fmt.Errorf("%w: %q", domain.ErrUnknownKind, kind)
	}
	prompt, err := ExtractionPrompt(kind, domain.DateOf(e.config.Now()))
	if err != nil {
		return nil, domain.Usage{}, err
	}

	raw, usage, err := e.complete(ctx, "extract", prompt, src)
	if err != nil {
		return nil, usage, err
	}

	doc, err := domain.DecodeDocument(kind, raw)
	switch {
	case err == nil:
		return doc, usage, nil
	case errors.Is(err, domain.ErrFormat):
		return nil, usage, fmt.Errorf("extract %s from %s: %w", kind, src.Name, err)
	default:
		return nil, usage, fmt.Errorf("%w: extract %s from %s: %w", ports.ErrInvalidResponse, kind, src.Name, err)
	}
}

// complete sends one prompt with the document attached and returns the
// JSON object of the answer. Client failures are reported as *ports.LLMError.
func (e *Extractor) complete(ctx context.Context, op, prompt string, src ports.Source) ([]byte, domain.Usage, error) {
	if len(src.Data) == 0 {
		return nil, domain.Usage{}, fmt.Errorf("document %s is empty", src.Name)
	}

	options := map[string]any{
		"response_format": "json",
		"system":          systemPrompt,
		"temperature":     e.config.Temperature,
		"max_tokens":      e.config.MaxTokens,
	}
	completion, err := e.client.Complete(ctx, prompt, []ports.Attachment{src.Attachment()}, options)
	if err != nil {
		return nil, domain.Usage{}, ports.NewLLMError(e.client.GetModel(), op,
			fmt.Errorf("model call for %s failed: %w", src.Name, err))
	}

	model := completion.Model
	if model == "" {
		model = e.client.GetModel()
	}
	usage := domain.NewUsage(model, completion.InputTokens, completion.OutputTokens, e.config.Pricing)

	body := extractJSON(completion.Text)
	if body == "" {
		return nil, usage, fmt.Errorf("%w: no JSON object in answer for %s (%d chars)",
			ports.ErrInvalidResponse, src.Name, len(completion.Text))
	}
	return []byte(body), usage, nil
}
