package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/ahrav/go-kyc/internal/ports"
)

// Anthropic provider constants
const (
	// AnthropicDefaultModel is the default Anthropic model.
	AnthropicDefaultModel = "claude-3-5-sonnet-20241022"

	// jsonOnlyInstruction stands in for a native JSON response mode, which
	// the Messages API does not have.
	jsonOnlyInstruction = "Respond with a single JSON object and nothing else."
)

func init() {
	RegisterProviderFactory("anthropic", newAnthropicProvider)
}

// anthropicProvider implements the CoreLLM interface for Anthropic's Claude API.
type anthropicProvider struct {
	BaseProvider
	client          anthropic.Client
	errorClassifier *ErrorClassifier
}

// newAnthropicProvider creates a new Anthropic provider instance.
// This factory function configures the provider for Anthropic's API
// and validates that required configuration is present.
func newAnthropicProvider(config ClientConfig) (CoreLLM, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	model := config.Model
	if model == "" {
		model = AnthropicDefaultModel
	}

	// Retries belong to RetryMiddleware so attempts are counted in one place.
	opts := []option.RequestOption{option.WithAPIKey(config.APIKey), option.WithMaxRetries(0)}
	if config.BaseURL != "" {
		validatedURL, err := ValidateBaseURL(config.BaseURL)
		if err != nil {
			return nil, err
		}
		opts = append(opts, option.WithBaseURL(validatedURL))
	}
	if timeout := ValidateTimeout(config.Timeout); timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(timeout))
	}

	return &anthropicProvider{
		BaseProvider:    BaseProvider{model: model},
		client:          anthropic.NewClient(opts...),
		errorClassifier: &ErrorClassifier{Provider: "anthropic"},
	}, nil
}

// DoRequest sends a request to Anthropic's Claude API and returns the response.
// Images become base64 image blocks and PDFs become document blocks.
func (p *anthropicProvider) DoRequest(
	ctx context.Context,
	prompt string,
	attachments []ports.Attachment,
	opts map[string]any,
) (string, int, int, error) {
	if err := ValidateAttachments(attachments); err != nil {
		return "", 0, 0, NewProviderError("anthropic", ErrorTypeBadRequest, 0, "invalid attachment", err)
	}

	options := ParseRequestOptions(opts, p.GetModel())
	params := p.buildAnthropicParams(prompt, attachments, options)

	message, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return "", 0, 0, p.handleError(err)
	}

	return p.processResponse(message)
}

// buildAnthropicParams creates the API request parameters.
func (p *anthropicProvider) buildAnthropicParams(
	prompt string,
	attachments []ports.Attachment,
	options RequestOptions,
) anthropic.MessageNewParams {
	blocks := make([]anthropic.ContentBlockParamUnion, 0, len(attachments)+1)
	for _, a := range attachments {
		encoded := base64.StdEncoding.EncodeToString(a.Data)
		if isPDF(a) {
			blocks = append(blocks, anthropic.NewDocumentBlock(anthropic.Base64PDFSourceParam{Data: encoded}))
			continue
		}
		blocks = append(blocks, anthropic.NewImageBlockBase64(strings.ToLower(a.MIMEType), encoded))
	}
	blocks = append(blocks, anthropic.NewTextBlock(prompt))

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(options.Model),
		MaxTokens: int64(options.MaxTokens),
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(blocks...)},
	}

	if options.Temperature != nil {
		// Anthropic caps temperature at 1.0.
		params.Temperature = anthropic.Float(ClampFloat64(*options.Temperature, 0, 1))
	}

	if options.TopP != nil {
		params.TopP = anthropic.Float(*options.TopP)
	}

	system := options.System
	if options.JSON {
		system = strings.TrimSpace(system + "\n\n" + jsonOnlyInstruction)
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	return params
}

// processResponse extracts content and token counts from the API response.
func (p *anthropicProvider) processResponse(message *anthropic.Message) (string, int, int, error) {
	var responseText strings.Builder
	for _, block := range message.Content {
		switch content := block.AsAny().(type) {
		case anthropic.TextBlock:
			responseText.WriteString(content.Text)
		}
	}

	responseStr := responseText.String()
	if responseStr == "" {
		return "", 0, 0, ErrEmptyResponse
	}

	return responseStr, reportedTokens(message.Usage.InputTokens), reportedTokens(message.Usage.OutputTokens), nil
}

// handleError wraps Anthropic SDK errors into standardized provider errors.
func (p *anthropicProvider) handleError(err error) error {
	if isContextError(err) {
		return p.errorClassifier.ClassifyContextError(err)
	}

	var anthropicErr *anthropic.Error
	if errors.As(err, &anthropicErr) {
		return p.errorClassifier.ClassifyHTTPError(anthropicErr.StatusCode, "anthropic API error", err)
	}

	return NewProviderError("anthropic", ErrorTypeUnknown, 0, "request failed", err)
}
