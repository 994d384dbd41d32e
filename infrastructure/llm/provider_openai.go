package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ahrav/go-kyc/internal/ports"
)

const (
	// OpenAIDefaultModel is the default vision-capable OpenAI model.
	OpenAIDefaultModel = "gpt-4o-mini"
)

func init() {
	RegisterProviderFactory("openai", newOpenAIProvider)
}

// openAIProvider implements the CoreLLM interface for OpenAI's API.
type openAIProvider struct {
	BaseProvider
	client          *openai.Client
	errorClassifier *ErrorClassifier
}

// newOpenAIProvider creates a new OpenAI provider instance.
// This factory function initializes the provider with configuration
// and validates required settings like API key presence.
func newOpenAIProvider(config ClientConfig) (CoreLLM, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	model := config.Model
	if model == "" {
		model = OpenAIDefaultModel
	}

	clientConfig := openai.DefaultConfig(config.APIKey)

	if config.BaseURL != "" {
		validatedURL, err := ValidateBaseURL(config.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid BaseURL: %w", err)
		}
		clientConfig.BaseURL = validatedURL
	}

	if config.Timeout > 0 {
		clientConfig.HTTPClient = &http.Client{
			Timeout: ValidateTimeout(config.Timeout),
		}
	}

	return &openAIProvider{
		BaseProvider:    BaseProvider{model: model},
		client:          openai.NewClientWithConfig(clientConfig),
		errorClassifier: &ErrorClassifier{Provider: "openai"},
	}, nil
}

// DoRequest sends a request to the OpenAI API and returns the response.
// Images travel as data URLs in a multi-part user message.
func (p *openAIProvider) DoRequest(
	ctx context.Context,
	prompt string,
	attachments []ports.Attachment,
	opts map[string]any,
) (string, int, int, error) {
	if err := ValidateAttachments(attachments); err != nil {
		return "", 0, 0, NewProviderError("openai", ErrorTypeBadRequest, 0, "invalid attachment", err)
	}
	for _, a := range attachments {
		if isPDF(a) {
			return "", 0, 0, NewProviderError("openai", ErrorTypeBadRequest, 0,
				"chat completions accept images only", fmt.Errorf("%w: %s", ports.ErrUnsupportedMediaType, a.MIMEType))
		}
	}

	options := ParseRequestOptions(opts, p.GetModel())

	req := p.buildChatCompletionRequest(prompt, attachments, options)
	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", 0, 0, p.handleError(err)
	}

	if len(resp.Choices) == 0 {
		return "", 0, 0, ErrNoResponseChoice
	}

	choice := resp.Choices[0]
	if choice.FinishReason == openai.FinishReasonContentFilter {
		return "", 0, 0, NewProviderError("openai", ErrorTypeContentPolicy, 0, "content filtered", ErrResponseBlocked)
	}

	content := choice.Message.Content
	if content == "" {
		return "", 0, 0, ErrEmptyResponse
	}

	return content, reportedTokens(resp.Usage.PromptTokens), reportedTokens(resp.Usage.CompletionTokens), nil
}

// buildChatCompletionRequest creates an openai.ChatCompletionRequest from a prompt and options.
func (p *openAIProvider) buildChatCompletionRequest(
	prompt string,
	attachments []ports.Attachment,
	options RequestOptions,
) openai.ChatCompletionRequest {
	req := openai.ChatCompletionRequest{
		Model:    options.Model,
		Messages: p.buildMessages(prompt, attachments, options),
	}

	if options.JSON {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	p.applyRequestParameters(&req, options)
	return req
}

// buildMessages creates the message slice for an OpenAI chat completion request.
// A plain text message is used when there is nothing to attach because the
// API rejects Content and MultiContent together.
func (p *openAIProvider) buildMessages(
	prompt string,
	attachments []ports.Attachment,
	options RequestOptions,
) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, 2)

	if options.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: options.System,
		})
	}

	if len(attachments) == 0 {
		return append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: prompt,
		})
	}

	parts := make([]openai.ChatMessagePart, 0, len(attachments)+1)
	for _, a := range attachments {
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL:    dataURL(a),
				Detail: openai.ImageURLDetailHigh,
			},
		})
	}
	parts = append(parts, openai.ChatMessagePart{
		Type: openai.ChatMessagePartTypeText,
		Text: prompt,
	})

	return append(messages, openai.ChatCompletionMessage{
		Role:         openai.ChatMessageRoleUser,
		MultiContent: parts,
	})
}

// dataURL encodes an attachment as an RFC 2397 data URL.
func dataURL(a ports.Attachment) string {
	return "data:" + strings.ToLower(a.MIMEType) + ";base64," + base64.StdEncoding.EncodeToString(a.Data)
}

// applyRequestParameters applies and validates optional parameters to the request.
func (p *openAIProvider) applyRequestParameters(req *openai.ChatCompletionRequest, options RequestOptions) {
	if options.Temperature != nil {
		temp := ClampFloat64(*options.Temperature, MinTemperature, MaxTemperature)
		req.Temperature = float32(temp)
	}

	if options.MaxTokens > 0 {
		req.MaxTokens = options.MaxTokens
	}

	if options.TopP != nil {
		req.TopP = float32(ClampFloat64(*options.TopP, MinTopP, MaxTopP))
	}

	if seed, ok := SafeInt(options.Extra["seed"]); ok {
		req.Seed = &seed
	}
}

// handleError classifies and wraps errors from the OpenAI API.
func (p *openAIProvider) handleError(err error) error {
	if isContextError(err) {
		return p.errorClassifier.ClassifyContextError(err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		message := apiErr.Message
		if message == "" {
			message = "unknown error"
		}

		return p.errorClassifier.ClassifyHTTPError(apiErr.HTTPStatusCode, message, err)
	}

	return NewProviderError("openai", ErrorTypeUnknown, 0, "request failed", err)
}
