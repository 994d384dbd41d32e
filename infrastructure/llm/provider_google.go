package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/genai"

	"github.com/ahrav/go-kyc/internal/ports"
)

// Google provider constants define model names and other provider-specific
// values.
const (
	// GoogleDefaultModel is the default model for the Google provider.
	GoogleDefaultModel = "gemini-2.5-flash"
	// GoogleDefaultLocation is the Vertex AI region used when none is configured.
	GoogleDefaultLocation = "europe-west1"
)

func init() {
	RegisterProviderFactory("google", newGoogleProvider)
}

// googleProvider implements the CoreLLM interface for Gemini models served by
// either Vertex AI or the Gemini API.
type googleProvider struct {
	BaseProvider
	client          *genai.Client
	errorClassifier *ErrorClassifier
}

// newGoogleProvider creates a new Google Gemini provider instance.
// It returns an error if neither an API key nor a Vertex project is configured.
func newGoogleProvider(config ClientConfig) (CoreLLM, error) {
	model := config.Model
	if model == "" {
		model = GoogleDefaultModel
	}

	clientConfig, err := buildGoogleClientConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to configure authentication: %w", err)
	}

	client, err := genai.NewClient(context.Background(), clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Google client: %w", err)
	}

	return &googleProvider{
		BaseProvider:    BaseProvider{model: model},
		client:          client,
		errorClassifier: &ErrorClassifier{Provider: "google"},
	}, nil
}

// buildGoogleClientConfig selects the backend from the configuration.
// Vertex AI authenticates with application default credentials, so only the
// project and location are passed through.
func buildGoogleClientConfig(config ClientConfig) (*genai.ClientConfig, error) {
	backend := config.Backend
	if backend == BackendAuto {
		backend = BackendGeminiAPI
		if config.Project != "" {
			backend = BackendVertexAI
		}
	}

	cc := &genai.ClientConfig{}
	switch backend {
	case BackendVertexAI:
		if config.Project == "" {
			return nil, errors.New("vertex backend requires a project")
		}
		location := config.Location
		if location == "" {
			location = GoogleDefaultLocation
		}
		cc.Backend = genai.BackendVertexAI
		cc.Project = config.Project
		cc.Location = location
	case BackendGeminiAPI:
		if config.APIKey == "" {
			return nil, ErrEmptyAPIKey
		}
		cc.Backend = genai.BackendGeminiAPI
		cc.APIKey = config.APIKey
	default:
		return nil, fmt.Errorf("unknown google backend %q", backend)
	}

	if config.BaseURL != "" {
		validatedURL, err := ValidateBaseURL(config.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid BaseURL: %w", err)
		}
		cc.HTTPOptions.BaseURL = validatedURL
	}

	if timeout := ValidateTimeout(config.Timeout); timeout > 0 {
		cc.HTTPClient = &http.Client{Timeout: timeout}
	}

	return cc, nil
}

// DoRequest sends the prompt and its inline attachments to Gemini and returns
// the response text with token usage.
func (p *googleProvider) DoRequest(
	ctx context.Context,
	prompt string,
	attachments []ports.Attachment,
	opts map[string]any,
) (string, int, int, error) {
	if err := ValidateAttachments(attachments); err != nil {
		return "", 0, 0, NewProviderError("google", ErrorTypeBadRequest, 0, "invalid attachment", err)
	}

	options := ParseRequestOptions(opts, p.GetModel())

	contents := p.buildContents(prompt, attachments)
	config := p.buildGenerationConfig(options)

	resp, err := p.client.Models.GenerateContent(ctx, options.Model, contents, config)
	if err != nil {
		return "", 0, 0, p.handleError(err)
	}

	content := resp.Text()
	if content == "" {
		if reason := blockReason(resp); reason != "" {
			return "", 0, 0, NewProviderError("google", ErrorTypeContentPolicy, 0, reason, ErrResponseBlocked)
		}
		return "", 0, 0, ErrEmptyResponse
	}

	var tokensIn, tokensOut int
	if usage := resp.UsageMetadata; usage != nil {
		tokensIn = reportedTokens(usage.PromptTokenCount)
		tokensOut = reportedTokens(usage.CandidatesTokenCount)
	}
	return content, tokensIn, tokensOut, nil
}

// buildContents places the attachments before the prompt in a single user
// turn, which is the order Gemini documents for image understanding.
func (p *googleProvider) buildContents(prompt string, attachments []ports.Attachment) []*genai.Content {
	parts := make([]*genai.Part, 0, len(attachments)+1)
	for _, a := range attachments {
		parts = append(parts, genai.NewPartFromBytes(a.Data, strings.ToLower(a.MIMEType)))
	}
	parts = append(parts, genai.NewPartFromText(prompt))

	return []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
}

// buildGenerationConfig creates the generation configuration for a Gemini
// request. It validates and sets parameters such as temperature, max tokens,
// and the response MIME type.
func (p *googleProvider) buildGenerationConfig(options RequestOptions) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}

	if options.System != "" {
		config.SystemInstruction = genai.NewContentFromText(options.System, genai.RoleUser)
	}

	if options.JSON {
		config.ResponseMIMEType = "application/json"
	}

	if options.Temperature != nil {
		temp := ClampFloat64(*options.Temperature, MinTemperature, MaxTemperature)
		config.Temperature = genai.Ptr(float32(temp))
	}

	if options.MaxTokens > 0 {
		if options.MaxTokens > math.MaxInt32 {
			config.MaxOutputTokens = math.MaxInt32
		} else {
			config.MaxOutputTokens = int32(options.MaxTokens)
		}
	}

	if options.TopP != nil {
		topP := ClampFloat64(*options.TopP, MinTopP, MaxTopP)
		config.TopP = genai.Ptr(float32(topP))
	}

	if topK, ok := SafeInt(options.Extra["top_k"]); ok {
		// Gemini accepts top_k in [1, 40].
		config.TopK = genai.Ptr(float32(ClampInt(topK, 1, 40)))
	}

	return config
}

// handleError provides structured error handling for Google API responses.
// The genai SDK reports HTTP failures as genai.APIError values; the older
// googleapi error type still surfaces from some transport paths.
func (p *googleProvider) handleError(err error) error {
	if isContextError(err) {
		return p.errorClassifier.ClassifyContextError(err)
	}

	var genaiErr genai.APIError
	if errors.As(err, &genaiErr) {
		if isContentPolicyMessage(genaiErr.Message) {
			return NewProviderError("google", ErrorTypeContentPolicy, genaiErr.Code,
				"request blocked by safety filters", err)
		}
		message := genaiErr.Message
		if message == "" {
			message = genaiErr.Status
		}
		return p.errorClassifier.ClassifyHTTPError(genaiErr.Code, message, err)
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		message := apiErr.Message
		if message == "" && len(apiErr.Errors) > 0 {
			message = apiErr.Errors[0].Message
		}

		if containsContentPolicyError(apiErr) {
			return NewProviderError("google", ErrorTypeContentPolicy, apiErr.Code,
				"request blocked by safety filters", err)
		}

		return p.errorClassifier.ClassifyHTTPError(apiErr.Code, message, err)
	}

	return NewProviderError("google", ErrorTypeUnknown, 0, "request failed", err)
}

// blockReason explains an empty response, if Gemini said why.
func blockReason(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	if pf := resp.PromptFeedback; pf != nil && pf.BlockReason != "" {
		return fmt.Sprintf("prompt blocked: %s", pf.BlockReason)
	}
	for _, c := range resp.Candidates {
		switch c.FinishReason {
		case genai.FinishReasonSafety, genai.FinishReasonProhibitedContent,
			genai.FinishReasonBlocklist, genai.FinishReasonSPII:
			return fmt.Sprintf("candidate blocked: %s", c.FinishReason)
		}
	}
	return ""
}

// isContextError checks if an error is a context-related error, such as a
// deadline exceeded or cancellation.
func isContextError(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled)
}

func isContentPolicyMessage(message string) bool {
	lower := strings.ToLower(message)
	return strings.Contains(lower, "safety") ||
		strings.Contains(lower, "policy") ||
		strings.Contains(lower, "blocked")
}

// containsContentPolicyError checks if a Google API error is related to
// content policy violations.
func containsContentPolicyError(apiErr *googleapi.Error) bool {
	if isContentPolicyMessage(apiErr.Message) {
		return true
	}

	for _, e := range apiErr.Errors {
		if e.Reason == "SAFETY" || e.Reason == "BLOCKED" {
			return true
		}
	}

	return false
}
