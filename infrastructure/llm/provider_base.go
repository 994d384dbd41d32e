package llm

import (
	"strings"
	"sync"
)

// BaseProvider holds the model name shared by every provider. It is safe
// for concurrent use.
type BaseProvider struct {
	mu    sync.RWMutex
	model string
}

// GetModel returns the configured model.
func (b *BaseProvider) GetModel() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.model
}

// SetModel replaces the configured model.
func (b *BaseProvider) SetModel(model string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.model = model
}

// RequestOptions is the provider-independent form of the options map
// passed to Complete.
type RequestOptions struct {
	MaxTokens int
	Model     string
	// Temperature controls the randomness of the output.
	// Extraction runs near zero so repeated calls agree on field values.
	// A nil value indicates that the provider's default should be used.
	Temperature *float64
	// TopP is nucleus sampling. A nil value keeps the provider's default.
	TopP *float64
	// System provides instructions that frame every request.
	System string
	// JSON asks the provider to constrain the response to a JSON object.
	JSON bool
	// Extra holds the keys not listed above, e.g. "seed" or "top_k".
	Extra map[string]any
}

// ParseRequestOptions reads opts into RequestOptions. Missing or invalid
// values fall back to defaults; out-of-range sampling values are dropped so
// the provider default applies.
func ParseRequestOptions(opts map[string]any, defaultModel string) RequestOptions {
	options := RequestOptions{
		MaxTokens: ExtractOptionalInt(opts, "max_tokens", DefaultMaxTokens, IsPositiveInt),
		Model:     ExtractOptionalString(opts, "model", defaultModel, IsNonEmptyString),
		System:    ExtractOptionalString(opts, "system", "", nil),
		Extra:     make(map[string]any),
	}

	if temp := ExtractOptionalFloat64(opts, "temperature", -1, IsValidTemperature); temp != -1 {
		options.Temperature = &temp
	}

	if topP := ExtractOptionalFloat64(opts, "top_p", -1, IsValidTopP); topP != -1 {
		options.TopP = &topP
	}

	format := ExtractOptionalString(opts, "response_format", "", nil)
	options.JSON = strings.EqualFold(format, ResponseFormatJSON)

	for k, v := range opts {
		switch k {
		case "max_tokens", "model", "system", "temperature", "top_p", "response_format":
		default:
			options.Extra[k] = v
		}
	}

	return options
}

// reportedTokens converts a provider-reported count. Providers that omit
// usage metadata report zero, which is kept as zero: a text-length estimate
// would ignore the document image and misprice the call.
func reportedTokens[T ~int | ~int32 | ~int64](n T) int {
	return int(max(n, 0))
}
