package llm

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ahrav/go-kyc/internal/ports"
)

// Accepted ranges of the request options shared by every provider.
const (
	MinTemperature = 0.0
	// MaxTemperature is the Gemini and OpenAI bound; Anthropic clamps to 1.
	MaxTemperature = 2.0
	MinTopP        = 0.0
	MaxTopP        = 1.0
	MinTimeout     = 1 * time.Second
	MaxTimeout     = 10 * time.Minute
	// DefaultMaxTokens bounds the response length when the caller sets none.
	// Extraction payloads are small JSON objects.
	DefaultMaxTokens = 2048
	// MaxAttachmentBytes caps a single inline attachment. Larger documents
	// must go through a provider file API, which is not supported.
	MaxAttachmentBytes = 20 << 20
)

// ResponseFormatJSON is the "response_format" option value that asks the
// provider for a bare JSON object.
const ResponseFormatJSON = "json"

// supportedMIMETypes lists the attachment media types every provider accepts
// inline.
var supportedMIMETypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/webp":      true,
	"image/gif":       true,
	"application/pdf": true,
}

// ValidateAttachments checks that every attachment carries data of a media
// type the providers accept inline.
func ValidateAttachments(attachments []ports.Attachment) error {
	for i, a := range attachments {
		if len(a.Data) == 0 {
			return fmt.Errorf("attachment %d is empty", i)
		}
		if len(a.Data) > MaxAttachmentBytes {
			return fmt.Errorf("attachment %d is %d bytes, limit is %d", i, len(a.Data), MaxAttachmentBytes)
		}
		if !supportedMIMETypes[strings.ToLower(a.MIMEType)] {
			return fmt.Errorf("attachment %d: %w: %q", i, ports.ErrUnsupportedMediaType, a.MIMEType)
		}
	}
	return nil
}

// isPDF reports whether the attachment is a PDF document rather than an image.
func isPDF(a ports.Attachment) bool {
	return strings.EqualFold(a.MIMEType, "application/pdf")
}

// IsValidTemperature checks if the temperature is within the valid range [0.0, 2.0].
func IsValidTemperature(val float64) bool {
	return val >= MinTemperature && val <= MaxTemperature
}

// IsValidTopP checks if the top_p value is within the valid range [0.0, 1.0].
func IsValidTopP(val float64) bool {
	return val >= MinTopP && val <= MaxTopP
}

// IsPositiveInt checks if the integer value is positive.
func IsPositiveInt(val int) bool {
	return val > 0
}

// IsNonEmptyString checks if the string is non-empty.
func IsNonEmptyString(val string) bool {
	return val != ""
}

// ValidateBaseURL validates and normalizes a base URL string.
// It ensures the URL has a valid scheme (http or https) and a host.
// An empty string is considered valid and returns no error, allowing for default URLs.
func ValidateBaseURL(baseURL string) (string, error) {
	if baseURL == "" {
		// An empty URL is valid; it signifies that the default provider URL should be used.
		return "", nil
	}

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL format: %w", err)
	}

	if parsedURL.Scheme == "" {
		return "", fmt.Errorf("URL must include a scheme (e.g., http:// or https://)")
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return "", fmt.Errorf("URL scheme must be http or https, but got: %s", parsedURL.Scheme)
	}

	if parsedURL.Host == "" {
		return "", fmt.Errorf("URL must include a host")
	}

	return parsedURL.String(), nil
}

// ValidateTimeout ensures the timeout is within a reasonable range.
// If the timeout is zero or negative, it returns zero to indicate that the default should be used.
// If it's outside the [MinTimeout, MaxTimeout] range, it clamps it to the nearest boundary.
func ValidateTimeout(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		// A zero or negative timeout indicates that the system default should be used.
		return 0
	}
	if timeout < MinTimeout {
		return MinTimeout
	}
	if timeout > MaxTimeout {
		return MaxTimeout
	}
	return timeout
}

// SafeInt safely converts a numeric value of type any to an int.
// It returns the converted value and a boolean indicating success.
// The conversion fails if the value is out of the int range or is not a number (NaN).
func SafeInt(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int64:
		// Check for potential overflow when converting from int64 to int.
		if int64(int(v)) != v {
			return 0, false
		}
		return int(v), true
	case float32:
		// A NaN value cannot be converted to an integer.
		if v != v {
			return 0, false
		}
		return int(v), true
	case float64:
		// A NaN value cannot be converted to an integer.
		if v != v {
			return 0, false
		}
		// Check if the float64 value is within the valid range for an integer.
		const maxInt = int(^uint(0) >> 1)
		const minInt = -maxInt - 1
		if v > float64(maxInt) || v < float64(minInt) {
			return 0, false
		}
		return int(v), true
	default:
		return 0, false
	}
}

// ClampFloat64 clamps a float64 value to be within the specified min and max range.
func ClampFloat64(val, min, max float64) float64 {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}

// ClampInt clamps an int value to be within the specified min and max range.
func ClampInt(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}
