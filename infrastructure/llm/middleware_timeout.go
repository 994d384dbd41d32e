package llm

import (
	"context"
	"time"

	"github.com/ahrav/go-kyc/internal/ports"
)

// timeoutLLM implements request timeout functionality.
// Document images make for slow requests, so the bound applies per attempt
// when placed inside the retry middleware.
type timeoutLLM struct {
	next    CoreLLM
	timeout time.Duration
}

// TimeoutMiddleware creates middleware that enforces request timeouts.
// A non-positive timeout disables it.
func TimeoutMiddleware(timeout time.Duration) Middleware {
	return func(next CoreLLM) CoreLLM {
		return &timeoutLLM{
			next:    next,
			timeout: timeout,
		}
	}
}

// DoRequest executes the request with a timeout context.
// If the request doesn't complete in time, it returns a context deadline
// exceeded error.
func (t *timeoutLLM) DoRequest(
	ctx context.Context,
	prompt string,
	attachments []ports.Attachment,
	opts map[string]any,
) (string, int, int, error) {
	if t.timeout <= 0 {
		return t.next.DoRequest(ctx, prompt, attachments, opts)
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.DoRequest(ctx, prompt, attachments, opts)
}

// GetModel returns the model name from the wrapped implementation.
func (t *timeoutLLM) GetModel() string { return t.next.GetModel() }

// SetModel updates the model name in the wrapped implementation.
func (t *timeoutLLM) SetModel(m string) { t.next.SetModel(m) }
