package llm

import (
	"context"
	"sync"
	"time"

	"github.com/ahrav/go-kyc/internal/ports"
)

// MockCoreLLM provides a configurable mock implementation of CoreLLM for testing.
// It allows precise control over response behavior, timing, and error conditions
// to facilitate middleware testing.
type MockCoreLLM struct {
	mu sync.Mutex

	// Response configuration
	Response      string
	TokensIn      int
	TokensOut     int
	Error         error
	Model         string
	ResponseDelay time.Duration

	// Behavior flags
	FailUntilAttempt int  // Fail for first N attempts, then succeed
	AlternateErrors  bool // Alternate between success and failure

	// Tracking
	CallCount       int
	LastPrompt      string
	LastAttachments []ports.Attachment
	LastOpts        map[string]any
	LastContext     context.Context
	CallTimestamps  []time.Time
}

// NewMockCoreLLM creates a new mock CoreLLM with default successful behavior.
func NewMockCoreLLM() *MockCoreLLM {
	return &MockCoreLLM{
		Response:  `{"ok":true}`,
		TokensIn:  10,
		TokensOut: 20,
		Model:     "test-model",
	}
}

// DoRequest implements the CoreLLM interface with configurable behavior.
// The lock is released while a configured delay elapses so concurrent
// callers overlap the way real requests do.
func (m *MockCoreLLM) DoRequest(
	ctx context.Context,
	prompt string,
	attachments []ports.Attachment,
	opts map[string]any,
) (string, int, int, error) {
	m.mu.Lock()
	m.CallCount++
	call := m.CallCount
	m.LastPrompt = prompt
	m.LastAttachments = attachments
	m.LastOpts = opts
	m.LastContext = ctx
	m.CallTimestamps = append(m.CallTimestamps, time.Now())
	delay := m.ResponseDelay
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", 0, 0, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailUntilAttempt > 0 && call <= m.FailUntilAttempt {
		return "", 0, 0, m.failure("simulated failure")
	}

	if m.AlternateErrors && call%2 == 0 {
		return "", 0, 0, m.failure("alternating failure")
	}

	if m.Error != nil {
		return "", 0, 0, m.Error
	}

	return m.Response, m.TokensIn, m.TokensOut, nil
}

func (m *MockCoreLLM) failure(msg string) error {
	if m.Error != nil {
		return m.Error
	}
	return &testError{message: msg}
}

// GetModel returns the configured model name.
func (m *MockCoreLLM) GetModel() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Model
}

// SetModel updates the model name.
func (m *MockCoreLLM) SetModel(model string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Model = model
}

// GetCallCount returns the number of times DoRequest was called.
func (m *MockCoreLLM) GetCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallCount
}

// NewMockClient wraps a mock in a Client with the given middleware, which
// lets tests exercise the full request path without a provider.
func NewMockClient(mock *MockCoreLLM, middleware ...Middleware) *Client {
	return newClientFromCore(mock, ClientConfig{Middleware: middleware})
}

// testError provides a simple error type for testing.
type testError struct {
	message string
}

func (e *testError) Error() string {
	return e.message
}
