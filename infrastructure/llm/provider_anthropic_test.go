package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-kyc/internal/ports"
)

func anthropicMessage(text string, inputTokens, outputTokens int) map[string]any {
	return map[string]any{
		"id":            "msg_test",
		"type":          "message",
		"role":          "assistant",
		"model":         AnthropicDefaultModel,
		"content":       []map[string]any{{"type": "text", "text": text}},
		"stop_reason":   "end_turn",
		"stop_sequence": nil,
		"usage":         map[string]any{"input_tokens": inputTokens, "output_tokens": outputTokens},
	}
}

func newAnthropicTestProvider(t *testing.T, handler http.HandlerFunc) CoreLLM {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	provider, err := newAnthropicProvider(ClientConfig{APIKey: "test-key", BaseURL: server.URL})
	require.NoError(t, err)
	return provider
}

func TestNewAnthropicProvider(t *testing.T) {
	_, err := newAnthropicProvider(ClientConfig{})
	assert.ErrorIs(t, err, ErrEmptyAPIKey)

	p, err := newAnthropicProvider(ClientConfig{APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, AnthropicDefaultModel, p.GetModel())
}

func TestAnthropicProvider_DoRequest_ImageAndPDF(t *testing.T) {
	image := ports.Attachment{MIMEType: "image/jpeg", Data: []byte{0xFF, 0xD8, 0xFF}}
	pdf := ports.Attachment{MIMEType: "application/pdf", Data: []byte("%PDF-1.7")}

	provider := newAnthropicTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, float64(DefaultMaxTokens), body["max_tokens"])

		system := body["system"].([]any)
		require.Len(t, system, 1)
		assert.Contains(t, system[0].(map[string]any)["text"], jsonOnlyInstruction, "json mode becomes a system instruction")

		messages := body["messages"].([]any)
		require.Len(t, messages, 1)
		blocks := messages[0].(map[string]any)["content"].([]any)
		require.Len(t, blocks, 3)

		img := blocks[0].(map[string]any)
		assert.Equal(t, "image", img["type"])
		src := img["source"].(map[string]any)
		assert.Equal(t, "image/jpeg", src["media_type"])
		assert.Equal(t, base64.StdEncoding.EncodeToString(image.Data), src["data"])

		doc := blocks[1].(map[string]any)
		assert.Equal(t, "document", doc["type"])
		assert.Equal(t, "application/pdf", doc["source"].(map[string]any)["media_type"])

		assert.Equal(t, "text", blocks[2].(map[string]any)["type"])

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(anthropicMessage(`{"document_type":"electricity_bill"}`, 1500, 60))
	})

	response, tokensIn, tokensOut, err := provider.DoRequest(context.Background(), "Extract.",
		[]ports.Attachment{image, pdf}, map[string]any{"response_format": "json"})

	require.NoError(t, err)
	assert.Equal(t, `{"document_type":"electricity_bill"}`, response)
	assert.Equal(t, 1500, tokensIn)
	assert.Equal(t, 60, tokensOut)
}

func TestAnthropicProvider_DoRequest_Errors(t *testing.T) {
	t.Run("authentication", func(t *testing.T) {
		provider := newAnthropicTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`))
		})

		_, _, _, err := provider.DoRequest(context.Background(), "extract", nil, nil)

		var perr *ProviderError
		require.True(t, errors.As(err, &perr), "got %T", err)
		assert.Equal(t, ErrorTypeAuthentication, perr.Type)
		assert.Equal(t, 401, perr.StatusCode)
	})

	t.Run("unsupported attachment", func(t *testing.T) {
		provider := newAnthropicTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
			t.Error("no request expected")
		})

		_, _, _, err := provider.DoRequest(context.Background(), "extract",
			[]ports.Attachment{{MIMEType: "image/tiff", Data: []byte{1}}}, nil)
		assert.ErrorIs(t, err, ports.ErrUnsupportedMediaType)
	})

	t.Run("empty text", func(t *testing.T) {
		provider := newAnthropicTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(anthropicMessage("", 10, 0))
		})

		_, _, _, err := provider.DoRequest(context.Background(), "extract", nil, nil)
		assert.ErrorIs(t, err, ErrEmptyResponse)
	})
}
