package llm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeEnv(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

func newTestRegistry(t *testing.T, env map[string]string) *Registry {
	t.Helper()
	r, err := NewRegistry(RegistryConfig{
		Providers:       DefaultProviders,
		DefaultProvider: "google",
		DefaultTimeout:  30 * time.Second,
		Getenv:          fakeEnv(env),
	})
	require.NoError(t, err)
	return r
}

func TestNewRegistry_Validation(t *testing.T) {
	_, err := NewRegistry(RegistryConfig{Providers: DefaultProviders})
	assert.Error(t, err, "default provider is required")

	_, err = NewRegistry(RegistryConfig{Providers: DefaultProviders, DefaultProvider: "mistral"})
	assert.ErrorContains(t, err, `"mistral" not found`)
}

func TestRegistry_ParseSpec(t *testing.T) {
	r := newTestRegistry(t, nil)

	tests := []struct {
		spec, provider, model string
	}{
		{"google/gemini-2.5-pro", "google", "gemini-2.5-pro"},
		{"openai", "openai", OpenAIDefaultModel},
		{"gemini-2.0-flash", "google", "gemini-2.0-flash"},
	}
	for _, tt := range tests {
		provider, model := r.parseSpec(tt.spec)
		assert.Equal(t, tt.provider, provider, tt.spec)
		assert.Equal(t, tt.model, model, tt.spec)
	}
}

func TestRegistry_GetClient(t *testing.T) {
	t.Run("api key", func(t *testing.T) {
		r := newTestRegistry(t, map[string]string{"GOOGLE_API_KEY": "key"})

		client, err := r.GetDefaultClient()
		require.NoError(t, err)
		assert.Equal(t, GoogleDefaultModel, client.GetModel())

		again, err := r.GetClient("google/" + GoogleDefaultModel)
		require.NoError(t, err)
		assert.Same(t, client, again, "clients are cached per provider/model")
		assert.Equal(t, []string{"google"}, r.GetRegisteredProviders())
	})

	t.Run("missing credentials", func(t *testing.T) {
		r := newTestRegistry(t, nil)

		_, err := r.GetClient("google")
		assert.ErrorContains(t, err, "GOOGLE_CLOUD_PROJECT")

		_, err = r.GetClient("openai")
		assert.ErrorContains(t, err, "OPENAI_API_KEY environment variable not set")
	})

	t.Run("unsupported model", func(t *testing.T) {
		r := newTestRegistry(t, map[string]string{"GOOGLE_API_KEY": "key"})

		_, err := r.GetClient("google/gemini-0.1")
		assert.ErrorContains(t, err, "not supported")
	})

	t.Run("empty spec", func(t *testing.T) {
		r := newTestRegistry(t, nil)
		_, err := r.GetClient("")
		assert.Error(t, err)
	})
}

func TestRegistry_ResolveCredentials(t *testing.T) {
	r := newTestRegistry(t, map[string]string{
		"GOOGLE_API_KEY":        "key",
		"GOOGLE_CLOUD_PROJECT":  "kyc-prod",
		"GOOGLE_CLOUD_LOCATION": "europe-west9",
	})

	var config ClientConfig
	require.NoError(t, r.resolveCredentials("google", DefaultProviders["google"], &config))
	assert.Equal(t, "kyc-prod", config.Project, "project wins over the api key")
	assert.Equal(t, "europe-west9", config.Location)
	assert.Equal(t, BackendVertexAI, config.Backend)
	assert.Empty(t, config.APIKey)
}

func TestRegistry_RegisterClient(t *testing.T) {
	r := newTestRegistry(t, nil)

	err := r.RegisterClient("openai/gpt-4o", ClientConfig{APIKey: "explicit"})
	require.NoError(t, err)

	client, err := r.GetClient("openai/gpt-4o")
	require.NoError(t, err, "registered client is served without env lookup")
	assert.Equal(t, "gpt-4o", client.GetModel())

	require.NoError(t, r.RegisterClient("gemini-custom", ClientConfig{APIKey: "k"}), "a bare name is a model of the default provider")
	client, err = r.GetClient("google/gemini-custom")
	require.NoError(t, err)
	assert.Equal(t, "gemini-custom", client.GetModel())

	assert.ErrorContains(t, r.RegisterClient("mistral/large", ClientConfig{APIKey: "k"}), `unknown provider "mistral"`)
	assert.Error(t, r.RegisterClient("", ClientConfig{}))
}
