package application

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-kyc/internal/ports"
)

func newTestLoader(t *testing.T) *ConfigLoader {
	t.Helper()
	cl, err := NewConfigLoader()
	require.NoError(t, err)
	return cl
}

func envMap(vars map[string]string) func(string) string {
	return func(key string) string { return vars[key] }
}

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, newTestLoader(t).Validate(&cfg), "defaults must pass validation")

	assert.Equal(t, "google", cfg.Provider)
	assert.Equal(t, 90, cfg.Rules.RecencyDays)
	assert.Equal(t, 15, cfg.Rules.MinIBANLength)
	assert.True(t, cfg.Pricing.InputPerMillion.Equal(decimal.RequireFromString("0.30")))
}

func TestConfigLoader_LoadFromReader(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
		verify  func(t *testing.T, cfg Config)
	}{
		{
			name: "empty document keeps defaults",
			yaml: "",
			verify: func(t *testing.T, cfg Config) {
				assert.Equal(t, DefaultConfig().Concurrency, cfg.Concurrency)
			},
		},
		{
			name: "partial override",
			yaml: `
provider: anthropic
model: claude-sonnet-4-20250514
timeout: 45s
retry:
  max_retries: 1
pricing:
  input_per_million: 3
  output_per_million: "15.00"
business_rules:
  recency_days: 30
budget:
  max_calls: 12
  max_cost: 0.5
`,
			verify: func(t *testing.T, cfg Config) {
				assert.Equal(t, "anthropic", cfg.Provider)
				assert.Equal(t, 45*time.Second, cfg.Timeout)
				assert.Equal(t, 1, cfg.Retry.MaxRetries)
				assert.Equal(t, time.Second, cfg.Retry.BaseDelay, "unset nested keys keep their defaults")
				assert.True(t, cfg.Pricing.OutputPerMillion.Equal(decimal.NewFromInt(15)))
				assert.Equal(t, 30, cfg.Rules.RecencyDays)
				assert.Equal(t, 15, cfg.Rules.MinIBANLength)
				assert.Equal(t, int64(12), cfg.Budget.MaxCalls)
				assert.True(t, cfg.Budget.MaxCost.Equal(decimal.RequireFromString("0.5")))
			},
		},
		{
			name:    "unknown key",
			yaml:    "providr: google\n",
			wantErr: "YAML decode failed",
		},
		{
			name:    "unsupported provider",
			yaml:    "provider: mistral\n",
			wantErr: "struct validation failed",
		},
		{
			name:    "invalid model name",
			yaml:    "model: \"gemini 2.5\"\n",
			wantErr: "modelname",
		},
		{
			name:    "recency window out of range",
			yaml:    "business_rules:\n  recency_days: 0\n",
			wantErr: "RecencyDays",
		},
		{
			name:    "negative price",
			yaml:    "pricing:\n  input_per_million: -1\n",
			wantErr: "pricing must not be negative",
		},
		{
			name:    "retry delays inverted",
			yaml:    "retry:\n  base_delay: 10s\n  max_delay: 1s\n",
			wantErr: "retry.max_delay",
		},
		{
			name:    "rate limit without burst",
			yaml:    "rate_limit:\n  requests_per_second: 2\n  burst: 0\n",
			wantErr: "rate_limit.burst",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := newTestLoader(t).LoadFromReader(strings.NewReader(tt.yaml))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.verify(t, cfg)
		})
	}
}

func TestConfigLoader_Load(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kyc.yaml")
	require.NoError(t, os.WriteFile(path, []byte("provider: openai\ntemperature: 0.4\n"), 0o600))

	cl := newTestLoader(t)

	t.Run("file then environment", func(t *testing.T) {
		cfg, err := cl.Load(path, envMap(map[string]string{
			EnvModel:        "gpt-4o",
			EnvCloudProject: "kyc-prod",
		}))
		require.NoError(t, err)
		assert.Equal(t, "openai", cfg.Provider)
		assert.Equal(t, 0.4, cfg.Temperature)
		assert.Equal(t, "gpt-4o", cfg.Model)
		assert.Equal(t, "kyc-prod", cfg.Project)
	})

	t.Run("no file", func(t *testing.T) {
		cfg, err := cl.Load("", nil)
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig().Provider, cfg.Provider)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := cl.Load(filepath.Join(dir, "absent.yaml"), nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, ports.ErrConfigNotFound)
	})

	t.Run("environment is validated", func(t *testing.T) {
		_, err := cl.Load(path, envMap(map[string]string{EnvTemperature: "7"}))
		assert.ErrorContains(t, err, "Temperature")
	})
}

func TestApplyEnv(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr bool
		verify  func(t *testing.T, cfg Config)
	}{
		{
			name: "primary names",
			env: map[string]string{
				EnvProvider:    "Anthropic",
				EnvModel:       "claude-3-5-haiku-20241022",
				EnvTemperature: "0.0",
				EnvLogLevel:    "DEBUG",
				EnvConcurrency: "8",
			},
			verify: func(t *testing.T, cfg Config) {
				assert.Equal(t, "anthropic", cfg.Provider)
				assert.Equal(t, "claude-3-5-haiku-20241022", cfg.Model)
				assert.Equal(t, 0.0, cfg.Temperature)
				assert.Equal(t, "debug", cfg.LogLevel)
				assert.Equal(t, 8, cfg.Concurrency)
			},
		},
		{
			name: "vertex fallbacks",
			env: map[string]string{
				EnvVertexModel:   "gemini-2.5-pro",
				EnvVertexTemp:    "0.2",
				EnvCloudProject:  "acme",
				EnvCloudLocation: "europe-west1",
			},
			verify: func(t *testing.T, cfg Config) {
				assert.Equal(t, "gemini-2.5-pro", cfg.Model)
				assert.Equal(t, 0.2, cfg.Temperature)
				assert.Equal(t, "acme", cfg.Project)
				assert.Equal(t, "europe-west1", cfg.Location)
			},
		},
		{
			name: "primary wins over fallback",
			env:  map[string]string{EnvModel: "gemini-2.5-flash", EnvVertexModel: "gemini-1.5-pro"},
			verify: func(t *testing.T, cfg Config) {
				assert.Equal(t, "gemini-2.5-flash", cfg.Model)
			},
		},
		{
			name: "blank values are ignored",
			env:  map[string]string{EnvModel: "  "},
			verify: func(t *testing.T, cfg Config) {
				assert.Empty(t, cfg.Model)
			},
		},
		{
			name:    "bad temperature",
			env:     map[string]string{EnvTemperature: "warm"},
			wantErr: true,
		},
		{
			name:    "bad concurrency",
			env:     map[string]string{EnvConcurrency: "many"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			err := ApplyEnv(&cfg, envMap(tt.env))
			if tt.wantErr {
				var cfgErr *ports.ConfigError
				assert.ErrorAs(t, err, &cfgErr)
				return
			}
			require.NoError(t, err)
			tt.verify(t, cfg)
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte("KYC_DOTENV_TEST_MODEL=gemini-2.5-flash\n"), 0o600))
	t.Setenv("KYC_DOTENV_TEST_MODEL", "")
	require.NoError(t, os.Unsetenv("KYC_DOTENV_TEST_MODEL"))

	require.NoError(t, LoadDotEnv(path, filepath.Join(dir, "missing.env")), "missing files are skipped")
	assert.Equal(t, "gemini-2.5-flash", os.Getenv("KYC_DOTENV_TEST_MODEL"))
}
