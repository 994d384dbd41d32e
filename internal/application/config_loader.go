package application

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/go-kyc/internal/ports"
)

// Environment variables read by ApplyEnv. The VERTEX_AI_* names are
// accepted as fallbacks for the KYC_* ones.
const (
	EnvProvider       = "KYC_PROVIDER"
	EnvModel          = "KYC_MODEL"
	EnvTemperature    = "KYC_TEMPERATURE"
	EnvLogLevel       = "KYC_LOG_LEVEL"
	EnvConcurrency    = "KYC_CONCURRENCY"
	EnvVertexModel    = "VERTEX_AI_MODEL"
	EnvVertexTemp     = "VERTEX_AI_TEMPERATURE"
	EnvCloudProject   = "GOOGLE_CLOUD_PROJECT"
	EnvCloudLocation  = "GOOGLE_CLOUD_LOCATION"
	DefaultDotEnvFile = ".env"
)

// ConfigLoader reads and validates Config values.
type ConfigLoader struct {
	validator *validator.Validate
}

// NewConfigLoader creates a loader with the custom validators registered.
func NewConfigLoader() (*ConfigLoader, error) {
	v := validator.New()
	if err := RegisterConfigValidators(v); err != nil {
		return nil, fmt.Errorf("failed to register validators: %w", err)
	}
	return &ConfigLoader{validator: v}, nil
}

// Load builds the configuration from defaults, the YAML file at path (if
// path is not empty) and the environment, then validates it.
func (cl *ConfigLoader) Load(path string, getenv func(string) string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return Config{}, ports.NewConfigError(path, ports.ErrConfigNotFound)
			}
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if cfg, err = cl.decode(bytes.NewReader(data), cfg); err != nil {
			return Config{}, err
		}
	}

	if getenv != nil {
		if err := ApplyEnv(&cfg, getenv); err != nil {
			return Config{}, err
		}
	}

	if err := cl.Validate(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFromReader decodes YAML from r over the defaults and validates the
// result. The environment is not consulted.
func (cl *ConfigLoader) LoadFromReader(r io.Reader) (Config, error) {
	cfg, err := cl.decode(r, DefaultConfig())
	if err != nil {
		return Config{}, err
	}
	if err := cl.Validate(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// decode uses strict decoding so that misspelled keys are reported instead
// of silently ignored. Keys absent from the document keep the values of base.
func (cl *ConfigLoader) decode(r io.Reader, base Config) (Config, error) {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)

	if err := decoder.Decode(&base); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("YAML decode failed: %w", err)
	}
	return base, nil
}

// Validate runs struct and semantic validation on cfg.
func (cl *ConfigLoader) Validate(cfg *Config) error {
	if err := cl.validator.Struct(cfg); err != nil {
		return fmt.Errorf("struct validation failed: %w", err)
	}
	if err := validateSemantics(cfg); err != nil {
		return fmt.Errorf("semantic validation failed: %w", err)
	}
	return nil
}

// ApplyEnv overrides cfg with the environment variables that are set.
func ApplyEnv(cfg *Config, getenv func(string) string) error {
	lookup := func(names ...string) string {
		for _, name := range names {
			if v := strings.TrimSpace(getenv(name)); v != "" {
				return v
			}
		}
		return ""
	}

	if v := lookup(EnvProvider); v != "" {
		cfg.Provider = strings.ToLower(v)
	}
	if v := lookup(EnvModel, EnvVertexModel); v != "" {
		cfg.Model = v
	}
	if v := lookup(EnvTemperature, EnvVertexTemp); v != "" {
		t, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return ports.NewConfigError(EnvTemperature, fmt.Errorf("invalid temperature %q: %w", v, err))
		}
		cfg.Temperature = t
	}
	if v := lookup(EnvConcurrency); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return ports.NewConfigError(EnvConcurrency, fmt.Errorf("invalid concurrency %q: %w", v, err))
		}
		cfg.Concurrency = n
	}
	if v := lookup(EnvLogLevel); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v := lookup(EnvCloudProject); v != "" {
		cfg.Project = v
	}
	if v := lookup(EnvCloudLocation); v != "" {
		cfg.Location = v
	}
	return nil
}

// LoadDotEnv loads variables from the given files into the process
// environment without overriding variables that are already set. Missing
// files are skipped. With no arguments it reads ".env".
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{DefaultDotEnvFile}
	}
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}
