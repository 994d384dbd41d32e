package application

import (
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
)

// modelNamePattern accepts "model" and "provider/model" identifiers.
var modelNamePattern = regexp.MustCompile(`^([a-z0-9]+/)?[A-Za-z0-9][A-Za-z0-9\-_.@:]*$`)

// RegisterConfigValidators adds the custom tags used by Config.
func RegisterConfigValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("modelname", validateModelName); err != nil {
		return fmt.Errorf("failed to register modelname validator: %w", err)
	}
	return nil
}

// validateModelName is the validator.Func behind the modelname tag.
func validateModelName(fl validator.FieldLevel) bool {
	return modelNamePattern.MatchString(fl.Field().String())
}

// validateSemantics checks the rules that struct tags cannot express.
func validateSemantics(cfg *Config) error {
	if cfg.Pricing.InputPerMillion.IsNegative() || cfg.Pricing.OutputPerMillion.IsNegative() {
		return fmt.Errorf("pricing must not be negative")
	}
	if cfg.Budget.MaxCost.IsNegative() {
		return fmt.Errorf("budget.max_cost must not be negative")
	}
	if cfg.Retry.MaxRetries > 0 && cfg.Retry.MaxDelay < cfg.Retry.BaseDelay {
		return fmt.Errorf("retry.max_delay %s is shorter than retry.base_delay %s",
			cfg.Retry.MaxDelay, cfg.Retry.BaseDelay)
	}
	if cfg.RateLimit.RequestsPerSecond > 0 && cfg.RateLimit.Burst < 1 {
		return fmt.Errorf("rate_limit.burst must be at least 1 when the limiter is enabled")
	}
	if cfg.CircuitBreaker.MaxFailures > 0 && cfg.CircuitBreaker.Cooldown <= 0 {
		return fmt.Errorf("circuit_breaker.cooldown must be positive when the breaker is enabled")
	}
	return nil
}
