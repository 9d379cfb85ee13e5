package config

import (
	"fmt"
	"net/url"
	"time"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	msg := fmt.Sprintf("%d validation errors:", len(e))
	for _, err := range e {
		msg += "\n  - " + err.Error()
	}
	return msg
}

// Validate checks the configuration for errors.
// Returns nil if valid, or ValidationErrors if invalid.
func Validate(cfg Config) error {
	var errs ValidationErrors

	if cfg.DataDir == "" {
		errs = append(errs, ValidationError{
			Field:   "DATA_DIR",
			Message: "required",
		})
	}

	errs = append(errs, validateDuration("TICK_INTERVAL", cfg.TickIntervalStr)...)
	errs = append(errs, validateDuration("EXECUTOR_TIMEOUT", cfg.ExecutorTimeoutStr)...)
	errs = append(errs, validateDuration("ANALYTICS_WINDOW", cfg.AnalyticsWindowStr)...)
	errs = append(errs, validateDuration("HTTP_SHUTDOWN_TIMEOUT", cfg.HTTPShutdownTimeoutStr)...)
	errs = append(errs, validateDuration("CIRCUIT_BREAKER_COOLDOWN", cfg.CircuitBreakerCooldownStr)...)

	if cfg.ExecutorBaseURL != "" {
		u, err := url.Parse(cfg.ExecutorBaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, ValidationError{
				Field:   "EXECUTOR_BASE_URL",
				Message: fmt.Sprintf("must be an http(s) URL, got %q", cfg.ExecutorBaseURL),
			})
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateDuration(field, value string) ValidationErrors {
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return ValidationErrors{{Field: field, Message: fmt.Sprintf("invalid duration: %v", err)}}
	}
	if d <= 0 {
		return ValidationErrors{{Field: field, Message: "must be positive"}}
	}
	return nil
}
