package config

import (
	"encoding/json"
	"log"
	"os"
	"time"
)

// Config holds all configuration for the triggerd engine.
// Values are loaded from environment variables; see the triggerd
// command's usage output for the full list.
type Config struct {
	DataDir  string `json:"data_dir"`
	HTTPAddr string `json:"http_addr"`

	TickInterval    time.Duration `json:"-"`
	TickIntervalStr string        `json:"tick_interval"`

	ExecutorBaseURL    string        `json:"executor_base_url,omitempty"`
	ExecutorToken      string        `json:"executor_token,omitempty"`
	ExecutorTimeout    time.Duration `json:"-"`
	ExecutorTimeoutStr string        `json:"executor_timeout"`

	RedisAddr          string        `json:"redis_addr,omitempty"`
	AnalyticsWindow    time.Duration `json:"-"`
	AnalyticsWindowStr string        `json:"analytics_window"`

	MetricsEnabled bool   `json:"metrics_enabled"`
	MetricsPath    string `json:"metrics_path"`

	HTTPShutdownTimeout    time.Duration `json:"-"`
	HTTPShutdownTimeoutStr string        `json:"http_shutdown_timeout"`

	// CircuitBreakerThreshold: 0 disables the circuit breaker.
	CircuitBreakerThreshold   int           `json:"circuit_breaker_threshold"`
	CircuitBreakerCooldown    time.Duration `json:"-"`
	CircuitBreakerCooldownStr string        `json:"circuit_breaker_cooldown"`
}

// Load reads configuration from environment variables with defaults.
func Load() Config {
	cfg := Config{
		DataDir:                   os.Getenv("DATA_DIR"),
		HTTPAddr:                  os.Getenv("HTTP_ADDR"),
		TickIntervalStr:           os.Getenv("TICK_INTERVAL"),
		ExecutorBaseURL:           os.Getenv("EXECUTOR_BASE_URL"),
		ExecutorToken:             os.Getenv("EXECUTOR_TOKEN"),
		ExecutorTimeoutStr:        os.Getenv("EXECUTOR_TIMEOUT"),
		RedisAddr:                 os.Getenv("REDIS_ADDR"),
		AnalyticsWindowStr:        os.Getenv("ANALYTICS_WINDOW"),
		MetricsEnabled:            os.Getenv("METRICS_ENABLED") == "true",
		MetricsPath:               os.Getenv("METRICS_PATH"),
		HTTPShutdownTimeoutStr:    os.Getenv("HTTP_SHUTDOWN_TIMEOUT"),
		CircuitBreakerCooldownStr: os.Getenv("CIRCUIT_BREAKER_COOLDOWN"),
	}

	if thresholdStr := os.Getenv("CIRCUIT_BREAKER_THRESHOLD"); thresholdStr != "" {
		if n, err := parseInt(thresholdStr); err == nil {
			cfg.CircuitBreakerThreshold = n
		} else {
			log.Printf("config: invalid CIRCUIT_BREAKER_THRESHOLD %q, using default 5", thresholdStr)
		}
	}
	if cfg.CircuitBreakerThreshold == 0 && os.Getenv("CIRCUIT_BREAKER_THRESHOLD") == "" {
		cfg.CircuitBreakerThreshold = 5
	}

	if cfg.DataDir == "" {
		cfg.DataDir = "data"
	}
	// Support PaaS-style PORT variable as fallback for HTTP_ADDR.
	if cfg.HTTPAddr == "" {
		if port := os.Getenv("PORT"); port != "" {
			cfg.HTTPAddr = ":" + port
		} else {
			cfg.HTTPAddr = ":8080"
		}
	}
	if cfg.TickIntervalStr == "" {
		cfg.TickIntervalStr = "30s"
	}
	if cfg.ExecutorTimeoutStr == "" {
		cfg.ExecutorTimeoutStr = "30s"
	}
	if cfg.AnalyticsWindowStr == "" {
		cfg.AnalyticsWindowStr = "1h"
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}
	if cfg.HTTPShutdownTimeoutStr == "" {
		cfg.HTTPShutdownTimeoutStr = "10s"
	}
	if cfg.CircuitBreakerCooldownStr == "" {
		cfg.CircuitBreakerCooldownStr = "2m"
	}

	// Parse durations; validation is handled separately by Validate().
	if d, err := time.ParseDuration(cfg.TickIntervalStr); err == nil {
		cfg.TickInterval = d
	}
	if d, err := time.ParseDuration(cfg.ExecutorTimeoutStr); err == nil {
		cfg.ExecutorTimeout = d
	}
	if d, err := time.ParseDuration(cfg.AnalyticsWindowStr); err == nil {
		cfg.AnalyticsWindow = d
	}
	if d, err := time.ParseDuration(cfg.HTTPShutdownTimeoutStr); err == nil {
		cfg.HTTPShutdownTimeout = d
	}
	if d, err := time.ParseDuration(cfg.CircuitBreakerCooldownStr); err == nil {
		cfg.CircuitBreakerCooldown = d
	}

	return cfg
}

// parseInt parses a string as an integer.
func parseInt(s string) (int, error) {
	var n int
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, os.ErrInvalid
		}
		n = n*10 + int(c-'0')
	}
	return n, nil
}

// MaskedJSON returns the configuration as JSON with secrets masked.
func (c Config) MaskedJSON() ([]byte, error) {
	masked := struct {
		DataDir                 string `json:"data_dir"`
		HTTPAddr                string `json:"http_addr"`
		TickInterval            string `json:"tick_interval"`
		ExecutorBaseURL         string `json:"executor_base_url,omitempty"`
		ExecutorToken           string `json:"executor_token,omitempty"`
		ExecutorTimeout         string `json:"executor_timeout"`
		RedisAddr               string `json:"redis_addr,omitempty"`
		AnalyticsWindow         string `json:"analytics_window"`
		MetricsEnabled          bool   `json:"metrics_enabled"`
		MetricsPath             string `json:"metrics_path"`
		HTTPShutdownTimeout     string `json:"http_shutdown_timeout"`
		CircuitBreakerThreshold int    `json:"circuit_breaker_threshold"`
		CircuitBreakerCooldown  string `json:"circuit_breaker_cooldown"`
	}{
		DataDir:                 c.DataDir,
		HTTPAddr:                c.HTTPAddr,
		TickInterval:            c.TickIntervalStr,
		ExecutorBaseURL:         c.ExecutorBaseURL,
		ExecutorToken:           maskSecret(c.ExecutorToken),
		ExecutorTimeout:         c.ExecutorTimeoutStr,
		RedisAddr:               c.RedisAddr,
		AnalyticsWindow:         c.AnalyticsWindowStr,
		MetricsEnabled:          c.MetricsEnabled,
		MetricsPath:             c.MetricsPath,
		HTTPShutdownTimeout:     c.HTTPShutdownTimeoutStr,
		CircuitBreakerThreshold: c.CircuitBreakerThreshold,
		CircuitBreakerCooldown:  c.CircuitBreakerCooldownStr,
	}
	return json.MarshalIndent(masked, "", "  ")
}

// maskSecret masks a secret value.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	return "***"
}
