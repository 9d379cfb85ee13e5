package config

import (
	"strings"
	"testing"
)

func validConfig() Config {
	return Config{
		DataDir:                   "data",
		HTTPAddr:                  ":8080",
		TickIntervalStr:           "30s",
		ExecutorTimeoutStr:        "30s",
		AnalyticsWindowStr:        "1h",
		HTTPShutdownTimeoutStr:    "10s",
		CircuitBreakerCooldownStr: "2m",
	}
}

func TestValidateOK(t *testing.T) {
	if err := Validate(validConfig()); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestValidateMissingDataDir(t *testing.T) {
	cfg := validConfig()
	cfg.DataDir = ""
	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "DATA_DIR") {
		t.Fatalf("expected DATA_DIR error, got %v", err)
	}
}

func TestValidateDurations(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"bad_tick", func(c *Config) { c.TickIntervalStr = "never" }, "TICK_INTERVAL"},
		{"negative_tick", func(c *Config) { c.TickIntervalStr = "-5s" }, "TICK_INTERVAL"},
		{"bad_timeout", func(c *Config) { c.ExecutorTimeoutStr = "soon" }, "EXECUTOR_TIMEOUT"},
		{"zero_shutdown", func(c *Config) { c.HTTPShutdownTimeoutStr = "0s" }, "HTTP_SHUTDOWN_TIMEOUT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := Validate(cfg)
			if err == nil || !strings.Contains(err.Error(), tt.field) {
				t.Errorf("expected %s error, got %v", tt.field, err)
			}
		})
	}
}

func TestValidateExecutorURL(t *testing.T) {
	cfg := validConfig()
	cfg.ExecutorBaseURL = "not a url"
	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "EXECUTOR_BASE_URL") {
		t.Fatalf("expected EXECUTOR_BASE_URL error, got %v", err)
	}

	cfg.ExecutorBaseURL = "https://executor.local:7000"
	if err := Validate(cfg); err != nil {
		t.Fatalf("expected valid URL accepted, got %v", err)
	}
}

func TestValidateCollectsMultipleErrors(t *testing.T) {
	cfg := validConfig()
	cfg.DataDir = ""
	cfg.TickIntervalStr = "bogus"
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected errors")
	}
	if !strings.Contains(err.Error(), "2 validation errors") {
		t.Errorf("expected aggregated message, got %q", err.Error())
	}
}
