package config

import (
	"flag"
	"os"
	"testing"
	"time"
)

func TestConfig_Defaults(t *testing.T) {
	// Reset flag package for testing
	flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ContinueOnError)

	os.Args = []string{"cmd", "-run=demo", "-max-records=100", "-weather-locations=Tokyo:35.68:139.69"}

	cfg := ParseFlags()

	// Check defaults
	if cfg.Listen != ":8080" {
		t.Errorf("Listen = %q, want %q", cfg.Listen, ":8080")
	}
	if cfg.BaseDelay != 1*time.Second {
		t.Errorf("BaseDelay = %v, want 1s", cfg.BaseDelay)
	}
	if cfg.FallbackAfter != 3 {
		t.Errorf("FallbackAfter = %d, want 3", cfg.FallbackAfter)
	}
	if cfg.QualityThreshold != 0.7 {
		t.Errorf("QualityThreshold = %v, want 0.7", cfg.QualityThreshold)
	}
	if cfg.SuccessFloor != 0.7 {
		t.Errorf("SuccessFloor = %v, want 0.7", cfg.SuccessFloor)
	}
	if cfg.MaxRecordAge != 24*time.Hour {
		t.Errorf("MaxRecordAge = %v, want 24h", cfg.MaxRecordAge)
	}
	if cfg.APIItemsKey != "items" {
		t.Errorf("APIItemsKey = %q, want %q", cfg.APIItemsKey, "items")
	}
	if cfg.ReportDir != "reports" {
		t.Errorf("ReportDir = %q, want %q", cfg.ReportDir, "reports")
	}
	if cfg.Storage != "memory" {
		t.Errorf("Storage = %q, want %q", cfg.Storage, "memory")
	}
	if cfg.RedisAddr != "localhost:6379" {
		t.Errorf("RedisAddr = %q, want %q", cfg.RedisAddr, "localhost:6379")
	}
	if cfg.LogFormat != "text" {
		t.Errorf("LogFormat = %q, want %q", cfg.LogFormat, "text")
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
}

func TestConfig_CustomValues(t *testing.T) {
	// Reset flag package for testing
	flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.ContinueOnError)

	os.Args = []string{
		"cmd",
		"-listen=:9090",
		"-run=nightly",
		"-max-records=500",
		"-base-delay=2s",
		"-fallback-after=5",
		"-quality-threshold=0.8",
		"-success-floor=0.6",
		"-api-endpoint=http://api.example.com/v1/cards",
		"-api-key=secret",
		"-api-fields=name=name,score=trophies",
		"-storage=redis",
		"-redis-addr=redis:6379",
		"-log-format=json",
		"-log-level=debug",
	}

	cfg := ParseFlags()

	if cfg.Listen != ":9090" {
		t.Errorf("Listen = %q, want %q", cfg.Listen, ":9090")
	}
	if cfg.Run != "nightly" {
		t.Errorf("Run = %q, want %q", cfg.Run, "nightly")
	}
	if cfg.MaxRecords != 500 {
		t.Errorf("MaxRecords = %d, want 500", cfg.MaxRecords)
	}
	if cfg.BaseDelay != 2*time.Second {
		t.Errorf("BaseDelay = %v, want 2s", cfg.BaseDelay)
	}
	if cfg.FallbackAfter != 5 {
		t.Errorf("FallbackAfter = %d, want 5", cfg.FallbackAfter)
	}
	if cfg.QualityThreshold != 0.8 {
		t.Errorf("QualityThreshold = %v, want 0.8", cfg.QualityThreshold)
	}
	if cfg.SuccessFloor != 0.6 {
		t.Errorf("SuccessFloor = %v, want 0.6", cfg.SuccessFloor)
	}
	if cfg.APIEndpoint != "http://api.example.com/v1/cards" {
		t.Errorf("APIEndpoint = %q, want %q", cfg.APIEndpoint, "http://api.example.com/v1/cards")
	}
	if cfg.APIFields != "name=name,score=trophies" {
		t.Errorf("APIFields = %q, want %q", cfg.APIFields, "name=name,score=trophies")
	}
	if cfg.Storage != "redis" {
		t.Errorf("Storage = %q, want %q", cfg.Storage, "redis")
	}
	if cfg.RedisAddr != "redis:6379" {
		t.Errorf("RedisAddr = %q, want %q", cfg.RedisAddr, "redis:6379")
	}
	if cfg.LogFormat != "json" {
		t.Errorf("LogFormat = %q, want %q", cfg.LogFormat, "json")
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "debug")
	}
}

func TestGetEnv(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		want         string
	}{
		{
			name:         "environment variable set",
			key:          "TEST_VAR",
			defaultValue: "default",
			envValue:     "from-env",
			want:         "from-env",
		},
		{
			name:         "environment variable not set",
			key:          "NONEXISTENT_VAR",
			defaultValue: "default",
			envValue:     "",
			want:         "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				os.Setenv(tt.key, tt.envValue)
				defer os.Unsetenv(tt.key)
			}

			got := getEnv(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnv() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGetEnvInt(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue int
		envValue     string
		want         int
	}{
		{
			name:         "valid integer",
			key:          "TEST_INT",
			defaultValue: 10,
			envValue:     "42",
			want:         42,
		},
		{
			name:         "invalid integer",
			key:          "TEST_INT",
			defaultValue: 10,
			envValue:     "not-a-number",
			want:         10,
		},
		{
			name:         "not set",
			key:          "NONEXISTENT_INT",
			defaultValue: 99,
			envValue:     "",
			want:         99,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				os.Setenv(tt.key, tt.envValue)
				defer os.Unsetenv(tt.key)
			}

			got := getEnvInt(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnvInt() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestGetEnvFloat(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue float64
		envValue     string
		want         float64
	}{
		{
			name:         "valid float",
			key:          "TEST_FLOAT",
			defaultValue: 0.5,
			envValue:     "0.85",
			want:         0.85,
		},
		{
			name:         "invalid float",
			key:          "TEST_FLOAT",
			defaultValue: 0.5,
			envValue:     "not-a-float",
			want:         0.5,
		},
		{
			name:         "not set",
			key:          "NONEXISTENT_FLOAT",
			defaultValue: 0.7,
			envValue:     "",
			want:         0.7,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				os.Setenv(tt.key, tt.envValue)
				defer os.Unsetenv(tt.key)
			}

			got := getEnvFloat(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnvFloat() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue time.Duration
		envValue     string
		want         time.Duration
	}{
		{
			name:         "valid duration",
			key:          "TEST_DURATION",
			defaultValue: 1 * time.Minute,
			envValue:     "5m",
			want:         5 * time.Minute,
		},
		{
			name:         "invalid duration",
			key:          "TEST_DURATION",
			defaultValue: 30 * time.Second,
			envValue:     "not-a-duration",
			want:         30 * time.Second,
		},
		{
			name:         "not set",
			key:          "NONEXISTENT_DURATION",
			defaultValue: 10 * time.Second,
			envValue:     "",
			want:         10 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				os.Setenv(tt.key, tt.envValue)
				defer os.Unsetenv(tt.key)
			}

			got := getEnvDuration(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnvDuration() = %v, want %v", got, tt.want)
			}
		})
	}
}
