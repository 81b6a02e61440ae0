// Package config implements the Harvest harvester config.
package config

import (
	"flag"
	"fmt"
	"os"
	"time"
)

// Config holds all harvester configuration.
type Config struct {
	Listen     string
	Run        string
	MaxRecords int
	BaseDelay  time.Duration

	FallbackAfter int

	QualityThreshold float64
	SuccessFloor     float64
	MaxRecordAge     time.Duration

	RequiredFields string
	RangeRules     string

	APIEndpoint string
	APIKey      string
	APIItemsKey string
	APIFields   string

	WeatherURL       string
	WeatherLocations string

	ReportDir string

	Storage       string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTTL      time.Duration

	LogFormat string
	LogLevel  string
}

// ParseFlags parses command-line flags and environment variables into a Config.
// Exits with status 1 if required flags (run, max-records, at least one source)
// are missing. Environment variables are used as fallbacks when flags are not
// provided.
func ParseFlags() *Config {
	cfg := &Config{}

	// Server
	flag.StringVar(&cfg.Listen, "listen", getEnv("LISTEN", ":8080"), "HTTP listen address")

	// Run
	flag.StringVar(&cfg.Run, "run", getEnv("RUN", ""), "Run name (required)")
	flag.IntVar(&cfg.MaxRecords, "max-records", getEnvInt("MAX_RECORDS", -1), "Target number of records (required)")
	flag.DurationVar(&cfg.BaseDelay, "base-delay", getEnvDuration("BASE_DELAY", 1*time.Second), "Base delay between collection cycles")
	flag.IntVar(&cfg.FallbackAfter, "fallback-after", getEnvInt("FALLBACK_AFTER", 3), "Consecutive failures before a source is benched for its alternates (negative disables)")

	// Strategy
	flag.Float64Var(&cfg.QualityThreshold, "quality-threshold", getEnvFloat("QUALITY_THRESHOLD", 0.7), "Quality score below which validation is reviewed")
	flag.Float64Var(&cfg.SuccessFloor, "success-floor", getEnvFloat("SUCCESS_FLOOR", 0.7), "Success rate below which pacing is throttled")
	flag.DurationVar(&cfg.MaxRecordAge, "max-record-age", getEnvDuration("MAX_RECORD_AGE", 24*time.Hour), "Age beyond which records score zero timeliness")

	// Validation
	flag.StringVar(&cfg.RequiredFields, "required-fields", getEnv("REQUIRED_FIELDS", ""), "Comma-separated required record fields")
	flag.StringVar(&cfg.RangeRules, "range-rules", getEnv("RANGE_RULES", ""), "Comma-separated field:min:max range rules")

	// HTTP API source
	flag.StringVar(&cfg.APIEndpoint, "api-endpoint", getEnv("API_ENDPOINT", ""), "HTTP API source endpoint URL")
	flag.StringVar(&cfg.APIKey, "api-key", getEnv("API_KEY", ""), "HTTP API source bearer token")
	flag.StringVar(&cfg.APIItemsKey, "api-items-key", getEnv("API_ITEMS_KEY", "items"), "JSON key holding the item array")
	flag.StringVar(&cfg.APIFields, "api-fields", getEnv("API_FIELDS", ""), "Comma-separated record=payload field mappings")

	// Weather source
	flag.StringVar(&cfg.WeatherURL, "weather-url", getEnv("WEATHER_URL", "https://api.open-meteo.com"), "Weather API base URL")
	flag.StringVar(&cfg.WeatherLocations, "weather-locations", getEnv("WEATHER_LOCATIONS", ""), "Comma-separated name:lat:lon locations")

	// Reporting
	flag.StringVar(&cfg.ReportDir, "report-dir", getEnv("REPORT_DIR", "reports"), "Directory for report and dataset artifacts")

	// Storage
	flag.StringVar(&cfg.Storage, "storage", getEnv("STORAGE", "memory"), "Storage backend: memory or redis")
	flag.StringVar(&cfg.RedisAddr, "redis-addr", getEnv("REDIS_ADDR", "localhost:6379"), "Redis address")
	flag.StringVar(&cfg.RedisPassword, "redis-password", getEnv("REDIS_PASSWORD", ""), "Redis password")
	flag.IntVar(&cfg.RedisDB, "redis-db", getEnvInt("REDIS_DB", 0), "Redis database number")
	flag.DurationVar(&cfg.RedisTTL, "redis-ttl", getEnvDuration("REDIS_TTL", 24*time.Hour), "Redis snapshot TTL")

	// Logging
	flag.StringVar(&cfg.LogFormat, "log-format", getEnv("LOG_FORMAT", "text"), "Log format: text or json")
	flag.StringVar(&cfg.LogLevel, "log-level", getEnv("LOG_LEVEL", "info"), "Log level: debug, info, warn, error")

	flag.Parse()

	if cfg.Run == "" {
		fmt.Fprintln(os.Stderr, "Error: --run is required")
		os.Exit(1)
	}
	if cfg.MaxRecords < 0 {
		fmt.Fprintln(os.Stderr, "Error: --max-records is required")
		os.Exit(1)
	}
	if cfg.APIEndpoint == "" && cfg.WeatherLocations == "" {
		fmt.Fprintln(os.Stderr, "Error: at least one source is required (--api-endpoint or --weather-locations)")
		os.Exit(1)
	}

	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var i int
		if _, err := fmt.Sscanf(value, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var f float64
		if _, err := fmt.Sscanf(value, "%f", &f); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
