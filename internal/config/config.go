package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the service configuration read from the environment
type Config struct {
	Host               string
	Port               string
	RequestTimeout     time.Duration
	ImageFetchTimeout  time.Duration
	AnalysisTimeout    time.Duration
	MaxRequestBodySize int64

	// Frame loading and analysis
	MaxConcurrentFetches int
	AnalyzerBackend      string
	ThresholdsFile       string

	// Report history; empty keeps history in memory
	HistoryDB string

	// Azure blob frame source; empty disables azblob:// references
	AzureStorageAccount string
	AzureStorageKey     string
}

func (c *Config) ServerAddress() string {
	// Trim any whitespace from host and port
	host := strings.TrimSpace(c.Host)
	port := strings.TrimSpace(c.Port)
	return net.JoinHostPort(host, port)
}

// AzureEnabled reports whether azblob:// references can be served
func (c *Config) AzureEnabled() bool {
	return c.AzureStorageAccount != "" && c.AzureStorageKey != ""
}

// LoadFromEnv reads the configuration, loading a .env file first when present
func LoadFromEnv() (*Config, error) {
	// A missing .env file is not an error
	_ = godotenv.Load()

	// Set defaults
	cfg := &Config{
		Host:                 getEnvOrDefault("HOST", "0.0.0.0"),
		Port:                 getEnvOrDefault("PORT", "8080"),
		RequestTimeout:       parseDurationOrDefault("REQUEST_TIMEOUT", 30*time.Second),
		ImageFetchTimeout:    parseDurationOrDefault("IMAGE_FETCH_TIMEOUT", 15*time.Second),
		AnalysisTimeout:      parseDurationOrDefault("ANALYSIS_TIMEOUT", 20*time.Second),
		MaxRequestBodySize:   parseIntOrDefault("MAX_REQUEST_BODY_SIZE", 64*1024*1024), // 64MB, frame uploads
		MaxConcurrentFetches: int(parseIntOrDefault("MAX_CONCURRENT_FETCHES", 4)),
		AnalyzerBackend:      getEnvOrDefault("ANALYZER_BACKEND", "native"),
		ThresholdsFile:       os.Getenv("THRESHOLDS_FILE"),
		HistoryDB:            os.Getenv("HISTORY_DB"),
		AzureStorageAccount:  os.Getenv("AZURE_STORAGE_ACCOUNT"),
		AzureStorageKey:      os.Getenv("AZURE_STORAGE_KEY"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges of the loaded values
func (c *Config) Validate() error {
	// Validate port is numeric and in range
	p, err := strconv.Atoi(strings.TrimSpace(c.Port))
	if err != nil || p < 1 || p > 65535 {
		return fmt.Errorf("invalid PORT: %q", c.Port)
	}
	if c.MaxRequestBodySize <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_SIZE must be > 0 (got %d)", c.MaxRequestBodySize)
	}
	if c.RequestTimeout <= 0 || c.ImageFetchTimeout <= 0 || c.AnalysisTimeout <= 0 {
		return fmt.Errorf("timeouts must be > 0 (got request=%s, fetch=%s, analysis=%s)",
			c.RequestTimeout, c.ImageFetchTimeout, c.AnalysisTimeout)
	}
	if c.MaxConcurrentFetches <= 0 {
		return fmt.Errorf("MAX_CONCURRENT_FETCHES must be > 0 (got %d)", c.MaxConcurrentFetches)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(strings.TrimSpace(value)); err == nil && duration > 0 {
			return duration
		}
	}
	return defaultValue
}

func parseIntOrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}
