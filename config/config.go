package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents the application configuration
type Config struct {
	// Environment
	Environment string

	// Input files
	SourcesFile  string
	AliasesFile  string
	ExchangeRate float64

	// Persistence
	StoreDriver    string
	DatabaseURL    string
	PersistRetries int

	// Redis configuration
	PublishEnabled       bool
	RedisAddr            string
	RedisDB              int
	RedisStream          string
	RedisStreamCount     int
	RedisStreamMaxLength int

	// Memcache configuration
	MemcacheAddr string

	// Crawler configuration
	CrawlInterval  time.Duration
	SourceDelay    time.Duration
	MaxConcurrency int
	FetchTimeout   time.Duration
	BlockTime      time.Duration
	RunTimeout     time.Duration
}

// Store drivers
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() *Config {
	return &Config{
		Environment:          getEnv("PRICEWORKER_ENVIRONMENT", "development"),
		SourcesFile:          getEnv("SOURCES_FILE", "sources.yaml"),
		AliasesFile:          getEnv("ALIASES_FILE", "aliases.yaml"),
		ExchangeRate:         getEnvFloat("EXCHANGE_RATE", 0),
		StoreDriver:          strings.ToLower(getEnv("STORE_DRIVER", StoreDriverPostgres)),
		DatabaseURL:          getEnv("DATABASE_URL", "postgres://localhost:5432/prices?sslmode=disable"),
		PersistRetries:       getEnvInt("PERSIST_RETRIES", 3),
		PublishEnabled:       getEnvBool("PUBLISH_ENABLED", true),
		RedisAddr:            getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:              getEnvInt("REDIS_DB", 0),
		RedisStream:          getEnv("REDIS_STREAM", "prices"),
		RedisStreamCount:     getEnvInt("REDIS_STREAM_COUNT", 1),
		RedisStreamMaxLength: getEnvInt("REDIS_STREAM_MAX_LENGTH", 1000),
		MemcacheAddr:         getEnv("MEMCACHE_ADDR", "localhost:11211"),
		CrawlInterval:        time.Duration(getEnvInt("CRAWL_INTERVAL_SECONDS", 0)) * time.Second,
		SourceDelay:          time.Duration(getEnvInt("SOURCE_DELAY_MS", 1500)) * time.Millisecond,
		MaxConcurrency:       getEnvInt("MAX_CONCURRENCY", 1),
		FetchTimeout:         time.Duration(getEnvInt("FETCH_TIMEOUT_SECONDS", 30)) * time.Second,
		BlockTime:            time.Duration(getEnvInt("BLOCK_TIME_SECONDS", 300)) * time.Second,
		RunTimeout:           time.Duration(getEnvInt("RUN_TIMEOUT_SECONDS", 0)) * time.Second,
	}
}

// Validate rejects values the worker cannot run with
func (c *Config) Validate() error {
	if c.SourcesFile == "" {
		return fmt.Errorf("SOURCES_FILE is required")
	}
	if c.AliasesFile == "" {
		return fmt.Errorf("ALIASES_FILE is required")
	}
	if c.ExchangeRate < 0 {
		return fmt.Errorf("EXCHANGE_RATE must not be negative, got %v", c.ExchangeRate)
	}
	switch c.StoreDriver {
	case StoreDriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres store")
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StoreDriverPostgres, StoreDriverMemory, c.StoreDriver)
	}
	if c.PersistRetries < 1 {
		return fmt.Errorf("PERSIST_RETRIES must be at least 1, got %d", c.PersistRetries)
	}
	if c.PublishEnabled {
		if c.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required when publishing is enabled")
		}
		if c.RedisStreamCount < 1 {
			return fmt.Errorf("REDIS_STREAM_COUNT must be at least 1, got %d", c.RedisStreamCount)
		}
	}
	if c.MaxConcurrency < 1 {
		return fmt.Errorf("MAX_CONCURRENCY must be at least 1, got %d", c.MaxConcurrency)
	}
	if c.CrawlInterval < 0 || c.SourceDelay < 0 || c.RunTimeout < 0 || c.BlockTime < 0 {
		return fmt.Errorf("durations must not be negative")
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("FETCH_TIMEOUT_SECONDS must be positive")
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	v, err := strconv.Atoi(getEnv(key, strconv.Itoa(defaultValue)))
	if err != nil {
		return defaultValue
	}
	return v
}

func getEnvFloat(key string, defaultValue float64) float64 {
	v, err := strconv.ParseFloat(getEnv(key, ""), 64)
	if err != nil {
		return defaultValue
	}
	return v
}

func getEnvBool(key string, defaultValue bool) bool {
	v, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return v
}
