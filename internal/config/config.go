// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/halcyondata/visionsync/internal/dataset"
)

// Config holds application configuration.
type Config struct {
	DataDir string // Base directory for the archive tree, always absolute

	Dataset dataset.Dataset

	// Symbol selection. Empty Tickers means discover all pairs quoted in
	// QuoteAsset from the exchange-info endpoint.
	Tickers        []string
	TickersExclude []string
	QuoteAsset     string
	MaxTickers     int

	// Date window. Zero values mean the full available range.
	DateStart time.Time
	DateEnd   time.Time

	UpdateExisting bool
	PruneDaily     bool

	MaxConcurrentDownloads int // 0 = per-dataset default

	SyncSchedule string // cron spec; empty = run once and exit
	Port         int
	LogLevel     string
	DevMode      bool
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	// Dataset parameters are validated here so a typo fails startup rather
	// than producing an empty sync.
	ds, err := dataset.New(
		getEnv("ASSET_CLASS", dataset.Spot),
		getEnv("DATA_TYPE", "klines"),
		getEnv("DATA_FREQUENCY", "1m"),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid dataset configuration: %w", err)
	}

	dateStart, err := getEnvAsDate("DATE_START")
	if err != nil {
		return nil, err
	}
	dateEnd, err := getEnvAsDate("DATE_END")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DataDir:                absDataDir,
		Dataset:                ds,
		Tickers:                getEnvAsList("TICKERS"),
		TickersExclude:         getEnvAsList("TICKERS_EXCLUDE"),
		QuoteAsset:             getEnv("QUOTE_ASSET", ""),
		MaxTickers:             getEnvAsInt("MAX_TICKERS", 0),
		DateStart:              dateStart,
		DateEnd:                dateEnd,
		UpdateExisting:         getEnvAsBool("UPDATE_EXISTING", false),
		PruneDaily:             getEnvAsBool("PRUNE_DAILY", true),
		MaxConcurrentDownloads: getEnvAsInt("MAX_CONCURRENT_DOWNLOADS", 0),
		SyncSchedule:           getEnv("SYNC_SCHEDULE", ""),
		Port:                   getEnvAsInt("PORT", 8080),
		LogLevel:               getEnv("LOG_LEVEL", "info"),
		DevMode:                getEnvAsBool("DEV_MODE", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if !c.DateStart.IsZero() && !c.DateEnd.IsZero() && c.DateEnd.Before(c.DateStart) {
		return fmt.Errorf("DATE_END %s is before DATE_START %s",
			c.DateEnd.Format("2006-01-02"), c.DateStart.Format("2006-01-02"))
	}
	if c.MaxConcurrentDownloads < 0 {
		return fmt.Errorf("MAX_CONCURRENT_DOWNLOADS must not be negative")
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}

func getEnvAsDate(key string) (time.Time, error) {
	value := os.Getenv(key)
	if value == "" {
		return time.Time{}, nil
	}
	date, err := time.ParseInLocation("2006-01-02", value, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s %q, expected YYYY-MM-DD: %w", key, value, err)
	}
	return date, nil
}
