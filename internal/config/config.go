// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	Port string `validate:"required"`
	Env  string

	// Address is the starting point the board is rendered for
	Address           string   `validate:"required"`
	SearchRadiusM     float64  `validate:"gt=0"`
	TransitlandAPIKey string   `validate:"required"`
	RealtimeFeedURLs  []string `validate:"dive,url"`
	Timezone          string

	RefreshInterval time.Duration `validate:"gt=0"`
	TickTimeout     time.Duration `validate:"gt=0"`
	DepartureWindow time.Duration `validate:"gt=0"`
	MaxEntries      int           `validate:"gte=0"`
	ReindexEvery    int           `validate:"gte=0"`

	CacheTTL    time.Duration
	HTTPTimeout time.Duration
}

// Load reads configuration from the environment with sensible defaults.
// A .env file in the working directory is honored when present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:              getEnv("PORT", "3000"),
		Env:               getEnv("ENV", "development"),
		Address:           getEnv("BOARD_ADDRESS", ""),
		SearchRadiusM:     getFloatEnv("SEARCH_RADIUS_METERS", 300),
		TransitlandAPIKey: getEnv("TRANSITLAND_API_KEY", ""),
		RealtimeFeedURLs:  getListEnv("REALTIME_FEED_URLS"),
		Timezone:          getEnv("BOARD_TIMEZONE", ""),
		RefreshInterval:   getDurationEnv("REFRESH_INTERVAL_SECONDS", 120) * time.Second,
		TickTimeout:       getDurationEnv("TICK_TIMEOUT_SECONDS", 30) * time.Second,
		DepartureWindow:   getDurationEnv("DEPARTURE_WINDOW_SECONDS", 3600) * time.Second,
		MaxEntries:        getIntEnv("MAX_DISPLAYED_ENTRIES", 40),
		ReindexEvery:      getIntEnv("REINDEX_EVERY_TICKS", 30),
		CacheTTL:          getDurationEnv("CACHE_TTL_SECONDS", 60) * time.Second,
		HTTPTimeout:       getDurationEnv("HTTP_TIMEOUT_SECONDS", 10) * time.Second,
	}
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// Location resolves the configured timezone; empty means local time.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultSeconds int) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds)
		}
	}
	return time.Duration(defaultSeconds)
}

func getListEnv(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var urls []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			urls = append(urls, trimmed)
		}
	}
	return urls
}
