package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application. Environment
// variables are read here and nowhere else.
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Market data feed
	Feed FeedConfig

	// Scan behaviour
	Scan ScanConfig

	// Outbound notifications
	Notify NotifyConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	URL string

	// Connection pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// RedisConfig holds Redis configuration. SeriesTTL bounds how long a
// cached price series stays valid.
type RedisConfig struct {
	Host      string
	Port      string
	Password  string
	DB        int
	Enabled   bool
	SeriesTTL time.Duration
}

// FeedConfig holds the Eastmoney endpoints and client pacing.
type FeedConfig struct {
	KlineBaseURL   string
	ListBaseURL    string
	ProfileBaseURL string
	UserAgent      string
	Timeout        time.Duration
	Retries        int
	RatePerSec     float64
	Burst          int
}

// ScanConfig holds screening run defaults.
type ScanConfig struct {
	Workers      int
	MinBars      int
	TopN         int
	HistoryDays  int
	StrategyFile string
	OutputDir    string // where pick CSV exports land
	Schedule     string // cron spec with seconds for the daily run
}

// NotifyConfig holds the webhook sink. An empty URL disables delivery.
type NotifyConfig struct {
	WebhookURL string
	Timeout    time.Duration
}

// Load reads configuration from environment variables. Only this function
// calls os.Getenv.
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8080"),
		Env:  getEnv("ENV", "development"),

		// Database
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 5),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		// Redis
		Redis: RedisConfig{
			Host:      getEnv("REDIS_HOST", "localhost"),
			Port:      getEnv("REDIS_PORT", "6379"),
			Password:  getEnv("REDIS_PASSWORD", ""),
			DB:        getEnvAsInt("REDIS_DB", 0),
			Enabled:   getEnvAsBool("REDIS_ENABLED", true),
			SeriesTTL: getEnvAsDuration("REDIS_SERIES_TTL", "1h"),
		},

		// Market data feed
		Feed: FeedConfig{
			KlineBaseURL:   getEnv("FEED_KLINE_BASE_URL", "https://push2his.eastmoney.com"),
			ListBaseURL:    getEnv("FEED_LIST_BASE_URL", "https://push2.eastmoney.com"),
			ProfileBaseURL: getEnv("FEED_PROFILE_BASE_URL", "https://emweb.securities.eastmoney.com"),
			UserAgent:      getEnv("FEED_USER_AGENT", defaultUserAgent),
			Timeout:        getEnvAsDuration("FEED_TIMEOUT", "10s"),
			Retries:        getEnvAsInt("FEED_RETRIES", 3),
			RatePerSec:     getEnvAsFloat("FEED_RATE_PER_SEC", 5),
			Burst:          getEnvAsInt("FEED_BURST", 5),
		},

		// Scan behaviour
		Scan: ScanConfig{
			Workers:      getEnvAsInt("SCAN_WORKERS", 4),
			MinBars:      getEnvAsInt("SCAN_MIN_BARS", 10),
			TopN:         getEnvAsInt("SCAN_TOP_N", 20),
			HistoryDays:  getEnvAsInt("SCAN_HISTORY_DAYS", 120),
			StrategyFile: getEnv("SCAN_STRATEGY_FILE", ""),
			OutputDir:    getEnv("SCAN_OUTPUT_DIR", "output/picks"),
			Schedule:     getEnv("SCAN_SCHEDULE", "0 30 15 * * 1-5"),
		},

		// Outbound notifications
		Notify: NotifyConfig{
			WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
			Timeout:    getEnvAsDuration("NOTIFY_TIMEOUT", "10s"),
		},

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "debug"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"

// validate checks if required configuration values are set.
func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Scan.Workers < 1 {
		return fmt.Errorf("SCAN_WORKERS must be at least 1")
	}

	return nil
}

// loadEnvFile tries to load .env from multiple locations.
func loadEnvFile() {
	paths := []string{
		".env",
	}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
