package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration loaded from environment variables.
// Every field has a sensible default; only DATABASE_URL is required.
// Runtime-tunable values (debug mode, channel toggles, debug identity) are
// the environment fallbacks for the Configuration Provider; see
// internal/runtimecfg.
type Config struct {
	// Server (operational surface: /health and /metrics)
	HTTPPort        string
	ShutdownTimeout time.Duration

	// Database
	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	// Scheduling: RunOnce executes a single Phase 1 + Phase 2 pass and
	// exits (cron-style invocation); otherwise the runner ticks forever.
	RunOnce      bool
	PollInterval time.Duration

	// Delivery providers
	AWSRegion    string
	EmailFrom    string
	EmailEnabled bool
	SMSEnabled   bool
	SMSSenderID  string

	// Rate limiting: maximum dispatches per second per channel
	RateLimit int

	// Retry policy
	MaxRetries   int
	RetryBackoff []time.Duration // index 0 = first retry delay, etc.

	// Configuration Provider (redis-backed; empty addr = env defaults only)
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	RuntimeConfigTTL time.Duration

	// Environment fallbacks for the Configuration Provider
	DebugMode  bool
	DebugEmail string
	DebugPhone string
	DebugName  string

	// Primary account contact: the role-recipient target and the fallback
	// identity for unresolvable recipient IDs.
	PrimaryContactEmail string
	PrimaryContactPhone string
	PrimaryContactName  string
}

func Load() (*Config, error) {
	// A local .env is a development convenience; absence is not an error.
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 30*time.Second),

		DatabaseURL: dbURL,
		DBMaxConns:  int32(getInt("DB_MAX_CONNS", 10)),
		DBMinConns:  int32(getInt("DB_MIN_CONNS", 2)),

		RunOnce:      getBool("RUN_ONCE", false),
		PollInterval: getDuration("POLL_INTERVAL", 60*time.Second),

		AWSRegion:    getEnv("AWS_REGION", "us-east-1"),
		EmailFrom:    getEnv("EMAIL_FROM", "notifications@example.com"),
		EmailEnabled: getBool("EMAIL_ENABLED", true),
		SMSEnabled:   getBool("SMS_ENABLED", false),
		SMSSenderID:  getEnv("SMS_SENDER_ID", ""),

		RateLimit: getInt("RATE_LIMIT_PER_CHANNEL", 50),

		MaxRetries: getInt("MAX_RETRIES", 3),
		RetryBackoff: []time.Duration{
			getDuration("RETRY_BACKOFF_1", 5*time.Second),
			getDuration("RETRY_BACKOFF_2", 30*time.Second),
			getDuration("RETRY_BACKOFF_3", 120*time.Second),
		},

		RedisAddr:        getEnv("REDIS_ADDR", ""),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		RedisDB:          getInt("REDIS_DB", 0),
		RuntimeConfigTTL: getDuration("RUNTIME_CONFIG_TTL", 5*time.Minute),

		DebugMode:  getBool("DEBUG_MODE", false),
		DebugEmail: getEnv("DEBUG_EMAIL", "debug@example.com"),
		DebugPhone: getEnv("DEBUG_PHONE", ""),
		DebugName:  getEnv("DEBUG_NAME", "Debug Recipient"),

		PrimaryContactEmail: getEnv("PRIMARY_CONTACT_EMAIL", "owner@example.com"),
		PrimaryContactPhone: getEnv("PRIMARY_CONTACT_PHONE", ""),
		PrimaryContactName:  getEnv("PRIMARY_CONTACT_NAME", "Account Owner"),
	}, nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func getBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
