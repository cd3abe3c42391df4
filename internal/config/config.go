package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds service configuration loaded from the environment.
type Config struct {
	// Application
	AppEnv    string
	LogLevel  string
	LogFormat string
	Port      string

	// Database
	DatabaseURL string

	// Redis (slot locking); empty disables locking
	RedisURL string

	// Auth
	StaticTokens []string
	JWTSecret    string

	// Google Calendar OAuth
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	// Reminder sweep
	ReminderSweepInterval time.Duration
	ReminderBatchSize     int

	// Booking lock TTL
	SlotLockTTL time.Duration
}

// Load loads configuration from environment variables. A .env file is read
// first if present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:             getEnv("APP_ENV", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          getEnv("LOG_FORMAT", ""),
		Port:               getEnv("PORT", "8080"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		RedisURL:           os.Getenv("REDIS_URL"),
		JWTSecret:          strings.TrimSpace(os.Getenv("JWT_HMAC_SECRET")),
		GoogleClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		GoogleRedirectURL:  os.Getenv("GOOGLE_REDIRECT_URL"),

		ReminderSweepInterval: getEnvDuration("REMINDER_SWEEP_INTERVAL", 5*time.Minute),
		ReminderBatchSize:     getEnvInt("REMINDER_BATCH_SIZE", 100),
		SlotLockTTL:           getEnvDuration("SLOT_LOCK_TTL", 10*time.Second),
	}

	if tokens := strings.TrimSpace(os.Getenv("STATIC_TOKENS")); tokens != "" {
		for _, t := range strings.Split(tokens, ",") {
			if t = strings.TrimSpace(t); t != "" {
				cfg.StaticTokens = append(cfg.StaticTokens, t)
			}
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL required")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
