package config

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	DatabaseURL string
	JWTSecret   string

	PlaidClientID string
	PlaidSecret   string
	PlaidEnv      string

	AllowedOrigins []string
	ReadOnly       bool

	// Scheduler cadence. The check interval is how often staleness is
	// evaluated; the refresh intervals are how stale data may get.
	CheckInterval            time.Duration
	TranRefreshInterval      time.Duration
	RecurringRefreshInterval time.Duration

	PriceTTL time.Duration
}

func Load() Config {
	// Load .env file if present
	_ = godotenv.Load()

	cfg := Config{
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		JWTSecret:   getEnv("JWT_SECRET", ""),

		PlaidClientID: getEnv("PLAID_CLIENT_ID", ""),
		PlaidSecret:   getEnv("PLAID_SECRET", ""),
		PlaidEnv:      getEnv("PLAID_ENV", "sandbox"),

		AllowedOrigins: splitEnv("ALLOWED_ORIGINS"),
		ReadOnly:       getEnv("READ_ONLY", "") == "true",

		CheckInterval:            getEnvDuration("CHECK_INTERVAL", time.Hour),
		TranRefreshInterval:      getEnvDuration("TRAN_REFRESH_INTERVAL", 4*24*time.Hour),
		RecurringRefreshInterval: getEnvDuration("RECURRING_REFRESH_INTERVAL", 10*24*time.Hour),

		PriceTTL: getEnvDuration("PRICE_TTL", 10*time.Minute),
	}

	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET is required")
	}
	if cfg.PlaidClientID == "" || cfg.PlaidSecret == "" {
		log.Fatal("PLAID_CLIENT_ID and PLAID_SECRET are required")
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		log.Fatalf("invalid duration for %s: %v", key, err)
	}
	return d
}

func splitEnv(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
