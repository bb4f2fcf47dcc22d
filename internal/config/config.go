package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const PROD_STRING = "prod"

// Config holds all application configuration loaded from environment.
type Config struct {
	IsProduction          bool
	ProdOrigins           string
	HTTPAddr              string
	DBDSN                 string
	DBMaxConns            int
	JWTSecret             string
	JWTAccessTokenTTL     time.Duration
	HardwareKeyHash       string
	HardwareRatePerMinute int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	RabbitMQURL     string
	BookingExchange string
	HardwareQueue   string

	ReclaimInterval      time.Duration
	ExpiryWindow         time.Duration
	ExpiryWarning        time.Duration
	MinBillingMinutes    int
	ProvisionalEndOffset time.Duration
}

// Load loads configuration from .env (optional) and environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists
	err := godotenv.Load()
	if err != nil {
		log.Printf("failed to load .env file: %v", err)
	}

	cfg := &Config{}

	// Production origin (default: empty)
	cfg.ProdOrigins = getEnv("PROD_ORIGINS", "")

	// Application environment (default: dev)
	appEnvStr := getEnv("APP_ENV", "dev")
	cfg.IsProduction = appEnvStr == PROD_STRING

	// HTTP listen address (default: :8080)
	cfg.HTTPAddr = getEnv("HTTP_ADDR", ":8080")

	// Database DSN is required
	cfg.DBDSN = os.Getenv("DB_DSN")
	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("DB_DSN is required")
	}
	cfg.DBMaxConns, err = getEnvAsInt("DB_MAX_CONNS", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_CONNS: %w", err)
	}

	// JWT secret is required for verifying driver tokens
	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.JWTAccessTokenTTL, err = getEnvAsDuration("JWT_ACCESS_TOKEN_TTL", 24*time.Hour); err != nil {
		return nil, err
	}

	// bcrypt hash of the shared hardware device key; empty disables the HTTP signal endpoint
	cfg.HardwareKeyHash = getEnv("HARDWARE_KEY_HASH", "")

	cfg.HardwareRatePerMinute, err = getEnvAsInt("HARDWARE_RATE_PER_MINUTE", 600)
	if err != nil {
		return nil, fmt.Errorf("invalid HARDWARE_RATE_PER_MINUTE: %w", err)
	}

	// Redis is optional; without it the reclamation pass is not leased across replicas
	cfg.RedisAddr = getEnv("REDIS_ADDR", "")
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", "")
	cfg.RedisDB, err = getEnvAsInt("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	// RabbitMQ is optional; without it lifecycle events are dropped
	cfg.RabbitMQURL = getEnv("RABBITMQ_URL", "")
	cfg.BookingExchange = getEnv("BOOKING_EXCHANGE", "booking.exchange")
	cfg.HardwareQueue = getEnv("HARDWARE_QUEUE", "hardware.signals")

	if cfg.ReclaimInterval, err = getEnvAsDuration("RECLAIM_INTERVAL", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.ExpiryWindow, err = getEnvAsDuration("EXPIRY_WINDOW", 60*time.Minute); err != nil {
		return nil, err
	}
	if cfg.ExpiryWarning, err = getEnvAsDuration("EXPIRY_WARNING", 15*time.Minute); err != nil {
		return nil, err
	}
	if cfg.ProvisionalEndOffset, err = getEnvAsDuration("PROVISIONAL_END_OFFSET", 24*time.Hour); err != nil {
		return nil, err
	}

	cfg.MinBillingMinutes, err = getEnvAsInt("MIN_BILLING_MINUTES", 15)
	if err != nil {
		return nil, fmt.Errorf("invalid MIN_BILLING_MINUTES: %w", err)
	}

	if cfg.ReclaimInterval <= 0 || cfg.ExpiryWindow <= 0 {
		return nil, fmt.Errorf("RECLAIM_INTERVAL and EXPIRY_WINDOW must be positive")
	}

	return cfg, nil
}

// getEnv returns the value of the environment variable if set,
// otherwise returns the provided default value.
func getEnv(key, defaultValue string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer.
// It returns the default value if the variable is not set.
// It returns an error if the variable is set but is not a valid integer.
func getEnvAsInt(key string, defaultValue int) (int, error) {
	valStr := getEnv(key, "")
	if valStr == "" {
		return defaultValue, nil
	}

	val, err := strconv.Atoi(valStr)
	if err != nil {
		return 0, fmt.Errorf("env %s value %q is not a valid integer: %w", key, valStr, err)
	}

	return val, nil
}

// getEnvAsDuration parses an environment variable as a time.Duration (e.g. "5m").
func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	valStr := getEnv(key, "")
	if valStr == "" {
		return defaultValue, nil
	}

	d, err := time.ParseDuration(valStr)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
