package config

import (
	"errors"
	"os"
	"strconv"
	"time"
)

type Config struct {
	ServerPort      string
	DatabaseURL     string
	RedisURL        string
	JWTSecret       string
	JWTExpiry       time.Duration
	LogLevel        string
	LogFormat       string
	LogFile         string
	CleanupInterval time.Duration
	PresenceTTL     time.Duration
	EventBuffer     int
	HubMessageRate  float64
}

func LoadConfig() (*Config, error) {
	expiry, err := time.ParseDuration(getEnv("JWT_EXPIRY", "24h"))
	if err != nil {
		return nil, errors.New("invalid JWT_EXPIRY format")
	}

	cleanup, err := time.ParseDuration(getEnv("CLEANUP_INTERVAL", "5m"))
	if err != nil {
		return nil, errors.New("invalid CLEANUP_INTERVAL format")
	}

	presenceTTL, err := time.ParseDuration(getEnv("PRESENCE_TTL", "24h"))
	if err != nil {
		return nil, errors.New("invalid PRESENCE_TTL format")
	}

	buffer, err := strconv.Atoi(getEnv("EVENT_BUFFER", "256"))
	if err != nil || buffer <= 0 {
		return nil, errors.New("EVENT_BUFFER must be a positive integer")
	}

	hubRate, err := strconv.ParseFloat(getEnv("HUB_MESSAGE_RATE", "20"), 64)
	if err != nil || hubRate <= 0 {
		return nil, errors.New("HUB_MESSAGE_RATE must be a positive number")
	}

	cfg := &Config{
		ServerPort:      getEnv("SERVER_PORT", "8080"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		RedisURL:        os.Getenv("REDIS_URL"),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		JWTExpiry:       expiry,
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFormat:       getEnv("LOG_FORMAT", "json"),
		LogFile:         os.Getenv("LOG_FILE"),
		CleanupInterval: cleanup,
		PresenceTTL:     presenceTTL,
		EventBuffer:     buffer,
		HubMessageRate:  hubRate,
	}

	// Validate required fields
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	return cfg, nil
}

// Helper: get env with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
