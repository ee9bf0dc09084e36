package config

import (
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort  string `validate:"required"`
	Environment string
	JWTSecret   string `validate:"required"`
	JWTExpiry   int64  `validate:"gt=0"`
	DatabaseDSN string `validate:"required"`

	// Client-side settings, used by the chat CLI.
	ServerURL        string `validate:"required,url"`
	HubURL           string `validate:"required"`
	PageSize         int    `validate:"gt=0,lte=100"`
	BackoffBase      time.Duration
	BackoffMax       time.Duration
	HandshakeTimeout time.Duration
}

func Load() (*Config, error) {
	godotenv.Load()

	config := &Config{
		ServerPort:       getEnv("SERVER_PORT", "5000"),
		Environment:      getEnv("ENVIRONMENT", "development"),
		JWTSecret:        getEnv("JWT_SECRET", "dev-secret-key"),
		JWTExpiry:        getEnvAsInt64("JWT_EXPIRY", 24*60*60), // 24 hours
		DatabaseDSN:      getEnv("DATABASE_DSN", "campuschat.db"),
		ServerURL:        getEnv("SERVER_URL", "http://localhost:5000"),
		HubURL:           getEnv("HUB_URL", "ws://localhost:5000/chatHub"),
		PageSize:         int(getEnvAsInt64("CHAT_PAGE_SIZE", 5)),
		BackoffBase:      getEnvAsDuration("RECONNECT_BACKOFF_BASE", 500*time.Millisecond),
		BackoffMax:       getEnvAsDuration("RECONNECT_BACKOFF_MAX", 30*time.Second),
		HandshakeTimeout: getEnvAsDuration("HANDSHAKE_TIMEOUT", 10*time.Second),
	}

	if err := validator.New().Struct(config); err != nil {
		return nil, err
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		intValue, err := strconv.ParseInt(value, 10, 64)
		if err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return defaultValue
}
