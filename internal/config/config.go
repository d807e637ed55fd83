// Package config loads the device configuration from the environment,
// with a .env file for development installs.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	Port      string
	JWTSecret string
	LogLevel  string
	// NotifyWebhook receives order-completed notifications for the SMS
	// gateway. Empty disables outbound notifications.
	NotifyWebhook string
	Database      DatabaseConfig
	Remote        RemoteConfig
	Sync          SyncConfig
}

// DatabaseConfig selects the local store backend. Handhelds run sqlite; a
// back-office install can point the same binary at postgres.
type DatabaseConfig struct {
	Driver string // sqlite | postgres
	DSN    string
}

// RemoteConfig points at the cloud store.
type RemoteConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// SyncConfig tunes the engine.
type SyncConfig struct {
	AutoSyncEnabled bool
	SyncOnStartup   bool
	Interval        time.Duration
	MaxRetries      int
	PushWorkers     int
	PullLimit       int
}

// Load reads configuration from environment variables, loading .env first
// if present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	remoteURL := os.Getenv("REMOTE_API_URL")
	if remoteURL == "" {
		return nil, fmt.Errorf("REMOTE_API_URL is required")
	}
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return &Config{
		Port:          getEnv("PORT", "3001"),
		JWTSecret:     jwtSecret,
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		NotifyWebhook: os.Getenv("NOTIFY_WEBHOOK_URL"),
		Database: DatabaseConfig{
			Driver: getEnv("DB_DRIVER", "sqlite"),
			DSN:    getEnv("DB_DSN", "./data/pos.db"),
		},
		Remote: RemoteConfig{
			BaseURL: remoteURL,
			Token:   os.Getenv("REMOTE_API_TOKEN"),
			Timeout: time.Duration(getEnvInt("REMOTE_TIMEOUT_SEC", 10)) * time.Second,
		},
		Sync: SyncConfig{
			AutoSyncEnabled: getEnv("SYNC_AUTO", "true") == "true",
			SyncOnStartup:   getEnv("SYNC_ON_STARTUP", "true") == "true",
			Interval:        time.Duration(getEnvInt("SYNC_INTERVAL_SEC", 300)) * time.Second,
			MaxRetries:      getEnvInt("SYNC_MAX_RETRIES", 3),
			PushWorkers:     getEnvInt("SYNC_PUSH_WORKERS", 4),
			PullLimit:       getEnvInt("SYNC_PULL_LIMIT", 0),
		},
	}, nil
}

// getEnv gets an environment variable with a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return defaultValue
	}
	return n
}
