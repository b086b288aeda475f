// Package config loads feedctl settings from the environment.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	APIURL        string
	CredentialsDB string
	HTTPTimeout   time.Duration
}

func Load() Config {
	_ = godotenv.Load()

	return Config{
		APIURL:        strings.TrimRight(getEnv("FEED_API_URL", "http://localhost:3000"), "/"),
		CredentialsDB: getEnv("FEED_CREDENTIALS_DB", defaultCredentialsPath()),
		HTTPTimeout:   getDuration("FEED_HTTP_TIMEOUT", 15*time.Second),
	}
}

func defaultCredentialsPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "feedctl", "credentials.db")
}

func getEnv(key string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(strings.TrimSpace(os.Getenv(key)))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
