package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Env           string
	HTTPPort      string
	DatabaseURL   string // empty means ephemeral-only operation
	JWTSecret     string
	JWTRefresh    string
	AdminPassword string
	EphemeralCap  int
	ProbeInterval time.Duration
	RateRPS       int
	Migrate       bool
}

func Load() Config {
	return Config{
		Env:           get("APP_ENV", "dev"),
		HTTPPort:      get("HTTP_PORT", "8080"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		JWTSecret:     get("JWT_SECRET", "changeme-secret"),
		JWTRefresh:    get("JWT_REFRESH_SECRET", "changeme-refresh"),
		AdminPassword: get("ADMIN_PASSWORD", "admin"),
		EphemeralCap:  getInt("EPHEMERAL_CAP", 500),
		ProbeInterval: getDuration("PROBE_INTERVAL", 30*time.Second),
		RateRPS:       getInt("RATE_RPS", 100),
		Migrate:       os.Getenv("APP_MIGRATE") == "true",
	}
}

func get(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return def
}
