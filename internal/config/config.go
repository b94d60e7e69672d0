package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Addr       string
	JWTSecret  string
	TokenTTL   time.Duration
	CORSOrigin string
	// Relay tuning
	HeartbeatInterval time.Duration
	BufferSize        int
	MaxBodyBytes      int64
	// Redis Configuration, empty disables token revocation
	RedisURL string
}

func Load() Config {
	return Config{
		Addr:              getenv("API_ADDR", ":8787"),
		JWTSecret:         getenv("SYNC_JWT_SECRET", getenv("JWT_SECRET", "dev-demo-secret-unsafe")),
		TokenTTL:          time.Duration(getenvInt("JWT_TTL_SECONDS", 3600)) * time.Second,
		CORSOrigin:        getenv("SYNC_CORS_ORIGIN", "*"),
		HeartbeatInterval: time.Duration(getenvInt("SYNC_HEARTBEAT_SECONDS", 30)) * time.Second,
		BufferSize:        getenvInt("SYNC_BUFFER_SIZE", 64),
		MaxBodyBytes:      int64(getenvInt("SYNC_MAX_BODY_BYTES", 1<<20)),
		RedisURL:          getenv("REDIS_URL", ""),
	}
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}
