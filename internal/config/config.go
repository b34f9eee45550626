// Package config loads service configuration from the environment, with
// an optional .env file for local development.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Backend names for STATE_BACKEND.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

type Config struct {
	// StateBackend selects the state-store implementation:
	// memory | redis | postgres.
	StateBackend string

	// QueueTTL bounds how long a waiting user stays matchable.
	QueueTTL time.Duration
	// PairTTL, when non-zero, expires idle pairs (ephemeral variant
	// only; leave unset with the postgres backend).
	PairTTL time.Duration

	TelegramToken string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	DatabaseDSN string

	MediaDir string
	HTTPAddr string
	// JWTSecret signs anon-ID tokens for the WebSocket transport.
	JWTSecret string

	// LedgerEnabled turns the durable dialog ledger on. Requires a
	// database connection.
	LedgerEnabled bool
}

// Load reads the configuration. A missing .env file is not an error.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: no .env file loaded")
	}

	cfg := &Config{
		StateBackend:  getEnvString("STATE_BACKEND", BackendMemory),
		QueueTTL:      time.Duration(getEnvInt("QUEUE_TTL", 300)) * time.Second,
		PairTTL:       time.Duration(getEnvInt("PAIR_TTL", 0)) * time.Second,
		TelegramToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		RedisAddr:     getEnvString("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		DatabaseDSN:   os.Getenv("DATABASE_DSN"),
		MediaDir:      getEnvString("MEDIA_DIR", "media"),
		HTTPAddr:      getEnvString("HTTP_ADDR", ":8080"),
		JWTSecret:     getEnvString("JWT_SECRET", ""),
		LedgerEnabled: getEnvBool("LEDGER_ENABLED", false),
	}

	switch cfg.StateBackend {
	case BackendMemory, BackendRedis, BackendPostgres:
	default:
		return nil, fmt.Errorf("unknown STATE_BACKEND %q", cfg.StateBackend)
	}
	if cfg.StateBackend == BackendPostgres && cfg.DatabaseDSN == "" {
		return nil, fmt.Errorf("STATE_BACKEND=postgres requires DATABASE_DSN")
	}
	if cfg.LedgerEnabled && cfg.DatabaseDSN == "" {
		return nil, fmt.Errorf("LEDGER_ENABLED requires DATABASE_DSN")
	}
	return cfg, nil
}

func getEnvString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("Warning: invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("Warning: invalid %s=%q, using %t", key, v, fallback)
		return fallback
	}
	return b
}
