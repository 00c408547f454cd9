package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// devSessionSecret signs tokens outside prod when SESSION_SECRET is unset.
const devSessionSecret = "campus-delivery-dev-secret"

// Config is the process configuration, read from the environment.
type Config struct {
	Port     string
	Env      string
	LogLevel string

	StorageBackend string
	DatabaseURL    string

	SessionBackend string
	RedisURL       string
	SessionSecret  []byte
	SessionTTL     time.Duration

	SeedDemoData bool
	SentryDSN    string
	BcryptCost   int
}

// IsProd reports whether ENV=prod.
func (c Config) IsProd() bool { return c.Env == "prod" }

// Load reads an optional .env file, then the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from environment variables only.
func FromEnv() (Config, error) {
	cfg := Config{
		Port:           getenv("PORT", "8080"),
		Env:            getenv("ENV", "dev"),
		LogLevel:       getenv("LOG_LEVEL", "info"),
		StorageBackend: getenv("STORAGE_BACKEND", BackendMemory),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		SessionBackend: getenv("SESSION_BACKEND", BackendMemory),
		RedisURL:       os.Getenv("REDIS_URL"),
		SessionTTL:     24 * time.Hour,
		SeedDemoData:   true,
		SentryDSN:      os.Getenv("SENTRY_DSN"),
		BcryptCost:     bcrypt.DefaultCost,
	}

	switch cfg.StorageBackend {
	case BackendMemory:
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			return Config{}, errors.New("DATABASE_URL is required when STORAGE_BACKEND=postgres")
		}
	default:
		return Config{}, fmt.Errorf("STORAGE_BACKEND must be memory or postgres, got %q", cfg.StorageBackend)
	}

	switch cfg.SessionBackend {
	case BackendMemory:
	case BackendRedis:
		if cfg.RedisURL == "" {
			return Config{}, errors.New("REDIS_URL is required when SESSION_BACKEND=redis")
		}
	default:
		return Config{}, fmt.Errorf("SESSION_BACKEND must be memory or redis, got %q", cfg.SessionBackend)
	}

	secret := os.Getenv("SESSION_SECRET")
	if secret == "" {
		if cfg.IsProd() {
			return Config{}, errors.New("SESSION_SECRET is required when ENV=prod")
		}
		secret = devSessionSecret
	}
	cfg.SessionSecret = []byte(secret)

	if v := os.Getenv("SESSION_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("SESSION_TTL must be a duration (e.g. 24h): %w", err)
		}
		if d <= 0 {
			return Config{}, fmt.Errorf("SESSION_TTL must be positive, got %s", d)
		}
		cfg.SessionTTL = d
	}
	if v := os.Getenv("SEED_DEMO_DATA"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("SEED_DEMO_DATA must be a bool: %w", err)
		}
		cfg.SeedDemoData = b
	}
	if v := os.Getenv("BCRYPT_COST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < bcrypt.MinCost || n > bcrypt.MaxCost {
			return Config{}, fmt.Errorf("BCRYPT_COST must be an integer in [%d,%d], got %q", bcrypt.MinCost, bcrypt.MaxCost, v)
		}
		cfg.BcryptCost = n
	}

	return cfg, nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
