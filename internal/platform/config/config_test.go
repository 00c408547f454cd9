package config

import (
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"PORT", "ENV", "LOG_LEVEL", "STORAGE_BACKEND", "DATABASE_URL", "SESSION_BACKEND",
		"REDIS_URL", "SESSION_SECRET", "SESSION_TTL", "SEED_DEMO_DATA", "SENTRY_DSN", "BCRYPT_COST",
	} {
		t.Setenv(k, "")
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv() err=%v", err)
	}
	if cfg.Port != "8080" || cfg.Env != "dev" || cfg.LogLevel != "info" {
		t.Fatalf("cfg=%+v", cfg)
	}
	if cfg.StorageBackend != BackendMemory || cfg.SessionBackend != BackendMemory {
		t.Fatalf("backends=%q/%q, want memory/memory", cfg.StorageBackend, cfg.SessionBackend)
	}
	if cfg.SessionTTL != 24*time.Hour || !cfg.SeedDemoData || cfg.BcryptCost != bcrypt.DefaultCost {
		t.Fatalf("cfg=%+v", cfg)
	}
	if len(cfg.SessionSecret) == 0 {
		t.Fatalf("expected dev session secret")
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORAGE_BACKEND", "postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/deliveries")
	t.Setenv("SESSION_BACKEND", "redis")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("SESSION_TTL", "90m")
	t.Setenv("SEED_DEMO_DATA", "false")
	t.Setenv("BCRYPT_COST", "4")
	t.Setenv("SESSION_SECRET", "s3cret")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv() err=%v", err)
	}
	if cfg.SessionTTL != 90*time.Minute || cfg.SeedDemoData || cfg.BcryptCost != 4 || string(cfg.SessionSecret) != "s3cret" {
		t.Fatalf("cfg=%+v", cfg)
	}
}

func TestFromEnv_Errors(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"bad storage", map[string]string{"STORAGE_BACKEND": "sqlite"}, "STORAGE_BACKEND"},
		{"postgres without url", map[string]string{"STORAGE_BACKEND": "postgres"}, "DATABASE_URL"},
		{"redis without url", map[string]string{"SESSION_BACKEND": "redis"}, "REDIS_URL"},
		{"prod without secret", map[string]string{"ENV": "prod"}, "SESSION_SECRET"},
		{"bad ttl", map[string]string{"SESSION_TTL": "tomorrow"}, "SESSION_TTL"},
		{"negative ttl", map[string]string{"SESSION_TTL": "-1h"}, "SESSION_TTL"},
		{"bad bool", map[string]string{"SEED_DEMO_DATA": "maybe"}, "SEED_DEMO_DATA"},
		{"bad cost", map[string]string{"BCRYPT_COST": "99"}, "BCRYPT_COST"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := FromEnv()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("FromEnv() err=%v, want mention of %s", err, tc.want)
			}
		})
	}
}
