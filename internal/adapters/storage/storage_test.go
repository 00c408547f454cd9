package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	memdeliveryrepo "github.com/campus-logistics/delivery-tracker-api/internal/adapters/memory/deliveryrepo"
	memsessionstore "github.com/campus-logistics/delivery-tracker-api/internal/adapters/memory/sessionstore"
	redissessionstore "github.com/campus-logistics/delivery-tracker-api/internal/adapters/redis/sessionstore"
	"github.com/campus-logistics/delivery-tracker-api/internal/domain"
	platformclock "github.com/campus-logistics/delivery-tracker-api/internal/platform/clock"
	"github.com/campus-logistics/delivery-tracker-api/internal/platform/config"
)

func TestOpen_Memory(t *testing.T) {
	t.Parallel()

	clk := platformclock.NewManualClock(time.Unix(1700000000, 0).UTC())
	s, err := Open(context.Background(), config.Config{StorageBackend: config.BackendMemory, SessionBackend: config.BackendMemory}, clk, Options{})
	if err != nil {
		t.Fatalf("Open err=%v", err)
	}
	defer s.Close()

	if _, ok := s.Deliveries.(*memdeliveryrepo.Repo); !ok {
		t.Fatalf("Deliveries=%T, want memory repo", s.Deliveries)
	}
	if _, ok := s.Sessions.(*memsessionstore.Store); !ok {
		t.Fatalf("Sessions=%T, want memory store", s.Sessions)
	}
	if s.Pool != nil {
		t.Fatalf("memory backend must not open a pool")
	}
}

func TestOpen_RedisSessions(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	clk := platformclock.NewManualClock(time.Unix(1700000000, 0).UTC())
	cfg := config.Config{
		StorageBackend: config.BackendMemory,
		SessionBackend: config.BackendRedis,
		RedisURL:       "redis://" + mr.Addr() + "/0",
	}
	s, err := Open(context.Background(), cfg, clk, Options{})
	if err != nil {
		t.Fatalf("Open err=%v", err)
	}
	defer s.Close()

	if _, ok := s.Sessions.(*redissessionstore.Store); !ok {
		t.Fatalf("Sessions=%T, want redis store", s.Sessions)
	}
	sess := domain.Session{
		ID:        "sid-1",
		User:      domain.User{ID: "1", Email: "student@campus.edu", Name: "John Student", Role: domain.RoleStudent},
		CreatedAt: clk.Now(),
		ExpiresAt: clk.Now().Add(time.Hour),
	}
	if err := s.Sessions.Put(context.Background(), sess); err != nil {
		t.Fatalf("Put err=%v", err)
	}
	if !mr.Exists("campusDeliveryUser:sid-1") {
		t.Fatalf("expected session key in redis; keys=%v", mr.Keys())
	}
}

func TestOpen_UnknownBackends(t *testing.T) {
	t.Parallel()

	clk := platformclock.NewManualClock(time.Unix(1700000000, 0).UTC())
	if _, err := Open(context.Background(), config.Config{StorageBackend: "sqlite", SessionBackend: config.BackendMemory}, clk, Options{}); err == nil {
		t.Fatalf("expected error for unknown storage backend")
	}
	if _, err := Open(context.Background(), config.Config{StorageBackend: config.BackendMemory, SessionBackend: "memcached"}, clk, Options{}); err == nil {
		t.Fatalf("expected error for unknown session backend")
	}
}
