package sessionstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/campus-logistics/delivery-tracker-api/internal/domain"
	clockport "github.com/campus-logistics/delivery-tracker-api/internal/ports/out/clock"
	"github.com/campus-logistics/delivery-tracker-api/internal/ports/out/sessionstore"
)

// record is the value stored under each session key. The user fields are inlined so the
// value still decodes as a plain user record.
type record struct {
	domain.User
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Store is a Redis implementation of sessionstore.Store. Keys expire through Redis TTLs;
// Get also checks ExpiresAt against the clock.
type Store struct {
	rdb *redis.Client
	clk clockport.Clock
}

func NewStore(rdb *redis.Client, clk clockport.Clock) *Store {
	return &Store{rdb: rdb, clk: clk}
}

// NewClient parses a redis:// URL and pings the server.
func NewClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}

func key(id domain.SessionID) string {
	return sessionstore.KeyPrefix + string(id)
}

func (s *Store) Put(ctx context.Context, sess domain.Session) error {
	if s.rdb == nil {
		return errors.New("nil redis client")
	}
	b, err := json.Marshal(record{User: sess.User, CreatedAt: sess.CreatedAt.UTC(), ExpiresAt: sess.ExpiresAt.UTC()})
	if err != nil {
		return err
	}
	var ttl time.Duration
	if !sess.ExpiresAt.IsZero() {
		ttl = sess.ExpiresAt.Sub(s.clk.Now())
		if ttl <= 0 {
			return s.Delete(ctx, sess.ID)
		}
	}
	return s.rdb.Set(ctx, key(sess.ID), b, ttl).Err()
}

func (s *Store) Get(ctx context.Context, id domain.SessionID) (domain.Session, error) {
	if s.rdb == nil {
		return domain.Session{}, errors.New("nil redis client")
	}
	b, err := s.rdb.Get(ctx, key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Session{}, sessionstore.ErrNotFound
		}
		return domain.Session{}, err
	}
	var rec record
	if err := json.Unmarshal(b, &rec); err != nil {
		return domain.Session{}, err
	}
	if !rec.ExpiresAt.IsZero() && !s.clk.Now().Before(rec.ExpiresAt) {
		return domain.Session{}, sessionstore.ErrNotFound
	}
	return domain.Session{ID: id, User: rec.User, CreatedAt: rec.CreatedAt, ExpiresAt: rec.ExpiresAt}, nil
}

func (s *Store) Delete(ctx context.Context, id domain.SessionID) error {
	if s.rdb == nil {
		return errors.New("nil redis client")
	}
	return s.rdb.Del(ctx, key(id)).Err()
}
