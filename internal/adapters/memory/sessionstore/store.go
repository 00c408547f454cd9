package sessionstore

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/campus-logistics/delivery-tracker-api/internal/domain"
	clockport "github.com/campus-logistics/delivery-tracker-api/internal/ports/out/clock"
	"github.com/campus-logistics/delivery-tracker-api/internal/ports/out/sessionstore"
)

type entry struct {
	// record is the serialized user, the same payload the Redis adapter stores.
	record  []byte
	session domain.Session
}

// Store is an in-memory implementation of sessionstore.Store.
// It is safe for concurrent use. Expired records are dropped lazily on read.
type Store struct {
	clk clockport.Clock

	mu sync.Mutex
	m  map[string]entry
}

func NewStore(clk clockport.Clock) *Store {
	return &Store{clk: clk, m: make(map[string]entry)}
}

func (s *Store) Put(ctx context.Context, sess domain.Session) error {
	_ = ctx
	b, err := json.Marshal(sess.User)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[sessionstore.KeyPrefix+string(sess.ID)] = entry{record: b, session: sess}
	return nil
}

func (s *Store) Get(ctx context.Context, id domain.SessionID) (domain.Session, error) {
	_ = ctx
	key := sessionstore.KeyPrefix + string(id)
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.m[key]
	if !ok {
		return domain.Session{}, sessionstore.ErrNotFound
	}
	if !e.session.ExpiresAt.IsZero() && !s.clk.Now().Before(e.session.ExpiresAt) {
		delete(s.m, key)
		return domain.Session{}, sessionstore.ErrNotFound
	}
	var u domain.User
	if err := json.Unmarshal(e.record, &u); err != nil {
		return domain.Session{}, err
	}
	out := e.session
	out.User = u
	return out, nil
}

func (s *Store) Delete(ctx context.Context, id domain.SessionID) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, sessionstore.KeyPrefix+string(id))
	return nil
}
