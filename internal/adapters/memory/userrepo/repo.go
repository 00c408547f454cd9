package userrepo

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/campus-logistics/delivery-tracker-api/internal/domain"
	"github.com/campus-logistics/delivery-tracker-api/internal/ports/out/userrepo"
)

// Repo is an in-memory implementation of userrepo.Repository.
// It is safe for concurrent use.
type Repo struct {
	mu sync.RWMutex

	byID      map[domain.UserID]userrepo.User
	idByEmail map[string]domain.UserID
}

func NewRepo() *Repo {
	return &Repo{
		byID:      make(map[domain.UserID]userrepo.User),
		idByEmail: make(map[string]domain.UserID),
	}
}

func (r *Repo) Create(ctx context.Context, u userrepo.User) error {
	_ = ctx
	if u.ID == "" {
		return userrepo.ErrAlreadyExists
	}
	email := domain.NormalizeEmail(u.Email)
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[u.ID]; ok {
		return userrepo.ErrAlreadyExists
	}
	if _, ok := r.idByEmail[email]; ok {
		return userrepo.ErrEmailTaken
	}

	u.Email = email
	r.byID[u.ID] = cloneUser(u)
	r.idByEmail[email] = u.ID
	return nil
}

func (r *Repo) Update(ctx context.Context, u userrepo.User) error {
	_ = ctx
	email := domain.NormalizeEmail(u.Email)
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.byID[u.ID]
	if !ok {
		return userrepo.ErrNotFound
	}
	if owner, ok := r.idByEmail[email]; ok && owner != u.ID {
		return userrepo.ErrEmailTaken
	}

	delete(r.idByEmail, existing.Email)
	u.Email = email
	r.byID[u.ID] = cloneUser(u)
	r.idByEmail[email] = u.ID
	return nil
}

func (r *Repo) Delete(ctx context.Context, id domain.UserID) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return userrepo.ErrNotFound
	}
	delete(r.idByEmail, u.Email)
	delete(r.byID, id)
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id domain.UserID) (userrepo.User, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byID[id]
	if !ok {
		return userrepo.User{}, userrepo.ErrNotFound
	}
	return cloneUser(u), nil
}

func (r *Repo) GetByEmail(ctx context.Context, email string) (userrepo.User, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.idByEmail[domain.NormalizeEmail(email)]
	if !ok {
		return userrepo.User{}, userrepo.ErrNotFound
	}
	u, ok := r.byID[id]
	if !ok {
		return userrepo.User{}, userrepo.ErrNotFound
	}
	return cloneUser(u), nil
}

func (r *Repo) List(ctx context.Context, role domain.Role) ([]userrepo.User, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]userrepo.User, 0, len(r.byID))
	for _, u := range r.byID {
		if role != "" && u.Role != role {
			continue
		}
		out = append(out, cloneUser(u))
	}
	sort.Slice(out, func(i, j int) bool {
		ni := strings.ToLower(out[i].Name)
		nj := strings.ToLower(out[j].Name)
		if ni == nj {
			return out[i].ID < out[j].ID
		}
		return ni < nj
	})
	return out, nil
}

func cloneUser(u userrepo.User) userrepo.User {
	out := u
	if u.PasswordHash != nil {
		out.PasswordHash = append([]byte(nil), u.PasswordHash...)
	}
	return out
}
