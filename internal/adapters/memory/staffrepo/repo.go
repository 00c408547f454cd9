package staffrepo

import (
	"context"
	"sort"
	"sync"

	"github.com/campus-logistics/delivery-tracker-api/internal/domain"
	"github.com/campus-logistics/delivery-tracker-api/internal/ports/out/staffrepo"
)

// Repo is an in-memory implementation of staffrepo.Repository.
// It is safe for concurrent use.
type Repo struct {
	mu sync.RWMutex

	byID     map[domain.StaffID]domain.StaffMember
	idByUser map[domain.UserID]domain.StaffID
}

func NewRepo() *Repo {
	return &Repo{
		byID:     make(map[domain.StaffID]domain.StaffMember),
		idByUser: make(map[domain.UserID]domain.StaffID),
	}
}

func (r *Repo) Create(ctx context.Context, m domain.StaffMember) error {
	_ = ctx
	if m.ID == "" {
		return staffrepo.ErrAlreadyExists
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[m.ID]; ok {
		return staffrepo.ErrAlreadyExists
	}
	if m.UserID != nil {
		if _, ok := r.idByUser[*m.UserID]; ok {
			return staffrepo.ErrAlreadyExists
		}
		r.idByUser[*m.UserID] = m.ID
	}
	r.byID[m.ID] = cloneMember(m)
	return nil
}

func (r *Repo) Update(ctx context.Context, m domain.StaffMember) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.byID[m.ID]
	if !ok {
		return staffrepo.ErrNotFound
	}
	// The user link and import source are immutable once set.
	m.UserID = existing.UserID
	m.SourcePersonnelID = existing.SourcePersonnelID
	m.CreatedAt = existing.CreatedAt
	r.byID[m.ID] = cloneMember(m)
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id domain.StaffID) (domain.StaffMember, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.byID[id]
	if !ok {
		return domain.StaffMember{}, staffrepo.ErrNotFound
	}
	return cloneMember(m), nil
}

func (r *Repo) GetByUserID(ctx context.Context, userID domain.UserID) (domain.StaffMember, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.idByUser[userID]
	if !ok {
		return domain.StaffMember{}, staffrepo.ErrNotFound
	}
	return cloneMember(r.byID[id]), nil
}

func (r *Repo) List(ctx context.Context, includeInactive bool) ([]domain.StaffMember, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.StaffMember, 0, len(r.byID))
	for _, m := range r.byID {
		if !includeInactive && !m.Active {
			continue
		}
		out = append(out, cloneMember(m))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func cloneMember(m domain.StaffMember) domain.StaffMember {
	out := m
	if m.UserID != nil {
		v := *m.UserID
		out.UserID = &v
	}
	if m.SourcePersonnelID != nil {
		v := *m.SourcePersonnelID
		out.SourcePersonnelID = &v
	}
	return out
}
