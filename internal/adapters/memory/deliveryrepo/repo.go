package deliveryrepo

import (
	"context"
	"sort"
	"sync"

	"github.com/campus-logistics/delivery-tracker-api/internal/domain"
	"github.com/campus-logistics/delivery-tracker-api/internal/ports/out/deliveryrepo"
)

// Repo is an in-memory implementation of deliveryrepo.Repository.
// It is safe for concurrent use.
type Repo struct {
	mu sync.RWMutex

	byID   map[domain.DeliveryID]domain.Delivery
	events map[domain.DeliveryID][]domain.StatusEvent
}

func NewRepo() *Repo {
	return &Repo{
		byID:   make(map[domain.DeliveryID]domain.Delivery),
		events: make(map[domain.DeliveryID][]domain.StatusEvent),
	}
}

func (r *Repo) Create(ctx context.Context, d domain.Delivery, ev domain.StatusEvent) error {
	_ = ctx
	if d.ID == "" {
		return deliveryrepo.ErrAlreadyExists
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[d.ID]; ok {
		return deliveryrepo.ErrAlreadyExists
	}
	r.byID[d.ID] = cloneDelivery(d)
	ev.DeliveryID = d.ID
	r.events[d.ID] = append(r.events[d.ID], ev)
	return nil
}

func (r *Repo) UpdateIfStatus(ctx context.Context, d domain.Delivery, expected domain.DeliveryStatus, ev domain.StatusEvent) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.byID[d.ID]
	if !ok {
		return deliveryrepo.ErrNotFound
	}
	if cur.Status != expected {
		return deliveryrepo.ErrStatusConflict
	}
	// requestedAt and ownership are immutable after creation.
	d.RequestedAt = cur.RequestedAt
	d.StudentID = cur.StudentID
	d.StudentName = cur.StudentName

	r.byID[d.ID] = cloneDelivery(d)
	ev.DeliveryID = d.ID
	r.events[d.ID] = append(r.events[d.ID], ev)
	return nil
}

func (r *Repo) Get(ctx context.Context, id domain.DeliveryID) (domain.Delivery, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byID[id]
	if !ok {
		return domain.Delivery{}, deliveryrepo.ErrNotFound
	}
	return cloneDelivery(d), nil
}

func (r *Repo) List(ctx context.Context, f deliveryrepo.Filter) ([]domain.Delivery, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Delivery, 0, len(r.byID))
	for _, d := range r.byID {
		if !f.Matches(d) {
			continue
		}
		out = append(out, cloneDelivery(d))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RequestedAt.Equal(out[j].RequestedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].RequestedAt.Before(out[j].RequestedAt)
	})
	return out, nil
}

func (r *Repo) ListEvents(ctx context.Context, id domain.DeliveryID) ([]domain.StatusEvent, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.byID[id]; !ok {
		return nil, deliveryrepo.ErrNotFound
	}
	return append([]domain.StatusEvent(nil), r.events[id]...), nil
}

func cloneDelivery(d domain.Delivery) domain.Delivery {
	out := d
	if d.PersonnelID != nil {
		v := *d.PersonnelID
		out.PersonnelID = &v
	}
	out.PersonnelName = cloneStringPtr(d.PersonnelName)
	out.Notes = cloneStringPtr(d.Notes)
	out.ContactPhone = cloneStringPtr(d.ContactPhone)
	return out
}

func cloneStringPtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
