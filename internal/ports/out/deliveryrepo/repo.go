package deliveryrepo

import (
	"context"

	"github.com/campus-logistics/delivery-tracker-api/internal/domain"
)

// Filter narrows List results. Zero-valued fields are ignored; Statuses matches any.
type Filter struct {
	StudentID   *domain.UserID
	PersonnelID *domain.UserID
	Statuses    []domain.DeliveryStatus
}

// Matches reports whether d passes the filter. Adapters that filter in memory use it so
// semantics stay identical across backends.
func (f Filter) Matches(d domain.Delivery) bool {
	if f.StudentID != nil && d.StudentID != *f.StudentID {
		return false
	}
	if f.PersonnelID != nil && !d.IsAssignedTo(*f.PersonnelID) {
		return false
	}
	if len(f.Statuses) > 0 {
		ok := false
		for _, s := range f.Statuses {
			if d.Status == s {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

// Repository owns the delivery list. Deliveries are never deleted.
//
// Result ordering expectations:
// - List returns deliveries ordered by RequestedAt ascending, then ID.
// - ListEvents returns events ordered by At ascending (insertion order for ties).
type Repository interface {
	// Create stores a new delivery together with its creation event.
	Create(ctx context.Context, d domain.Delivery, ev domain.StatusEvent) error

	// UpdateIfStatus replaces the stored delivery only if its current status equals
	// expected, and appends ev atomically with the update. It returns ErrStatusConflict
	// when the status moved underneath the caller.
	UpdateIfStatus(ctx context.Context, d domain.Delivery, expected domain.DeliveryStatus, ev domain.StatusEvent) error

	Get(ctx context.Context, id domain.DeliveryID) (domain.Delivery, error)
	List(ctx context.Context, f Filter) ([]domain.Delivery, error)

	ListEvents(ctx context.Context, id domain.DeliveryID) ([]domain.StatusEvent, error)
}
