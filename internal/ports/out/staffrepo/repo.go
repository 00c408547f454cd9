package staffrepo

import (
	"context"

	"github.com/campus-logistics/delivery-tracker-api/internal/domain"
)

// Repository persists the staff roster.
//
// Result ordering expectations:
// - List returns members ordered by CreatedAt ascending, then ID, matching roster order.
type Repository interface {
	Create(ctx context.Context, m domain.StaffMember) error
	Update(ctx context.Context, m domain.StaffMember) error

	GetByID(ctx context.Context, id domain.StaffID) (domain.StaffMember, error)
	GetByUserID(ctx context.Context, userID domain.UserID) (domain.StaffMember, error)

	List(ctx context.Context, includeInactive bool) ([]domain.StaffMember, error)
}
