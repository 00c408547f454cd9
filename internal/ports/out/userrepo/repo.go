package userrepo

import (
	"context"
	"time"

	"github.com/campus-logistics/delivery-tracker-api/internal/domain"
)

// User is the persistence shape used by the user repository. Unlike domain.User it carries
// the password hash, so it must never be serialized to clients or sessions.
type User struct {
	ID domain.UserID
	// Email is stored normalized (see domain.NormalizeEmail).
	Email string
	Name  string
	Role  domain.Role

	PasswordHash []byte

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Public strips credentials.
func (u User) Public() domain.User {
	return domain.User{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role}
}

// Repository provides access to persisted login accounts.
//
// Result ordering expectations:
// - List returns users ordered by Name ascending (case-insensitive), then ID.
type Repository interface {
	Create(ctx context.Context, u User) error
	Update(ctx context.Context, u User) error
	// Delete removes an account; deleting a missing id returns ErrNotFound.
	Delete(ctx context.Context, id domain.UserID) error

	GetByID(ctx context.Context, id domain.UserID) (User, error)
	// GetByEmail matches on the normalized email.
	GetByEmail(ctx context.Context, email string) (User, error)

	// List returns users with the given role; an empty role lists everyone.
	List(ctx context.Context, role domain.Role) ([]User, error)
}
