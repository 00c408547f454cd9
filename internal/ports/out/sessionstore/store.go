package sessionstore

import (
	"context"
	"errors"

	"github.com/campus-logistics/delivery-tracker-api/internal/domain"
)

// KeyPrefix namespaces persisted session records. The value stored under
// KeyPrefix+sessionID is the JSON-serialized domain.User.
const KeyPrefix = "campusDeliveryUser:"

// ErrNotFound indicates no live session exists for the id (never created, logged out or expired).
var ErrNotFound = errors.New("session not found")

// Store persists the current-user record of each session.
type Store interface {
	// Put writes (or overwrites) the session record. Records must stop being returned by
	// Get once s.ExpiresAt has passed.
	Put(ctx context.Context, s domain.Session) error
	Get(ctx context.Context, id domain.SessionID) (domain.Session, error)
	// Delete removes the record; deleting an unknown id is not an error.
	Delete(ctx context.Context, id domain.SessionID) error
}
