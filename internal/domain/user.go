package domain

import "time"

// Role gates which views and actions are available to a user.
type Role string

const (
	RoleStudent   Role = "student"
	RolePersonnel Role = "personnel"
	RoleAdmin     Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RolePersonnel, RoleAdmin:
		return true
	}
	return false
}

// User is the public identity of an account. It never carries credentials and is the
// record serialized into a session.
type User struct {
	ID    UserID `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  Role   `json:"role"`
}

// Session is the current authenticated identity bound to a session id.
type Session struct {
	ID        SessionID
	User      User
	CreatedAt time.Time
	ExpiresAt time.Time
}
