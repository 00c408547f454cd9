package domain

// UserID identifies a login account (student, personnel or admin).
type UserID string

// DeliveryID identifies a delivery request.
type DeliveryID string

// StaffID identifies an entry on the staff roster. It is distinct from UserID:
// roster entries may exist without a login account.
type StaffID string

// SessionID identifies a persisted session record.
type SessionID string
