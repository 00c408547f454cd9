package domain

import (
	"fmt"
	"time"
)

// DeliveryStatus is the lifecycle state of a delivery. The string values are part of the
// public API and are stored verbatim.
type DeliveryStatus string

const (
	StatusRequested DeliveryStatus = "Requested"
	StatusAccepted  DeliveryStatus = "Accepted"
	StatusPickedUp  DeliveryStatus = "Picked Up"
	StatusEnRoute   DeliveryStatus = "En Route"
	StatusDelivered DeliveryStatus = "Delivered"
	StatusRejected  DeliveryStatus = "Rejected"
)

// AllStatuses lists every status in lifecycle order. Rejected comes last.
var AllStatuses = []DeliveryStatus{
	StatusRequested,
	StatusAccepted,
	StatusPickedUp,
	StatusEnRoute,
	StatusDelivered,
	StatusRejected,
}

// ParseDeliveryStatus converts an API/storage string into a DeliveryStatus.
func ParseDeliveryStatus(s string) (DeliveryStatus, bool) {
	for _, st := range AllStatuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

// IsTerminal reports whether no transition may leave s.
func (s DeliveryStatus) IsTerminal() bool {
	return s == StatusDelivered || s == StatusRejected
}

// IsActive reports whether a delivery in status s is still in progress.
func (s DeliveryStatus) IsActive() bool {
	return !s.IsTerminal()
}

// Next returns the single success-path successor of s.
// Requested has no "next" here: leaving Requested requires an accept or reject decision.
func (s DeliveryStatus) Next() (DeliveryStatus, bool) {
	switch s {
	case StatusAccepted:
		return StatusPickedUp, true
	case StatusPickedUp:
		return StatusEnRoute, true
	case StatusEnRoute:
		return StatusDelivered, true
	}
	return "", false
}

// RequiresPersonnel reports whether a delivery in status s must have assigned personnel.
func (s DeliveryStatus) RequiresPersonnel() bool {
	switch s {
	case StatusAccepted, StatusPickedUp, StatusEnRoute, StatusDelivered:
		return true
	}
	return false
}

var allowedTransitions = map[DeliveryStatus][]DeliveryStatus{
	StatusRequested: {StatusAccepted, StatusRejected},
	StatusAccepted:  {StatusPickedUp},
	StatusPickedUp:  {StatusEnRoute},
	StatusEnRoute:   {StatusDelivered},
}

// TransitionError describes a disallowed (from, to) pair.
type TransitionError struct {
	From DeliveryStatus
	To   DeliveryStatus
}

func (e *TransitionError) Error() string {
	if e.From.IsTerminal() {
		return fmt.Sprintf("delivery is %s and cannot change status", e.From)
	}
	return fmt.Sprintf("cannot move delivery from %s to %s", e.From, e.To)
}

// CheckTransition validates a single lifecycle step. It rejects unknown statuses, skips,
// backward moves, self-transitions and anything leaving a terminal state.
func CheckTransition(from, to DeliveryStatus) error {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return nil
		}
	}
	return &TransitionError{From: from, To: to}
}

// Delivery is a single tracked request with a lifecycle status, route and optional
// assigned personnel.
//
// PersonnelID and PersonnelName are nil while the delivery is Requested and are always set
// together.
type Delivery struct {
	ID            DeliveryID
	StudentID     UserID
	StudentName   string
	PersonnelID   *UserID
	PersonnelName *string

	Source      string
	Destination string
	Status      DeliveryStatus

	RequestedAt time.Time
	UpdatedAt   time.Time

	Notes        *string
	ContactPhone *string
}

// IsAssignedTo reports whether the delivery is assigned to the given personnel user.
func (d Delivery) IsAssignedTo(id UserID) bool {
	return d.PersonnelID != nil && *d.PersonnelID == id
}

// StatusEvent is one entry in a delivery's status history. From is empty for the
// creation event.
type StatusEvent struct {
	DeliveryID DeliveryID
	From       DeliveryStatus
	To         DeliveryStatus
	ActorID    UserID
	ActorName  string
	Override   bool
	At         time.Time
}

// DeliveryStats is the aggregate shown to admins.
type DeliveryStats struct {
	Total     int
	Active    int
	Completed int
	Pending   int
	Rejected  int
	ByStatus  map[DeliveryStatus]int
}

// ComputeDeliveryStats aggregates a delivery list in one pass.
func ComputeDeliveryStats(ds []Delivery) DeliveryStats {
	st := DeliveryStats{ByStatus: make(map[DeliveryStatus]int, len(AllStatuses))}
	for _, s := range AllStatuses {
		st.ByStatus[s] = 0
	}
	for _, d := range ds {
		st.Total++
		st.ByStatus[d.Status]++
		switch {
		case d.Status == StatusDelivered:
			st.Completed++
		case d.Status == StatusRejected:
			st.Rejected++
		}
		if d.Status.IsActive() {
			st.Active++
		}
		if d.Status == StatusRequested {
			st.Pending++
		}
	}
	return st
}
