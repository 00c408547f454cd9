package authz

import (
	"fmt"

	"github.com/campus-logistics/delivery-tracker-api/internal/domain"
)

// Op names an action that is gated by role.
type Op string

const (
	OpCreateDelivery  Op = "create_delivery"
	OpAcceptDelivery  Op = "accept_delivery"
	OpRejectDelivery  Op = "reject_delivery"
	OpAdvanceDelivery Op = "advance_delivery"
	OpUpdateStatus    Op = "update_status"
	OpOverrideStatus  Op = "override_status"
	OpViewOwn         Op = "view_own"
	OpViewAll         Op = "view_all"
	OpViewStats       Op = "view_stats"
	OpExport          Op = "export"
	OpManageStaff     Op = "manage_staff"
)

var policy = map[Op][]domain.Role{
	OpCreateDelivery:  {domain.RoleStudent, domain.RoleAdmin},
	OpAcceptDelivery:  {domain.RolePersonnel, domain.RoleAdmin},
	OpRejectDelivery:  {domain.RolePersonnel, domain.RoleAdmin},
	OpAdvanceDelivery: {domain.RolePersonnel, domain.RoleAdmin},
	OpUpdateStatus:    {domain.RolePersonnel, domain.RoleAdmin},
	OpOverrideStatus:  {domain.RoleAdmin},
	OpViewOwn:         {domain.RoleStudent, domain.RolePersonnel, domain.RoleAdmin},
	OpViewAll:         {domain.RoleAdmin},
	OpViewStats:       {domain.RoleAdmin},
	OpExport:          {domain.RoleAdmin},
	OpManageStaff:     {domain.RoleAdmin},
}

// Allowed reports whether role may perform op. Unknown ops are denied.
func Allowed(role domain.Role, op Op) bool {
	for _, r := range policy[op] {
		if r == role {
			return true
		}
	}
	return false
}

// Require returns a FORBIDDEN error unless actor's role may perform op.
func Require(actor domain.User, op Op) error {
	if Allowed(actor.Role, op) {
		return nil
	}
	return &Error{
		Status:  403,
		Code:    "FORBIDDEN",
		Message: fmt.Sprintf("role %q may not %s", actor.Role, op),
		Details: map[string]any{"operation": string(op), "role": string(actor.Role)},
	}
}

// CanView reports whether actor may read d. Students see their own requests; personnel see
// open requests and deliveries assigned to them; admins see everything.
func CanView(actor domain.User, d domain.Delivery) bool {
	switch actor.Role {
	case domain.RoleAdmin:
		return true
	case domain.RoleStudent:
		return d.StudentID == actor.ID
	case domain.RolePersonnel:
		return d.Status == domain.StatusRequested || d.IsAssignedTo(actor.ID)
	}
	return false
}

// Forbidden builds a FORBIDDEN error with a custom message.
func Forbidden(message string) error {
	return &Error{Status: 403, Code: "FORBIDDEN", Message: message}
}

// Error is an application-layer error that can be mapped to an HTTP response.
type Error struct {
	Status  int
	Code    string
	Message string
	Details map[string]any
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	return e.Code
}
