package deliveries

import (
	"errors"
	"fmt"

	"github.com/campus-logistics/delivery-tracker-api/internal/domain"
)

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

func notFound(id domain.DeliveryID) error {
	return &Error{
		Status:  404,
		Code:    "DELIVERY_NOT_FOUND",
		Message: "delivery not found",
		Details: map[string]any{"deliveryId": string(id)},
	}
}

func conflict(id domain.DeliveryID) error {
	return &Error{
		Status:  409,
		Code:    "DELIVERY_CONFLICT",
		Message: "delivery was modified concurrently; reload and retry",
		Details: map[string]any{"deliveryId": string(id)},
	}
}

func invalidTransition(err error) error {
	var te *domain.TransitionError
	if errors.As(err, &te) {
		return &Error{
			Status:  409,
			Code:    "INVALID_TRANSITION",
			Message: te.Error(),
			Details: map[string]any{"from": string(te.From), "to": string(te.To)},
		}
	}
	return &Error{Status: 409, Code: "INVALID_TRANSITION", Message: err.Error()}
}

func validation(field, message string) error {
	return &Error{
		Status:  422,
		Code:    "VALIDATION_ERROR",
		Message: "invalid " + field,
		Details: map[string]any{field: message},
	}
}

func personnelNotFound(id domain.UserID) error {
	return &Error{
		Status:  404,
		Code:    "PERSONNEL_NOT_FOUND",
		Message: fmt.Sprintf("no personnel account %q", id),
		Details: map[string]any{"personnelId": string(id)},
	}
}

func personnelInactive(id domain.UserID) error {
	return &Error{
		Status:  409,
		Code:    "PERSONNEL_INACTIVE",
		Message: "personnel is not active on the staff roster",
		Details: map[string]any{"personnelId": string(id)},
	}
}
