package staff

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

func staffNotFound(id string) error {
	return &Error{
		Status:  404,
		Code:    "STAFF_NOT_FOUND",
		Message: "staff member not found",
		Details: map[string]any{"staffId": id},
	}
}

func validation(field, message string) error {
	return &Error{
		Status:  422,
		Code:    "VALIDATION_ERROR",
		Message: "invalid " + field,
		Details: map[string]any{field: message},
	}
}

func emailTaken(email string) error {
	return &Error{
		Status:  409,
		Code:    "EMAIL_ALREADY_EXISTS",
		Message: "email already exists",
		Details: map[string]any{"email": email},
	}
}
