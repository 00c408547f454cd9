package session

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

func invalidCredentials() error {
	return &Error{Status: 401, Code: "INVALID_CREDENTIALS", Message: "Invalid credentials"}
}

func unauthorized(message string) error {
	return &Error{Status: 401, Code: "UNAUTHORIZED", Message: message}
}

func emailAlreadyExists() error {
	return &Error{Status: 409, Code: "EMAIL_ALREADY_EXISTS", Message: "email already exists"}
}

func validation(field, message string) error {
	return &Error{
		Status:  422,
		Code:    "VALIDATION_ERROR",
		Message: "invalid " + field,
		Details: map[string]any{field: message},
	}
}
