package staffrepo

import "errors"

var (
	// ErrNotFound indicates the requested staff member does not exist.
	ErrNotFound = errors.New("staff member not found")

	// ErrAlreadyExists indicates a staff member already exists with the provided ID, or a
	// second entry was linked to the same user.
	ErrAlreadyExists = errors.New("staff member already exists")
)
