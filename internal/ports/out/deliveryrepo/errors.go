package deliveryrepo

import "errors"

var (
	// ErrNotFound indicates the requested delivery does not exist.
	ErrNotFound = errors.New("delivery not found")

	// ErrAlreadyExists indicates a delivery already exists with the provided ID.
	ErrAlreadyExists = errors.New("delivery already exists")

	// ErrStatusConflict indicates the stored status no longer matches the expected status
	// of a compare-and-set update.
	ErrStatusConflict = errors.New("delivery status changed concurrently")
)
