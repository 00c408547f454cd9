package userrepo

import "errors"

var (
	// ErrNotFound indicates the requested user does not exist.
	ErrNotFound = errors.New("user not found")

	// ErrAlreadyExists indicates a user already exists with the provided ID.
	ErrAlreadyExists = errors.New("user already exists")

	// ErrEmailTaken indicates another user already registered the (normalized) email.
	ErrEmailTaken = errors.New("user email already registered")
)
