package domain

import (
	"errors"
	"net/mail"
	"strings"
)

// NormalizeHumanName trims leading/trailing whitespace and collapses internal whitespace runs.
// It is used for user, student and staff display names.
func NormalizeHumanName(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeEmail trims whitespace and lowercases the address. Email uniqueness is
// case-insensitive everywhere, so stores key on the normalized form.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizePlace trims a free-text campus location (source/destination).
func NormalizePlace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// ValidateEmail accepts only a bare address ("a@b.c"), not the "Name <a@b.c>" form.
func ValidateEmail(email string) error {
	if email == "" {
		return errors.New("must be non-empty")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return err
	}
	if addr.Address != email {
		return errors.New("must be a bare email address")
	}
	return nil
}
