package shared

import (
	"errors"

	"github.com/voltparts/storefront/internal/platform/httpx"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = httpx.ErrNotFound
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)

// UserSafeMessage returns a message suitable for display to shoppers.
func UserSafeMessage(err error) string {
	var fields httpx.FieldErrors
	switch {
	case err == nil:
		return ""
	case errors.As(err, &fields):
		return fields.Error()
	case errors.Is(err, httpx.ErrNotFound):
		return "The requested item does not exist."
	case errors.Is(err, ErrInvalidCredentials):
		return "Email or password is incorrect."
	case errors.Is(err, httpx.ErrValidation):
		return "Some fields are invalid."
	default:
		return "Something went wrong. Please try again."
	}
}
