package shared

import (
	"errors"

	"github.com/pms-suite/pms/internal/platform/httpx"
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

// UserSafeMessage converts an error into text that can be shown in a flash or
// form. Authorization failures collapse to a single word and unexpected errors
// never leak their text.
func UserSafeMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, httpx.ErrUnauthorized):
		return "Unauthorized"
	case errors.Is(err, httpx.ErrForbidden):
		return "Forbidden"
	case errors.Is(err, httpx.ErrValidation), errors.Is(err, httpx.ErrDuplicate), errors.Is(err, httpx.ErrNotFound):
		return err.Error()
	default:
		return "Something went wrong, please try again"
	}
}
