package rbac

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/pms-suite/pms/internal/platform/httpx"
	"github.com/pms-suite/pms/internal/shared"
)

// LoginPath is where unauthenticated page requests are sent.
const LoginPath = "/auth/login"

// Middleware gates route groups and stores the resolved Identity in the
// request context. Services still enforce per-operation checks.
type Middleware struct {
	Guard  *Guard
	Logger *slog.Logger
}

// RequireSignedIn admits any active user.
func (m Middleware) RequireSignedIn() func(http.Handler) http.Handler {
	return m.require("", false)
}

// RequireAccess admits users whose role reaches resource, whatever the power.
func (m Middleware) RequireAccess(resource Resource) func(http.Handler) http.Handler {
	return m.require(resource, true)
}

func (m Middleware) require(resource Resource, check bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, _ := shared.CurrentUserID(r.Context())
			id, err := m.Guard.Identify(r.Context(), userID)
			if err == nil && check {
				err = m.Guard.Check(id, resource, OpAny)
			}
			if err != nil {
				m.deny(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), id)))
		})
	}
}

func (m Middleware) deny(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, httpx.ErrUnauthorized):
		if !wantsJSON(r) && (r.Method == http.MethodGet || r.Method == http.MethodHead) {
			http.Redirect(w, r, LoginPath, http.StatusSeeOther)
			return
		}
	case errors.Is(err, httpx.ErrForbidden):
	default:
		if m.Logger != nil {
			m.Logger.Error("rbac resolve identity", slog.Any("error", err), slog.String("path", r.URL.Path))
		}
	}
	if wantsJSON(r) {
		httpx.RespondError(w, err)
		return
	}
	status := httpx.StatusFor(err)
	http.Error(w, http.StatusText(status), status)
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json") ||
		strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}
