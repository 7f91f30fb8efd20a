// Package viewtest serves page handlers behind a Redis-backed session so
// handler tests see the same flash, CSRF and identity plumbing as the app.
package viewtest

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/pms-suite/pms/internal/shared"
	"github.com/pms-suite/pms/internal/view"
)

// Harness routes requests to mounted handlers.
type Harness struct {
	Pages    view.Responder
	Sessions *shared.SessionManager
	Router   chi.Router
}

// New builds a Harness over miniredis and the embedded templates.
func New(t testing.TB) *Harness {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	templates, err := view.NewEngine()
	require.NoError(t, err)
	return &Harness{
		Pages:    view.Responder{Templates: templates, CSRF: shared.NewCSRFManager("test-csrf-secret")},
		Sessions: shared.NewSessionManager(client, "pms_session", time.Hour, false),
		Router:   chi.NewRouter(),
	}
}

// Result is a served request and the session it ran in.
type Result struct {
	*httptest.ResponseRecorder
	Session *shared.Session
}

// Flash pops the flash message queued by the handler, if any.
func (r Result) Flash() *shared.FlashMessage {
	return r.Session.PopFlash()
}

// Do serves one request signed in as userID. Zero sends an anonymous
// request; a non-nil form is posted url-encoded.
func (h *Harness) Do(t testing.TB, userID int64, method, target string, form url.Values) Result {
	t.Helper()
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	sess, err := h.Sessions.Load(req.Context(), req)
	require.NoError(t, err)
	if userID != 0 {
		sess.SetUserID(userID)
	}
	ctx := shared.ContextWithSession(req.Context(), sess)
	rec := httptest.NewRecorder()
	h.Router.ServeHTTP(rec, req.WithContext(ctx))
	require.NoError(t, h.Sessions.Commit(ctx, rec, sess))
	return Result{ResponseRecorder: rec, Session: sess}
}

// Get is Do with GET and no body.
func (h *Harness) Get(t testing.TB, userID int64, target string) Result {
	t.Helper()
	return h.Do(t, userID, http.MethodGet, target, nil)
}

// Post is Do with POST and form.
func (h *Harness) Post(t testing.TB, userID int64, target string, form url.Values) Result {
	t.Helper()
	if form == nil {
		form = url.Values{}
	}
	return h.Do(t, userID, http.MethodPost, target, form)
}
