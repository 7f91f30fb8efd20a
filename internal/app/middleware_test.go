package app

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pms-suite/pms/internal/shared"
)

func sessionStack(t *testing.T) http.Handler {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sm := shared.NewSessionManager(client, "pms_test", time.Hour, false)
	csrf := shared.NewCSRFManager("secret")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			_, _ = io.WriteString(w, csrf.EnsureToken(shared.SessionFromContext(r.Context())))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	return SessionMiddleware(sm, logger)(CSRFMiddleware(csrf, logger)(inner))
}

func TestCSRFRoundTrip(t *testing.T) {
	h := sessionStack(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	token := rec.Body.String()
	require.NotEmpty(t, token)

	post := func(header, form string) int {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		if header != "" {
			req.Header.Set(shared.CSRFHeader, header)
		}
		for _, c := range cookies {
			req.AddCookie(c)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusNoContent, post(token, ""))
	assert.Equal(t, http.StatusNoContent, post("", "csrf_token="+token))
	assert.Equal(t, http.StatusForbidden, post("", ""))
	assert.Equal(t, http.StatusForbidden, post("wrong", ""))
}

func TestCSRFRejectsFreshSession(t *testing.T) {
	h := sessionStack(t)
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set(shared.CSRFHeader, "anything")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
