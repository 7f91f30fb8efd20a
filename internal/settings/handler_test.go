package settings_test

import (
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pms-suite/pms/internal/rbac"
	"github.com/pms-suite/pms/internal/settings"
	"github.com/pms-suite/pms/internal/view/viewtest"
	_ "github.com/pms-suite/pms/testing"
)

func newSettingsHarness(t *testing.T) (*viewtest.Harness, *stubRepo) {
	t.Helper()
	svc, repo := fixture(t)
	h := viewtest.New(t)
	handler := settings.NewHandler(h.Pages, svc, rbac.Middleware{Guard: settingsGuard()})
	h.Router.Route("/settings", handler.MountRoutes)
	return h, repo
}

func TestHandlerGroupLeaderGetsBareForbidden(t *testing.T) {
	h, _ := newSettingsHarness(t)

	res := h.Get(t, leaderOne, "/settings")
	assert.Equal(t, http.StatusForbidden, res.Code)
	assert.Equal(t, "Forbidden", strings.TrimSpace(res.Body.String()))
}

func TestHandlerDepartmentHeadSeesOwnLabelsOnly(t *testing.T) {
	h, _ := newSettingsHarness(t)

	res := h.Get(t, headOne, "/settings")
	require.Equal(t, http.StatusOK, res.Code)
	body := res.Body.String()
	assert.Contains(t, body, `value="design"`)
	assert.NotContains(t, body, `value="legal"`)
	assert.NotContains(t, body, `action="/settings/workspace"`)

	res = h.Get(t, admin, "/settings")
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), `action="/settings/workspace"`)
	assert.Contains(t, res.Body.String(), `value="Acme"`)
}

func TestHandlerWorkspaceIsAdminOnly(t *testing.T) {
	h, repo := newSettingsHarness(t)

	res := h.Post(t, headOne, "/settings/workspace", url.Values{settings.KeyWorkspaceName: {"Taken"}})
	assert.Equal(t, http.StatusForbidden, res.Code)
	assert.Equal(t, "Acme", repo.values[settings.KeyWorkspaceName])

	res = h.Post(t, admin, "/settings/workspace", url.Values{
		settings.KeyWorkspaceName: {"Globex"},
		settings.KeyWeekStart:     {"sunday"},
	})
	require.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/settings", res.Header().Get("Location"))
	flash := res.Flash()
	require.NotNil(t, flash)
	assert.Equal(t, "Workspace settings saved", flash.Message)
	assert.Equal(t, "Globex", repo.values[settings.KeyWorkspaceName])
	assert.Equal(t, "sunday", repo.values[settings.KeyWeekStart])
}

func TestHandlerCreateLabelRedirectsWithFlash(t *testing.T) {
	h, repo := newSettingsHarness(t)

	res := h.Post(t, headOne, "/settings/labels", url.Values{"name": {"ux"}, "color": {"#123456"}})

	require.Equal(t, http.StatusSeeOther, res.Code)
	flash := res.Flash()
	require.NotNil(t, flash)
	assert.Equal(t, "Label created", flash.Message)
	created := repo.labels[4]
	require.NotNil(t, created.DepartmentID)
	assert.Equal(t, int64(1), *created.DepartmentID)
}

func TestHandlerLabelValidationAndScope(t *testing.T) {
	h, repo := newSettingsHarness(t)

	res := h.Post(t, headOne, "/settings/labels", url.Values{"name": {"bad"}, "color": {"red"}})
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, res.Body.String(), "color must be a hex colour")
	assert.NotContains(t, repo.labels, int64(4))

	res = h.Post(t, headOne, "/settings/labels/3/delete", nil)
	assert.Equal(t, http.StatusForbidden, res.Code)
	assert.Contains(t, repo.labels, int64(3))

	res = h.Post(t, headWatch, "/settings/labels", url.Values{"name": {"watch"}, "color": {"#abcdef"}})
	assert.Equal(t, http.StatusForbidden, res.Code)
}
