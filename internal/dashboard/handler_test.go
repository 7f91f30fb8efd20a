package dashboard_test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pms-suite/pms/internal/dashboard"
	"github.com/pms-suite/pms/internal/rbac"
	"github.com/pms-suite/pms/internal/rbac/rbactest"
	"github.com/pms-suite/pms/internal/view/viewtest"
	_ "github.com/pms-suite/pms/testing"
)

func newHomeHarness(t *testing.T, repo *stubRepo) *viewtest.Harness {
	t.Helper()
	guard := rbactest.Guard(
		rbac.Identity{UserID: 1, Role: rbac.RoleAdmin, Power: rbac.PowerFull},
		rbac.Identity{UserID: 5, Role: rbac.RoleMember, Power: rbac.PowerMonitoring, DepartmentID: rbactest.Dept(1)},
	)
	h := viewtest.New(t)
	handler := dashboard.NewHandler(h.Pages, dashboard.NewService(repo, guard), rbac.Middleware{Guard: guard})
	handler.MountRoutes(h.Router)
	return h
}

func TestHandlerHomeShowsRoleCards(t *testing.T) {
	h := newHomeHarness(t, newRepo())

	member := h.Get(t, 5, "/")
	require.Equal(t, http.StatusOK, member.Code)
	body := member.Body.String()
	assert.Contains(t, body, "Assigned to me")
	assert.Contains(t, body, "1 of them are overdue.")
	assert.NotContains(t, body, `href="/projects"`)

	admin := h.Get(t, 1, "/")
	require.Equal(t, http.StatusOK, admin.Code)
	assert.Contains(t, admin.Body.String(), "Projects awaiting approval")
}

func TestHandlerHomeNeedsSignIn(t *testing.T) {
	h := newHomeHarness(t, newRepo())

	res := h.Get(t, 0, "/")
	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, rbac.LoginPath, res.Header().Get("Location"))
}

func TestHandlerHomeHidesStoreErrors(t *testing.T) {
	repo := newRepo()
	repo.fail = errors.New("db down")
	h := newHomeHarness(t, repo)

	res := h.Get(t, 1, "/")
	assert.Equal(t, http.StatusInternalServerError, res.Code)
	assert.NotContains(t, res.Body.String(), "db down")
}
