package departments_test

import (
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pms-suite/pms/internal/departments"
	"github.com/pms-suite/pms/internal/rbac"
	"github.com/pms-suite/pms/internal/view/viewtest"
	_ "github.com/pms-suite/pms/testing"
)

func newDepartmentHarness(t *testing.T) (*viewtest.Harness, *stubRepo) {
	t.Helper()
	repo := newStubRepo()
	h := viewtest.New(t)
	handler := departments.NewHandler(h.Pages, newService(repo, &recordingAudit{}), rbac.Middleware{Guard: departmentGuard()})
	h.Router.Route("/departments", handler.MountRoutes)
	return h, repo
}

func TestHandlerNonAdminsAreTurnedAway(t *testing.T) {
	h, _ := newDepartmentHarness(t)

	for _, actor := range []int64{head, member} {
		res := h.Get(t, actor, "/departments")
		assert.Equal(t, http.StatusForbidden, res.Code)
		assert.Equal(t, "Forbidden", strings.TrimSpace(res.Body.String()))
	}
}

func TestHandlerCreateRedirectsWithFlash(t *testing.T) {
	h, repo := newDepartmentHarness(t)

	res := h.Post(t, adminFull, "/departments", url.Values{"name": {"Engineering"}})

	require.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/departments", res.Header().Get("Location"))
	flash := res.Flash()
	require.NotNil(t, flash)
	assert.Equal(t, "success", flash.Kind)
	assert.Equal(t, "Department Engineering created", flash.Message)
	require.Len(t, repo.items, 1)

	list := h.Get(t, adminMonitoring, "/departments")
	require.Equal(t, http.StatusOK, list.Code)
	assert.Contains(t, list.Body.String(), "Engineering")
}

func TestHandlerCreateValidationAndPower(t *testing.T) {
	h, repo := newDepartmentHarness(t)

	res := h.Post(t, adminFull, "/departments", url.Values{"name": {""}})
	assert.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, res.Body.String(), "name is required")

	res = h.Post(t, adminMonitoring, "/departments", url.Values{"name": {"Sales"}})
	assert.Equal(t, http.StatusForbidden, res.Code)
	assert.Nil(t, res.Flash())
	assert.Empty(t, repo.items)
}

func TestHandlerEditMissingDepartment(t *testing.T) {
	h, _ := newDepartmentHarness(t)

	assert.Equal(t, http.StatusNotFound, h.Get(t, adminFull, "/departments/8/edit").Code)
}
