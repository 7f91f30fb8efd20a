package projects_test

import (
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pms-suite/pms/internal/projects"
	"github.com/pms-suite/pms/internal/rbac"
	"github.com/pms-suite/pms/internal/shared"
	"github.com/pms-suite/pms/internal/view/viewtest"
	_ "github.com/pms-suite/pms/testing"
)

func newProjectHarness(t *testing.T) (*viewtest.Harness, *stubRepo) {
	t.Helper()
	svc, repo, _ := fixture(t)
	h := viewtest.New(t)
	handler := projects.NewHandler(h.Pages, svc, rbac.Middleware{Guard: projectGuard()})
	h.Router.Route("/projects", handler.MountRoutes)
	return h, repo
}

func TestHandlerMemberGetsBareForbidden(t *testing.T) {
	h, _ := newProjectHarness(t)

	for _, target := range []string{"/projects", "/projects/1", "/projects/404"} {
		res := h.Get(t, memberOne, target)
		assert.Equal(t, http.StatusForbidden, res.Code, target)
		assert.Equal(t, "Forbidden", strings.TrimSpace(res.Body.String()), target)
	}
}

func TestHandlerListShowsOwnDepartment(t *testing.T) {
	h, _ := newProjectHarness(t)

	res := h.Get(t, leaderOne, "/projects")
	require.Equal(t, http.StatusOK, res.Code)
	body := res.Body.String()
	assert.Contains(t, body, `href="/projects/1"`)
	assert.Contains(t, body, `href="/projects/5"`)
	assert.NotContains(t, body, `href="/projects/2"`)
	assert.Contains(t, body, `href="/projects/new"`)
}

func TestHandlerForeignAndMissingProjectsLookTheSame(t *testing.T) {
	h, _ := newProjectHarness(t)

	foreign := h.Get(t, leaderOne, "/projects/2")
	missing := h.Get(t, leaderOne, "/projects/404")
	assert.Equal(t, http.StatusForbidden, foreign.Code)
	assert.Equal(t, http.StatusForbidden, missing.Code)
	assert.Contains(t, foreign.Body.String(), "Forbidden")
	assert.Contains(t, missing.Body.String(), "Forbidden")

	assert.Equal(t, http.StatusNotFound, h.Get(t, admin, "/projects/404").Code)
}

func TestHandlerCreateRedirectsWithFlash(t *testing.T) {
	h, repo := newProjectHarness(t)

	res := h.Post(t, leaderOne, "/projects", url.Values{
		"name":          {"Launch"},
		"department_id": {"1"},
		"start_date":    {"2026-03-01"},
	})

	require.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/projects/6", res.Header().Get("Location"))
	flash := res.Flash()
	require.NotNil(t, flash)
	assert.Equal(t, "Project created and waiting for approval", flash.Message)
	assert.Equal(t, "Launch", repo.projects[6].Name)
}

func TestHandlerCreateInOtherDepartmentIsForbidden(t *testing.T) {
	h, repo := newProjectHarness(t)

	res := h.Post(t, leaderOne, "/projects", url.Values{"name": {"Elsewhere"}, "department_id": {"2"}})

	assert.Equal(t, http.StatusForbidden, res.Code)
	assert.NotContains(t, repo.projects, int64(6))
}

func TestHandlerApprovalNeedsApprover(t *testing.T) {
	h, repo := newProjectHarness(t)

	res := h.Post(t, leaderOne, "/projects/1/approve", url.Values{"note": {"ok"}})
	assert.Equal(t, http.StatusForbidden, res.Code)
	assert.Equal(t, shared.ApprovalPending, repo.projects[1].Approval)

	res = h.Post(t, headOne, "/projects/1/approve", url.Values{"note": {"ok"}})
	require.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/projects/1", res.Header().Get("Location"))
	flash := res.Flash()
	require.NotNil(t, flash)
	assert.Equal(t, "Project approved", flash.Message)
	assert.Equal(t, shared.ApprovalApproved, repo.projects[1].Approval)
}
