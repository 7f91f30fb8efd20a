package projects_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pms-suite/pms/internal/platform/httpx"
	"github.com/pms-suite/pms/internal/projects"
	"github.com/pms-suite/pms/internal/rbac"
	"github.com/pms-suite/pms/internal/rbac/rbactest"
	"github.com/pms-suite/pms/internal/shared"
)

type stubRepo struct {
	projects  map[int64]projects.Project
	nextID    int64
	lastScope rbac.Scope
	lastLimit int
	deleted   []int64
}

func (s *stubRepo) List(ctx context.Context, filter projects.ListFilter, scope rbac.Scope) ([]projects.Project, error) {
	s.lastScope = scope
	s.lastLimit = filter.Page.FetchLimit()
	var out []projects.Project
	for id := s.nextID; id > 0; id-- {
		p, ok := s.projects[id]
		if !ok || (filter.Page.After > 0 && id >= filter.Page.After) {
			continue
		}
		if scope.AllowsDepartment(&p.DepartmentID) {
			out = append(out, p)
		}
		if len(out) == s.lastLimit {
			break
		}
	}
	return out, nil
}

func (s *stubRepo) Get(ctx context.Context, id int64) (projects.Project, error) {
	p, ok := s.projects[id]
	if !ok {
		return projects.Project{}, projects.ErrNotFound
	}
	return p, nil
}

func (s *stubRepo) Create(ctx context.Context, in projects.Input, createdBy int64) (projects.Project, error) {
	s.nextID++
	p := projects.Project{ID: s.nextID, Name: in.Name, DepartmentID: in.DepartmentID, Status: in.Status, Approval: shared.ApprovalPending, CreatedBy: createdBy}
	s.projects[p.ID] = p
	return p, nil
}

func (s *stubRepo) Update(ctx context.Context, id int64, in projects.Input) (projects.Project, error) {
	p := s.projects[id]
	p.Name, p.DepartmentID, p.Status = in.Name, in.DepartmentID, in.Status
	s.projects[id] = p
	return p, nil
}

func (s *stubRepo) Delete(ctx context.Context, id int64) error {
	s.deleted = append(s.deleted, id)
	delete(s.projects, id)
	return nil
}

func (s *stubRepo) SetApproval(ctx context.Context, id int64, status shared.ApprovalStatus) error {
	p := s.projects[id]
	p.Approval = status
	s.projects[id] = p
	return nil
}

func (s *stubRepo) Departments(ctx context.Context, scope rbac.Scope) ([]projects.Department, error) {
	s.lastScope = scope
	return nil, nil
}

type memoryApprovals struct{ logs []shared.ApprovalLog }

func (m *memoryApprovals) Record(ctx context.Context, log shared.ApprovalLog) error {
	m.logs = append(m.logs, log)
	return nil
}

func (m *memoryApprovals) List(ctx context.Context, module string, ref int64) ([]shared.ApprovalLog, error) {
	var out []shared.ApprovalLog
	for _, l := range m.logs {
		if l.Module == module && l.RefID == ref {
			out = append(out, l)
		}
	}
	return out, nil
}

const (
	admin          = 1
	headOne        = 2
	leaderOne      = 3
	leaderTwo      = 4
	memberOne      = 5
	leaderWatching = 6
)

func fixture(t *testing.T) (*projects.Service, *stubRepo, *memoryApprovals) {
	t.Helper()
	repo := &stubRepo{projects: map[int64]projects.Project{}}
	for i := int64(1); i <= 5; i++ {
		dept := int64(1)
		if i%2 == 0 {
			dept = 2
		}
		repo.projects[i] = projects.Project{ID: i, Name: "p", DepartmentID: dept, Status: projects.StatusActive, Approval: shared.ApprovalPending}
	}
	repo.nextID = 5
	approvals := &memoryApprovals{}
	return projects.NewService(repo, projectGuard(), approvals, shared.NopAudit{}, nil), repo, approvals
}

func projectGuard() *rbac.Guard {
	return rbactest.Guard(
		rbac.Identity{UserID: admin, Role: rbac.RoleAdmin, Power: rbac.PowerFull},
		rbac.Identity{UserID: headOne, Role: rbac.RoleDepartmentHead, Power: rbac.PowerFull, DepartmentID: rbactest.Dept(1)},
		rbac.Identity{UserID: leaderOne, Role: rbac.RoleGroupLeader, Power: rbac.PowerFull, DepartmentID: rbactest.Dept(1)},
		rbac.Identity{UserID: leaderTwo, Role: rbac.RoleGroupLeader, Power: rbac.PowerFull, DepartmentID: rbactest.Dept(2)},
		rbac.Identity{UserID: memberOne, Role: rbac.RoleMember, Power: rbac.PowerFull, DepartmentID: rbactest.Dept(1)},
		rbac.Identity{UserID: leaderWatching, Role: rbac.RoleGroupLeader, Power: rbac.PowerMonitoring, DepartmentID: rbactest.Dept(1)},
	)
}

func TestListScopesAndPaginates(t *testing.T) {
	svc, repo, _ := fixture(t)
	ctx := context.Background()

	page, err := svc.List(ctx, leaderOne, projects.ListFilter{Page: shared.CursorPage{Limit: 2}})
	require.NoError(t, err)
	assert.Equal(t, rbac.ScopeDepartment, repo.lastScope.Kind)
	require.Len(t, page.Projects, 2)
	assert.Equal(t, int64(5), page.Projects[0].ID)
	assert.Equal(t, int64(3), page.Projects[1].ID)
	require.NotEmpty(t, page.Next)

	next, err := svc.List(ctx, leaderOne, projects.ListFilter{Page: shared.CursorPage{Limit: 2, After: shared.DecodeCursor(page.Next)}})
	require.NoError(t, err)
	require.Len(t, next.Projects, 1)
	assert.Equal(t, int64(1), next.Projects[0].ID)
	assert.Empty(t, next.Next)

	all, err := svc.List(ctx, admin, projects.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, all.Projects, 5)

	_, err = svc.List(ctx, memberOne, projects.ListFilter{})
	assert.ErrorIs(t, err, rbac.ErrForbidden)
}

func TestGetRespectsDepartment(t *testing.T) {
	svc, _, _ := fixture(t)
	ctx := context.Background()

	_, err := svc.Get(ctx, leaderOne, 2)
	assert.ErrorIs(t, err, rbac.ErrForbidden)
	_, err = svc.Get(ctx, leaderOne, 404)
	assert.ErrorIs(t, err, rbac.ErrForbidden)
	_, err = svc.Get(ctx, admin, 404)
	assert.ErrorIs(t, err, httpx.ErrNotFound)

	p, err := svc.Get(ctx, leaderTwo, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), p.DepartmentID)
}

func TestCreateChecksPowerAndDepartment(t *testing.T) {
	svc, _, _ := fixture(t)
	ctx := context.Background()

	p, err := svc.Create(ctx, leaderOne, projects.Input{Name: "Launch", DepartmentID: 1})
	require.NoError(t, err)
	assert.Equal(t, projects.StatusPlanning, p.Status)
	assert.Equal(t, shared.ApprovalPending, p.Approval)
	assert.Equal(t, int64(leaderOne), p.CreatedBy)

	_, err = svc.Create(ctx, leaderOne, projects.Input{Name: "Elsewhere", DepartmentID: 2})
	assert.ErrorIs(t, err, rbac.ErrForbidden)

	_, err = svc.Create(ctx, leaderWatching, projects.Input{Name: "Watch", DepartmentID: 1})
	assert.ErrorIs(t, err, rbac.ErrForbidden)

	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, -1)
	_, err = svc.Create(ctx, admin, projects.Input{Name: "Backwards", DepartmentID: 1, StartDate: &start, EndDate: &end})
	require.ErrorIs(t, err, httpx.ErrValidation)
	assert.Contains(t, shared.FieldErrors(err), "EndDate")
}

func TestUpdateAndDeleteStayInScope(t *testing.T) {
	svc, repo, _ := fixture(t)
	ctx := context.Background()

	_, err := svc.Update(ctx, leaderOne, 2, projects.Input{Name: "x", DepartmentID: 2})
	assert.ErrorIs(t, err, rbac.ErrForbidden)
	_, err = svc.Update(ctx, leaderOne, 1, projects.Input{Name: "moved", DepartmentID: 2})
	assert.ErrorIs(t, err, rbac.ErrForbidden)

	assert.ErrorIs(t, svc.Delete(ctx, leaderOne, 2), rbac.ErrForbidden)
	assert.ErrorIs(t, svc.Delete(ctx, leaderWatching, 1), rbac.ErrForbidden)
	assert.Empty(t, repo.deleted)

	require.NoError(t, svc.Delete(ctx, leaderOne, 1))
	assert.Equal(t, []int64{1}, repo.deleted)
}

func TestApproval(t *testing.T) {
	svc, repo, approvals := fixture(t)
	ctx := context.Background()

	_, err := svc.Approve(ctx, leaderOne, 1, "")
	assert.ErrorIs(t, err, rbac.ErrForbidden, "group leaders cannot approve projects")

	_, err = svc.Approve(ctx, headOne, 2, "")
	assert.ErrorIs(t, err, rbac.ErrForbidden, "other department")

	p, err := svc.Approve(ctx, headOne, 1, " looks good ")
	require.NoError(t, err)
	assert.Equal(t, shared.ApprovalApproved, p.Approval)
	assert.Equal(t, shared.ApprovalApproved, repo.projects[1].Approval)

	p, err = svc.Reject(ctx, admin, 2, "")
	require.NoError(t, err)
	assert.Equal(t, shared.ApprovalRejected, p.Approval)

	history, err := svc.History(ctx, headOne, 1)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "looks good", history[0].Note)
	assert.Equal(t, shared.ApprovalApprove, history[0].Action)
	assert.Len(t, approvals.logs, 2)
}
