package milestones_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pms-suite/pms/internal/milestones"
	"github.com/pms-suite/pms/internal/platform/httpx"
	"github.com/pms-suite/pms/internal/rbac"
	"github.com/pms-suite/pms/internal/rbac/rbactest"
	"github.com/pms-suite/pms/internal/shared"
)

type stubRepo struct {
	projectDepts map[int64]int64
	milestones   map[int64]milestones.Milestone
	nextID       int64
}

func (s *stubRepo) ProjectDepartment(ctx context.Context, projectID int64) (int64, error) {
	dept, ok := s.projectDepts[projectID]
	if !ok {
		return 0, milestones.ErrProjectNotFound
	}
	return dept, nil
}

func (s *stubRepo) ListByProject(ctx context.Context, projectID int64) ([]milestones.Milestone, error) {
	var out []milestones.Milestone
	for id := int64(1); id <= s.nextID; id++ {
		if m, ok := s.milestones[id]; ok && m.ProjectID == projectID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *stubRepo) Get(ctx context.Context, id int64) (milestones.Milestone, error) {
	m, ok := s.milestones[id]
	if !ok {
		return milestones.Milestone{}, milestones.ErrNotFound
	}
	return m, nil
}

func (s *stubRepo) Create(ctx context.Context, projectID int64, in milestones.Input, createdBy int64) (milestones.Milestone, error) {
	s.nextID++
	m := milestones.Milestone{ID: s.nextID, ProjectID: projectID, DepartmentID: s.projectDepts[projectID], Title: in.Title, Status: in.Status, Approval: shared.ApprovalPending, CreatedBy: createdBy}
	s.milestones[m.ID] = m
	return m, nil
}

func (s *stubRepo) Update(ctx context.Context, id int64, in milestones.Input) (milestones.Milestone, error) {
	m := s.milestones[id]
	m.Title, m.Status = in.Title, in.Status
	s.milestones[id] = m
	return m, nil
}

func (s *stubRepo) Delete(ctx context.Context, id int64) error {
	delete(s.milestones, id)
	return nil
}

func (s *stubRepo) SetApproval(ctx context.Context, id int64, status shared.ApprovalStatus) error {
	m := s.milestones[id]
	m.Approval = status
	s.milestones[id] = m
	return nil
}

type memoryApprovals struct{ logs []shared.ApprovalLog }

func (m *memoryApprovals) Record(ctx context.Context, log shared.ApprovalLog) error {
	m.logs = append(m.logs, log)
	return nil
}

func (m *memoryApprovals) List(ctx context.Context, module string, ref int64) ([]shared.ApprovalLog, error) {
	return m.logs, nil
}

const (
	admin     = 1
	headOne   = 2
	leaderOne = 3
	leaderTwo = 4
	memberOne = 5
)

// Project 10 belongs to department 1, project 20 to department 2.
func fixture(t *testing.T) (*milestones.Service, *stubRepo, *memoryApprovals) {
	t.Helper()
	repo := &stubRepo{
		projectDepts: map[int64]int64{10: 1, 20: 2},
		milestones: map[int64]milestones.Milestone{
			1: {ID: 1, ProjectID: 10, DepartmentID: 1, Title: "Kickoff", Status: milestones.StatusOpen, Approval: shared.ApprovalPending},
			2: {ID: 2, ProjectID: 20, DepartmentID: 2, Title: "Beta", Status: milestones.StatusOpen, Approval: shared.ApprovalPending},
		},
		nextID: 2,
	}
	approvals := &memoryApprovals{}
	return milestones.NewService(repo, milestoneGuard(), approvals, shared.NopAudit{}, nil), repo, approvals
}

func milestoneGuard() *rbac.Guard {
	return rbactest.Guard(
		rbac.Identity{UserID: admin, Role: rbac.RoleAdmin, Power: rbac.PowerFull},
		rbac.Identity{UserID: headOne, Role: rbac.RoleDepartmentHead, Power: rbac.PowerFull, DepartmentID: rbactest.Dept(1)},
		rbac.Identity{UserID: leaderOne, Role: rbac.RoleGroupLeader, Power: rbac.PowerFull, DepartmentID: rbactest.Dept(1)},
		rbac.Identity{UserID: leaderTwo, Role: rbac.RoleGroupLeader, Power: rbac.PowerMonitoring, DepartmentID: rbactest.Dept(2)},
		rbac.Identity{UserID: memberOne, Role: rbac.RoleMember, Power: rbac.PowerFull, DepartmentID: rbactest.Dept(1)},
	)
}

func TestListByProjectFollowsProjectDepartment(t *testing.T) {
	svc, _, _ := fixture(t)
	ctx := context.Background()

	items, err := svc.ListByProject(ctx, leaderOne, 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Kickoff", items[0].Title)

	_, err = svc.ListByProject(ctx, leaderOne, 20)
	assert.ErrorIs(t, err, rbac.ErrForbidden)

	_, err = svc.ListByProject(ctx, leaderOne, 99)
	assert.ErrorIs(t, err, rbac.ErrForbidden)

	_, err = svc.ListByProject(ctx, admin, 99)
	assert.ErrorIs(t, err, httpx.ErrNotFound)

	_, err = svc.ListByProject(ctx, memberOne, 10)
	assert.ErrorIs(t, err, rbac.ErrForbidden)
}

func TestCreateDefaultsAndChecksPower(t *testing.T) {
	svc, _, _ := fixture(t)
	ctx := context.Background()

	m, err := svc.Create(ctx, leaderOne, 10, milestones.Input{Title: "Launch"})
	require.NoError(t, err)
	assert.Equal(t, milestones.StatusOpen, m.Status)
	assert.Equal(t, shared.ApprovalPending, m.Approval)

	_, err = svc.Create(ctx, leaderTwo, 20, milestones.Input{Title: "Watch only"})
	assert.ErrorIs(t, err, rbac.ErrForbidden)

	_, err = svc.Create(ctx, leaderOne, 20, milestones.Input{Title: "Other department"})
	assert.ErrorIs(t, err, rbac.ErrForbidden)

	_, err = svc.Create(ctx, admin, 10, milestones.Input{})
	require.ErrorIs(t, err, httpx.ErrValidation)
	assert.Contains(t, shared.FieldErrors(err), "Title")
}

func TestUpdateAndDeleteStayInScope(t *testing.T) {
	svc, repo, _ := fixture(t)
	ctx := context.Background()

	_, err := svc.Update(ctx, leaderOne, 2, milestones.Input{Title: "Mine now"})
	assert.ErrorIs(t, err, rbac.ErrForbidden)

	m, err := svc.Update(ctx, leaderOne, 1, milestones.Input{Title: "Kickoff done", Status: milestones.StatusCompleted})
	require.NoError(t, err)
	assert.Equal(t, milestones.StatusCompleted, m.Status)

	_, err = svc.Delete(ctx, leaderOne, 2)
	assert.ErrorIs(t, err, rbac.ErrForbidden)
	assert.Contains(t, repo.milestones, int64(2))

	deleted, err := svc.Delete(ctx, admin, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(20), deleted.ProjectID)
	assert.NotContains(t, repo.milestones, int64(2))
}

func TestApprovalNeedsApprovePower(t *testing.T) {
	svc, repo, approvals := fixture(t)
	ctx := context.Background()

	_, err := svc.Approve(ctx, leaderOne, 1, "")
	assert.ErrorIs(t, err, rbac.ErrForbidden)

	_, err = svc.Approve(ctx, headOne, 2, "")
	assert.ErrorIs(t, err, rbac.ErrForbidden)

	m, err := svc.Approve(ctx, headOne, 1, " on track ")
	require.NoError(t, err)
	assert.Equal(t, shared.ApprovalApproved, m.Approval)
	assert.Equal(t, shared.ApprovalApproved, repo.milestones[1].Approval)
	require.Len(t, approvals.logs, 1)
	assert.Equal(t, milestones.ApprovalModule, approvals.logs[0].Module)
	assert.Equal(t, "on track", approvals.logs[0].Note)

	m, err = svc.Reject(ctx, admin, 2, "")
	require.NoError(t, err)
	assert.Equal(t, shared.ApprovalRejected, m.Approval)
}
