package dashboard_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pms-suite/pms/internal/dashboard"
	"github.com/pms-suite/pms/internal/rbac"
	"github.com/pms-suite/pms/internal/rbac/rbactest"
)

type stubRepo struct {
	mu      sync.Mutex
	scopes  map[string]rbac.Scope
	pending map[dashboard.Table]int
	fail    error
	gate    chan struct{}
}

func (s *stubRepo) seen(name string, scope rbac.Scope) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scopes[name] = scope
}

func (s *stubRepo) CountProjects(ctx context.Context, scope rbac.Scope) (int, error) {
	s.seen("projects", scope)
	if s.gate != nil {
		<-s.gate
	}
	return 4, s.fail
}

func (s *stubRepo) CountOpenTasks(ctx context.Context, scope rbac.Scope) (int, error) {
	s.seen("tasks", scope)
	return 9, nil
}

func (s *stubRepo) CountAssignedOpen(ctx context.Context, userID int64) (int, error) {
	return 3, nil
}

func (s *stubRepo) CountOverdueAssigned(ctx context.Context, userID int64, asOf time.Time) (int, error) {
	return 1, nil
}

func (s *stubRepo) CountPending(ctx context.Context, table dashboard.Table, scope rbac.Scope) (int, error) {
	s.seen("pending_"+string(table), scope)
	return s.pending[table], nil
}

func newRepo() *stubRepo {
	return &stubRepo{
		scopes:  map[string]rbac.Scope{},
		pending: map[dashboard.Table]int{dashboard.TableProjects: 2, dashboard.TableMilestones: 5, dashboard.TableTasks: 7},
	}
}

func labels(s dashboard.Summary) []string {
	out := make([]string, 0, len(s.Cards))
	for _, c := range s.Cards {
		out = append(out, c.Label)
	}
	return out
}

func TestSummaryForMemberShowsOnlyTasks(t *testing.T) {
	repo := newRepo()
	guard := rbactest.Guard(rbac.Identity{UserID: 5, Role: rbac.RoleMember, Power: rbac.PowerMonitoring, DepartmentID: rbactest.Dept(1)})
	svc := dashboard.NewService(repo, guard)

	summary, err := svc.Summary(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"Open tasks", "Assigned to me"}, labels(summary))
	assert.Equal(t, 3, summary.AssignedTo)
	assert.Equal(t, 1, summary.Overdue)
	assert.Equal(t, rbac.ScopeAssigned, repo.scopes["tasks"].Kind)
	assert.NotContains(t, repo.scopes, "projects")
}

func TestSummaryForDepartmentHead(t *testing.T) {
	repo := newRepo()
	guard := rbactest.Guard(rbac.Identity{UserID: 2, Role: rbac.RoleDepartmentHead, Power: rbac.PowerFull, DepartmentID: rbactest.Dept(1)})
	svc := dashboard.NewService(repo, guard)

	summary, err := svc.Summary(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Projects", "Open tasks", "Assigned to me",
		"Projects awaiting approval", "Milestones awaiting approval", "Tasks awaiting approval",
	}, labels(summary))
	assert.Equal(t, 5, summary.Cards[4].Value)
	assert.Equal(t, rbac.ScopeDepartment, repo.scopes["pending_projects"].Kind)
	assert.Equal(t, int64(1), repo.scopes["pending_tasks"].DepartmentID)
}

func TestSummaryGroupLeaderApprovesTasksOnly(t *testing.T) {
	repo := newRepo()
	guard := rbactest.Guard(rbac.Identity{UserID: 3, Role: rbac.RoleGroupLeader, Power: rbac.PowerFull, DepartmentID: rbactest.Dept(1)})

	summary, err := dashboard.NewService(repo, guard).Summary(context.Background(), 3)
	require.NoError(t, err)
	assert.Contains(t, labels(summary), "Tasks awaiting approval")
	assert.NotContains(t, labels(summary), "Projects awaiting approval")
}

func TestSummaryErrors(t *testing.T) {
	repo := newRepo()
	repo.fail = errors.New("db down")
	guard := rbactest.Guard(rbac.Identity{UserID: 1, Role: rbac.RoleAdmin, Power: rbac.PowerFull})
	svc := dashboard.NewService(repo, guard)

	_, err := svc.Summary(context.Background(), 1)
	assert.EqualError(t, err, "db down")

	_, err = svc.Summary(context.Background(), 99)
	assert.ErrorIs(t, err, rbac.ErrUnauthenticated)
}

func TestSummaryWaiterHonoursCancel(t *testing.T) {
	repo := newRepo()
	repo.gate = make(chan struct{})
	guard := rbactest.Guard(rbac.Identity{UserID: 1, Role: rbac.RoleAdmin, Power: rbac.PowerFull})
	svc := dashboard.NewService(repo, guard)

	done := make(chan error, 1)
	go func() {
		_, err := svc.Summary(context.Background(), 1)
		done <- err
	}()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.Summary(ctx, 1)
	assert.ErrorIs(t, err, context.Canceled)

	close(repo.gate)
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("first caller never finished")
	}
}
