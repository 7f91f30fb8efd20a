package tasks_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/pms-suite/pms/internal/rbac"
	"github.com/pms-suite/pms/internal/shared"
	"github.com/pms-suite/pms/internal/tasks"
)

// TaskWorkflowSuite walks one task from creation to deletion across roles.
type TaskWorkflowSuite struct {
	suite.Suite
	svc       *tasks.Service
	repo      *stubRepo
	notifier  *recordingNotifier
	approvals *memoryApprovals
	ctx       context.Context
}

func (s *TaskWorkflowSuite) SetupTest() {
	s.svc, s.repo, s.notifier, s.approvals = fixture(s.T())
	s.ctx = context.Background()
}

func (s *TaskWorkflowSuite) TestAssignWorkApproveDelete() {
	created, err := s.svc.Create(s.ctx, leaderOne, tasks.Input{
		ProjectID:   10,
		MilestoneID: ptr(100),
		Title:       "Write release notes",
		AssigneeID:  ptr(memberOne),
	})
	s.Require().NoError(err)
	s.Equal(tasks.StatusTodo, created.Status)
	s.Equal(tasks.PriorityMedium, created.Priority)
	s.Equal(shared.ApprovalPending, created.Approval)
	s.Equal([][2]int64{{created.ID, memberOne}}, s.notifier.calls)

	started, err := s.svc.Update(s.ctx, memberOne, created.ID, tasks.Input{
		MilestoneID: ptr(100),
		Title:       created.Title,
		Status:      tasks.StatusInProgress,
		AssigneeID:  ptr(memberOne),
	})
	s.Require().NoError(err, "members move their own tasks along")
	s.Equal(tasks.StatusInProgress, started.Status)
	s.Len(s.notifier.calls, 1, "keeping the assignee sends no second email")

	_, err = s.svc.AddComment(s.ctx, memberOne, created.ID, tasks.CommentInput{Body: "Draft is in the doc"})
	s.Require().NoError(err)

	mine, err := s.svc.List(s.ctx, memberOne, tasks.ListFilter{})
	s.Require().NoError(err)
	s.Contains(ids(mine.Tasks), created.ID)

	theirs, err := s.svc.List(s.ctx, memberTwo, tasks.ListFilter{})
	s.Require().NoError(err)
	s.NotContains(ids(theirs.Tasks), created.ID, "members only see tasks assigned to them")

	_, err = s.svc.Approve(s.ctx, memberOne, created.ID, "")
	s.ErrorIs(err, rbac.ErrForbidden)

	approved, err := s.svc.Approve(s.ctx, leaderOne, created.ID, "  ship it ")
	s.Require().NoError(err)
	s.Equal(shared.ApprovalApproved, approved.Approval)

	history, err := s.svc.History(s.ctx, memberOne, created.ID)
	s.Require().NoError(err)
	s.Require().Len(history, 1)
	s.Equal("ship it", history[0].Note)
	s.Equal(int64(leaderOne), history[0].ActorID)

	s.ErrorIs(s.svc.Delete(s.ctx, memberTwo, created.ID), rbac.ErrForbidden)
	s.Require().NoError(s.svc.Delete(s.ctx, headOne, created.ID))

	_, err = s.svc.Get(s.ctx, admin, created.ID)
	s.ErrorIs(err, tasks.ErrNotFound)
	_, err = s.svc.Get(s.ctx, leaderOne, created.ID)
	s.ErrorIs(err, rbac.ErrForbidden, "scoped readers cannot tell missing rows from foreign ones")
}

func (s *TaskWorkflowSuite) TestReassignmentAcrossDepartmentsRejected() {
	_, err := s.svc.Update(s.ctx, leaderOne, 1, tasks.Input{Title: "Draft", AssigneeID: ptr(memberFar)})
	s.Require().Error(err)
	s.Equal("assignee must belong to the project's department", shared.FieldErrors(err)["AssigneeID"])
	s.Empty(s.notifier.calls)

	moved, err := s.svc.Update(s.ctx, admin, 1, tasks.Input{Title: "Draft", AssigneeID: ptr(memberFar)})
	s.Require().NoError(err, "admins place work in any department")
	s.Equal(int64(memberFar), *moved.AssigneeID)
	s.Len(s.notifier.calls, 1)
}

func TestTaskWorkflowSuite(t *testing.T) {
	suite.Run(t, new(TaskWorkflowSuite))
}
