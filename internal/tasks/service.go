package tasks

import (
	"context"
	"log/slog"
	"strings"

	"github.com/pms-suite/pms/internal/rbac"
	"github.com/pms-suite/pms/internal/shared"
)

// ApprovalModule keys task entries in the approval history.
const ApprovalModule = "tasks"

// RepositoryPort defines data access methods for tasks.
type RepositoryPort interface {
	List(ctx context.Context, filter ListFilter, scope rbac.Scope) ([]Task, error)
	Get(ctx context.Context, id int64) (Task, error)
	ProjectDepartment(ctx context.Context, projectID int64) (int64, error)
	MilestoneProject(ctx context.Context, milestoneID int64) (int64, error)
	Assignee(ctx context.Context, userID int64) (Assignee, error)
	Assignees(ctx context.Context, deptID int64) ([]Assignee, error)
	Create(ctx context.Context, in Input, createdBy int64) (Task, error)
	Update(ctx context.Context, id int64, in Input) (Task, error)
	Delete(ctx context.Context, id int64) error
	SetApproval(ctx context.Context, id int64, status shared.ApprovalStatus) error
	Comments(ctx context.Context, taskID int64) ([]Comment, error)
	Comment(ctx context.Context, id int64) (Comment, error)
	AddComment(ctx context.Context, taskID, authorID int64, body string) (Comment, error)
	DeleteComment(ctx context.Context, id int64) error
	ProjectOptions(ctx context.Context, scope rbac.Scope) ([]ProjectOption, error)
	MilestoneOptions(ctx context.Context, scope rbac.Scope) ([]MilestoneOption, error)
}

// Notifier is told when a task gets a new assignee.
type Notifier interface {
	TaskAssigned(ctx context.Context, taskID, assigneeID int64) error
}

// Service handles task business logic.
type Service struct {
	repo      RepositoryPort
	guard     *rbac.Guard
	approvals shared.ApprovalStore
	notifier  Notifier
	audit     shared.AuditRecorder
	logger    *slog.Logger
}

// NewService builds Service instance. notifier may be nil.
func NewService(repo RepositoryPort, guard *rbac.Guard, approvals shared.ApprovalStore, notifier Notifier, audit shared.AuditRecorder, logger *slog.Logger) *Service {
	return &Service{repo: repo, guard: guard, approvals: approvals, notifier: notifier, audit: audit, logger: logger}
}

// List returns one page of tasks inside the actor's scope.
func (s *Service) List(ctx context.Context, actorID int64, filter ListFilter) (Page, error) {
	id, err := s.guard.Authorize(ctx, actorID, rbac.ResourceTasks, rbac.OpRead)
	if err != nil {
		return Page{}, err
	}
	filter.Page = filter.Page.Normalize()
	rows, err := s.repo.List(ctx, filter, rbac.ScopeFor(id, rbac.ResourceTasks))
	if err != nil {
		return Page{}, err
	}
	rows, next := shared.TrimPage(rows, filter.Page, func(t Task) int64 { return t.ID })
	return Page{Tasks: rows, CursorResult: next}, nil
}

// Get returns one task inside the actor's scope.
func (s *Service) Get(ctx context.Context, actorID, taskID int64) (Task, error) {
	id, err := s.guard.Authorize(ctx, actorID, rbac.ResourceTasks, rbac.OpRead)
	if err != nil {
		return Task{}, err
	}
	return s.load(ctx, id, taskID)
}

// Create files a task, pending approval, and notifies the assignee.
func (s *Service) Create(ctx context.Context, actorID int64, in Input) (Task, error) {
	id, err := s.guard.Authorize(ctx, actorID, rbac.ResourceTasks, rbac.OpCreate)
	if err != nil {
		return Task{}, err
	}
	if err := validate(&in); err != nil {
		return Task{}, err
	}
	if err := s.place(ctx, id, in); err != nil {
		return Task{}, err
	}
	t, err := s.repo.Create(ctx, in, id.UserID)
	if err != nil {
		return Task{}, err
	}
	s.record(ctx, actorID, "task.create", t.ID)
	if t.AssigneeID != nil {
		s.notify(ctx, t.ID, *t.AssigneeID)
	}
	return t, nil
}

// Update changes a task. A change of assignee notifies the new assignee.
func (s *Service) Update(ctx context.Context, actorID, taskID int64, in Input) (Task, error) {
	id, err := s.guard.Authorize(ctx, actorID, rbac.ResourceTasks, rbac.OpUpdate)
	if err != nil {
		return Task{}, err
	}
	current, err := s.load(ctx, id, taskID)
	if err != nil {
		return Task{}, err
	}
	in.ProjectID = current.ProjectID
	if err := validate(&in); err != nil {
		return Task{}, err
	}
	if err := s.place(ctx, id, in); err != nil {
		return Task{}, err
	}
	t, err := s.repo.Update(ctx, taskID, in)
	if err != nil {
		return Task{}, err
	}
	s.record(ctx, actorID, "task.update", taskID)
	if t.AssigneeID != nil && !sameID(current.AssigneeID, t.AssigneeID) {
		s.notify(ctx, t.ID, *t.AssigneeID)
	}
	return t, nil
}

// Delete removes a task.
func (s *Service) Delete(ctx context.Context, actorID, taskID int64) error {
	id, err := s.guard.Authorize(ctx, actorID, rbac.ResourceTasks, rbac.OpDelete)
	if err != nil {
		return err
	}
	if _, err := s.load(ctx, id, taskID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, taskID); err != nil {
		return err
	}
	s.record(ctx, actorID, "task.delete", taskID)
	return nil
}

// Approve marks a task approved.
func (s *Service) Approve(ctx context.Context, actorID, taskID int64, note string) (Task, error) {
	return s.decide(ctx, actorID, taskID, shared.ApprovalApprove, note)
}

// Reject marks a task rejected.
func (s *Service) Reject(ctx context.Context, actorID, taskID int64, note string) (Task, error) {
	return s.decide(ctx, actorID, taskID, shared.ApprovalReject, note)
}

func (s *Service) decide(ctx context.Context, actorID, taskID int64, action shared.ApprovalAction, note string) (Task, error) {
	id, err := s.guard.Authorize(ctx, actorID, rbac.ResourceApproveTasks, rbac.OpUpdate)
	if err != nil {
		return Task{}, err
	}
	t, err := s.load(ctx, id, taskID)
	if err != nil {
		return Task{}, err
	}
	if err := s.repo.SetApproval(ctx, taskID, action.Status()); err != nil {
		return Task{}, err
	}
	if err := s.approvals.Record(ctx, shared.ApprovalLog{Module: ApprovalModule, RefID: taskID, ActorID: id.UserID, Action: action, Note: strings.TrimSpace(note)}); err != nil {
		return Task{}, err
	}
	t.Approval = action.Status()
	return t, nil
}

// History lists the approval decisions of a task.
func (s *Service) History(ctx context.Context, actorID, taskID int64) ([]shared.ApprovalLog, error) {
	id, err := s.guard.Authorize(ctx, actorID, rbac.ResourceTasks, rbac.OpRead)
	if err != nil {
		return nil, err
	}
	if _, err := s.load(ctx, id, taskID); err != nil {
		return nil, err
	}
	return s.approvals.List(ctx, ApprovalModule, taskID)
}

// ListComments returns the comments of a visible task.
func (s *Service) ListComments(ctx context.Context, actorID, taskID int64) ([]Comment, error) {
	id, err := s.guard.Authorize(ctx, actorID, rbac.ResourceTasks, rbac.OpRead)
	if err != nil {
		return nil, err
	}
	if _, err := s.load(ctx, id, taskID); err != nil {
		return nil, err
	}
	return s.repo.Comments(ctx, taskID)
}

// AddComment lets anyone who can see a task comment on it.
func (s *Service) AddComment(ctx context.Context, actorID, taskID int64, in CommentInput) (Comment, error) {
	id, err := s.guard.Authorize(ctx, actorID, rbac.ResourceTasks, rbac.OpRead)
	if err != nil {
		return Comment{}, err
	}
	if _, err := s.load(ctx, id, taskID); err != nil {
		return Comment{}, err
	}
	in.Body = strings.TrimSpace(in.Body)
	if err := shared.ValidateStruct(in); err != nil {
		return Comment{}, err
	}
	c, err := s.repo.AddComment(ctx, taskID, id.UserID, in.Body)
	if err != nil {
		return Comment{}, err
	}
	s.record(ctx, actorID, "task.comment", taskID)
	return c, nil
}

// DeleteComment removes a comment. Authors may always remove their own
// comments on visible tasks; others need the delete operation.
func (s *Service) DeleteComment(ctx context.Context, actorID, commentID int64) (Comment, error) {
	id, err := s.guard.Authorize(ctx, actorID, rbac.ResourceTasks, rbac.OpRead)
	if err != nil {
		return Comment{}, err
	}
	c, err := s.repo.Comment(ctx, commentID)
	if err != nil {
		if !rbac.ScopeFor(id, rbac.ResourceTasks).All() {
			return Comment{}, rbac.ErrForbidden
		}
		return Comment{}, err
	}
	if _, err := s.load(ctx, id, c.TaskID); err != nil {
		return Comment{}, err
	}
	if c.AuthorID != id.UserID {
		if err := s.guard.Check(id, rbac.ResourceTasks, rbac.OpDelete); err != nil {
			return Comment{}, err
		}
	}
	if err := s.repo.DeleteComment(ctx, commentID); err != nil {
		return Comment{}, err
	}
	s.record(ctx, actorID, "task.comment_delete", c.TaskID)
	return c, nil
}

// Assignees lists who the actor may assign tasks of a project to. Members
// only ever see themselves.
func (s *Service) Assignees(ctx context.Context, actorID, projectID int64) ([]Assignee, error) {
	id, err := s.guard.Authorize(ctx, actorID, rbac.ResourceTasks, rbac.OpRead)
	if err != nil {
		return nil, err
	}
	dept, err := s.repo.ProjectDepartment(ctx, projectID)
	scope := rbac.ScopeFor(id, rbac.ResourceTasks)
	if scope.Kind == rbac.ScopeAssigned {
		if err != nil || !id.InDepartment(dept) {
			return nil, rbac.ErrForbidden
		}
	} else if err := scope.Enforce(err, rbac.Row{DepartmentID: &dept}); err != nil {
		return nil, err
	}
	all, err := s.repo.Assignees(ctx, dept)
	if err != nil {
		return nil, err
	}
	if scope.Kind != rbac.ScopeAssigned {
		return all, nil
	}
	var own []Assignee
	for _, a := range all {
		if a.ID == id.UserID {
			own = append(own, a)
		}
	}
	return own, nil
}

// FormOptions returns the projects and milestones a task form may offer.
func (s *Service) FormOptions(ctx context.Context, actorID int64) ([]ProjectOption, []MilestoneOption, error) {
	id, err := s.guard.Authorize(ctx, actorID, rbac.ResourceTasks, rbac.OpRead)
	if err != nil {
		return nil, nil, err
	}
	scope := placementScope(id)
	projects, err := s.repo.ProjectOptions(ctx, scope)
	if err != nil {
		return nil, nil, err
	}
	milestones, err := s.repo.MilestoneOptions(ctx, scope)
	if err != nil {
		return nil, nil, err
	}
	return projects, milestones, nil
}

// place checks that the actor may put a task with these fields into the
// project: the project must be in scope, the milestone must belong to it and
// the assignee must be an active user of the project's department.
func (s *Service) place(ctx context.Context, id *rbac.Identity, in Input) error {
	dept, err := s.repo.ProjectDepartment(ctx, in.ProjectID)
	scope := rbac.ScopeFor(id, rbac.ResourceTasks)
	if scope.Kind == rbac.ScopeAssigned {
		if err != nil || !id.InDepartment(dept) || !sameID(in.AssigneeID, &id.UserID) {
			return rbac.ErrForbidden
		}
	} else if err := scope.Enforce(err, rbac.Row{DepartmentID: &dept}); err != nil {
		return err
	}
	if in.MilestoneID != nil {
		projectID, err := s.repo.MilestoneProject(ctx, *in.MilestoneID)
		if err != nil {
			return err
		}
		if projectID != in.ProjectID {
			return shared.Invalid("MilestoneID", "milestone belongs to another project")
		}
	}
	if in.AssigneeID != nil {
		a, err := s.repo.Assignee(ctx, *in.AssigneeID)
		if err != nil {
			return err
		}
		if !scope.All() && (a.DepartmentID == nil || *a.DepartmentID != dept) {
			return shared.Invalid("AssigneeID", "assignee must belong to the project's department")
		}
	}
	return nil
}

func (s *Service) load(ctx context.Context, id *rbac.Identity, taskID int64) (Task, error) {
	t, err := s.repo.Get(ctx, taskID)
	row := rbac.Row{DepartmentID: &t.DepartmentID, AssigneeID: t.AssigneeID}
	if err := rbac.ScopeFor(id, rbac.ResourceTasks).Enforce(err, row); err != nil {
		return Task{}, err
	}
	return t, nil
}

func (s *Service) notify(ctx context.Context, taskID, assigneeID int64) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.TaskAssigned(ctx, taskID, assigneeID); err != nil && s.logger != nil {
		s.logger.Warn("enqueue task assignment", slog.Any("error", err), slog.Int64("task_id", taskID))
	}
}

func (s *Service) record(ctx context.Context, actorID int64, action string, taskID int64) {
	shared.RecordAudit(ctx, s.audit, s.logger, shared.AuditLog{ActorID: actorID, Action: action, Entity: "task", EntityID: taskID})
}

// placementScope narrows the projects offered in forms. Members place tasks
// in their own department's projects.
func placementScope(id *rbac.Identity) rbac.Scope {
	scope := rbac.ScopeFor(id, rbac.ResourceTasks)
	if scope.Kind != rbac.ScopeAssigned {
		return scope
	}
	if id.DepartmentID == nil {
		return rbac.Scope{Kind: rbac.ScopeNone, UserID: id.UserID}
	}
	return rbac.Scope{Kind: rbac.ScopeDepartment, DepartmentID: *id.DepartmentID, UserID: id.UserID}
}

func validate(in *Input) error {
	if in.Status == "" {
		in.Status = StatusTodo
	}
	if in.Priority == "" {
		in.Priority = PriorityMedium
	}
	return shared.ValidateStruct(*in)
}

func sameID(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
