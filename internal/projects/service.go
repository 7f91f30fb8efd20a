package projects

import (
	"context"
	"log/slog"
	"strings"

	"github.com/pms-suite/pms/internal/rbac"
	"github.com/pms-suite/pms/internal/shared"
)

// ApprovalModule keys project entries in the approval history.
const ApprovalModule = "projects"

// RepositoryPort defines data access methods for projects.
type RepositoryPort interface {
	List(ctx context.Context, filter ListFilter, scope rbac.Scope) ([]Project, error)
	Get(ctx context.Context, id int64) (Project, error)
	Create(ctx context.Context, in Input, createdBy int64) (Project, error)
	Update(ctx context.Context, id int64, in Input) (Project, error)
	Delete(ctx context.Context, id int64) error
	SetApproval(ctx context.Context, id int64, status shared.ApprovalStatus) error
	Departments(ctx context.Context, scope rbac.Scope) ([]Department, error)
}

// Service handles project business logic.
type Service struct {
	repo      RepositoryPort
	guard     *rbac.Guard
	approvals shared.ApprovalStore
	audit     shared.AuditRecorder
	logger    *slog.Logger
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, guard *rbac.Guard, approvals shared.ApprovalStore, audit shared.AuditRecorder, logger *slog.Logger) *Service {
	return &Service{repo: repo, guard: guard, approvals: approvals, audit: audit, logger: logger}
}

// List returns one page of projects inside the actor's scope.
func (s *Service) List(ctx context.Context, actorID int64, filter ListFilter) (Page, error) {
	id, err := s.guard.Authorize(ctx, actorID, rbac.ResourceProjects, rbac.OpRead)
	if err != nil {
		return Page{}, err
	}
	filter.Page = filter.Page.Normalize()
	rows, err := s.repo.List(ctx, filter, rbac.ScopeFor(id, rbac.ResourceProjects))
	if err != nil {
		return Page{}, err
	}
	rows, next := shared.TrimPage(rows, filter.Page, func(p Project) int64 { return p.ID })
	return Page{Projects: rows, CursorResult: next}, nil
}

// Get returns one project inside the actor's scope.
func (s *Service) Get(ctx context.Context, actorID, projectID int64) (Project, error) {
	id, err := s.guard.Authorize(ctx, actorID, rbac.ResourceProjects, rbac.OpRead)
	if err != nil {
		return Project{}, err
	}
	return s.load(ctx, id, projectID)
}

// Create files a new project, pending approval.
func (s *Service) Create(ctx context.Context, actorID int64, in Input) (Project, error) {
	id, err := s.guard.Authorize(ctx, actorID, rbac.ResourceProjects, rbac.OpCreate)
	if err != nil {
		return Project{}, err
	}
	if err := validate(&in); err != nil {
		return Project{}, err
	}
	if !rbac.ScopeFor(id, rbac.ResourceProjects).AllowsDepartment(&in.DepartmentID) {
		return Project{}, rbac.ErrForbidden
	}
	p, err := s.repo.Create(ctx, in, id.UserID)
	if err != nil {
		return Project{}, err
	}
	s.record(ctx, actorID, "project.create", p.ID)
	return p, nil
}

// Update changes a project inside the actor's scope.
func (s *Service) Update(ctx context.Context, actorID, projectID int64, in Input) (Project, error) {
	id, err := s.guard.Authorize(ctx, actorID, rbac.ResourceProjects, rbac.OpUpdate)
	if err != nil {
		return Project{}, err
	}
	if _, err := s.load(ctx, id, projectID); err != nil {
		return Project{}, err
	}
	if err := validate(&in); err != nil {
		return Project{}, err
	}
	if !rbac.ScopeFor(id, rbac.ResourceProjects).AllowsDepartment(&in.DepartmentID) {
		return Project{}, rbac.ErrForbidden
	}
	p, err := s.repo.Update(ctx, projectID, in)
	if err != nil {
		return Project{}, err
	}
	s.record(ctx, actorID, "project.update", p.ID)
	return p, nil
}

// Delete removes a project inside the actor's scope.
func (s *Service) Delete(ctx context.Context, actorID, projectID int64) error {
	id, err := s.guard.Authorize(ctx, actorID, rbac.ResourceProjects, rbac.OpDelete)
	if err != nil {
		return err
	}
	if _, err := s.load(ctx, id, projectID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, projectID); err != nil {
		return err
	}
	s.record(ctx, actorID, "project.delete", projectID)
	return nil
}

// Approve marks a project approved.
func (s *Service) Approve(ctx context.Context, actorID, projectID int64, note string) (Project, error) {
	return s.decide(ctx, actorID, projectID, shared.ApprovalApprove, note)
}

// Reject marks a project rejected.
func (s *Service) Reject(ctx context.Context, actorID, projectID int64, note string) (Project, error) {
	return s.decide(ctx, actorID, projectID, shared.ApprovalReject, note)
}

func (s *Service) decide(ctx context.Context, actorID, projectID int64, action shared.ApprovalAction, note string) (Project, error) {
	id, err := s.guard.Authorize(ctx, actorID, rbac.ResourceApproveProjects, rbac.OpUpdate)
	if err != nil {
		return Project{}, err
	}
	p, err := s.load(ctx, id, projectID)
	if err != nil {
		return Project{}, err
	}
	if err := s.repo.SetApproval(ctx, projectID, action.Status()); err != nil {
		return Project{}, err
	}
	if err := s.approvals.Record(ctx, shared.ApprovalLog{Module: ApprovalModule, RefID: projectID, ActorID: id.UserID, Action: action, Note: strings.TrimSpace(note)}); err != nil {
		return Project{}, err
	}
	p.Approval = action.Status()
	return p, nil
}

// History returns the approval decisions of a project.
func (s *Service) History(ctx context.Context, actorID, projectID int64) ([]shared.ApprovalLog, error) {
	id, err := s.guard.Authorize(ctx, actorID, rbac.ResourceProjects, rbac.OpRead)
	if err != nil {
		return nil, err
	}
	if _, err := s.load(ctx, id, projectID); err != nil {
		return nil, err
	}
	return s.approvals.List(ctx, ApprovalModule, projectID)
}

// Departments lists departments the actor may file projects under.
func (s *Service) Departments(ctx context.Context, actorID int64) ([]Department, error) {
	id, err := s.guard.Authorize(ctx, actorID, rbac.ResourceProjects, rbac.OpRead)
	if err != nil {
		return nil, err
	}
	return s.repo.Departments(ctx, rbac.ScopeFor(id, rbac.ResourceProjects))
}

func (s *Service) load(ctx context.Context, id *rbac.Identity, projectID int64) (Project, error) {
	p, err := s.repo.Get(ctx, projectID)
	if err := rbac.ScopeFor(id, rbac.ResourceProjects).Enforce(err, rbac.Row{DepartmentID: &p.DepartmentID}); err != nil {
		return Project{}, err
	}
	return p, nil
}

func validate(in *Input) error {
	if in.Status == "" {
		in.Status = StatusPlanning
	}
	if err := shared.ValidateStruct(*in); err != nil {
		return err
	}
	if in.StartDate != nil && in.EndDate != nil && in.EndDate.Before(*in.StartDate) {
		return shared.Invalid("EndDate", "end date must not precede start date")
	}
	return nil
}

func (s *Service) record(ctx context.Context, actorID int64, action string, projectID int64) {
	shared.RecordAudit(ctx, s.audit, s.logger, shared.AuditLog{ActorID: actorID, Action: action, Entity: "project", EntityID: projectID})
}
