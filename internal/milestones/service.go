package milestones

import (
	"context"
	"log/slog"
	"strings"

	"github.com/pms-suite/pms/internal/rbac"
	"github.com/pms-suite/pms/internal/shared"
)

// ApprovalModule keys milestone entries in the approval history.
const ApprovalModule = "milestones"

// RepositoryPort defines data access methods for milestones.
type RepositoryPort interface {
	ProjectDepartment(ctx context.Context, projectID int64) (int64, error)
	ListByProject(ctx context.Context, projectID int64) ([]Milestone, error)
	Get(ctx context.Context, id int64) (Milestone, error)
	Create(ctx context.Context, projectID int64, in Input, createdBy int64) (Milestone, error)
	Update(ctx context.Context, id int64, in Input) (Milestone, error)
	Delete(ctx context.Context, id int64) error
	SetApproval(ctx context.Context, id int64, status shared.ApprovalStatus) error
}

// Service handles milestone business logic. Scope follows the parent
// project's department.
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

// ListByProject returns the milestones of a project inside the actor's scope.
func (s *Service) ListByProject(ctx context.Context, actorID, projectID int64) ([]Milestone, error) {
	id, err := s.guard.Authorize(ctx, actorID, rbac.ResourceMilestones, rbac.OpRead)
	if err != nil {
		return nil, err
	}
	if err := s.checkProject(ctx, id, projectID); err != nil {
		return nil, err
	}
	return s.repo.ListByProject(ctx, projectID)
}

// Get returns one milestone.
func (s *Service) Get(ctx context.Context, actorID, milestoneID int64) (Milestone, error) {
	id, err := s.guard.Authorize(ctx, actorID, rbac.ResourceMilestones, rbac.OpRead)
	if err != nil {
		return Milestone{}, err
	}
	return s.load(ctx, id, milestoneID)
}

// Create adds a milestone to a project.
func (s *Service) Create(ctx context.Context, actorID, projectID int64, in Input) (Milestone, error) {
	id, err := s.guard.Authorize(ctx, actorID, rbac.ResourceMilestones, rbac.OpCreate)
	if err != nil {
		return Milestone{}, err
	}
	if err := s.checkProject(ctx, id, projectID); err != nil {
		return Milestone{}, err
	}
	if err := validate(&in); err != nil {
		return Milestone{}, err
	}
	m, err := s.repo.Create(ctx, projectID, in, id.UserID)
	if err != nil {
		return Milestone{}, err
	}
	s.record(ctx, actorID, "milestone.create", m.ID)
	return m, nil
}

// Update changes a milestone.
func (s *Service) Update(ctx context.Context, actorID, milestoneID int64, in Input) (Milestone, error) {
	id, err := s.guard.Authorize(ctx, actorID, rbac.ResourceMilestones, rbac.OpUpdate)
	if err != nil {
		return Milestone{}, err
	}
	if _, err := s.load(ctx, id, milestoneID); err != nil {
		return Milestone{}, err
	}
	if err := validate(&in); err != nil {
		return Milestone{}, err
	}
	m, err := s.repo.Update(ctx, milestoneID, in)
	if err != nil {
		return Milestone{}, err
	}
	s.record(ctx, actorID, "milestone.update", m.ID)
	return m, nil
}

// Delete removes a milestone.
func (s *Service) Delete(ctx context.Context, actorID, milestoneID int64) (Milestone, error) {
	id, err := s.guard.Authorize(ctx, actorID, rbac.ResourceMilestones, rbac.OpDelete)
	if err != nil {
		return Milestone{}, err
	}
	m, err := s.load(ctx, id, milestoneID)
	if err != nil {
		return Milestone{}, err
	}
	if err := s.repo.Delete(ctx, milestoneID); err != nil {
		return Milestone{}, err
	}
	s.record(ctx, actorID, "milestone.delete", milestoneID)
	return m, nil
}

// Approve marks a milestone approved.
func (s *Service) Approve(ctx context.Context, actorID, milestoneID int64, note string) (Milestone, error) {
	return s.decide(ctx, actorID, milestoneID, shared.ApprovalApprove, note)
}

// Reject marks a milestone rejected.
func (s *Service) Reject(ctx context.Context, actorID, milestoneID int64, note string) (Milestone, error) {
	return s.decide(ctx, actorID, milestoneID, shared.ApprovalReject, note)
}

func (s *Service) decide(ctx context.Context, actorID, milestoneID int64, action shared.ApprovalAction, note string) (Milestone, error) {
	id, err := s.guard.Authorize(ctx, actorID, rbac.ResourceApproveMilestones, rbac.OpUpdate)
	if err != nil {
		return Milestone{}, err
	}
	m, err := s.load(ctx, id, milestoneID)
	if err != nil {
		return Milestone{}, err
	}
	if err := s.repo.SetApproval(ctx, milestoneID, action.Status()); err != nil {
		return Milestone{}, err
	}
	if err := s.approvals.Record(ctx, shared.ApprovalLog{Module: ApprovalModule, RefID: milestoneID, ActorID: id.UserID, Action: action, Note: strings.TrimSpace(note)}); err != nil {
		return Milestone{}, err
	}
	m.Approval = action.Status()
	return m, nil
}

func (s *Service) checkProject(ctx context.Context, id *rbac.Identity, projectID int64) error {
	dept, err := s.repo.ProjectDepartment(ctx, projectID)
	return rbac.ScopeFor(id, rbac.ResourceMilestones).Enforce(err, rbac.Row{DepartmentID: &dept})
}

func (s *Service) load(ctx context.Context, id *rbac.Identity, milestoneID int64) (Milestone, error) {
	m, err := s.repo.Get(ctx, milestoneID)
	if err := rbac.ScopeFor(id, rbac.ResourceMilestones).Enforce(err, rbac.Row{DepartmentID: &m.DepartmentID}); err != nil {
		return Milestone{}, err
	}
	return m, nil
}

func validate(in *Input) error {
	if in.Status == "" {
		in.Status = StatusOpen
	}
	return shared.ValidateStruct(*in)
}

func (s *Service) record(ctx context.Context, actorID int64, action string, milestoneID int64) {
	shared.RecordAudit(ctx, s.audit, s.logger, shared.AuditLog{ActorID: actorID, Action: action, Entity: "milestone", EntityID: milestoneID})
}
