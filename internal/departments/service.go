package departments

import (
	"context"
	"log/slog"

	"github.com/pms-suite/pms/internal/rbac"
	"github.com/pms-suite/pms/internal/shared"
)

// RepositoryPort defines data access methods for departments.
type RepositoryPort interface {
	List(ctx context.Context) ([]Department, error)
	Get(ctx context.Context, id int64) (Department, error)
	Create(ctx context.Context, in Input) (Department, error)
	Update(ctx context.Context, id int64, in Input) (Department, error)
	Delete(ctx context.Context, id int64) error
}

// Service handles department business logic.
type Service struct {
	repo   RepositoryPort
	guard  *rbac.Guard
	audit  shared.AuditRecorder
	logger *slog.Logger
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, guard *rbac.Guard, audit shared.AuditRecorder, logger *slog.Logger) *Service {
	return &Service{repo: repo, guard: guard, audit: audit, logger: logger}
}

// List returns all departments.
func (s *Service) List(ctx context.Context, actorID int64) ([]Department, error) {
	if _, err := s.guard.Authorize(ctx, actorID, rbac.ResourceDepartments, rbac.OpRead); err != nil {
		return nil, err
	}
	return s.repo.List(ctx)
}

// Get returns one department.
func (s *Service) Get(ctx context.Context, actorID, id int64) (Department, error) {
	if _, err := s.guard.Authorize(ctx, actorID, rbac.ResourceDepartments, rbac.OpRead); err != nil {
		return Department{}, err
	}
	return s.repo.Get(ctx, id)
}

// Create adds a department.
func (s *Service) Create(ctx context.Context, actorID int64, in Input) (Department, error) {
	if _, err := s.guard.Authorize(ctx, actorID, rbac.ResourceDepartments, rbac.OpCreate); err != nil {
		return Department{}, err
	}
	if err := shared.ValidateStruct(in); err != nil {
		return Department{}, err
	}
	d, err := s.repo.Create(ctx, in)
	if err != nil {
		return Department{}, err
	}
	s.record(ctx, actorID, "department.create", d.ID)
	return d, nil
}

// Update changes a department.
func (s *Service) Update(ctx context.Context, actorID, id int64, in Input) (Department, error) {
	if _, err := s.guard.Authorize(ctx, actorID, rbac.ResourceDepartments, rbac.OpUpdate); err != nil {
		return Department{}, err
	}
	if err := shared.ValidateStruct(in); err != nil {
		return Department{}, err
	}
	d, err := s.repo.Update(ctx, id, in)
	if err != nil {
		return Department{}, err
	}
	s.record(ctx, actorID, "department.update", d.ID)
	return d, nil
}

// Delete removes a department.
func (s *Service) Delete(ctx context.Context, actorID, id int64) error {
	if _, err := s.guard.Authorize(ctx, actorID, rbac.ResourceDepartments, rbac.OpDelete); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actorID, "department.delete", id)
	return nil
}

func (s *Service) record(ctx context.Context, actorID int64, action string, id int64) {
	shared.RecordAudit(ctx, s.audit, s.logger, shared.AuditLog{ActorID: actorID, Action: action, Entity: "department", EntityID: id})
}
