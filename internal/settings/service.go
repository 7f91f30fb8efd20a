package settings

import (
	"context"
	"log/slog"

	"github.com/pms-suite/pms/internal/rbac"
	"github.com/pms-suite/pms/internal/shared"
)

// workspaceID is the audit entity id of the single workspace.
const workspaceID = 1

// RepositoryPort defines data access methods for settings.
type RepositoryPort interface {
	Labels(ctx context.Context, scope rbac.Scope) ([]Label, error)
	Label(ctx context.Context, id int64) (Label, error)
	CreateLabel(ctx context.Context, in LabelInput) (Label, error)
	UpdateLabel(ctx context.Context, id int64, in LabelInput) (Label, error)
	DeleteLabel(ctx context.Context, id int64) error
	Settings(ctx context.Context) ([]Setting, error)
	PutSetting(ctx context.Context, in SettingInput, actorID int64) error
	Departments(ctx context.Context, scope rbac.Scope) ([]Department, error)
}

// Service manages labels and workspace settings. Department heads reach the
// settings area for their own department's labels only.
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

// Labels lists the labels the actor manages.
func (s *Service) Labels(ctx context.Context, actorID int64) ([]Label, error) {
	id, err := s.guard.Authorize(ctx, actorID, rbac.ResourceSettings, rbac.OpRead)
	if err != nil {
		return nil, err
	}
	return s.repo.Labels(ctx, rbac.ScopeFor(id, rbac.ResourceSettings))
}

// CreateLabel adds a label. Scoped actors create labels of their own
// department; an omitted department defaults to it.
func (s *Service) CreateLabel(ctx context.Context, actorID int64, in LabelInput) (Label, error) {
	id, err := s.guard.Authorize(ctx, actorID, rbac.ResourceSettings, rbac.OpCreate)
	if err != nil {
		return Label{}, err
	}
	if err := s.placeLabel(id, &in); err != nil {
		return Label{}, err
	}
	l, err := s.repo.CreateLabel(ctx, in)
	if err != nil {
		return Label{}, err
	}
	s.record(ctx, actorID, "label.create", l.ID)
	return l, nil
}

// UpdateLabel changes a label inside the actor's scope.
func (s *Service) UpdateLabel(ctx context.Context, actorID, labelID int64, in LabelInput) (Label, error) {
	id, err := s.guard.Authorize(ctx, actorID, rbac.ResourceSettings, rbac.OpUpdate)
	if err != nil {
		return Label{}, err
	}
	if _, err := s.loadLabel(ctx, id, labelID); err != nil {
		return Label{}, err
	}
	if err := s.placeLabel(id, &in); err != nil {
		return Label{}, err
	}
	l, err := s.repo.UpdateLabel(ctx, labelID, in)
	if err != nil {
		return Label{}, err
	}
	s.record(ctx, actorID, "label.update", labelID)
	return l, nil
}

// DeleteLabel removes a label inside the actor's scope.
func (s *Service) DeleteLabel(ctx context.Context, actorID, labelID int64) error {
	id, err := s.guard.Authorize(ctx, actorID, rbac.ResourceSettings, rbac.OpDelete)
	if err != nil {
		return err
	}
	if _, err := s.loadLabel(ctx, id, labelID); err != nil {
		return err
	}
	if err := s.repo.DeleteLabel(ctx, labelID); err != nil {
		return err
	}
	s.record(ctx, actorID, "label.delete", labelID)
	return nil
}

// Workspace returns every known setting, filling unset keys with empty values.
func (s *Service) Workspace(ctx context.Context, actorID int64) ([]Setting, error) {
	if _, err := s.workspaceAccess(ctx, actorID, rbac.OpRead); err != nil {
		return nil, err
	}
	stored, err := s.repo.Settings(ctx)
	if err != nil {
		return nil, err
	}
	byKey := make(map[string]Setting, len(stored))
	for _, st := range stored {
		byKey[st.Key] = st
	}
	out := make([]Setting, 0, len(Keys()))
	for _, key := range Keys() {
		st, ok := byKey[key]
		if !ok {
			st = Setting{Key: key}
		}
		out = append(out, st)
	}
	return out, nil
}

// SetWorkspace stores one workspace setting.
func (s *Service) SetWorkspace(ctx context.Context, actorID int64, in SettingInput) error {
	id, err := s.workspaceAccess(ctx, actorID, rbac.OpUpdate)
	if err != nil {
		return err
	}
	if err := shared.ValidateStruct(in); err != nil {
		return err
	}
	if err := s.repo.PutSetting(ctx, in, id.UserID); err != nil {
		return err
	}
	shared.RecordAudit(ctx, s.audit, s.logger, shared.AuditLog{
		ActorID: actorID, Action: "setting.update", Entity: "workspace", EntityID: workspaceID,
		Meta: map[string]any{"key": in.Key},
	})
	return nil
}

// Departments lists the departments labels may be attached to.
func (s *Service) Departments(ctx context.Context, actorID int64) ([]Department, error) {
	id, err := s.guard.Authorize(ctx, actorID, rbac.ResourceSettings, rbac.OpRead)
	if err != nil {
		return nil, err
	}
	return s.repo.Departments(ctx, rbac.ScopeFor(id, rbac.ResourceSettings))
}

// CanEditWorkspace reports whether the actor sees workspace settings at all.
func CanEditWorkspace(id *rbac.Identity) bool {
	scope := rbac.ScopeFor(id, rbac.ResourceSettings)
	return scope.All() && id.Can(rbac.ResourceSettings, rbac.OpRead)
}

func (s *Service) workspaceAccess(ctx context.Context, actorID int64, op rbac.Operation) (*rbac.Identity, error) {
	id, err := s.guard.Authorize(ctx, actorID, rbac.ResourceSettings, op)
	if err != nil {
		return nil, err
	}
	if !rbac.ScopeFor(id, rbac.ResourceSettings).All() {
		return nil, rbac.ErrForbidden
	}
	return id, nil
}

func (s *Service) placeLabel(id *rbac.Identity, in *LabelInput) error {
	scope := rbac.ScopeFor(id, rbac.ResourceSettings)
	if in.DepartmentID == nil && scope.Kind == rbac.ScopeDepartment {
		dept := scope.DepartmentID
		in.DepartmentID = &dept
	}
	if err := shared.ValidateStruct(*in); err != nil {
		return err
	}
	if !scope.All() && !scope.AllowsDepartment(in.DepartmentID) {
		return rbac.ErrForbidden
	}
	return nil
}

func (s *Service) loadLabel(ctx context.Context, id *rbac.Identity, labelID int64) (Label, error) {
	l, err := s.repo.Label(ctx, labelID)
	if err := rbac.ScopeFor(id, rbac.ResourceSettings).Enforce(err, rbac.Row{DepartmentID: l.DepartmentID}); err != nil {
		return Label{}, err
	}
	return l, nil
}

func (s *Service) record(ctx context.Context, actorID int64, action string, labelID int64) {
	shared.RecordAudit(ctx, s.audit, s.logger, shared.AuditLog{ActorID: actorID, Action: action, Entity: "label", EntityID: labelID})
}
