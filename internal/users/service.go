package users

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"golang.org/x/crypto/bcrypt"

	"github.com/pms-suite/pms/internal/rbac"
	"github.com/pms-suite/pms/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	List(ctx context.Context, filter ListFilter, scope rbac.Scope) ([]User, error)
	Get(ctx context.Context, id int64) (User, error)
	Create(ctx context.Context, in CreateInput, passwordHash string) (User, error)
	Update(ctx context.Context, id int64, in UpdateInput) (User, error)
	SetAccess(ctx context.Context, id int64, in AccessInput) error
	Deactivate(ctx context.Context, id int64) error
	Departments(ctx context.Context, scope rbac.Scope) ([]DepartmentOption, error)
}

// Service handles user business logic.
type Service struct {
	repo     RepositoryPort
	guard    *rbac.Guard
	audit    shared.AuditRecorder
	logger   *slog.Logger
	hashCost int
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, guard *rbac.Guard, audit shared.AuditRecorder, logger *slog.Logger) *Service {
	return &Service{repo: repo, guard: guard, audit: audit, logger: logger, hashCost: bcrypt.DefaultCost}
}

// WithHashCost overrides the bcrypt cost.
func (s *Service) WithHashCost(cost int) *Service {
	s.hashCost = cost
	return s
}

// List returns the users the actor may see.
func (s *Service) List(ctx context.Context, actorID int64, filter ListFilter) ([]User, error) {
	id, err := s.guard.Authorize(ctx, actorID, rbac.ResourceUsers, rbac.OpRead)
	if err != nil {
		return nil, err
	}
	return s.repo.List(ctx, filter, rbac.ScopeFor(id, rbac.ResourceUsers))
}

// Get returns one user inside the actor's scope.
func (s *Service) Get(ctx context.Context, actorID, userID int64) (User, error) {
	id, err := s.guard.Authorize(ctx, actorID, rbac.ResourceUsers, rbac.OpRead)
	if err != nil {
		return User{}, err
	}
	return s.load(ctx, id, userID)
}

// Create registers an account.
func (s *Service) Create(ctx context.Context, actorID int64, in CreateInput) (User, error) {
	id, err := s.guard.Authorize(ctx, actorID, rbac.ResourceUsers, rbac.OpCreate)
	if err != nil {
		return User{}, err
	}
	if err := shared.ValidateStruct(in); err != nil {
		return User{}, err
	}
	scope := rbac.ScopeFor(id, rbac.ResourceUsers)
	if in.DepartmentID == nil && scope.Kind == rbac.ScopeDepartment {
		dept := scope.DepartmentID
		in.DepartmentID = &dept
	}
	if !scope.AllowsDepartment(in.DepartmentID) {
		return User{}, rbac.ErrForbidden
	}
	if !canGrant(id, in.Role) {
		return User{}, rbac.ErrForbidden
	}
	if in.Power == "" {
		in.Power = rbac.DefaultPowerFor(in.Role)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
	if err != nil {
		return User{}, fmt.Errorf("users: hash password: %w", err)
	}
	u, err := s.repo.Create(ctx, in, string(hash))
	if err != nil {
		return User{}, err
	}
	s.record(ctx, actorID, "user.create", u.ID, map[string]any{"role": u.Role, "power": u.Power})
	return u, nil
}

// Update changes profile fields of a user inside the actor's scope.
func (s *Service) Update(ctx context.Context, actorID, userID int64, in UpdateInput) (User, error) {
	id, err := s.guard.Authorize(ctx, actorID, rbac.ResourceUsers, rbac.OpUpdate)
	if err != nil {
		return User{}, err
	}
	target, err := s.load(ctx, id, userID)
	if err != nil {
		return User{}, err
	}
	if err := shared.ValidateStruct(in); err != nil {
		return User{}, err
	}
	scope := rbac.ScopeFor(id, rbac.ResourceUsers)
	if !scope.AllowsDepartment(in.DepartmentID) || (target.ID != id.UserID && !canGrant(id, target.Role)) {
		return User{}, rbac.ErrForbidden
	}
	u, err := s.repo.Update(ctx, userID, in)
	if err != nil {
		return User{}, err
	}
	s.record(ctx, actorID, "user.update", u.ID, nil)
	return u, nil
}

// ChangeAccess sets a user's role and power. Nobody changes their own.
func (s *Service) ChangeAccess(ctx context.Context, actorID, userID int64, in AccessInput) (User, error) {
	id, err := s.guard.Authorize(ctx, actorID, rbac.ResourceUsers, rbac.OpUpdate)
	if err != nil {
		return User{}, err
	}
	if userID == id.UserID {
		return User{}, rbac.ErrForbidden
	}
	target, err := s.load(ctx, id, userID)
	if err != nil {
		return User{}, err
	}
	if err := shared.ValidateStruct(in); err != nil {
		return User{}, err
	}
	if !canGrant(id, target.Role) || !canGrant(id, in.Role) {
		return User{}, rbac.ErrForbidden
	}
	if err := s.repo.SetAccess(ctx, userID, in); err != nil {
		return User{}, err
	}
	s.record(ctx, actorID, "user.access", userID, map[string]any{
		"from_role": target.Role, "from_power": target.Power, "role": in.Role, "power": in.Power,
	})
	target.Role, target.Power = in.Role, in.Power
	return target, nil
}

// Deactivate disables an account inside the actor's scope.
func (s *Service) Deactivate(ctx context.Context, actorID, userID int64) error {
	id, err := s.guard.Authorize(ctx, actorID, rbac.ResourceUsers, rbac.OpDelete)
	if err != nil {
		return err
	}
	if userID == id.UserID {
		return rbac.ErrForbidden
	}
	target, err := s.load(ctx, id, userID)
	if err != nil {
		return err
	}
	if !canGrant(id, target.Role) {
		return rbac.ErrForbidden
	}
	if err := s.repo.Deactivate(ctx, userID); err != nil {
		return err
	}
	s.record(ctx, actorID, "user.deactivate", userID, nil)
	return nil
}

// DepartmentOptions lists departments the actor may place users into.
func (s *Service) DepartmentOptions(ctx context.Context, actorID int64) ([]DepartmentOption, error) {
	id, err := s.guard.Authorize(ctx, actorID, rbac.ResourceUsers, rbac.OpRead)
	if err != nil {
		return nil, err
	}
	return s.repo.Departments(ctx, rbac.ScopeFor(id, rbac.ResourceUsers))
}

// GrantableRoles lists the roles the actor may assign.
func (s *Service) GrantableRoles(ctx context.Context, actorID int64) ([]rbac.Role, error) {
	id, err := s.guard.Identify(ctx, actorID)
	if err != nil {
		return nil, err
	}
	var out []rbac.Role
	for _, role := range rbac.Roles() {
		if canGrant(id, role) {
			out = append(out, role)
		}
	}
	return out, nil
}

func (s *Service) load(ctx context.Context, id *rbac.Identity, userID int64) (User, error) {
	u, err := s.repo.Get(ctx, userID)
	if err := rbac.ScopeFor(id, rbac.ResourceUsers).Enforce(err, rbac.Row{DepartmentID: u.DepartmentID}); err != nil {
		return User{}, err
	}
	return u, nil
}

// canGrant reports whether id may assign role, or manage a user holding it.
// Department heads manage group leaders and members only.
func canGrant(id *rbac.Identity, role rbac.Role) bool {
	switch id.Role {
	case rbac.RoleAdmin:
		return role.Valid()
	case rbac.RoleDepartmentHead:
		return slices.Contains([]rbac.Role{rbac.RoleGroupLeader, rbac.RoleMember}, role)
	default:
		return false
	}
}

func (s *Service) record(ctx context.Context, actorID int64, action string, userID int64, meta map[string]any) {
	shared.RecordAudit(ctx, s.audit, s.logger, shared.AuditLog{ActorID: actorID, Action: action, Entity: "user", EntityID: userID, Meta: meta})
}
