package rbac

import (
	"context"
	"errors"
	"fmt"
)

// ErrIdentityNotFound is returned by an IdentityStore for unknown or inactive users.
var ErrIdentityNotFound = errors.New("rbac: identity not found")

// Identity is the authorization view of a user, read fresh on every check.
type Identity struct {
	UserID       int64
	Role         Role
	Power        Power
	DepartmentID *int64
}

// Can applies the decision function to this identity.
func (id *Identity) Can(resource Resource, op Operation) bool {
	if id == nil {
		return false
	}
	return Can(id.Role, id.Power, resource, op)
}

// InDepartment reports whether the identity belongs to department deptID.
func (id *Identity) InDepartment(deptID int64) bool {
	return id != nil && id.DepartmentID != nil && *id.DepartmentID == deptID
}

// IdentityStore loads the role, power and department of an active user.
type IdentityStore interface {
	LoadIdentity(ctx context.Context, userID int64) (Identity, error)
}

// IdentityResolver resolves a user ID into an Identity. A nil Identity with a
// nil error means the user does not resolve and must be denied.
type IdentityResolver interface {
	Resolve(ctx context.Context, userID int64) (*Identity, error)
}

// Resolver reads identities straight from the store; there is no cache so a
// role or power change applies to the very next check.
type Resolver struct {
	store IdentityStore
}

// NewResolver constructs a Resolver.
func NewResolver(store IdentityStore) *Resolver {
	return &Resolver{store: store}
}

// Resolve implements IdentityResolver.
func (r *Resolver) Resolve(ctx context.Context, userID int64) (*Identity, error) {
	if r == nil || r.store == nil || userID <= 0 {
		return nil, nil
	}
	id, err := r.store.LoadIdentity(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrIdentityNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("rbac: resolve identity: %w", err)
	}
	return &id, nil
}
