package rbac

import (
	"context"
	"errors"
	"fmt"

	"github.com/pms-suite/pms/internal/platform/httpx"
)

var (
	// ErrUnauthenticated means no active identity resolved for the caller.
	ErrUnauthenticated = fmt.Errorf("rbac: %w", httpx.ErrUnauthorized)
	// ErrForbidden means the identity resolved but the policy or row scope denies.
	ErrForbidden = fmt.Errorf("rbac: %w", httpx.ErrForbidden)
)

// DecisionObserver receives every decision made by a Guard.
type DecisionObserver interface {
	ObserveDecision(resource, operation string, allowed bool)
}

// Guard applies the per-action enforcement steps: resolve the caller, reject
// when absent, ask Can, reject when denied. Row scope is the caller's job,
// helped by ScopeFor.
type Guard struct {
	resolver IdentityResolver
	observer DecisionObserver
}

// NewGuard constructs a Guard. observer may be nil.
func NewGuard(resolver IdentityResolver, observer DecisionObserver) *Guard {
	return &Guard{resolver: resolver, observer: observer}
}

// Identify resolves the caller without a policy check.
func (g *Guard) Identify(ctx context.Context, userID int64) (*Identity, error) {
	if g == nil || g.resolver == nil {
		return nil, ErrUnauthenticated
	}
	id, err := g.resolver.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}
	if id == nil {
		return nil, ErrUnauthenticated
	}
	return id, nil
}

// Authorize resolves the caller and checks resource/op against the policy.
func (g *Guard) Authorize(ctx context.Context, userID int64, resource Resource, op Operation) (*Identity, error) {
	id, err := g.Identify(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := g.Check(id, resource, op); err != nil {
		return nil, err
	}
	return id, nil
}

// Check applies the policy to an already resolved identity.
func (g *Guard) Check(id *Identity, resource Resource, op Operation) error {
	allowed := id.Can(resource, op)
	if g != nil && g.observer != nil {
		g.observer.ObserveDecision(string(resource), string(op), allowed)
	}
	if !allowed {
		return ErrForbidden
	}
	return nil
}

// IsDenied reports whether err is an authentication or authorization denial.
func IsDenied(err error) bool {
	return errors.Is(err, httpx.ErrUnauthorized) || errors.Is(err, httpx.ErrForbidden)
}
