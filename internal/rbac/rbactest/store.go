// Package rbactest provides in-memory identities for service tests.
package rbactest

import (
	"context"
	"sync"

	"github.com/pms-suite/pms/internal/rbac"
)

// Store is an in-memory rbac.IdentityStore.
type Store struct {
	mu         sync.Mutex
	identities map[int64]rbac.Identity
}

// NewStore returns a Store holding ids.
func NewStore(ids ...rbac.Identity) *Store {
	s := &Store{identities: make(map[int64]rbac.Identity, len(ids))}
	for _, id := range ids {
		s.identities[id.UserID] = id
	}
	return s
}

// Put adds or replaces an identity.
func (s *Store) Put(id rbac.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identities[id.UserID] = id
}

// LoadIdentity implements rbac.IdentityStore.
func (s *Store) LoadIdentity(ctx context.Context, userID int64) (rbac.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.identities[userID]
	if !ok {
		return rbac.Identity{}, rbac.ErrIdentityNotFound
	}
	return id, nil
}

// Guard builds a Guard over the given identities.
func Guard(ids ...rbac.Identity) *rbac.Guard {
	return rbac.NewGuard(rbac.NewResolver(NewStore(ids...)), nil)
}

// Dept returns a pointer to a department id.
func Dept(id int64) *int64 {
	return &id
}
