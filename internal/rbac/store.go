package rbac

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGIdentityStore reads identities from the users table.
type PGIdentityStore struct {
	pool *pgxpool.Pool
}

// NewPGIdentityStore constructs the store.
func NewPGIdentityStore(pool *pgxpool.Pool) *PGIdentityStore {
	return &PGIdentityStore{pool: pool}
}

// LoadIdentity implements IdentityStore.
func (s *PGIdentityStore) LoadIdentity(ctx context.Context, userID int64) (Identity, error) {
	const query = `SELECT id, role, power, department_id FROM users WHERE id = $1 AND is_active`
	var (
		id           Identity
		role, power  string
		departmentID *int64
	)
	err := s.pool.QueryRow(ctx, query, userID).Scan(&id.UserID, &role, &power, &departmentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Identity{}, ErrIdentityNotFound
		}
		return Identity{}, err
	}
	id.Role = Role(role)
	id.Power = Power(power)
	id.DepartmentID = departmentID
	return id, nil
}

var _ IdentityStore = (*PGIdentityStore)(nil)
