package users

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pms-suite/pms/internal/platform/db"
	"github.com/pms-suite/pms/internal/platform/httpx"
	"github.com/pms-suite/pms/internal/rbac"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userSelect = `SELECT u.id, u.email, u.name, u.role, u.power, u.department_id, COALESCE(d.name, ''),
u.is_active, u.created_at, u.updated_at
FROM users u LEFT JOIN departments d ON d.id = u.department_id`

// List returns users inside scope ordered by name.
func (r *Repository) List(ctx context.Context, filter ListFilter, scope rbac.Scope) ([]User, error) {
	query := userSelect + ` WHERE TRUE`
	var args []any
	if !filter.IncludeInactive {
		query += ` AND u.is_active`
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		args = append(args, "%"+q+"%")
		query += ` AND (u.name ILIKE $` + strconv.Itoa(len(args)) + ` OR u.email ILIKE $` + strconv.Itoa(len(args)) + `)`
	}
	scope.Apply(&query, &args, rbac.Columns{Department: "u.department_id"})
	query += ` ORDER BY u.name, u.id`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// Get fetches a user by id, active or not.
func (r *Repository) Get(ctx context.Context, id int64) (User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, userSelect+` WHERE u.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

// Create inserts a user with an already hashed password.
func (r *Repository) Create(ctx context.Context, in CreateInput, passwordHash string) (User, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO users (email, name, password_hash, role, power, department_id)
VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		strings.ToLower(strings.TrimSpace(in.Email)), strings.TrimSpace(in.Name), passwordHash,
		string(in.Role), string(in.Power), in.DepartmentID).Scan(&id)
	if err != nil {
		return User{}, mapWriteErr(err)
	}
	return r.Get(ctx, id)
}

// Update changes profile fields.
func (r *Repository) Update(ctx context.Context, id int64, in UpdateInput) (User, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET email = $2, name = $3, department_id = $4, updated_at = NOW() WHERE id = $1`,
		id, strings.ToLower(strings.TrimSpace(in.Email)), strings.TrimSpace(in.Name), in.DepartmentID)
	if err != nil {
		return User{}, mapWriteErr(err)
	}
	if tag.RowsAffected() == 0 {
		return User{}, ErrNotFound
	}
	return r.Get(ctx, id)
}

// SetAccess stores a new role and power.
func (r *Repository) SetAccess(ctx context.Context, id int64, in AccessInput) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET role = $2, power = $3, updated_at = NOW() WHERE id = $1`,
		id, string(in.Role), string(in.Power))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Deactivate disables a user and drops their recorded sessions.
func (r *Repository) Deactivate(ctx context.Context, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE users SET is_active = FALSE, updated_at = NOW() WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		_, err = tx.Exec(ctx, `DELETE FROM user_sessions WHERE user_id = $1`, id)
		return err
	})
}

// Departments lists departments selectable inside scope.
func (r *Repository) Departments(ctx context.Context, scope rbac.Scope) ([]DepartmentOption, error) {
	query := `SELECT id, name FROM departments WHERE TRUE`
	var args []any
	scope.Apply(&query, &args, rbac.Columns{Department: "id"})
	query += ` ORDER BY name`
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []DepartmentOption
	for rows.Next() {
		var d DepartmentOption
		if err := rows.Scan(&d.ID, &d.Name); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func mapWriteErr(err error) error {
	switch {
	case db.IsUniqueViolation(err):
		return fmt.Errorf("email already registered: %w", httpx.ErrDuplicate)
	case db.IsForeignKeyViolation(err):
		return fmt.Errorf("%w: unknown department", httpx.ErrValidation)
	default:
		return err
	}
}

func scanUser(row pgx.Row) (User, error) {
	var u User
	var role, power string
	err := row.Scan(&u.ID, &u.Email, &u.Name, &role, &power, &u.DepartmentID, &u.DepartmentName,
		&u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	u.Role = rbac.Role(role)
	u.Power = rbac.Power(power)
	return u, err
}
