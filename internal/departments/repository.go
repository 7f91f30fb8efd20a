package departments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pms-suite/pms/internal/platform/db"
	"github.com/pms-suite/pms/internal/platform/httpx"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const departmentColumns = `id, name, description, created_at, updated_at`

// List returns all departments ordered by name.
func (r *Repository) List(ctx context.Context) ([]Department, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+departmentColumns+` FROM departments ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Department
	for rows.Next() {
		d, err := scanDepartment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Get fetches a department by id.
func (r *Repository) Get(ctx context.Context, id int64) (Department, error) {
	d, err := scanDepartment(r.pool.QueryRow(ctx, `SELECT `+departmentColumns+` FROM departments WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Department{}, ErrNotFound
	}
	return d, err
}

// Create inserts a department.
func (r *Repository) Create(ctx context.Context, in Input) (Department, error) {
	d, err := scanDepartment(r.pool.QueryRow(ctx, `INSERT INTO departments (name, description)
VALUES ($1, $2) RETURNING `+departmentColumns, strings.TrimSpace(in.Name), in.Description))
	return d, mapWriteErr(err)
}

// Update changes a department.
func (r *Repository) Update(ctx context.Context, id int64, in Input) (Department, error) {
	d, err := scanDepartment(r.pool.QueryRow(ctx, `UPDATE departments SET name = $2, description = $3, updated_at = NOW()
WHERE id = $1 RETURNING `+departmentColumns, id, strings.TrimSpace(in.Name), in.Description))
	if errors.Is(err, pgx.ErrNoRows) {
		return Department{}, ErrNotFound
	}
	return d, mapWriteErr(err)
}

// Delete removes a department that no project references.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM departments WHERE id = $1`, id)
	if err != nil {
		return mapWriteErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func mapWriteErr(err error) error {
	switch {
	case err == nil:
		return nil
	case db.IsUniqueViolation(err):
		return fmt.Errorf("department name already used: %w", httpx.ErrDuplicate)
	case db.IsForeignKeyViolation(err):
		return fmt.Errorf("%w: department still owns projects", httpx.ErrValidation)
	default:
		return err
	}
}

func scanDepartment(row pgx.Row) (Department, error) {
	var d Department
	err := row.Scan(&d.ID, &d.Name, &d.Description, &d.CreatedAt, &d.UpdatedAt)
	return d, err
}
