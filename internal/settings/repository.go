package settings

import (
	"context"
	"errors"
	"fmt"
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

const labelSelect = `SELECT l.id, l.name, l.color, l.department_id, COALESCE(d.name, ''), l.created_at
FROM labels l LEFT JOIN departments d ON d.id = l.department_id`

// Labels lists labels inside scope by name.
func (r *Repository) Labels(ctx context.Context, scope rbac.Scope) ([]Label, error) {
	query := labelSelect + ` WHERE TRUE`
	var args []any
	scope.Apply(&query, &args, rbac.Columns{Department: "l.department_id"})
	query += ` ORDER BY l.name, l.id`
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Label
	for rows.Next() {
		l, err := scanLabel(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// Label fetches one label.
func (r *Repository) Label(ctx context.Context, id int64) (Label, error) {
	l, err := scanLabel(r.pool.QueryRow(ctx, labelSelect+` WHERE l.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Label{}, ErrLabelNotFound
	}
	return l, err
}

// CreateLabel inserts a label.
func (r *Repository) CreateLabel(ctx context.Context, in LabelInput) (Label, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO labels (name, color, department_id) VALUES ($1, $2, $3) RETURNING id`,
		strings.TrimSpace(in.Name), strings.ToLower(in.Color), in.DepartmentID).Scan(&id)
	if err != nil {
		return Label{}, mapWriteErr(err)
	}
	return r.Label(ctx, id)
}

// UpdateLabel changes a label.
func (r *Repository) UpdateLabel(ctx context.Context, id int64, in LabelInput) (Label, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE labels SET name = $2, color = $3, department_id = $4 WHERE id = $1`,
		id, strings.TrimSpace(in.Name), strings.ToLower(in.Color), in.DepartmentID)
	if err != nil {
		return Label{}, mapWriteErr(err)
	}
	if tag.RowsAffected() == 0 {
		return Label{}, ErrLabelNotFound
	}
	return r.Label(ctx, id)
}

// DeleteLabel removes a label.
func (r *Repository) DeleteLabel(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM labels WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrLabelNotFound
	}
	return nil
}

// Settings returns every stored workspace setting.
func (r *Repository) Settings(ctx context.Context) ([]Setting, error) {
	rows, err := r.pool.Query(ctx, `SELECT key, value, updated_by, updated_at FROM workspace_settings ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Setting
	for rows.Next() {
		var s Setting
		if err := rows.Scan(&s.Key, &s.Value, &s.UpdatedBy, &s.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// PutSetting inserts or replaces a workspace setting.
func (r *Repository) PutSetting(ctx context.Context, in SettingInput, actorID int64) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO workspace_settings (key, value, updated_by, updated_at)
VALUES ($1, $2, $3, NOW())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_by = EXCLUDED.updated_by, updated_at = NOW()`,
		in.Key, strings.TrimSpace(in.Value), actorID)
	return err
}

// Departments lists departments inside scope for the label form.
func (r *Repository) Departments(ctx context.Context, scope rbac.Scope) ([]Department, error) {
	query := `SELECT d.id, d.name FROM departments d WHERE TRUE`
	var args []any
	scope.Apply(&query, &args, rbac.Columns{Department: "d.id"})
	query += ` ORDER BY d.name`
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Department
	for rows.Next() {
		var d Department
		if err := rows.Scan(&d.ID, &d.Name); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func scanLabel(row pgx.Row) (Label, error) {
	var l Label
	err := row.Scan(&l.ID, &l.Name, &l.Color, &l.DepartmentID, &l.DepartmentName, &l.CreatedAt)
	return l, err
}

func mapWriteErr(err error) error {
	switch {
	case db.IsUniqueViolation(err):
		return fmt.Errorf("label name already used: %w", httpx.ErrDuplicate)
	case db.IsForeignKeyViolation(err):
		return fmt.Errorf("%w: unknown department", httpx.ErrValidation)
	default:
		return err
	}
}
