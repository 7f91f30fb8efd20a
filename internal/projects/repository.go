package projects

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
	"github.com/pms-suite/pms/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const projectSelect = `SELECT p.id, p.name, p.description, p.department_id, d.name, p.status, p.approval_status,
p.start_date, p.end_date, p.created_by, p.created_at, p.updated_at
FROM projects p JOIN departments d ON d.id = p.department_id`

// List returns up to page.FetchLimit projects inside scope, newest first.
func (r *Repository) List(ctx context.Context, filter ListFilter, scope rbac.Scope) ([]Project, error) {
	query := projectSelect + ` WHERE TRUE`
	var args []any
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += ` AND p.status = $` + strconv.Itoa(len(args))
	}
	if filter.Approval != "" {
		args = append(args, string(filter.Approval))
		query += ` AND p.approval_status = $` + strconv.Itoa(len(args))
	}
	if filter.Page.After > 0 {
		args = append(args, filter.Page.After)
		query += ` AND p.id < $` + strconv.Itoa(len(args))
	}
	scope.Apply(&query, &args, rbac.Columns{Department: "p.department_id"})
	args = append(args, filter.Page.FetchLimit())
	query += ` ORDER BY p.id DESC LIMIT $` + strconv.Itoa(len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Get fetches a project by id.
func (r *Repository) Get(ctx context.Context, id int64) (Project, error) {
	p, err := scanProject(r.pool.QueryRow(ctx, projectSelect+` WHERE p.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Project{}, ErrNotFound
	}
	return p, err
}

// Create inserts a project pending approval.
func (r *Repository) Create(ctx context.Context, in Input, createdBy int64) (Project, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO projects (name, description, department_id, status, approval_status, start_date, end_date, created_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		strings.TrimSpace(in.Name), in.Description, in.DepartmentID, string(in.Status), string(shared.ApprovalPending),
		in.StartDate, in.EndDate, createdBy).Scan(&id)
	if err != nil {
		return Project{}, mapWriteErr(err)
	}
	return r.Get(ctx, id)
}

// Update changes a project.
func (r *Repository) Update(ctx context.Context, id int64, in Input) (Project, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE projects SET name = $2, description = $3, department_id = $4, status = $5,
start_date = $6, end_date = $7, updated_at = NOW() WHERE id = $1`,
		id, strings.TrimSpace(in.Name), in.Description, in.DepartmentID, string(in.Status), in.StartDate, in.EndDate)
	if err != nil {
		return Project{}, mapWriteErr(err)
	}
	if tag.RowsAffected() == 0 {
		return Project{}, ErrNotFound
	}
	return r.Get(ctx, id)
}

// Delete removes a project with its milestones and tasks.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetApproval stores the approval state.
func (r *Repository) SetApproval(ctx context.Context, id int64, status shared.ApprovalStatus) error {
	tag, err := r.pool.Exec(ctx, `UPDATE projects SET approval_status = $2, updated_at = NOW() WHERE id = $1`, id, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Departments lists departments a project may be filed under inside scope.
func (r *Repository) Departments(ctx context.Context, scope rbac.Scope) ([]Department, error) {
	query := `SELECT id, name FROM departments WHERE TRUE`
	var args []any
	scope.Apply(&query, &args, rbac.Columns{Department: "id"})
	query += ` ORDER BY name`
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

func mapWriteErr(err error) error {
	if db.IsForeignKeyViolation(err) {
		return fmt.Errorf("%w: unknown department", httpx.ErrValidation)
	}
	return err
}

func scanProject(row pgx.Row) (Project, error) {
	var p Project
	var status, approval string
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.DepartmentID, &p.DepartmentName, &status, &approval,
		&p.StartDate, &p.EndDate, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt)
	p.Status = Status(status)
	p.Approval = shared.ApprovalStatus(approval)
	return p, err
}
