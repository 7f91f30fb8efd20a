package milestones

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

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

const milestoneSelect = `SELECT m.id, m.project_id, p.name, p.department_id, m.title, m.description, m.due_date,
m.status, m.approval_status, m.created_by, m.created_at, m.updated_at
FROM milestones m JOIN projects p ON p.id = m.project_id`

// ProjectDepartment returns the department owning a project.
func (r *Repository) ProjectDepartment(ctx context.Context, projectID int64) (int64, error) {
	var dept int64
	err := r.pool.QueryRow(ctx, `SELECT department_id FROM projects WHERE id = $1`, projectID).Scan(&dept)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrProjectNotFound
	}
	return dept, err
}

// ListByProject returns the milestones of a project by due date.
func (r *Repository) ListByProject(ctx context.Context, projectID int64) ([]Milestone, error) {
	rows, err := r.pool.Query(ctx, milestoneSelect+` WHERE m.project_id = $1 ORDER BY m.due_date NULLS LAST, m.id`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Milestone
	for rows.Next() {
		m, err := scanMilestone(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Get fetches a milestone by id.
func (r *Repository) Get(ctx context.Context, id int64) (Milestone, error) {
	m, err := scanMilestone(r.pool.QueryRow(ctx, milestoneSelect+` WHERE m.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Milestone{}, ErrNotFound
	}
	return m, err
}

// Create inserts a milestone pending approval.
func (r *Repository) Create(ctx context.Context, projectID int64, in Input, createdBy int64) (Milestone, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO milestones (project_id, title, description, due_date, status, approval_status, created_by)
VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		projectID, strings.TrimSpace(in.Title), in.Description, in.DueDate, string(in.Status), string(shared.ApprovalPending), createdBy).Scan(&id)
	if err != nil {
		return Milestone{}, err
	}
	return r.Get(ctx, id)
}

// Update changes a milestone.
func (r *Repository) Update(ctx context.Context, id int64, in Input) (Milestone, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE milestones SET title = $2, description = $3, due_date = $4, status = $5, updated_at = NOW()
WHERE id = $1`, id, strings.TrimSpace(in.Title), in.Description, in.DueDate, string(in.Status))
	if err != nil {
		return Milestone{}, err
	}
	if tag.RowsAffected() == 0 {
		return Milestone{}, ErrNotFound
	}
	return r.Get(ctx, id)
}

// Delete removes a milestone; its tasks keep their project.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM milestones WHERE id = $1`, id)
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
	tag, err := r.pool.Exec(ctx, `UPDATE milestones SET approval_status = $2, updated_at = NOW() WHERE id = $1`, id, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanMilestone(row pgx.Row) (Milestone, error) {
	var m Milestone
	var status, approval string
	err := row.Scan(&m.ID, &m.ProjectID, &m.ProjectName, &m.DepartmentID, &m.Title, &m.Description, &m.DueDate,
		&status, &approval, &m.CreatedBy, &m.CreatedAt, &m.UpdatedAt)
	m.Status = Status(status)
	m.Approval = shared.ApprovalStatus(approval)
	return m, err
}
