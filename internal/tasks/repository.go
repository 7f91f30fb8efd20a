package tasks

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

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

// scopeColumns maps row scope onto the task listing joins.
var scopeColumns = rbac.Columns{Department: "p.department_id", Assignee: "t.assignee_id"}

const taskSelect = `SELECT t.id, t.project_id, p.name, p.department_id, t.milestone_id, t.title, t.description,
t.status, t.priority, t.assignee_id, COALESCE(u.name, ''), t.due_date, t.approval_status, t.created_by,
t.created_at, t.updated_at
FROM tasks t
JOIN projects p ON p.id = t.project_id
LEFT JOIN users u ON u.id = t.assignee_id`

// List returns up to page.FetchLimit tasks inside scope, newest first.
func (r *Repository) List(ctx context.Context, filter ListFilter, scope rbac.Scope) ([]Task, error) {
	query := taskSelect + ` WHERE TRUE`
	var args []any
	if filter.ProjectID != nil {
		args = append(args, *filter.ProjectID)
		query += ` AND t.project_id = $` + strconv.Itoa(len(args))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += ` AND t.status = $` + strconv.Itoa(len(args))
	}
	if filter.AssigneeID != nil {
		args = append(args, *filter.AssigneeID)
		query += ` AND t.assignee_id = $` + strconv.Itoa(len(args))
	}
	if filter.Page.After > 0 {
		args = append(args, filter.Page.After)
		query += ` AND t.id < $` + strconv.Itoa(len(args))
	}
	scope.Apply(&query, &args, scopeColumns)
	args = append(args, filter.Page.FetchLimit())
	query += ` ORDER BY t.id DESC LIMIT $` + strconv.Itoa(len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Get fetches a task by id.
func (r *Repository) Get(ctx context.Context, id int64) (Task, error) {
	t, err := scanTask(r.pool.QueryRow(ctx, taskSelect+` WHERE t.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Task{}, ErrNotFound
	}
	return t, err
}

// ProjectDepartment returns the department owning a project.
func (r *Repository) ProjectDepartment(ctx context.Context, projectID int64) (int64, error) {
	var dept int64
	err := r.pool.QueryRow(ctx, `SELECT department_id FROM projects WHERE id = $1`, projectID).Scan(&dept)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrProjectNotFound
	}
	return dept, err
}

// MilestoneProject returns the project a milestone belongs to.
func (r *Repository) MilestoneProject(ctx context.Context, milestoneID int64) (int64, error) {
	var projectID int64
	err := r.pool.QueryRow(ctx, `SELECT project_id FROM milestones WHERE id = $1`, milestoneID).Scan(&projectID)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, shared.Invalid("MilestoneID", "milestone does not exist")
	}
	return projectID, err
}

// Assignee loads an active user by id.
func (r *Repository) Assignee(ctx context.Context, userID int64) (Assignee, error) {
	var a Assignee
	err := r.pool.QueryRow(ctx, `SELECT id, name, email, department_id FROM users WHERE id = $1 AND is_active`, userID).
		Scan(&a.ID, &a.Name, &a.Email, &a.DepartmentID)
	if errors.Is(err, pgx.ErrNoRows) {
		return Assignee{}, shared.Invalid("AssigneeID", "assignee does not exist")
	}
	return a, err
}

// Assignees lists the active users of a department by name.
func (r *Repository) Assignees(ctx context.Context, deptID int64) ([]Assignee, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, email, department_id FROM users
WHERE department_id = $1 AND is_active ORDER BY name`, deptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Assignee
	for rows.Next() {
		var a Assignee
		if err := rows.Scan(&a.ID, &a.Name, &a.Email, &a.DepartmentID); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Create inserts a task pending approval.
func (r *Repository) Create(ctx context.Context, in Input, createdBy int64) (Task, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO tasks (project_id, milestone_id, title, description, status, priority,
assignee_id, due_date, approval_status, created_by)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id`,
		in.ProjectID, in.MilestoneID, strings.TrimSpace(in.Title), in.Description, string(in.Status), string(in.Priority),
		in.AssigneeID, in.DueDate, string(shared.ApprovalPending), createdBy).Scan(&id)
	if err != nil {
		return Task{}, err
	}
	return r.Get(ctx, id)
}

// Update changes the editable fields of a task.
func (r *Repository) Update(ctx context.Context, id int64, in Input) (Task, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE tasks SET milestone_id = $2, title = $3, description = $4, status = $5,
priority = $6, assignee_id = $7, due_date = $8, updated_at = NOW() WHERE id = $1`,
		id, in.MilestoneID, strings.TrimSpace(in.Title), in.Description, string(in.Status), string(in.Priority),
		in.AssigneeID, in.DueDate)
	if err != nil {
		return Task{}, err
	}
	if tag.RowsAffected() == 0 {
		return Task{}, ErrNotFound
	}
	return r.Get(ctx, id)
}

// Delete removes a task and its comments.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
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
	tag, err := r.pool.Exec(ctx, `UPDATE tasks SET approval_status = $2, updated_at = NOW() WHERE id = $1`, id, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Comments lists the comments of a task, oldest first.
func (r *Repository) Comments(ctx context.Context, taskID int64) ([]Comment, error) {
	rows, err := r.pool.Query(ctx, `SELECT c.id, c.task_id, c.author_id, u.name, c.body, c.created_at
FROM task_comments c JOIN users u ON u.id = c.author_id WHERE c.task_id = $1 ORDER BY c.created_at, c.id`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Comment
	for rows.Next() {
		var c Comment
		if err := rows.Scan(&c.ID, &c.TaskID, &c.AuthorID, &c.AuthorName, &c.Body, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Comment fetches one comment.
func (r *Repository) Comment(ctx context.Context, id int64) (Comment, error) {
	var c Comment
	err := r.pool.QueryRow(ctx, `SELECT c.id, c.task_id, c.author_id, u.name, c.body, c.created_at
FROM task_comments c JOIN users u ON u.id = c.author_id WHERE c.id = $1`, id).
		Scan(&c.ID, &c.TaskID, &c.AuthorID, &c.AuthorName, &c.Body, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Comment{}, ErrCommentNotFound
	}
	return c, err
}

// AddComment inserts a comment.
func (r *Repository) AddComment(ctx context.Context, taskID, authorID int64, body string) (Comment, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO task_comments (task_id, author_id, body) VALUES ($1, $2, $3) RETURNING id`,
		taskID, authorID, strings.TrimSpace(body)).Scan(&id)
	if err != nil {
		return Comment{}, err
	}
	return r.Comment(ctx, id)
}

// DeleteComment removes a comment.
func (r *Repository) DeleteComment(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM task_comments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCommentNotFound
	}
	return nil
}

// ProjectOptions lists projects inside scope for task forms.
func (r *Repository) ProjectOptions(ctx context.Context, scope rbac.Scope) ([]ProjectOption, error) {
	query := `SELECT p.id, p.name, p.department_id FROM projects p WHERE p.status <> 'archived'`
	var args []any
	scope.Apply(&query, &args, rbac.Columns{Department: "p.department_id"})
	query += ` ORDER BY p.name`
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ProjectOption
	for rows.Next() {
		var p ProjectOption
		if err := rows.Scan(&p.ID, &p.Name, &p.DepartmentID); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// MilestoneOptions lists open milestones of projects inside scope.
func (r *Repository) MilestoneOptions(ctx context.Context, scope rbac.Scope) ([]MilestoneOption, error) {
	query := `SELECT m.id, m.project_id, m.title FROM milestones m JOIN projects p ON p.id = m.project_id
WHERE m.status = 'open'`
	var args []any
	scope.Apply(&query, &args, rbac.Columns{Department: "p.department_id"})
	query += ` ORDER BY m.due_date NULLS LAST, m.id`
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []MilestoneOption
	for rows.Next() {
		var m MilestoneOption
		if err := rows.Scan(&m.ID, &m.ProjectID, &m.Title); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanTask(row pgx.Row) (Task, error) {
	var t Task
	var status, priority, approval string
	err := row.Scan(&t.ID, &t.ProjectID, &t.ProjectName, &t.DepartmentID, &t.MilestoneID, &t.Title, &t.Description,
		&status, &priority, &t.AssigneeID, &t.AssigneeName, &t.DueDate, &approval, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt)
	t.Status = Status(status)
	t.Priority = Priority(priority)
	t.Approval = shared.ApprovalStatus(approval)
	return t, err
}
