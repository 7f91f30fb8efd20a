package jobs

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrAssignmentGone is returned when the task was deleted or reassigned
// before the notification ran.
var ErrAssignmentGone = errors.New("jobs: assignment no longer current")

// Assignment is the data an assignment email needs.
type Assignment struct {
	TaskID        int64
	TaskTitle     string
	ProjectName   string
	DueDate       *time.Time
	AssigneeName  string
	AssigneeEmail string
}

// OverdueTask is one line of an overdue digest.
type OverdueTask struct {
	TaskID        int64
	Title         string
	ProjectName   string
	DueDate       time.Time
	AssigneeID    int64
	AssigneeName  string
	AssigneeEmail string
}

// Store reads job inputs from PostgreSQL. Jobs run as the system, so these
// queries apply no row scope.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore constructs a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Assignment loads a task assignment if it is still current.
func (s *Store) Assignment(ctx context.Context, taskID, assigneeID int64) (Assignment, error) {
	var a Assignment
	err := s.pool.QueryRow(ctx, `SELECT t.id, t.title, p.name, t.due_date, u.name, u.email
FROM tasks t
JOIN projects p ON p.id = t.project_id
JOIN users u ON u.id = t.assignee_id
WHERE t.id = $1 AND t.assignee_id = $2 AND u.is_active`, taskID, assigneeID).
		Scan(&a.TaskID, &a.TaskTitle, &a.ProjectName, &a.DueDate, &a.AssigneeName, &a.AssigneeEmail)
	if errors.Is(err, pgx.ErrNoRows) {
		return Assignment{}, ErrAssignmentGone
	}
	return a, err
}

// OverdueTasks lists open tasks due before asOf, grouped by assignee.
func (s *Store) OverdueTasks(ctx context.Context, asOf time.Time) ([]OverdueTask, error) {
	rows, err := s.pool.Query(ctx, `SELECT t.id, t.title, p.name, t.due_date, u.id, u.name, u.email
FROM tasks t
JOIN projects p ON p.id = t.project_id
JOIN users u ON u.id = t.assignee_id
WHERE t.status <> 'done' AND t.due_date < $1::date AND u.is_active
ORDER BY u.id, t.due_date, t.id`, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []OverdueTask
	for rows.Next() {
		var o OverdueTask
		if err := rows.Scan(&o.TaskID, &o.Title, &o.ProjectName, &o.DueDate, &o.AssigneeID, &o.AssigneeName, &o.AssigneeEmail); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// DigestEnabled reads the overdue_digest_enabled workspace setting. A missing
// setting means enabled.
func (s *Store) DigestEnabled(ctx context.Context) (bool, error) {
	var value string
	err := s.pool.QueryRow(ctx, `SELECT value FROM workspace_settings WHERE key = 'overdue_digest_enabled'`).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "false", "0", "no", "off":
		return false, nil
	}
	return true, nil
}
