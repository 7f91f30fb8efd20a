package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pms-suite/pms/internal/rbac"
)

// Repository runs the dashboard count queries.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CountProjects counts projects inside scope.
func (r *Repository) CountProjects(ctx context.Context, scope rbac.Scope) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM projects p WHERE p.status <> 'archived'`, nil, scope,
		rbac.Columns{Department: "p.department_id"})
}

// CountOpenTasks counts tasks not done inside scope.
func (r *Repository) CountOpenTasks(ctx context.Context, scope rbac.Scope) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM tasks t JOIN projects p ON p.id = t.project_id WHERE t.status <> 'done'`, nil, scope,
		rbac.Columns{Department: "p.department_id", Assignee: "t.assignee_id"})
}

// CountAssignedOpen counts open tasks assigned to userID.
func (r *Repository) CountAssignedOpen(ctx context.Context, userID int64) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tasks WHERE assignee_id = $1 AND status <> 'done'`, userID).Scan(&n)
	return n, err
}

// CountOverdueAssigned counts open tasks of userID due before asOf.
func (r *Repository) CountOverdueAssigned(ctx context.Context, userID int64, asOf time.Time) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tasks WHERE assignee_id = $1 AND status <> 'done' AND due_date < $2::date`,
		userID, asOf).Scan(&n)
	return n, err
}

// CountPending counts rows of table awaiting approval inside scope.
func (r *Repository) CountPending(ctx context.Context, table Table, scope rbac.Scope) (int, error) {
	var query string
	cols := rbac.Columns{Department: "p.department_id"}
	switch table {
	case TableProjects:
		query = `SELECT COUNT(*) FROM projects p WHERE p.approval_status = 'pending'`
	case TableMilestones:
		query = `SELECT COUNT(*) FROM milestones m JOIN projects p ON p.id = m.project_id WHERE m.approval_status = 'pending'`
	case TableTasks:
		query = `SELECT COUNT(*) FROM tasks t JOIN projects p ON p.id = t.project_id WHERE t.approval_status = 'pending'`
		cols.Assignee = "t.assignee_id"
	default:
		return 0, fmt.Errorf("dashboard: unknown table %q", table)
	}
	return r.count(ctx, query, nil, scope, cols)
}

func (r *Repository) count(ctx context.Context, query string, args []any, scope rbac.Scope, cols rbac.Columns) (int, error) {
	scope.Apply(&query, &args, cols)
	var n int
	err := r.pool.QueryRow(ctx, query, args...).Scan(&n)
	return n, err
}
