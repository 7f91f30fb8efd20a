// Package dashboard builds the home page summary.
package dashboard

import (
	"context"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/pms-suite/pms/internal/rbac"
)

const requestTimeout = 2 * time.Second

// Table names a table that carries an approval_status column.
type Table string

const (
	TableProjects   Table = "projects"
	TableMilestones Table = "milestones"
	TableTasks      Table = "tasks"
)

// RepositoryPort counts rows inside a scope.
type RepositoryPort interface {
	CountProjects(ctx context.Context, scope rbac.Scope) (int, error)
	CountOpenTasks(ctx context.Context, scope rbac.Scope) (int, error)
	CountAssignedOpen(ctx context.Context, userID int64) (int, error)
	CountOverdueAssigned(ctx context.Context, userID int64, asOf time.Time) (int, error)
	CountPending(ctx context.Context, table Table, scope rbac.Scope) (int, error)
}

// Card is one summary tile. Hidden cards are never rendered.
type Card struct {
	Label string
	Value int
	Href  string
}

// Summary is the home page content.
type Summary struct {
	Cards      []Card
	AssignedTo int
	Overdue    int
}

// Service loads the dashboard counts.
type Service struct {
	repo   RepositoryPort
	guard  *rbac.Guard
	now    func() time.Time
	flight singleflight.Group
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, guard *rbac.Guard) *Service {
	return &Service{repo: repo, guard: guard, now: time.Now}
}

type pendingSource struct {
	table    Table
	resource rbac.Resource
	approve  rbac.Resource
	label    string
	href     string
}

var pendingSources = []pendingSource{
	{TableProjects, rbac.ResourceProjects, rbac.ResourceApproveProjects, "Projects awaiting approval", "/projects?approval=pending"},
	{TableMilestones, rbac.ResourceMilestones, rbac.ResourceApproveMilestones, "Milestones awaiting approval", "/projects"},
	{TableTasks, rbac.ResourceTasks, rbac.ResourceApproveTasks, "Tasks awaiting approval", "/tasks"},
}

// Summary loads every count the actor may see concurrently. Counts for
// resources outside the actor's role are left out rather than shown as zero.
// Concurrent requests from the same user share one build.
func (s *Service) Summary(ctx context.Context, actorID int64) (Summary, error) {
	id, err := s.guard.Identify(ctx, actorID)
	if err != nil {
		return Summary{}, err
	}
	key := strconv.FormatInt(id.UserID, 10) + ":" + string(id.Role) + ":" + string(id.Power)
	if id.DepartmentID != nil {
		key += ":" + strconv.FormatInt(*id.DepartmentID, 10)
	}
	ch := s.flight.DoChan(key, func() (any, error) {
		return s.build(context.WithoutCancel(ctx), id)
	})
	select {
	case <-ctx.Done():
		return Summary{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Summary{}, res.Err
		}
		return res.Val.(Summary), nil
	}
}

func (s *Service) build(ctx context.Context, id *rbac.Identity) (Summary, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	var (
		projects, openTasks, assigned, overdue int
		pending                                = make([]int, len(pendingSources))
		showProjects                           = id.Can(rbac.ResourceProjects, rbac.OpRead)
		showTasks                              = id.Can(rbac.ResourceTasks, rbac.OpRead)
	)
	g, ctx := errgroup.WithContext(ctx)
	if showProjects {
		g.Go(func() error {
			n, err := s.repo.CountProjects(ctx, rbac.ScopeFor(id, rbac.ResourceProjects))
			projects = n
			return err
		})
	}
	if showTasks {
		g.Go(func() error {
			n, err := s.repo.CountOpenTasks(ctx, rbac.ScopeFor(id, rbac.ResourceTasks))
			openTasks = n
			return err
		})
		g.Go(func() error {
			n, err := s.repo.CountAssignedOpen(ctx, id.UserID)
			assigned = n
			return err
		})
		g.Go(func() error {
			n, err := s.repo.CountOverdueAssigned(ctx, id.UserID, s.now())
			overdue = n
			return err
		})
	}
	for i, src := range pendingSources {
		if !id.Can(src.approve, rbac.OpUpdate) {
			continue
		}
		g.Go(func() error {
			n, err := s.repo.CountPending(ctx, src.table, rbac.ScopeFor(id, src.resource))
			pending[i] = n
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return Summary{}, err
	}

	out := Summary{AssignedTo: assigned, Overdue: overdue}
	if showProjects {
		out.Cards = append(out.Cards, Card{Label: "Projects", Value: projects, Href: "/projects"})
	}
	if showTasks {
		out.Cards = append(out.Cards,
			Card{Label: "Open tasks", Value: openTasks, Href: "/tasks"},
			Card{Label: "Assigned to me", Value: assigned, Href: "/tasks?mine=1"},
		)
	}
	for i, src := range pendingSources {
		if id.Can(src.approve, rbac.OpUpdate) {
			out.Cards = append(out.Cards, Card{Label: src.label, Value: pending[i], Href: src.href})
		}
	}
	return out, nil
}
