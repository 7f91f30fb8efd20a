package tasks

import (
	"fmt"
	"time"

	"github.com/pms-suite/pms/internal/platform/httpx"
	"github.com/pms-suite/pms/internal/shared"
)

var (
	// ErrNotFound is returned when a task does not exist.
	ErrNotFound = fmt.Errorf("task %w", httpx.ErrNotFound)
	// ErrCommentNotFound is returned when a comment does not exist.
	ErrCommentNotFound = fmt.Errorf("comment %w", httpx.ErrNotFound)
	// ErrProjectNotFound is returned when the task's project does not exist.
	ErrProjectNotFound = fmt.Errorf("project %w", httpx.ErrNotFound)
)

// Status is the workflow state of a task.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusReview     Status = "review"
	StatusDone       Status = "done"
)

// Statuses lists task statuses in workflow order.
func Statuses() []Status {
	return []Status{StatusTodo, StatusInProgress, StatusReview, StatusDone}
}

// Priority orders tasks by urgency.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Priorities lists priorities from lowest to highest.
func Priorities() []Priority {
	return []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}
}

// Task is a unit of work inside a project. DepartmentID is the project's.
type Task struct {
	ID           int64
	ProjectID    int64
	ProjectName  string
	DepartmentID int64
	MilestoneID  *int64
	Title        string
	Description  string
	Status       Status
	Priority     Priority
	AssigneeID   *int64
	AssigneeName string
	DueDate      *time.Time
	Approval     shared.ApprovalStatus
	CreatedBy    int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Overdue reports whether the task is past due and not done. Due dates are
// calendar days, so the comparison is against now's date in its own location,
// matching the SQL `due_date < $1::date`.
func (t Task) Overdue(now time.Time) bool {
	if t.DueDate == nil || t.Status == StatusDone {
		return false
	}
	return calendarDay(*t.DueDate).Before(calendarDay(now))
}

func calendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Input carries the editable task fields. ProjectID is fixed after creation.
type Input struct {
	ProjectID   int64 `validate:"gt=0"`
	MilestoneID *int64
	Title       string   `validate:"required,max=200"`
	Description string   `validate:"max=8000"`
	Status      Status   `validate:"omitempty,oneof=todo in_progress review done"`
	Priority    Priority `validate:"omitempty,oneof=low medium high urgent"`
	AssigneeID  *int64
	DueDate     *time.Time
}

// ListFilter narrows task listings.
type ListFilter struct {
	ProjectID  *int64
	Status     Status
	AssigneeID *int64
	Page       shared.CursorPage
}

// Page is one cursor page of tasks.
type Page struct {
	Tasks []Task
	shared.CursorResult
}

// Comment is a note left on a task.
type Comment struct {
	ID         int64
	TaskID     int64
	AuthorID   int64
	AuthorName string
	Body       string
	CreatedAt  time.Time
}

// CommentInput carries a new comment.
type CommentInput struct {
	Body string `validate:"required,max=4000"`
}

// Assignee is an active user who can own tasks.
type Assignee struct {
	ID           int64
	Name         string
	Email        string
	DepartmentID *int64
}

// ProjectOption and MilestoneOption populate task forms.
type ProjectOption struct {
	ID           int64
	Name         string
	DepartmentID int64
}

type MilestoneOption struct {
	ID        int64
	ProjectID int64
	Title     string
}
