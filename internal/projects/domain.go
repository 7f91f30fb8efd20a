package projects

import (
	"fmt"
	"time"

	"github.com/pms-suite/pms/internal/platform/httpx"
	"github.com/pms-suite/pms/internal/shared"
)

// ErrNotFound is returned when a project does not exist.
var ErrNotFound = fmt.Errorf("project %w", httpx.ErrNotFound)

// Status is the lifecycle state of a project.
type Status string

const (
	StatusPlanning  Status = "planning"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusArchived  Status = "archived"
)

// Statuses lists every project status in lifecycle order.
func Statuses() []Status {
	return []Status{StatusPlanning, StatusActive, StatusCompleted, StatusArchived}
}

// Project is owned by exactly one department.
type Project struct {
	ID             int64
	Name           string
	Description    string
	DepartmentID   int64
	DepartmentName string
	Status         Status
	Approval       shared.ApprovalStatus
	StartDate      *time.Time
	EndDate        *time.Time
	CreatedBy      int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Input carries the editable project fields.
type Input struct {
	Name         string `validate:"required,max=160"`
	Description  string `validate:"max=4000"`
	DepartmentID int64  `validate:"gt=0"`
	Status       Status `validate:"omitempty,oneof=planning active completed archived"`
	StartDate    *time.Time
	EndDate      *time.Time
}

// ListFilter narrows the project list.
type ListFilter struct {
	Status   Status
	Approval shared.ApprovalStatus
	Page     shared.CursorPage
}

// Page is one page of projects.
type Page struct {
	Projects []Project
	shared.CursorResult
}

// Department is a department selectable on project forms.
type Department struct {
	ID   int64
	Name string
}
