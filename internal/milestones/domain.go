package milestones

import (
	"fmt"
	"time"

	"github.com/pms-suite/pms/internal/platform/httpx"
	"github.com/pms-suite/pms/internal/shared"
)

var (
	// ErrNotFound is returned when a milestone does not exist.
	ErrNotFound = fmt.Errorf("milestone %w", httpx.ErrNotFound)
	// ErrProjectNotFound is returned when the parent project does not exist.
	ErrProjectNotFound = fmt.Errorf("project %w", httpx.ErrNotFound)
)

// Status is the state of a milestone.
type Status string

const (
	StatusOpen      Status = "open"
	StatusCompleted Status = "completed"
)

// Milestone is a checkpoint of a project. DepartmentID is the parent
// project's department.
type Milestone struct {
	ID           int64
	ProjectID    int64
	ProjectName  string
	DepartmentID int64
	Title        string
	Description  string
	DueDate      *time.Time
	Status       Status
	Approval     shared.ApprovalStatus
	CreatedBy    int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Input carries the editable milestone fields.
type Input struct {
	Title       string `validate:"required,max=160"`
	Description string `validate:"max=4000"`
	DueDate     *time.Time
	Status      Status `validate:"omitempty,oneof=open completed"`
}
