package settings

import (
	"fmt"
	"time"

	"github.com/pms-suite/pms/internal/platform/httpx"
)

// ErrLabelNotFound is returned when a label does not exist.
var ErrLabelNotFound = fmt.Errorf("label %w", httpx.ErrNotFound)

// Workspace keys understood by the application. Unknown keys are rejected.
const (
	KeyWorkspaceName   = "workspace_name"
	KeyDefaultPriority = "default_task_priority"
	KeyWeekStart       = "week_start"
	KeyDigestEnabled   = "overdue_digest_enabled"
)

// Keys lists the editable workspace settings in display order.
func Keys() []string {
	return []string{KeyWorkspaceName, KeyDefaultPriority, KeyWeekStart, KeyDigestEnabled}
}

// Label tags tasks. A nil DepartmentID marks a workspace-wide label.
type Label struct {
	ID             int64
	Name           string
	Color          string
	DepartmentID   *int64
	DepartmentName string
	CreatedAt      time.Time
}

// LabelInput carries label fields.
type LabelInput struct {
	Name         string `validate:"required,max=60"`
	Color        string `validate:"required,hexcolor"`
	DepartmentID *int64
}

// Setting is one workspace key/value pair.
type Setting struct {
	Key       string
	Value     string
	UpdatedBy *int64
	UpdatedAt time.Time
}

// SettingInput carries a workspace setting change.
type SettingInput struct {
	Key   string `validate:"required,oneof=workspace_name default_task_priority week_start overdue_digest_enabled"`
	Value string `validate:"max=2000"`
}

// Department is a selectable label owner.
type Department struct {
	ID   int64
	Name string
}
