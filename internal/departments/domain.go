package departments

import (
	"fmt"
	"time"

	"github.com/pms-suite/pms/internal/platform/httpx"
)

// ErrNotFound is returned when a department does not exist.
var ErrNotFound = fmt.Errorf("department %w", httpx.ErrNotFound)

// Department groups users and projects.
type Department struct {
	ID          int64
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Input carries the editable department fields.
type Input struct {
	Name        string `validate:"required,max=120"`
	Description string `validate:"max=1000"`
}
