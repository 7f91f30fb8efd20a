package users

import (
	"fmt"
	"time"

	"github.com/pms-suite/pms/internal/platform/httpx"
	"github.com/pms-suite/pms/internal/rbac"
)

// ErrNotFound is returned when a user does not exist.
var ErrNotFound = fmt.Errorf("user %w", httpx.ErrNotFound)

// User represents a user account for management.
type User struct {
	ID             int64
	Email          string
	Name           string
	Role           rbac.Role
	Power          rbac.Power
	DepartmentID   *int64
	DepartmentName string
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// CreateInput carries the fields of a new account. Power defaults to the
// role's default power when empty.
type CreateInput struct {
	Email        string     `validate:"required,email,max=254"`
	Name         string     `validate:"required,max=120"`
	Password     string     `validate:"required,min=8,max=72"`
	Role         rbac.Role  `validate:"required,oneof=admin department_head group_leader member"`
	Power        rbac.Power `validate:"omitempty,oneof=monitoring full"`
	DepartmentID *int64
}

// UpdateInput carries profile changes.
type UpdateInput struct {
	Email        string `validate:"required,email,max=254"`
	Name         string `validate:"required,max=120"`
	DepartmentID *int64
}

// AccessInput changes a user's role and power.
type AccessInput struct {
	Role  rbac.Role  `validate:"required,oneof=admin department_head group_leader member"`
	Power rbac.Power `validate:"required,oneof=monitoring full"`
}

// ListFilter narrows the user list.
type ListFilter struct {
	Query           string
	IncludeInactive bool
}

// DepartmentOption is a department selectable on user forms.
type DepartmentOption struct {
	ID   int64
	Name string
}
