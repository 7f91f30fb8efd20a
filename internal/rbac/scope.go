package rbac

import (
	"errors"
	"strconv"

	"github.com/pms-suite/pms/internal/platform/httpx"
)

// ScopeKind is the row-level reach of an identity on a resource.
type ScopeKind string

const (
	ScopeAll        ScopeKind = "all"
	ScopeDepartment ScopeKind = "department"
	ScopeAssigned   ScopeKind = "assigned"
	ScopeNone       ScopeKind = "none"
)

// Scope narrows an allowed resource to the rows an identity may touch.
type Scope struct {
	Kind         ScopeKind
	DepartmentID int64
	UserID       int64
	// LabelsOnly restricts settings to label management.
	LabelsOnly bool
}

// Row identifies the ownership of one stored row.
type Row struct {
	DepartmentID *int64
	AssigneeID   *int64
}

// Columns names the SQL columns Apply filters on.
type Columns struct {
	Department string
	Assignee   string
}

// ScopeFor returns the row scope of id on resource. It never widens what Can
// allows; it only narrows rows for resources the role already reaches.
func ScopeFor(id *Identity, resource Resource) Scope {
	if id == nil || !id.Role.Valid() {
		return Scope{Kind: ScopeNone}
	}
	if id.Role == RoleAdmin || CanAccess(id.Role, ResourceViewAllDepartments) {
		return Scope{Kind: ScopeAll, UserID: id.UserID}
	}

	switch id.Role {
	case RoleDepartmentHead:
		switch resource {
		case ResourceUsers, ResourceProjects, ResourceMilestones, ResourceTasks:
			return departmentScope(id, false)
		case ResourceSettings:
			return departmentScope(id, true)
		}
	case RoleGroupLeader:
		switch resource {
		case ResourceProjects, ResourceMilestones, ResourceTasks:
			return departmentScope(id, false)
		}
	case RoleMember:
		if resource == ResourceTasks {
			return Scope{Kind: ScopeAssigned, UserID: id.UserID}
		}
	}
	return Scope{Kind: ScopeNone, UserID: id.UserID}
}

func departmentScope(id *Identity, labelsOnly bool) Scope {
	if id.DepartmentID == nil {
		return Scope{Kind: ScopeNone, UserID: id.UserID}
	}
	return Scope{Kind: ScopeDepartment, DepartmentID: *id.DepartmentID, UserID: id.UserID, LabelsOnly: labelsOnly}
}

// All reports whether the scope is unrestricted.
func (s Scope) All() bool {
	return s.Kind == ScopeAll
}

// Allows reports whether the row is inside the scope.
func (s Scope) Allows(row Row) bool {
	switch s.Kind {
	case ScopeAll:
		return true
	case ScopeDepartment:
		return row.DepartmentID != nil && *row.DepartmentID == s.DepartmentID
	case ScopeAssigned:
		return row.AssigneeID != nil && *row.AssigneeID == s.UserID
	default:
		return false
	}
}

// AllowsDepartment reports whether rows of deptID are inside the scope.
func (s Scope) AllowsDepartment(deptID *int64) bool {
	return s.Allows(Row{DepartmentID: deptID})
}

// AllowsAssignee reports whether rows assigned to userID are inside the scope.
func (s Scope) AllowsAssignee(deptID, userID *int64) bool {
	return s.Allows(Row{DepartmentID: deptID, AssigneeID: userID})
}

// Enforce maps a single-row lookup onto the scope. Rows outside the scope are
// forbidden; for callers whose scope is not all, so are missing rows, which
// keeps "does not exist" indistinguishable from "not yours".
func (s Scope) Enforce(lookupErr error, row Row) error {
	if lookupErr != nil {
		if !s.All() && errors.Is(lookupErr, httpx.ErrNotFound) {
			return ErrForbidden
		}
		return lookupErr
	}
	if !s.Allows(row) {
		return ErrForbidden
	}
	return nil
}

// Apply appends the scope predicate to a query that already has a WHERE
// clause, adding positional arguments to args.
func (s Scope) Apply(query *string, args *[]any, cols Columns) {
	switch s.Kind {
	case ScopeAll:
		return
	case ScopeDepartment:
		if cols.Department == "" {
			*query += ` AND FALSE`
			return
		}
		*args = append(*args, s.DepartmentID)
		*query += ` AND ` + cols.Department + ` = $` + strconv.Itoa(len(*args))
	case ScopeAssigned:
		if cols.Assignee == "" {
			*query += ` AND FALSE`
			return
		}
		*args = append(*args, s.UserID)
		*query += ` AND ` + cols.Assignee + ` = $` + strconv.Itoa(len(*args))
	default:
		*query += ` AND FALSE`
	}
}
