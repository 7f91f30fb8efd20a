package rbac

import (
	"maps"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Role is the closed set of account roles.
type Role string

const (
	RoleAdmin          Role = "admin"
	RoleDepartmentHead Role = "department_head"
	RoleGroupLeader    Role = "group_leader"
	RoleMember         Role = "member"
)

// Power is the closed set of power levels gating CRUD operations.
type Power string

const (
	// PowerMonitoring is read-only.
	PowerMonitoring Power = "monitoring"
	// PowerFull allows every operation.
	PowerFull Power = "full"
)

// Resource names a protected capability area.
type Resource string

const (
	ResourceUsers              Resource = "users"
	ResourceDepartments        Resource = "departments"
	ResourceProjects           Resource = "projects"
	ResourceTasks              Resource = "tasks"
	ResourceMilestones         Resource = "milestones"
	ResourceSettings           Resource = "settings"
	ResourceApproveProjects    Resource = "approve_projects"
	ResourceApproveTasks       Resource = "approve_tasks"
	ResourceApproveMilestones  Resource = "approve_milestones"
	ResourceViewAllDepartments Resource = "view_all_departments"
)

// Operation is a CRUD verb. OpAny means the caller only asks whether the role
// reaches the resource at all.
type Operation string

const (
	OpAny    Operation = ""
	OpCreate Operation = "create"
	OpRead   Operation = "read"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// RoleConfig lists the resources a role reaches and the power new accounts of
// that role start with.
type RoleConfig struct {
	DefaultPower Power
	Permissions  map[Resource]bool
}

// PowerConfig lists the operations a power level permits.
type PowerConfig struct {
	Operations map[Operation]bool
}

// roleConfigs is the authoritative role policy. Department ownership for
// department_head users, labels-only settings for department_head and
// assigned-only tasks for member are row-level rules applied by ScopeFor.
var roleConfigs = map[Role]RoleConfig{
	RoleAdmin: {
		DefaultPower: PowerFull,
		Permissions: map[Resource]bool{
			ResourceUsers:              true,
			ResourceDepartments:        true,
			ResourceProjects:           true,
			ResourceTasks:              true,
			ResourceMilestones:         true,
			ResourceSettings:           true,
			ResourceApproveProjects:    true,
			ResourceApproveTasks:       true,
			ResourceApproveMilestones:  true,
			ResourceViewAllDepartments: true,
		},
	},
	RoleDepartmentHead: {
		DefaultPower: PowerFull,
		Permissions: map[Resource]bool{
			ResourceUsers:              true,
			ResourceDepartments:        false,
			ResourceProjects:           true,
			ResourceTasks:              true,
			ResourceMilestones:         true,
			ResourceSettings:           true,
			ResourceApproveProjects:    true,
			ResourceApproveTasks:       true,
			ResourceApproveMilestones:  true,
			ResourceViewAllDepartments: false,
		},
	},
	RoleGroupLeader: {
		DefaultPower: PowerFull,
		Permissions: map[Resource]bool{
			ResourceUsers:              false,
			ResourceDepartments:        false,
			ResourceProjects:           true,
			ResourceTasks:              true,
			ResourceMilestones:         true,
			ResourceSettings:           false,
			ResourceApproveProjects:    false,
			ResourceApproveTasks:       true,
			ResourceApproveMilestones:  false,
			ResourceViewAllDepartments: false,
		},
	},
	RoleMember: {
		DefaultPower: PowerMonitoring,
		Permissions: map[Resource]bool{
			ResourceUsers:              false,
			ResourceDepartments:        false,
			ResourceProjects:           false,
			ResourceTasks:              true,
			ResourceMilestones:         false,
			ResourceSettings:           false,
			ResourceApproveProjects:    false,
			ResourceApproveTasks:       false,
			ResourceApproveMilestones:  false,
			ResourceViewAllDepartments: false,
		},
	},
}

var powerConfigs = map[Power]PowerConfig{
	PowerMonitoring: {
		Operations: map[Operation]bool{
			OpCreate: false,
			OpRead:   true,
			OpUpdate: false,
			OpDelete: false,
		},
	},
	PowerFull: {
		Operations: map[Operation]bool{
			OpCreate: true,
			OpRead:   true,
			OpUpdate: true,
			OpDelete: true,
		},
	},
}

// Roles returns every role, highest privilege first.
func Roles() []Role {
	return []Role{RoleAdmin, RoleDepartmentHead, RoleGroupLeader, RoleMember}
}

// Powers returns every power level.
func Powers() []Power {
	return []Power{PowerMonitoring, PowerFull}
}

// Resources returns every protected resource in display order.
func Resources() []Resource {
	return []Resource{
		ResourceUsers,
		ResourceDepartments,
		ResourceProjects,
		ResourceTasks,
		ResourceMilestones,
		ResourceSettings,
		ResourceApproveProjects,
		ResourceApproveTasks,
		ResourceApproveMilestones,
		ResourceViewAllDepartments,
	}
}

// Operations returns the four CRUD operations.
func Operations() []Operation {
	return []Operation{OpCreate, OpRead, OpUpdate, OpDelete}
}

// RoleConfigFor returns a copy of the role's policy.
func RoleConfigFor(role Role) (RoleConfig, bool) {
	cfg, ok := roleConfigs[role]
	if !ok {
		return RoleConfig{}, false
	}
	cfg.Permissions = maps.Clone(cfg.Permissions)
	return cfg, true
}

// PowerConfigFor returns a copy of the power level's policy.
func PowerConfigFor(power Power) (PowerConfig, bool) {
	cfg, ok := powerConfigs[power]
	if !ok {
		return PowerConfig{}, false
	}
	cfg.Operations = maps.Clone(cfg.Operations)
	return cfg, true
}

// DefaultPowerFor returns the power assigned to new accounts of role, or
// PowerMonitoring for unknown roles.
func DefaultPowerFor(role Role) Power {
	if cfg, ok := roleConfigs[role]; ok {
		return cfg.DefaultPower
	}
	return PowerMonitoring
}

// Valid reports whether the role is part of the policy.
func (r Role) Valid() bool {
	_, ok := roleConfigs[r]
	return ok
}

// Label returns a display name such as "Department Head".
func (r Role) Label() string {
	return displayLabel(string(r))
}

// Valid reports whether the power level is part of the policy.
func (p Power) Valid() bool {
	_, ok := powerConfigs[p]
	return ok
}

// Label returns a display name such as "Monitoring".
func (p Power) Label() string {
	return displayLabel(string(p))
}

// Label returns a display name such as "Approve Projects".
func (r Resource) Label() string {
	return displayLabel(string(r))
}

// Casers hold state, so one is built per call.
func displayLabel(raw string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(raw, "_", " "))
}
