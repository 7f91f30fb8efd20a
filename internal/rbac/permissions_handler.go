package rbac

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pms-suite/pms/internal/view"
)

// PermissionsHandler renders the read-only policy matrix.
type PermissionsHandler struct {
	pages view.Responder
	rbac  Middleware
}

// NewPermissionsHandler builds PermissionsHandler instance.
func NewPermissionsHandler(pages view.Responder, rbac Middleware) *PermissionsHandler {
	return &PermissionsHandler{pages: pages, rbac: rbac}
}

// MountRoutes registers permission routes.
func (h *PermissionsHandler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAccess(ResourceSettings))
		r.Get("/", h.showMatrix)
	})
}

// MatrixRow is one role of the matrix.
type MatrixRow struct {
	Role         string
	DefaultPower string
	Cells        []bool
}

// PowerRow is one power level of the matrix.
type PowerRow struct {
	Power string
	Cells []bool
}

// Matrix is the policy as rendered on the permissions page.
type Matrix struct {
	Resources  []string
	Operations []string
	Roles      []MatrixRow
	Powers     []PowerRow
}

// BuildMatrix tabulates the role and power policies.
func BuildMatrix() Matrix {
	var m Matrix
	for _, res := range Resources() {
		m.Resources = append(m.Resources, res.Label())
	}
	for _, op := range Operations() {
		m.Operations = append(m.Operations, string(op))
	}
	for _, role := range Roles() {
		row := MatrixRow{Role: role.Label(), DefaultPower: DefaultPowerFor(role).Label()}
		for _, res := range Resources() {
			row.Cells = append(row.Cells, CanAccess(role, res))
		}
		m.Roles = append(m.Roles, row)
	}
	for _, power := range Powers() {
		cfg, _ := PowerConfigFor(power)
		row := PowerRow{Power: power.Label()}
		for _, op := range Operations() {
			row.Cells = append(row.Cells, cfg.Operations[op])
		}
		m.Powers = append(m.Powers, row)
	}
	return m
}

func (h *PermissionsHandler) showMatrix(w http.ResponseWriter, r *http.Request) {
	h.pages.Render(w, r, "pages/permissions/list.html", "Permissions", BuildMatrix(), http.StatusOK)
}
