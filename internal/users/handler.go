package users

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/pms-suite/pms/internal/platform/httpx"
	"github.com/pms-suite/pms/internal/rbac"
	"github.com/pms-suite/pms/internal/shared"
	"github.com/pms-suite/pms/internal/view"
)

// Handler manages user management endpoints.
type Handler struct {
	pages   view.Responder
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(pages view.Responder, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{pages: pages, service: service, rbac: rbac}
}

// MountRoutes registers user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAccess(rbac.ResourceUsers))
		r.Get("/", h.listUsers)
		r.Get("/new", h.showCreateUserForm)
		r.Post("/", h.createUser)
		r.Get("/{id}", h.showUser)
		r.Post("/{id}", h.updateUser)
		r.Post("/{id}/access", h.changeAccess)
		r.Post("/{id}/deactivate", h.deactivateUser)
	})
}

type formErrors map[string]string

type formPage struct {
	User        User
	Form        CreateInput
	Departments []DepartmentOption
	Roles       []rbac.Role
	Powers      []rbac.Power
	Errors      formErrors
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{
		Query:           strings.TrimSpace(r.URL.Query().Get("q")),
		IncludeInactive: r.URL.Query().Get("inactive") == "1",
	}
	users, err := h.service.List(r.Context(), rbac.ActorID(r.Context()), filter)
	if err != nil {
		h.pages.Error(w, r, err)
		return
	}
	h.pages.Render(w, r, "pages/users/list.html", "Users", map[string]any{"Users": users, "Filter": filter}, http.StatusOK)
}

func (h *Handler) showCreateUserForm(w http.ResponseWriter, r *http.Request) {
	page, err := h.formPage(r, formPage{Errors: formErrors{}})
	if err != nil {
		h.pages.Error(w, r, err)
		return
	}
	h.pages.Render(w, r, "pages/users/form.html", "New user", page, http.StatusOK)
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	in := CreateInput{
		Email:        r.PostFormValue("email"),
		Name:         r.PostFormValue("name"),
		Password:     r.PostFormValue("password"),
		Role:         rbac.Role(r.PostFormValue("role")),
		Power:        rbac.Power(r.PostFormValue("power")),
		DepartmentID: httpx.OptionalID(r.PostFormValue("department_id")),
	}
	u, err := h.service.Create(r.Context(), rbac.ActorID(r.Context()), in)
	if err != nil {
		in.Password = ""
		h.formError(w, r, "pages/users/form.html", formPage{Form: in}, err)
		return
	}
	h.pages.RedirectWithFlash(w, r, "/users", "success", "User "+u.Email+" created")
}

func (h *Handler) showUser(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.ParamID(r, "id")
	if err != nil {
		h.pages.Error(w, r, err)
		return
	}
	u, err := h.service.Get(r.Context(), rbac.ActorID(r.Context()), id)
	if err != nil {
		h.pages.Error(w, r, err)
		return
	}
	page, err := h.formPage(r, formPage{User: u, Errors: formErrors{}})
	if err != nil {
		h.pages.Error(w, r, err)
		return
	}
	h.pages.Render(w, r, "pages/users/edit.html", u.Name, page, http.StatusOK)
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.ParamID(r, "id")
	if err != nil {
		h.pages.Error(w, r, err)
		return
	}
	_ = r.ParseForm()
	in := UpdateInput{
		Email:        r.PostFormValue("email"),
		Name:         r.PostFormValue("name"),
		DepartmentID: httpx.OptionalID(r.PostFormValue("department_id")),
	}
	if _, err := h.service.Update(r.Context(), rbac.ActorID(r.Context()), id, in); err != nil {
		h.formError(w, r, "pages/users/edit.html", formPage{User: User{ID: id, Email: in.Email, Name: in.Name, DepartmentID: in.DepartmentID}}, err)
		return
	}
	h.pages.RedirectWithFlash(w, r, "/users", "success", "User updated")
}

func (h *Handler) changeAccess(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.ParamID(r, "id")
	if err != nil {
		h.pages.Error(w, r, err)
		return
	}
	_ = r.ParseForm()
	in := AccessInput{Role: rbac.Role(r.PostFormValue("role")), Power: rbac.Power(r.PostFormValue("power"))}
	u, err := h.service.ChangeAccess(r.Context(), rbac.ActorID(r.Context()), id, in)
	if err != nil {
		if errors.Is(err, httpx.ErrValidation) {
			h.pages.RedirectWithFlash(w, r, "/users/"+chi.URLParam(r, "id"), "error", shared.UserSafeMessage(err))
			return
		}
		h.pages.Error(w, r, err)
		return
	}
	h.pages.RedirectWithFlash(w, r, "/users", "success", u.Name+" is now "+u.Role.Label()+" ("+u.Power.Label()+")")
}

func (h *Handler) deactivateUser(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.ParamID(r, "id")
	if err != nil {
		h.pages.Error(w, r, err)
		return
	}
	if err := h.service.Deactivate(r.Context(), rbac.ActorID(r.Context()), id); err != nil {
		h.pages.Error(w, r, err)
		return
	}
	h.pages.RedirectWithFlash(w, r, "/users", "success", "User deactivated")
}

func (h *Handler) formPage(r *http.Request, page formPage) (formPage, error) {
	actor := rbac.ActorID(r.Context())
	depts, err := h.service.DepartmentOptions(r.Context(), actor)
	if err != nil {
		return page, err
	}
	roles, err := h.service.GrantableRoles(r.Context(), actor)
	if err != nil {
		return page, err
	}
	page.Departments = depts
	page.Roles = roles
	page.Powers = rbac.Powers()
	return page, nil
}

func (h *Handler) formError(w http.ResponseWriter, r *http.Request, template string, page formPage, err error) {
	if !errors.Is(err, httpx.ErrValidation) && !errors.Is(err, httpx.ErrDuplicate) {
		h.pages.Error(w, r, err)
		return
	}
	page, loadErr := h.formPage(r, page)
	if loadErr != nil {
		h.pages.Error(w, r, loadErr)
		return
	}
	page.Errors = shared.FieldErrors(err)
	if len(page.Errors) == 0 {
		page.Errors["general"] = shared.UserSafeMessage(err)
	}
	h.pages.Render(w, r, template, "Users", page, http.StatusBadRequest)
}
