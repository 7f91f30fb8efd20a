package projects

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pms-suite/pms/internal/platform/httpx"
	"github.com/pms-suite/pms/internal/rbac"
	"github.com/pms-suite/pms/internal/shared"
	"github.com/pms-suite/pms/internal/view"
)

// Handler manages project endpoints.
type Handler struct {
	pages   view.Responder
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(pages view.Responder, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{pages: pages, service: service, rbac: rbac}
}

// MountRoutes registers project routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAccess(rbac.ResourceProjects))
		r.Get("/", h.list)
		r.Get("/new", h.showCreate)
		r.Post("/", h.create)
		r.Get("/{id}", h.show)
		r.Get("/{id}/edit", h.showEdit)
		r.Post("/{id}", h.update)
		r.Post("/{id}/delete", h.delete)
		r.Post("/{id}/approve", h.approve)
		r.Post("/{id}/reject", h.reject)
	})
}

type formPage struct {
	ID          int64
	Form        Input
	Departments []Department
	Statuses    []Status
	Errors      map[string]string
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{
		Status:   Status(q.Get("status")),
		Approval: shared.ApprovalStatus(q.Get("approval")),
		Page:     shared.ParseCursorPage(q),
	}
	page, err := h.service.List(r.Context(), rbac.ActorID(r.Context()), filter)
	if err != nil {
		h.pages.Error(w, r, err)
		return
	}
	actor := rbac.IdentityFromContext(r.Context())
	data := map[string]any{
		"Page":      page,
		"Filter":    filter,
		"Statuses":  Statuses(),
		"CanCreate": actor.Can(rbac.ResourceProjects, rbac.OpCreate),
	}
	h.pages.Render(w, r, "pages/projects/list.html", "Projects", data, http.StatusOK)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.ParamID(r, "id")
	if err != nil {
		h.pages.Error(w, r, err)
		return
	}
	actor := rbac.IdentityFromContext(r.Context())
	p, err := h.service.Get(r.Context(), actor.UserID, id)
	if err != nil {
		h.pages.Error(w, r, err)
		return
	}
	history, err := h.service.History(r.Context(), actor.UserID, id)
	if err != nil {
		h.pages.Error(w, r, err)
		return
	}
	data := map[string]any{
		"Project":    p,
		"History":    history,
		"CanEdit":    actor.Can(rbac.ResourceProjects, rbac.OpUpdate),
		"CanDelete":  actor.Can(rbac.ResourceProjects, rbac.OpDelete),
		"CanApprove": actor.Can(rbac.ResourceApproveProjects, rbac.OpUpdate),
	}
	h.pages.Render(w, r, "pages/projects/show.html", p.Name, data, http.StatusOK)
}

func (h *Handler) showCreate(w http.ResponseWriter, r *http.Request) {
	h.renderForm(w, r, formPage{Form: Input{Status: StatusPlanning}}, http.StatusOK)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	in, err := parseForm(r)
	if err == nil {
		var p Project
		p, err = h.service.Create(r.Context(), rbac.ActorID(r.Context()), in)
		if err == nil {
			h.pages.RedirectWithFlash(w, r, "/projects/"+strconv.FormatInt(p.ID, 10), "success", "Project created and waiting for approval")
			return
		}
	}
	h.formError(w, r, formPage{Form: in}, err)
}

func (h *Handler) showEdit(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.ParamID(r, "id")
	if err != nil {
		h.pages.Error(w, r, err)
		return
	}
	p, err := h.service.Get(r.Context(), rbac.ActorID(r.Context()), id)
	if err != nil {
		h.pages.Error(w, r, err)
		return
	}
	in := Input{Name: p.Name, Description: p.Description, DepartmentID: p.DepartmentID, Status: p.Status, StartDate: p.StartDate, EndDate: p.EndDate}
	h.renderForm(w, r, formPage{ID: id, Form: in}, http.StatusOK)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.ParamID(r, "id")
	if err != nil {
		h.pages.Error(w, r, err)
		return
	}
	in, err := parseForm(r)
	if err == nil {
		_, err = h.service.Update(r.Context(), rbac.ActorID(r.Context()), id, in)
		if err == nil {
			h.pages.RedirectWithFlash(w, r, "/projects/"+strconv.FormatInt(id, 10), "success", "Project updated")
			return
		}
	}
	h.formError(w, r, formPage{ID: id, Form: in}, err)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.ParamID(r, "id")
	if err != nil {
		h.pages.Error(w, r, err)
		return
	}
	if err := h.service.Delete(r.Context(), rbac.ActorID(r.Context()), id); err != nil {
		h.pages.Error(w, r, err)
		return
	}
	h.pages.RedirectWithFlash(w, r, "/projects", "success", "Project deleted")
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.service.Approve, "Project approved")
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.service.Reject, "Project rejected")
}

type decision func(ctx context.Context, actorID, projectID int64, note string) (Project, error)

func (h *Handler) decide(w http.ResponseWriter, r *http.Request, fn decision, message string) {
	id, err := httpx.ParamID(r, "id")
	if err != nil {
		h.pages.Error(w, r, err)
		return
	}
	_ = r.ParseForm()
	if _, err := fn(r.Context(), rbac.ActorID(r.Context()), id, r.PostFormValue("note")); err != nil {
		h.pages.Error(w, r, err)
		return
	}
	h.pages.RedirectWithFlash(w, r, "/projects/"+strconv.FormatInt(id, 10), "success", message)
}

func (h *Handler) renderForm(w http.ResponseWriter, r *http.Request, page formPage, status int) {
	depts, err := h.service.Departments(r.Context(), rbac.ActorID(r.Context()))
	if err != nil {
		h.pages.Error(w, r, err)
		return
	}
	page.Departments = depts
	page.Statuses = Statuses()
	if page.Errors == nil {
		page.Errors = map[string]string{}
	}
	title := "New project"
	if page.ID > 0 {
		title = "Edit project"
	}
	h.pages.Render(w, r, "pages/projects/form.html", title, page, status)
}

func (h *Handler) formError(w http.ResponseWriter, r *http.Request, page formPage, err error) {
	if !errors.Is(err, httpx.ErrValidation) {
		h.pages.Error(w, r, err)
		return
	}
	page.Errors = shared.FieldErrors(err)
	if len(page.Errors) == 0 {
		page.Errors["general"] = shared.UserSafeMessage(err)
	}
	h.renderForm(w, r, page, http.StatusBadRequest)
}

func parseForm(r *http.Request) (Input, error) {
	_ = r.ParseForm()
	in := Input{
		Name:        r.PostFormValue("name"),
		Description: r.PostFormValue("description"),
		Status:      Status(r.PostFormValue("status")),
	}
	if dept := httpx.OptionalID(r.PostFormValue("department_id")); dept != nil {
		in.DepartmentID = *dept
	}
	var err error
	if in.StartDate, err = httpx.OptionalDate(r.PostFormValue("start_date")); err != nil {
		return in, err
	}
	if in.EndDate, err = httpx.OptionalDate(r.PostFormValue("end_date")); err != nil {
		return in, err
	}
	return in, nil
}
