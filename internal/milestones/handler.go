package milestones

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

// Handler manages milestone endpoints. Milestones are listed per project
// through the project_id query parameter.
type Handler struct {
	pages   view.Responder
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(pages view.Responder, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{pages: pages, service: service, rbac: rbac}
}

// MountRoutes registers milestone routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAccess(rbac.ResourceMilestones))
		r.Get("/", h.list)
		r.Get("/new", h.showCreate)
		r.Post("/", h.create)
		r.Get("/{id}/edit", h.showEdit)
		r.Post("/{id}", h.update)
		r.Post("/{id}/delete", h.delete)
		r.Post("/{id}/approve", h.approve)
		r.Post("/{id}/reject", h.reject)
	})
}

type formPage struct {
	ID        int64
	ProjectID int64
	Form      Input
	Errors    map[string]string
}

func projectURL(projectID int64) string {
	return "/milestones?project_id=" + strconv.FormatInt(projectID, 10)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	projectID := httpx.OptionalID(r.URL.Query().Get("project_id"))
	if projectID == nil {
		h.pages.Error(w, r, shared.Invalid("ProjectID", "project is required"))
		return
	}
	actor := rbac.IdentityFromContext(r.Context())
	items, err := h.service.ListByProject(r.Context(), actor.UserID, *projectID)
	if err != nil {
		h.pages.Error(w, r, err)
		return
	}
	data := map[string]any{
		"ProjectID":  *projectID,
		"Milestones": items,
		"CanCreate":  actor.Can(rbac.ResourceMilestones, rbac.OpCreate),
		"CanEdit":    actor.Can(rbac.ResourceMilestones, rbac.OpUpdate),
		"CanDelete":  actor.Can(rbac.ResourceMilestones, rbac.OpDelete),
		"CanApprove": actor.Can(rbac.ResourceApproveMilestones, rbac.OpUpdate),
	}
	h.pages.Render(w, r, "pages/milestones/list.html", "Milestones", data, http.StatusOK)
}

func (h *Handler) showCreate(w http.ResponseWriter, r *http.Request) {
	projectID := httpx.OptionalID(r.URL.Query().Get("project_id"))
	if projectID == nil {
		h.pages.Error(w, r, shared.Invalid("ProjectID", "project is required"))
		return
	}
	h.renderForm(w, r, formPage{ProjectID: *projectID, Form: Input{Status: StatusOpen}}, http.StatusOK)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	in, err := parseForm(r)
	page := formPage{Form: in}
	if projectID := httpx.OptionalID(r.PostFormValue("project_id")); projectID != nil {
		page.ProjectID = *projectID
	}
	if err == nil {
		_, err = h.service.Create(r.Context(), rbac.ActorID(r.Context()), page.ProjectID, in)
		if err == nil {
			h.pages.RedirectWithFlash(w, r, projectURL(page.ProjectID), "success", "Milestone created and waiting for approval")
			return
		}
	}
	h.formError(w, r, page, err)
}

func (h *Handler) showEdit(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.ParamID(r, "id")
	if err != nil {
		h.pages.Error(w, r, err)
		return
	}
	m, err := h.service.Get(r.Context(), rbac.ActorID(r.Context()), id)
	if err != nil {
		h.pages.Error(w, r, err)
		return
	}
	in := Input{Title: m.Title, Description: m.Description, DueDate: m.DueDate, Status: m.Status}
	h.renderForm(w, r, formPage{ID: id, ProjectID: m.ProjectID, Form: in}, http.StatusOK)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.ParamID(r, "id")
	if err != nil {
		h.pages.Error(w, r, err)
		return
	}
	in, err := parseForm(r)
	page := formPage{ID: id, Form: in}
	if projectID := httpx.OptionalID(r.PostFormValue("project_id")); projectID != nil {
		page.ProjectID = *projectID
	}
	if err == nil {
		var m Milestone
		m, err = h.service.Update(r.Context(), rbac.ActorID(r.Context()), id, in)
		if err == nil {
			h.pages.RedirectWithFlash(w, r, projectURL(m.ProjectID), "success", "Milestone updated")
			return
		}
	}
	h.formError(w, r, page, err)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.ParamID(r, "id")
	if err != nil {
		h.pages.Error(w, r, err)
		return
	}
	m, err := h.service.Delete(r.Context(), rbac.ActorID(r.Context()), id)
	if err != nil {
		h.pages.Error(w, r, err)
		return
	}
	h.pages.RedirectWithFlash(w, r, projectURL(m.ProjectID), "success", "Milestone deleted")
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.service.Approve, "Milestone approved")
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.service.Reject, "Milestone rejected")
}

type decision func(ctx context.Context, actorID, milestoneID int64, note string) (Milestone, error)

func (h *Handler) decide(w http.ResponseWriter, r *http.Request, fn decision, message string) {
	id, err := httpx.ParamID(r, "id")
	if err != nil {
		h.pages.Error(w, r, err)
		return
	}
	_ = r.ParseForm()
	m, err := fn(r.Context(), rbac.ActorID(r.Context()), id, r.PostFormValue("note"))
	if err != nil {
		h.pages.Error(w, r, err)
		return
	}
	h.pages.RedirectWithFlash(w, r, projectURL(m.ProjectID), "success", message)
}

func (h *Handler) renderForm(w http.ResponseWriter, r *http.Request, page formPage, status int) {
	if page.Errors == nil {
		page.Errors = map[string]string{}
	}
	title := "New milestone"
	if page.ID > 0 {
		title = "Edit milestone"
	}
	h.pages.Render(w, r, "pages/milestones/form.html", title, page, status)
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
		Title:       r.PostFormValue("title"),
		Description: r.PostFormValue("description"),
		Status:      Status(r.PostFormValue("status")),
	}
	var err error
	in.DueDate, err = httpx.OptionalDate(r.PostFormValue("due_date"))
	return in, err
}
