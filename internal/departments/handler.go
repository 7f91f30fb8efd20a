package departments

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pms-suite/pms/internal/platform/httpx"
	"github.com/pms-suite/pms/internal/rbac"
	"github.com/pms-suite/pms/internal/shared"
	"github.com/pms-suite/pms/internal/view"
)

// Handler manages department endpoints.
type Handler struct {
	pages   view.Responder
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(pages view.Responder, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{pages: pages, service: service, rbac: rbac}
}

// MountRoutes registers department routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAccess(rbac.ResourceDepartments))
		r.Get("/", h.list)
		r.Get("/new", h.showCreate)
		r.Post("/", h.create)
		r.Get("/{id}/edit", h.showEdit)
		r.Post("/{id}", h.update)
		r.Post("/{id}/delete", h.delete)
	})
}

type formPage struct {
	ID     int64
	Form   Input
	Errors map[string]string
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.List(r.Context(), rbac.ActorID(r.Context()))
	if err != nil {
		h.pages.Error(w, r, err)
		return
	}
	h.pages.Render(w, r, "pages/departments/list.html", "Departments", map[string]any{"Departments": items}, http.StatusOK)
}

func (h *Handler) showCreate(w http.ResponseWriter, r *http.Request) {
	h.pages.Render(w, r, "pages/departments/form.html", "New department", formPage{Errors: map[string]string{}}, http.StatusOK)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	in := parseForm(r)
	d, err := h.service.Create(r.Context(), rbac.ActorID(r.Context()), in)
	if err != nil {
		h.formError(w, r, formPage{Form: in}, err)
		return
	}
	h.pages.RedirectWithFlash(w, r, "/departments", "success", "Department "+d.Name+" created")
}

func (h *Handler) showEdit(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.ParamID(r, "id")
	if err != nil {
		h.pages.Error(w, r, err)
		return
	}
	d, err := h.service.Get(r.Context(), rbac.ActorID(r.Context()), id)
	if err != nil {
		h.pages.Error(w, r, err)
		return
	}
	page := formPage{ID: d.ID, Form: Input{Name: d.Name, Description: d.Description}, Errors: map[string]string{}}
	h.pages.Render(w, r, "pages/departments/form.html", "Edit department", page, http.StatusOK)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.ParamID(r, "id")
	if err != nil {
		h.pages.Error(w, r, err)
		return
	}
	in := parseForm(r)
	if _, err := h.service.Update(r.Context(), rbac.ActorID(r.Context()), id, in); err != nil {
		h.formError(w, r, formPage{ID: id, Form: in}, err)
		return
	}
	h.pages.RedirectWithFlash(w, r, "/departments", "success", "Department updated")
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.ParamID(r, "id")
	if err != nil {
		h.pages.Error(w, r, err)
		return
	}
	if err := h.service.Delete(r.Context(), rbac.ActorID(r.Context()), id); err != nil {
		if errors.Is(err, httpx.ErrValidation) {
			h.pages.RedirectWithFlash(w, r, "/departments", "error", shared.UserSafeMessage(err))
			return
		}
		h.pages.Error(w, r, err)
		return
	}
	h.pages.RedirectWithFlash(w, r, "/departments", "success", "Department "+strconv.FormatInt(id, 10)+" deleted")
}

func (h *Handler) formError(w http.ResponseWriter, r *http.Request, page formPage, err error) {
	if !errors.Is(err, httpx.ErrValidation) && !errors.Is(err, httpx.ErrDuplicate) {
		h.pages.Error(w, r, err)
		return
	}
	page.Errors = shared.FieldErrors(err)
	if len(page.Errors) == 0 {
		page.Errors["general"] = shared.UserSafeMessage(err)
	}
	h.pages.Render(w, r, "pages/departments/form.html", "Department", page, http.StatusBadRequest)
}

func parseForm(r *http.Request) Input {
	_ = r.ParseForm()
	return Input{
		Name:        r.PostFormValue("name"),
		Description: r.PostFormValue("description"),
	}
}
