package settings

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pms-suite/pms/internal/platform/httpx"
	"github.com/pms-suite/pms/internal/rbac"
	"github.com/pms-suite/pms/internal/shared"
	"github.com/pms-suite/pms/internal/view"
)

// Handler manages the settings page.
type Handler struct {
	pages   view.Responder
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(pages view.Responder, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{pages: pages, service: service, rbac: rbac}
}

// MountRoutes registers settings routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAccess(rbac.ResourceSettings))
		r.Get("/", h.index)
		r.Post("/workspace", h.saveWorkspace)
		r.Post("/labels", h.createLabel)
		r.Post("/labels/{id}", h.updateLabel)
		r.Post("/labels/{id}/delete", h.deleteLabel)
	})
}

type indexPage struct {
	Workspace     []Setting
	ShowWorkspace bool
	Labels        []Label
	Departments   []Department
	LabelForm     LabelInput
	Errors        map[string]string
}

func (h *Handler) index(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, indexPage{LabelForm: LabelInput{Color: "#64748b"}}, http.StatusOK)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, page indexPage, status int) {
	actor := rbac.IdentityFromContext(r.Context())
	var err error
	page.ShowWorkspace = CanEditWorkspace(actor)
	if page.ShowWorkspace {
		if page.Workspace, err = h.service.Workspace(r.Context(), actor.UserID); err != nil {
			h.pages.Error(w, r, err)
			return
		}
	}
	if page.Labels, err = h.service.Labels(r.Context(), actor.UserID); err != nil {
		h.pages.Error(w, r, err)
		return
	}
	if page.Departments, err = h.service.Departments(r.Context(), actor.UserID); err != nil {
		h.pages.Error(w, r, err)
		return
	}
	if page.Errors == nil {
		page.Errors = map[string]string{}
	}
	h.pages.Render(w, r, "pages/settings/index.html", "Settings", page, status)
}

func (h *Handler) saveWorkspace(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	actorID := rbac.ActorID(r.Context())
	for _, key := range Keys() {
		if _, ok := r.PostForm[key]; !ok {
			continue
		}
		in := SettingInput{Key: key, Value: r.PostFormValue(key)}
		if err := h.service.SetWorkspace(r.Context(), actorID, in); err != nil {
			h.failure(w, r, indexPage{}, err)
			return
		}
	}
	h.pages.RedirectWithFlash(w, r, "/settings", "success", "Workspace settings saved")
}

func (h *Handler) createLabel(w http.ResponseWriter, r *http.Request) {
	in := parseLabel(r)
	if _, err := h.service.CreateLabel(r.Context(), rbac.ActorID(r.Context()), in); err != nil {
		h.failure(w, r, indexPage{LabelForm: in}, err)
		return
	}
	h.pages.RedirectWithFlash(w, r, "/settings", "success", "Label created")
}

func (h *Handler) updateLabel(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.ParamID(r, "id")
	if err != nil {
		h.pages.Error(w, r, err)
		return
	}
	in := parseLabel(r)
	if _, err := h.service.UpdateLabel(r.Context(), rbac.ActorID(r.Context()), id, in); err != nil {
		h.failure(w, r, indexPage{LabelForm: in}, err)
		return
	}
	h.pages.RedirectWithFlash(w, r, "/settings", "success", "Label updated")
}

func (h *Handler) deleteLabel(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.ParamID(r, "id")
	if err != nil {
		h.pages.Error(w, r, err)
		return
	}
	if err := h.service.DeleteLabel(r.Context(), rbac.ActorID(r.Context()), id); err != nil {
		h.pages.Error(w, r, err)
		return
	}
	h.pages.RedirectWithFlash(w, r, "/settings", "success", "Label deleted")
}

func (h *Handler) failure(w http.ResponseWriter, r *http.Request, page indexPage, err error) {
	if !errors.Is(err, httpx.ErrValidation) && !errors.Is(err, httpx.ErrDuplicate) {
		h.pages.Error(w, r, err)
		return
	}
	page.Errors = shared.FieldErrors(err)
	if len(page.Errors) == 0 {
		page.Errors["general"] = shared.UserSafeMessage(err)
	}
	h.render(w, r, page, http.StatusBadRequest)
}

func parseLabel(r *http.Request) LabelInput {
	_ = r.ParseForm()
	return LabelInput{
		Name:         r.PostFormValue("name"),
		Color:        r.PostFormValue("color"),
		DepartmentID: httpx.OptionalID(r.PostFormValue("department_id")),
	}
}
