package dashboard

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pms-suite/pms/internal/rbac"
	"github.com/pms-suite/pms/internal/view"
)

// Handler serves the home page.
type Handler struct {
	pages   view.Responder
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(pages view.Responder, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{pages: pages, service: service, rbac: rbac}
}

// MountRoutes registers the home page.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.rbac.RequireSignedIn()).Get("/", h.home)
}

func (h *Handler) home(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Summary(r.Context(), rbac.ActorID(r.Context()))
	if err != nil {
		h.pages.Error(w, r, err)
		return
	}
	h.pages.Render(w, r, "pages/home.html", "Dashboard", summary, http.StatusOK)
}
