package app

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pms-suite/pms/internal/assistant"
	"github.com/pms-suite/pms/internal/auth"
	"github.com/pms-suite/pms/internal/dashboard"
	"github.com/pms-suite/pms/internal/departments"
	"github.com/pms-suite/pms/internal/milestones"
	"github.com/pms-suite/pms/internal/observability"
	"github.com/pms-suite/pms/internal/platform/httpx"
	"github.com/pms-suite/pms/internal/projects"
	"github.com/pms-suite/pms/internal/rbac"
	"github.com/pms-suite/pms/internal/settings"
	"github.com/pms-suite/pms/internal/shared"
	"github.com/pms-suite/pms/internal/tasks"
	"github.com/pms-suite/pms/internal/users"
	"github.com/pms-suite/pms/jobs"
	"github.com/pms-suite/pms/web"
)

// RouterParams groups dependencies for building the HTTP router. Nil
// handlers are not mounted.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	Metrics        *observability.Metrics
	RBAC           rbac.Middleware

	AuthHandler        *auth.Handler
	DashboardHandler   *dashboard.Handler
	DepartmentsHandler *departments.Handler
	UsersHandler       *users.Handler
	ProjectsHandler    *projects.Handler
	MilestonesHandler  *milestones.Handler
	TasksHandler       *tasks.Handler
	SettingsHandler    *settings.Handler
	AssistantHandler   *assistant.Handler
	PermissionsHandler *rbac.PermissionsHandler
	JobHandler         *jobs.Handler
}

// NewRouter constructs the chi.Router with application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if params.AuthHandler != nil {
		r.Route("/auth", params.AuthHandler.MountRoutes)
	}
	if params.DashboardHandler != nil {
		params.DashboardHandler.MountRoutes(r)
	}
	mount := func(prefix string, h interface{ MountRoutes(chi.Router) }) {
		r.Route(prefix, h.MountRoutes)
	}
	if params.DepartmentsHandler != nil {
		mount("/departments", params.DepartmentsHandler)
	}
	if params.UsersHandler != nil {
		mount("/users", params.UsersHandler)
	}
	if params.ProjectsHandler != nil {
		mount("/projects", params.ProjectsHandler)
	}
	if params.MilestonesHandler != nil {
		mount("/milestones", params.MilestonesHandler)
	}
	if params.TasksHandler != nil {
		mount("/tasks", params.TasksHandler)
	}
	if params.SettingsHandler != nil {
		mount("/settings", params.SettingsHandler)
	}
	if params.AssistantHandler != nil {
		mount("/assistant", params.AssistantHandler)
	}
	if params.PermissionsHandler != nil {
		mount("/permissions", params.PermissionsHandler)
	}
	if params.JobHandler != nil && params.RBAC.Guard != nil {
		r.With(params.RBAC.RequireAccess(rbac.ResourceViewAllDepartments)).Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}

	return r
}

// staticCacheHandler lets browsers cache embedded assets for an hour.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
