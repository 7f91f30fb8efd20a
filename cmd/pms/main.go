package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/pms-suite/pms/cmd/pms/cli"
	"github.com/pms-suite/pms/internal/app"
	"github.com/pms-suite/pms/internal/assistant"
	"github.com/pms-suite/pms/internal/auth"
	"github.com/pms-suite/pms/internal/dashboard"
	"github.com/pms-suite/pms/internal/departments"
	"github.com/pms-suite/pms/internal/milestones"
	"github.com/pms-suite/pms/internal/observability"
	"github.com/pms-suite/pms/internal/platform/cache"
	"github.com/pms-suite/pms/internal/platform/db"
	"github.com/pms-suite/pms/internal/projects"
	"github.com/pms-suite/pms/internal/rbac"
	"github.com/pms-suite/pms/internal/settings"
	"github.com/pms-suite/pms/internal/shared"
	"github.com/pms-suite/pms/internal/tasks"
	"github.com/pms-suite/pms/internal/users"
	"github.com/pms-suite/pms/internal/view"
	"github.com/pms-suite/pms/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	if len(os.Args) > 1 && os.Args[1] == "jobs" {
		if err := runJobsCommand(ctx, cfg, os.Args[2:]); err != nil {
			logger.Error("jobs command", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	if err := serve(ctx, cfg, logger); err != nil {
		logger.Error("server", slog.Any("error", err))
		os.Exit(1)
	}
}

func serve(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConns})
	if err != nil {
		return err
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	sessionManager := shared.NewSessionManager(redisClient, "pms_session", cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	resolver := rbac.NewResolver(rbac.NewPGIdentityStore(pool))
	guard := rbac.NewGuard(resolver, metrics)
	rbacMiddleware := rbac.Middleware{Guard: guard, Logger: logger}

	templates, err := view.NewEngine()
	if err != nil {
		return fmt.Errorf("parse templates: %w", err)
	}
	pages := view.Responder{
		Logger:    logger,
		Templates: templates,
		CSRF:      csrfManager,
		Chrome:    app.NewChrome(rbac.NewNavigator(resolver, logger)),
	}

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
	jobClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		return err
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	auditLogger := shared.NewAuditLogger(pool)
	approvals := shared.NewApprovalRecorder(pool, logger)

	authService := auth.NewService(auth.NewRepository(pool))
	departmentService := departments.NewService(departments.NewRepository(pool), guard, auditLogger, logger)
	userService := users.NewService(users.NewRepository(pool), guard, auditLogger, logger)
	projectService := projects.NewService(projects.NewRepository(pool), guard, approvals, auditLogger, logger)
	milestoneService := milestones.NewService(milestones.NewRepository(pool), guard, approvals, auditLogger, logger)
	taskService := tasks.NewService(tasks.NewRepository(pool), guard, approvals, jobClient, auditLogger, logger)
	settingsService := settings.NewService(settings.NewRepository(pool), guard, auditLogger, logger)
	dashboardService := dashboard.NewService(dashboard.NewRepository(pool), guard)

	var provider assistant.Provider
	if cfg.AssistantEnabled() {
		httpClient := &http.Client{Timeout: cfg.AssistantTimeout}
		provider = assistant.NewOpenAI(httpClient, cfg.AssistantEndpoint, cfg.AssistantAPIKey, cfg.AssistantModel)
	}
	assistantService := assistant.NewService(provider, taskService, guard, cfg.AssistantMaxRounds, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: sessionManager,
		CSRFManager:    csrfManager,
		Metrics:        metrics,
		RBAC:           rbacMiddleware,

		AuthHandler:        auth.NewHandler(logger, authService, pages, sessionManager),
		DashboardHandler:   dashboard.NewHandler(pages, dashboardService, rbacMiddleware),
		DepartmentsHandler: departments.NewHandler(pages, departmentService, rbacMiddleware),
		UsersHandler:       users.NewHandler(pages, userService, rbacMiddleware),
		ProjectsHandler:    projects.NewHandler(pages, projectService, rbacMiddleware),
		MilestonesHandler:  milestones.NewHandler(pages, milestoneService, rbacMiddleware),
		TasksHandler:       tasks.NewHandler(pages, taskService, rbacMiddleware),
		SettingsHandler:    settings.NewHandler(pages, settingsService, rbacMiddleware),
		AssistantHandler:   assistant.NewHandler(pages, assistantService, rbacMiddleware, logger),
		PermissionsHandler: rbac.NewPermissionsHandler(pages, rbacMiddleware),
		JobHandler:         jobs.NewHandler(inspector, logger),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.Bool("assistant", cfg.AssistantEnabled()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func runJobsCommand(ctx context.Context, cfg *app.Config, args []string) error {
	c, err := cli.NewJobsCLI(asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	if err != nil {
		return err
	}
	defer c.Close()
	return c.Run(ctx, args, os.Stdout)
}
