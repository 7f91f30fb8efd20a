package assistant

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pms-suite/pms/internal/platform/httpx"
	"github.com/pms-suite/pms/internal/rbac"
	"github.com/pms-suite/pms/internal/shared"
	"github.com/pms-suite/pms/internal/view"
)

// Handler exposes the chat endpoint.
type Handler struct {
	pages   view.Responder
	service *Service
	rbac    rbac.Middleware
	logger  *slog.Logger
}

// NewHandler builds a Handler.
func NewHandler(pages view.Responder, service *Service, rbac rbac.Middleware, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{pages: pages, service: service, rbac: rbac, logger: logger}
}

// MountRoutes registers assistant routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAccess(rbac.ResourceTasks))
		r.Get("/", h.page)
		r.Post("/chat", h.chat)
	})
}

func (h *Handler) page(w http.ResponseWriter, r *http.Request) {
	data := map[string]any{"Enabled": h.service.Enabled()}
	h.pages.Render(w, r, "pages/assistant.html", "Assistant", data, http.StatusOK)
}

type createdTask struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	ProjectID int64  `json:"project_id"`
}

type chatResponse struct {
	ConversationID string        `json:"conversation_id"`
	Reply          string        `json:"reply"`
	Messages       []Message     `json:"messages"`
	CreatedTasks   []createdTask `json:"created_tasks"`
}

type validationProblem struct {
	httpx.ProblemDetail
	Errors map[string]string `json:"errors,omitempty"`
}

func (h *Handler) chat(w http.ResponseWriter, r *http.Request) {
	if !h.service.Enabled() {
		httpx.Problem(w, http.StatusServiceUnavailable, "Assistant unavailable", "")
		return
	}
	var in ChatInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request body", "")
		return
	}
	reply, err := h.service.Chat(r.Context(), rbac.ActorID(r.Context()), in)
	if err != nil {
		h.fail(w, reply, err)
		return
	}
	httpx.JSON(w, http.StatusOK, chatResponse{
		ConversationID: reply.ConversationID,
		Reply:          reply.Message.Content,
		Messages:       reply.Transcript,
		CreatedTasks:   created(reply),
	})
}

// gatewayProblem lists tasks saved before the model or provider gave up so
// the client does not retry them.
type gatewayProblem struct {
	httpx.ProblemDetail
	ConversationID string        `json:"conversation_id,omitempty"`
	CreatedTasks   []createdTask `json:"created_tasks"`
}

func created(reply Reply) []createdTask {
	out := make([]createdTask, 0, len(reply.Created))
	for _, t := range reply.Created {
		out = append(out, createdTask{ID: t.ID, Title: t.Title, ProjectID: t.ProjectID})
	}
	return out
}

func (h *Handler) gateway(w http.ResponseWriter, reply Reply, title string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(http.StatusBadGateway)
	_ = json.NewEncoder(w).Encode(gatewayProblem{
		ProblemDetail:  httpx.ProblemDetail{Type: "about:blank", Title: title, Status: http.StatusBadGateway},
		ConversationID: reply.ConversationID,
		CreatedTasks:   created(reply),
	})
}

func (h *Handler) fail(w http.ResponseWriter, reply Reply, err error) {
	var providerErr *ProviderError
	switch {
	case errors.Is(err, ErrUnconfigured):
		httpx.Problem(w, http.StatusServiceUnavailable, "Assistant unavailable", "")
	case errors.Is(err, ErrRoundLimit):
		h.gateway(w, reply, "Assistant did not finish")
	case errors.As(err, &providerErr):
		h.logger.Warn("assistant provider", slog.Any("error", err))
		h.gateway(w, reply, "Assistant provider error")
	case errors.Is(err, httpx.ErrValidation):
		httpx.JSON(w, http.StatusBadRequest, validationProblem{
			ProblemDetail: httpx.ProblemDetail{Type: "about:blank", Title: "Validation failed", Status: http.StatusBadRequest},
			Errors:        shared.FieldErrors(err),
		})
	default:
		if httpx.StatusFor(err) == http.StatusInternalServerError {
			h.logger.Error("assistant chat", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
	}
}
