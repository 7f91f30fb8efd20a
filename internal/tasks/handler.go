package tasks

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pms-suite/pms/internal/platform/httpx"
	"github.com/pms-suite/pms/internal/rbac"
	"github.com/pms-suite/pms/internal/shared"
	"github.com/pms-suite/pms/internal/view"
)

// Handler manages task endpoints.
type Handler struct {
	pages   view.Responder
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(pages view.Responder, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{pages: pages, service: service, rbac: rbac}
}

// MountRoutes registers task routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAccess(rbac.ResourceTasks))
		r.Get("/", h.list)
		r.Get("/new", h.showCreate)
		r.Post("/", h.create)
		r.Get("/{id}", h.show)
		r.Get("/{id}/edit", h.showEdit)
		r.Post("/{id}", h.update)
		r.Post("/{id}/delete", h.delete)
		r.Post("/{id}/approve", h.approve)
		r.Post("/{id}/reject", h.reject)
		r.Post("/{id}/comments", h.addComment)
		r.Post("/{id}/comments/{commentID}/delete", h.deleteComment)
	})
}

type formPage struct {
	ID         int64
	Form       Input
	Projects   []ProjectOption
	Milestones []MilestoneOption
	Assignees  []Assignee
	Statuses   []Status
	Priorities []Priority
	Errors     map[string]string
}

func taskURL(id int64) string {
	return "/tasks/" + strconv.FormatInt(id, 10)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{
		ProjectID:  httpx.OptionalID(q.Get("project_id")),
		Status:     Status(q.Get("status")),
		AssigneeID: httpx.OptionalID(q.Get("assignee_id")),
		Page:       shared.ParseCursorPage(q),
	}
	if q.Get("mine") == "1" {
		actor := rbac.ActorID(r.Context())
		filter.AssigneeID = &actor
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
		"ActorID":   rbac.ActorID(r.Context()),
		"CanCreate": actor.Can(rbac.ResourceTasks, rbac.OpCreate),
		"Today":     time.Now(),
	}
	h.pages.Render(w, r, "pages/tasks/list.html", "Tasks", data, http.StatusOK)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.ParamID(r, "id")
	if err != nil {
		h.pages.Error(w, r, err)
		return
	}
	h.renderShow(w, r, id, "", http.StatusOK)
}

func (h *Handler) renderShow(w http.ResponseWriter, r *http.Request, id int64, commentError string, status int) {
	actor := rbac.IdentityFromContext(r.Context())
	t, err := h.service.Get(r.Context(), actor.UserID, id)
	if err != nil {
		h.pages.Error(w, r, err)
		return
	}
	comments, err := h.service.ListComments(r.Context(), actor.UserID, id)
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
		"Task":         t,
		"Comments":     comments,
		"History":      history,
		"ActorID":      actor.UserID,
		"CommentError": commentError,
		"Today":        time.Now(),
		"CanEdit":      actor.Can(rbac.ResourceTasks, rbac.OpUpdate),
		"CanDelete":    actor.Can(rbac.ResourceTasks, rbac.OpDelete),
		"CanApprove":   actor.Can(rbac.ResourceApproveTasks, rbac.OpUpdate),
	}
	h.pages.Render(w, r, "pages/tasks/show.html", t.Title, data, status)
}

func (h *Handler) showCreate(w http.ResponseWriter, r *http.Request) {
	in := Input{Status: StatusTodo, Priority: PriorityMedium}
	if projectID := httpx.OptionalID(r.URL.Query().Get("project_id")); projectID != nil {
		in.ProjectID = *projectID
	}
	h.renderForm(w, r, formPage{Form: in}, http.StatusOK)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	in, err := parseForm(r)
	if err == nil {
		var t Task
		t, err = h.service.Create(r.Context(), rbac.ActorID(r.Context()), in)
		if err == nil {
			h.pages.RedirectWithFlash(w, r, taskURL(t.ID), "success", "Task created and waiting for approval")
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
	t, err := h.service.Get(r.Context(), rbac.ActorID(r.Context()), id)
	if err != nil {
		h.pages.Error(w, r, err)
		return
	}
	in := Input{
		ProjectID:   t.ProjectID,
		MilestoneID: t.MilestoneID,
		Title:       t.Title,
		Description: t.Description,
		Status:      t.Status,
		Priority:    t.Priority,
		AssigneeID:  t.AssigneeID,
		DueDate:     t.DueDate,
	}
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
			h.pages.RedirectWithFlash(w, r, taskURL(id), "success", "Task updated")
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
	h.pages.RedirectWithFlash(w, r, "/tasks", "success", "Task deleted")
}

func (h *Handler) approve(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.service.Approve, "Task approved")
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.service.Reject, "Task rejected")
}

type decision func(ctx context.Context, actorID, taskID int64, note string) (Task, error)

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
	h.pages.RedirectWithFlash(w, r, taskURL(id), "success", message)
}

func (h *Handler) addComment(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.ParamID(r, "id")
	if err != nil {
		h.pages.Error(w, r, err)
		return
	}
	_ = r.ParseForm()
	_, err = h.service.AddComment(r.Context(), rbac.ActorID(r.Context()), id, CommentInput{Body: r.PostFormValue("body")})
	switch {
	case err == nil:
		h.pages.RedirectWithFlash(w, r, taskURL(id)+"#comments", "success", "Comment added")
	case errors.Is(err, httpx.ErrValidation):
		h.renderShow(w, r, id, shared.FieldErrors(err)["Body"], http.StatusBadRequest)
	default:
		h.pages.Error(w, r, err)
	}
}

func (h *Handler) deleteComment(w http.ResponseWriter, r *http.Request) {
	commentID, err := httpx.ParamID(r, "commentID")
	if err != nil {
		h.pages.Error(w, r, err)
		return
	}
	c, err := h.service.DeleteComment(r.Context(), rbac.ActorID(r.Context()), commentID)
	if err != nil {
		h.pages.Error(w, r, err)
		return
	}
	h.pages.RedirectWithFlash(w, r, taskURL(c.TaskID)+"#comments", "success", "Comment deleted")
}

func (h *Handler) renderForm(w http.ResponseWriter, r *http.Request, page formPage, status int) {
	actorID := rbac.ActorID(r.Context())
	projects, milestones, err := h.service.FormOptions(r.Context(), actorID)
	if err != nil {
		h.pages.Error(w, r, err)
		return
	}
	page.Projects, page.Milestones = projects, milestones
	if page.Form.ProjectID > 0 {
		assignees, err := h.service.Assignees(r.Context(), actorID, page.Form.ProjectID)
		if err != nil && !rbac.IsDenied(err) {
			h.pages.Error(w, r, err)
			return
		}
		page.Assignees = assignees
	}
	page.Statuses = Statuses()
	page.Priorities = Priorities()
	if page.Errors == nil {
		page.Errors = map[string]string{}
	}
	title := "New task"
	if page.ID > 0 {
		title = "Edit task"
	}
	h.pages.Render(w, r, "pages/tasks/form.html", title, page, status)
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
		MilestoneID: httpx.OptionalID(r.PostFormValue("milestone_id")),
		Title:       r.PostFormValue("title"),
		Description: r.PostFormValue("description"),
		Status:      Status(r.PostFormValue("status")),
		Priority:    Priority(r.PostFormValue("priority")),
		AssigneeID:  httpx.OptionalID(r.PostFormValue("assignee_id")),
	}
	if projectID := httpx.OptionalID(r.PostFormValue("project_id")); projectID != nil {
		in.ProjectID = *projectID
	}
	var err error
	in.DueDate, err = httpx.OptionalDate(r.PostFormValue("due_date"))
	return in, err
}
