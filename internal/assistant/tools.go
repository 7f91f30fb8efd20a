package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pms-suite/pms/internal/platform/httpx"
	"github.com/pms-suite/pms/internal/rbac"
	"github.com/pms-suite/pms/internal/shared"
	"github.com/pms-suite/pms/internal/tasks"
)

const (
	toolListProjects   = "list_projects"
	toolListMilestones = "list_milestones"
	toolListAssignees  = "list_assignees"
	toolCreateTask     = "create_task"
)

// TaskPort is the slice of tasks.Service the tools drive. Every call runs as
// the acting user.
type TaskPort interface {
	FormOptions(ctx context.Context, actorID int64) ([]tasks.ProjectOption, []tasks.MilestoneOption, error)
	Assignees(ctx context.Context, actorID, projectID int64) ([]tasks.Assignee, error)
	Create(ctx context.Context, actorID int64, in tasks.Input) (tasks.Task, error)
}

var toolDefinitions = []Tool{
	{
		Name:        toolListProjects,
		Description: "List the projects the user can create tasks in.",
		Parameters:  json.RawMessage(`{"type":"object","properties":{}}`),
	},
	{
		Name:        toolListMilestones,
		Description: "List milestones of a project.",
		Parameters:  json.RawMessage(`{"type":"object","properties":{"project_id":{"type":"integer"}},"required":["project_id"]}`),
	},
	{
		Name:        toolListAssignees,
		Description: "List users a task in the project can be assigned to.",
		Parameters:  json.RawMessage(`{"type":"object","properties":{"project_id":{"type":"integer"}},"required":["project_id"]}`),
	},
	{
		Name:        toolCreateTask,
		Description: "Create a task. due_date is YYYY-MM-DD. priority is one of low, medium, high, urgent.",
		Parameters: json.RawMessage(`{"type":"object","properties":{` +
			`"project_id":{"type":"integer"},` +
			`"milestone_id":{"type":"integer"},` +
			`"title":{"type":"string"},` +
			`"description":{"type":"string"},` +
			`"priority":{"type":"string","enum":["low","medium","high","urgent"]},` +
			`"assignee_id":{"type":"integer"},` +
			`"due_date":{"type":"string"}` +
			`},"required":["project_id","title"]}`),
	},
}

// Tools returns the tool schemas offered to the model.
func Tools() []Tool {
	out := make([]Tool, len(toolDefinitions))
	copy(out, toolDefinitions)
	return out
}

type projectArgs struct {
	ProjectID int64 `json:"project_id"`
}

type createTaskArgs struct {
	ProjectID   int64  `json:"project_id"`
	MilestoneID *int64 `json:"milestone_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
	AssigneeID  *int64 `json:"assignee_id"`
	DueDate     string `json:"due_date"`
}

type toolFailure struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// toolbox executes tool calls for one actor.
type toolbox struct {
	tasks   TaskPort
	actorID int64
	created []tasks.Task
}

// run executes a call and returns the JSON content for the tool message.
// Domain failures become tool results; only unexpected errors are returned.
func (b *toolbox) run(ctx context.Context, call ToolCall) (string, error) {
	result, err := b.dispatch(ctx, call)
	if err != nil {
		failure, ok := describeFailure(err)
		if !ok {
			return "", fmt.Errorf("assistant: tool %s: %w", call.Name, err)
		}
		result = failure
	}
	data, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("assistant: encode %s result: %w", call.Name, err)
	}
	return string(data), nil
}

var errBadArguments = errors.New("invalid arguments")

func (b *toolbox) dispatch(ctx context.Context, call ToolCall) (any, error) {
	switch call.Name {
	case toolListProjects:
		projects, _, err := b.tasks.FormOptions(ctx, b.actorID)
		if err != nil {
			return nil, err
		}
		type project struct {
			ID   int64  `json:"id"`
			Name string `json:"name"`
		}
		out := make([]project, 0, len(projects))
		for _, p := range projects {
			out = append(out, project{ID: p.ID, Name: p.Name})
		}
		return out, nil
	case toolListMilestones:
		var args projectArgs
		if err := decodeArgs(call.Arguments, &args); err != nil {
			return nil, err
		}
		projects, milestones, err := b.tasks.FormOptions(ctx, b.actorID)
		if err != nil {
			return nil, err
		}
		if !hasProject(projects, args.ProjectID) {
			return nil, rbac.ErrForbidden
		}
		type milestone struct {
			ID    int64  `json:"id"`
			Title string `json:"title"`
		}
		out := []milestone{}
		for _, m := range milestones {
			if m.ProjectID == args.ProjectID {
				out = append(out, milestone{ID: m.ID, Title: m.Title})
			}
		}
		return out, nil
	case toolListAssignees:
		var args projectArgs
		if err := decodeArgs(call.Arguments, &args); err != nil {
			return nil, err
		}
		assignees, err := b.tasks.Assignees(ctx, b.actorID, args.ProjectID)
		if err != nil {
			return nil, err
		}
		type assignee struct {
			ID    int64  `json:"id"`
			Name  string `json:"name"`
			Email string `json:"email"`
		}
		out := make([]assignee, 0, len(assignees))
		for _, a := range assignees {
			out = append(out, assignee{ID: a.ID, Name: a.Name, Email: a.Email})
		}
		return out, nil
	case toolCreateTask:
		var args createTaskArgs
		if err := decodeArgs(call.Arguments, &args); err != nil {
			return nil, err
		}
		in := tasks.Input{
			ProjectID:   args.ProjectID,
			MilestoneID: args.MilestoneID,
			Title:       strings.TrimSpace(args.Title),
			Description: args.Description,
			Priority:    tasks.Priority(args.Priority),
			AssigneeID:  args.AssigneeID,
		}
		if args.DueDate != "" {
			due, err := time.Parse("2006-01-02", args.DueDate)
			if err != nil {
				return nil, shared.Invalid("DueDate", "due_date must be YYYY-MM-DD")
			}
			in.DueDate = &due
		}
		task, err := b.tasks.Create(ctx, b.actorID, in)
		if err != nil {
			return nil, err
		}
		b.created = append(b.created, task)
		return struct {
			ID        int64  `json:"id"`
			Title     string `json:"title"`
			ProjectID int64  `json:"project_id"`
			Status    string `json:"status"`
		}{task.ID, task.Title, task.ProjectID, string(task.Status)}, nil
	default:
		return toolFailure{Error: "unknown_tool"}, nil
	}
}

func decodeArgs(raw json.RawMessage, target any) error {
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return errBadArguments
	}
	return nil
}

func hasProject(projects []tasks.ProjectOption, id int64) bool {
	for _, p := range projects {
		if p.ID == id {
			return true
		}
	}
	return false
}

// describeFailure turns expected errors into model-facing results. Denials
// carry no detail.
func describeFailure(err error) (toolFailure, bool) {
	switch {
	case rbac.IsDenied(err):
		return toolFailure{Error: "forbidden"}, true
	case errors.Is(err, errBadArguments):
		return toolFailure{Error: "invalid_arguments"}, true
	case errors.Is(err, httpx.ErrValidation):
		return toolFailure{Error: "invalid", Fields: shared.FieldErrors(err)}, true
	case errors.Is(err, httpx.ErrNotFound):
		return toolFailure{Error: "not_found"}, true
	default:
		return toolFailure{}, false
	}
}
