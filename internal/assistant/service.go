// Package assistant lets a signed-in user create tasks by chatting with a
// language model. Tool calls run through the tasks service as the user.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pms-suite/pms/internal/rbac"
	"github.com/pms-suite/pms/internal/shared"
	"github.com/pms-suite/pms/internal/tasks"
)

const defaultMaxRounds = 6

var (
	// ErrUnconfigured means no completion endpoint is set.
	ErrUnconfigured = errors.New("assistant: not configured")
	// ErrRoundLimit means the model kept calling tools past the round limit.
	ErrRoundLimit = errors.New("assistant: round limit reached")
)

// ChatInput is one turn posted by the client. Messages is the conversation
// so far, ending with the user's latest message.
type ChatInput struct {
	ConversationID string    `json:"conversation_id" validate:"omitempty,uuid"`
	Messages       []Message `json:"messages" validate:"required,min=1,max=50,dive"`
}

// Reply is the assistant's answer to a turn.
type Reply struct {
	ConversationID string
	Message        Message
	Transcript     []Message
	Created        []tasks.Task
}

// Service runs the tool loop.
type Service struct {
	provider  Provider
	tasks     TaskPort
	guard     *rbac.Guard
	maxRounds int
	logger    *slog.Logger
	clock     func() time.Time
}

// NewService wires the assistant. provider may be nil when unconfigured.
func NewService(provider Provider, taskPort TaskPort, guard *rbac.Guard, maxRounds int, logger *slog.Logger) *Service {
	if maxRounds <= 0 {
		maxRounds = defaultMaxRounds
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		provider:  provider,
		tasks:     taskPort,
		guard:     guard,
		maxRounds: maxRounds,
		logger:    logger,
		clock:     time.Now,
	}
}

// Enabled reports whether a provider is configured.
func (s *Service) Enabled() bool {
	return s != nil && s.provider != nil
}

// Chat sends the conversation to the model and executes the tool calls it
// makes until it answers in text. The last round offers no tools and any tool
// calls in it are dropped. On error the Reply still carries the tasks created
// so far.
func (s *Service) Chat(ctx context.Context, actorID int64, in ChatInput) (Reply, error) {
	if !s.Enabled() {
		return Reply{}, ErrUnconfigured
	}
	id, err := s.guard.Authorize(ctx, actorID, rbac.ResourceTasks, rbac.OpRead)
	if err != nil {
		return Reply{}, err
	}
	history, err := clientHistory(in)
	if err != nil {
		return Reply{}, err
	}
	conversationID := in.ConversationID
	if conversationID == "" {
		conversationID = uuid.NewString()
	}

	box := &toolbox{tasks: s.tasks, actorID: id.UserID}
	messages := append([]Message{{Role: RoleSystem, Content: s.systemPrompt(id)}}, history...)
	for round := 0; round < s.maxRounds; round++ {
		req := Request{Messages: messages, Tools: Tools()}
		final := round == s.maxRounds-1
		if final {
			req.Tools = nil
		}
		resp, err := s.provider.Complete(ctx, req)
		if err != nil {
			return Reply{ConversationID: conversationID, Created: box.created}, err
		}
		msg := resp.Message
		msg.Role = RoleAssistant
		messages = append(messages, msg)
		if len(msg.ToolCalls) == 0 {
			return Reply{
				ConversationID: conversationID,
				Message:        msg,
				Transcript:     messages[1:],
				Created:        box.created,
			}, nil
		}
		if final {
			break
		}
		for _, call := range msg.ToolCalls {
			content, err := box.run(ctx, call)
			if err != nil {
				return Reply{ConversationID: conversationID, Created: box.created}, err
			}
			s.logger.Info("assistant tool call",
				slog.String("conversation_id", conversationID),
				slog.String("tool", call.Name),
				slog.Int64("actor_id", id.UserID),
			)
			messages = append(messages, Message{Role: RoleTool, Content: content, ToolCallID: call.ID})
		}
	}
	s.logger.Warn("assistant round limit",
		slog.String("conversation_id", conversationID),
		slog.Int("rounds", s.maxRounds),
		slog.Int("created", len(box.created)),
	)
	return Reply{ConversationID: conversationID, Created: box.created}, ErrRoundLimit
}

// clientHistory validates the posted conversation. Clients may replay user
// and assistant text; tool traffic is regenerated server side.
func clientHistory(in ChatInput) ([]Message, error) {
	if err := shared.ValidateStruct(in); err != nil {
		return nil, err
	}
	out := make([]Message, 0, len(in.Messages))
	for i, m := range in.Messages {
		switch m.Role {
		case RoleUser, RoleAssistant:
		default:
			return nil, shared.Invalid("Messages", fmt.Sprintf("message %d has unsupported role %q", i, m.Role))
		}
		if strings.TrimSpace(m.Content) == "" {
			return nil, shared.Invalid("Messages", fmt.Sprintf("message %d is empty", i))
		}
		out = append(out, Message{Role: m.Role, Content: m.Content})
	}
	if out[len(out)-1].Role != RoleUser {
		return nil, shared.Invalid("Messages", "last message must come from the user")
	}
	return out, nil
}

func (s *Service) systemPrompt(id *rbac.Identity) string {
	return fmt.Sprintf("You help a %s (%s access) create tasks in a project management tool. Today is %s. "+
		"Use list_projects, list_milestones and list_assignees to find ids before calling create_task. "+
		"If a tool returns forbidden, tell the user they lack access. Ask when details are missing.",
		id.Role.Label(), id.Power.Label(), s.clock().UTC().Format("2006-01-02"))
}
