package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/pms-suite/pms/internal/jobs"
)

// AssignmentSource loads assignment details.
type AssignmentSource interface {
	Assignment(ctx context.Context, taskID, assigneeID int64) (Assignment, error)
}

// MailEnqueuer queues outgoing mail.
type MailEnqueuer interface {
	EnqueueSendEmail(ctx context.Context, payload SendEmailPayload) (*asynq.TaskInfo, error)
}

// AssignmentJob turns tasks:assigned into a mail:send for the assignee.
type AssignmentJob struct {
	Source  AssignmentSource
	Mail    MailEnqueuer
	BaseURL string
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// Handle processes TaskTypeTaskAssigned tasks.
func (j *AssignmentJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Source == nil || j.Mail == nil {
		return errors.New("task assigned: handler not configured")
	}
	tracker := j.Metrics.Track(TaskTypeTaskAssigned)
	defer func() { err = tracker.End(err) }()

	var payload TaskAssignedPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("task assigned: decode payload: %v: %w", err, asynq.SkipRetry)
	}
	a, err := j.Source.Assignment(ctx, payload.TaskID, payload.AssigneeID)
	if errors.Is(err, ErrAssignmentGone) {
		logger(j.Logger).Info("skip stale assignment", slog.Int64("task_id", payload.TaskID), slog.Int64("assignee_id", payload.AssigneeID))
		return nil
	}
	if err != nil {
		return err
	}
	_, err = j.Mail.EnqueueSendEmail(ctx, assignmentEmail(a, j.BaseURL))
	return err
}

func assignmentEmail(a Assignment, baseURL string) SendEmailPayload {
	var body strings.Builder
	fmt.Fprintf(&body, "Hi %s,\n\nYou have been assigned \"%s\" in %s.\n", a.AssigneeName, a.TaskTitle, a.ProjectName)
	if a.DueDate != nil {
		fmt.Fprintf(&body, "It is due on %s.\n", a.DueDate.Format("2006-01-02"))
	}
	if baseURL != "" {
		fmt.Fprintf(&body, "\n%s/tasks/%d\n", strings.TrimRight(baseURL, "/"), a.TaskID)
	}
	return SendEmailPayload{
		To:      a.AssigneeEmail,
		Subject: "New task: " + a.TaskTitle,
		Body:    body.String(),
	}
}
