package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

// keyedMailRetention keeps finished keyed mails around long enough for a
// retried digest to see their TaskID.
const keyedMailRetention = 36 * time.Hour

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for sending notification emails.
	TaskTypeSendEmail = "mail:send"
	// TaskTypeTaskAssigned fires when a task gets a new assignee.
	TaskTypeTaskAssigned = "tasks:assigned"
	// TaskTypeOverdueDigest sends each assignee a list of their overdue tasks.
	TaskTypeOverdueDigest = "tasks:overdue_digest"
)

// SendEmailPayload describes the information required to send an email.
type SendEmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	// Key, when set, becomes the asynq TaskID so the same mail is queued once.
	Key string `json:"key,omitempty"`
}

// TaskAssignedPayload identifies an assignment to notify about.
type TaskAssignedPayload struct {
	TaskID     int64 `json:"task_id"`
	AssigneeID int64 `json:"assignee_id"`
}

// NewSendEmailTask constructs an Asynq task.
func NewSendEmailTask(payload SendEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSendEmail, data, asynq.MaxRetry(5)), nil
}

// sendEmailOptions returns the enqueue options for payload.
func sendEmailOptions(payload SendEmailPayload) []asynq.Option {
	opts := []asynq.Option{asynq.Queue(QueueDefault)}
	if payload.Key != "" {
		opts = append(opts, asynq.TaskID(payload.Key), asynq.Retention(keyedMailRetention))
	}
	return opts
}

// NewTaskAssignedTask constructs an Asynq task.
func NewTaskAssignedTask(payload TaskAssignedPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeTaskAssigned, data, asynq.MaxRetry(3)), nil
}

// NewOverdueDigestTask constructs the cron task for the daily digest.
func NewOverdueDigestTask() *asynq.Task {
	return asynq.NewTask(TaskTypeOverdueDigest, nil, asynq.MaxRetry(3))
}
