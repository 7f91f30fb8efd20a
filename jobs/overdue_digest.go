package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/pms-suite/pms/internal/jobs"
)

// OverdueSource lists overdue work and the workspace switch for the digest.
type OverdueSource interface {
	OverdueTasks(ctx context.Context, asOf time.Time) ([]OverdueTask, error)
	DigestEnabled(ctx context.Context) (bool, error)
}

// DigestJob sends one email per assignee listing their overdue tasks.
type DigestJob struct {
	Source  OverdueSource
	Mail    MailEnqueuer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewDigestJob wires dependencies for the digest handler.
func NewDigestJob(source OverdueSource, mail MailEnqueuer, logger *slog.Logger, metrics *jobmetrics.Metrics) *DigestJob {
	return &DigestJob{
		Source:  source,
		Mail:    mail,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes TaskTypeOverdueDigest tasks.
func (j *DigestJob) Handle(ctx context.Context, _ *asynq.Task) (err error) {
	if j == nil || j.Source == nil || j.Mail == nil {
		return errors.New("overdue digest: handler not configured")
	}
	tracker := j.Metrics.Track(TaskTypeOverdueDigest)
	defer func() { err = tracker.End(err) }()

	enabled, err := j.Source.DigestEnabled(ctx)
	if err != nil {
		return err
	}
	if !enabled {
		logger(j.Logger).Info("overdue digest disabled")
		return nil
	}
	now := j.now()
	rows, err := j.Source.OverdueTasks(ctx, now)
	if err != nil {
		return err
	}
	var (
		sent     int
		failures []error
	)
	for _, group := range groupByAssignee(rows) {
		if _, err := j.Mail.EnqueueSendEmail(ctx, digestEmail(group, now)); err != nil {
			logger(j.Logger).Warn("overdue digest enqueue",
				slog.Int64("assignee_id", group[0].AssigneeID),
				slog.Any("error", err),
			)
			failures = append(failures, err)
			continue
		}
		sent++
	}
	logger(j.Logger).Info("overdue digest queued",
		slog.Int("recipients", sent),
		slog.Int("failed", len(failures)),
		slog.Int("tasks", len(rows)),
	)
	return errors.Join(failures...)
}

func (j *DigestJob) now() time.Time {
	if j.clock == nil {
		return time.Now().UTC()
	}
	return j.clock()
}

// groupByAssignee splits rows ordered by assignee into per-assignee runs.
func groupByAssignee(rows []OverdueTask) [][]OverdueTask {
	var groups [][]OverdueTask
	for i := 0; i < len(rows); {
		j := i + 1
		for j < len(rows) && rows[j].AssigneeID == rows[i].AssigneeID {
			j++
		}
		groups = append(groups, rows[i:j])
		i = j
	}
	return groups
}

func digestEmail(group []OverdueTask, now time.Time) SendEmailPayload {
	first := group[0]
	var body strings.Builder
	fmt.Fprintf(&body, "Hi %s,\n\nThese tasks are past due as of %s:\n\n", first.AssigneeName, now.Format("2006-01-02"))
	for _, o := range group {
		fmt.Fprintf(&body, "- %s (%s), due %s\n", o.Title, o.ProjectName, o.DueDate.Format("2006-01-02"))
	}
	return SendEmailPayload{
		To:      first.AssigneeEmail,
		Subject: fmt.Sprintf("%d overdue task(s)", len(group)),
		Body:    body.String(),
		Key:     fmt.Sprintf("digest:%d:%s", first.AssigneeID, now.Format("2006-01-02")),
	}
}
