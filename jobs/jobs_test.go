package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingMail struct {
	sent   []SendEmailPayload
	err    error
	failTo string
}

func (m *recordingMail) EnqueueSendEmail(_ context.Context, payload SendEmailPayload) (*asynq.TaskInfo, error) {
	if m.err != nil && (m.failTo == "" || m.failTo == payload.To) {
		return nil, m.err
	}
	m.sent = append(m.sent, payload)
	return &asynq.TaskInfo{}, nil
}

type stubAssignments struct {
	assignment Assignment
	err        error
}

func (s stubAssignments) Assignment(context.Context, int64, int64) (Assignment, error) {
	return s.assignment, s.err
}

type stubOverdue struct {
	rows    []OverdueTask
	enabled bool
	asOf    time.Time
}

func (s *stubOverdue) OverdueTasks(_ context.Context, asOf time.Time) ([]OverdueTask, error) {
	s.asOf = asOf
	return s.rows, nil
}

func (s *stubOverdue) DigestEnabled(context.Context) (bool, error) {
	return s.enabled, nil
}

func assignedTask(t *testing.T, taskID, assigneeID int64) *asynq.Task {
	t.Helper()
	task, err := NewTaskAssignedTask(TaskAssignedPayload{TaskID: taskID, AssigneeID: assigneeID})
	require.NoError(t, err)
	return task
}

func TestAssignmentJobQueuesEmail(t *testing.T) {
	due := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	mail := &recordingMail{}
	job := &AssignmentJob{
		Source: stubAssignments{assignment: Assignment{
			TaskID:        7,
			TaskTitle:     "Draft brief",
			ProjectName:   "Launch",
			DueDate:       &due,
			AssigneeName:  "Dana",
			AssigneeEmail: "dana@example.com",
		}},
		Mail:    mail,
		BaseURL: "https://pms.example.com/",
	}

	require.NoError(t, job.Handle(context.Background(), assignedTask(t, 7, 3)))
	require.Len(t, mail.sent, 1)
	assert.Equal(t, "dana@example.com", mail.sent[0].To)
	assert.Equal(t, "New task: Draft brief", mail.sent[0].Subject)
	assert.Contains(t, mail.sent[0].Body, "due on 2026-03-02")
	assert.Contains(t, mail.sent[0].Body, "https://pms.example.com/tasks/7")
}

func TestAssignmentJobSkipsStaleAssignment(t *testing.T) {
	mail := &recordingMail{}
	job := &AssignmentJob{Source: stubAssignments{err: ErrAssignmentGone}, Mail: mail}

	require.NoError(t, job.Handle(context.Background(), assignedTask(t, 7, 3)))
	assert.Empty(t, mail.sent)
}

func TestAssignmentJobRejectsBadPayload(t *testing.T) {
	job := &AssignmentJob{Source: stubAssignments{}, Mail: &recordingMail{}}
	err := job.Handle(context.Background(), asynq.NewTask(TaskTypeTaskAssigned, []byte("{")))
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}

func TestGroupByAssignee(t *testing.T) {
	rows := []OverdueTask{
		{TaskID: 1, AssigneeID: 2},
		{TaskID: 2, AssigneeID: 2},
		{TaskID: 3, AssigneeID: 5},
	}
	groups := groupByAssignee(rows)
	require.Len(t, groups, 2)
	assert.Len(t, groups[0], 2)
	assert.Equal(t, int64(5), groups[1][0].AssigneeID)
	assert.Empty(t, groupByAssignee(nil))
}

func TestDigestJobSendsOneEmailPerAssignee(t *testing.T) {
	now := time.Date(2026, 5, 10, 6, 0, 0, 0, time.UTC)
	due := now.AddDate(0, 0, -3)
	source := &stubOverdue{enabled: true, rows: []OverdueTask{
		{TaskID: 1, Title: "A", ProjectName: "P", DueDate: due, AssigneeID: 2, AssigneeEmail: "two@example.com"},
		{TaskID: 2, Title: "B", ProjectName: "P", DueDate: due, AssigneeID: 2, AssigneeEmail: "two@example.com"},
		{TaskID: 3, Title: "C", ProjectName: "Q", DueDate: due, AssigneeID: 4, AssigneeEmail: "four@example.com"},
	}}
	mail := &recordingMail{}
	job := NewDigestJob(source, mail, nil, nil)
	job.clock = func() time.Time { return now }

	require.NoError(t, job.Handle(context.Background(), NewOverdueDigestTask()))
	assert.Equal(t, now, source.asOf)
	require.Len(t, mail.sent, 2)
	assert.Equal(t, "two@example.com", mail.sent[0].To)
	assert.Equal(t, "2 overdue task(s)", mail.sent[0].Subject)
	assert.Contains(t, mail.sent[0].Body, "- B (P), due 2026-05-07")
	assert.Equal(t, "digest:2:2026-05-10", mail.sent[0].Key)
	assert.Equal(t, "four@example.com", mail.sent[1].To)
	assert.Equal(t, "digest:4:2026-05-10", mail.sent[1].Key)
}

func TestDigestJobHonoursSetting(t *testing.T) {
	source := &stubOverdue{enabled: false, rows: []OverdueTask{{TaskID: 1, AssigneeID: 2}}}
	mail := &recordingMail{}
	job := NewDigestJob(source, mail, nil, nil)

	require.NoError(t, job.Handle(context.Background(), NewOverdueDigestTask()))
	assert.Empty(t, mail.sent)
}

func TestDigestJobKeepsGoingAfterEnqueueError(t *testing.T) {
	source := &stubOverdue{enabled: true, rows: []OverdueTask{
		{TaskID: 1, AssigneeID: 2, AssigneeEmail: "x@example.com"},
		{TaskID: 2, AssigneeID: 3, AssigneeEmail: "y@example.com"},
	}}
	boom := errors.New("redis down")
	mail := &recordingMail{err: boom, failTo: "x@example.com"}
	job := NewDigestJob(source, mail, nil, nil)

	assert.ErrorIs(t, job.Handle(context.Background(), NewOverdueDigestTask()), boom)
	require.Len(t, mail.sent, 1, "later recipients are still queued")
	assert.Equal(t, "y@example.com", mail.sent[0].To)
}

func TestSendEmailOptionsDeduplicateKeyedMail(t *testing.T) {
	plain := sendEmailOptions(SendEmailPayload{To: "a@example.com"})
	require.Len(t, plain, 1)
	assert.Equal(t, asynq.QueueOpt, plain[0].Type())

	keyed := sendEmailOptions(SendEmailPayload{To: "a@example.com", Key: "digest:2:2026-05-10"})
	values := map[asynq.OptionType]any{}
	for _, opt := range keyed {
		values[opt.Type()] = opt.Value()
	}
	assert.Equal(t, "digest:2:2026-05-10", values[asynq.TaskIDOpt])
	assert.Equal(t, keyedMailRetention, values[asynq.RetentionOpt])
}

func TestMailJobValidatesPayload(t *testing.T) {
	job := &MailJob{From: "pms@example.com"}

	task, err := NewSendEmailTask(SendEmailPayload{To: "a@example.com", Subject: "hi", Body: "body"})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	task, err = NewSendEmailTask(SendEmailPayload{Subject: "no recipient"})
	require.NoError(t, err)
	assert.ErrorIs(t, job.Handle(context.Background(), task), asynq.SkipRetry)
}

type stubInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (s stubInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) {
	return s.info, s.err
}

func TestHealthReportsQueueInfo(t *testing.T) {
	r := chi.NewRouter()
	NewHandler(stubInspector{info: &asynq.QueueInfo{Queue: QueueDefault, Pending: 3, Failed: 1}}, nil).MountRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body queueHealth
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 3, body.Pending)
	assert.Equal(t, 1, body.Failed)
}

func TestHealthUnavailable(t *testing.T) {
	r := chi.NewRouter()
	NewHandler(stubInspector{err: errors.New("dial tcp")}, nil).MountRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
