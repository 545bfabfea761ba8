package mail

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hibiken/asynq"

	"jobBoard/internal/database"
	"jobBoard/internal/tasks"
)

type sentMail struct {
	to, subject, body string
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (f *fakeSender) Send(_ context.Context, to, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

type fakeQueue struct {
	tasks []*asynq.Task
	err   error
}

func (q *fakeQueue) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if q.err != nil {
		return nil, q.err
	}
	q.tasks = append(q.tasks, task)
	return &asynq.TaskInfo{ID: "t1", Type: task.Type()}, nil
}

type staticContent struct{ sc database.SiteContent }

func (s staticContent) Get(context.Context) (*database.SiteContent, error) { return &s.sc, nil }

func testApplication() *database.Application {
	return &database.Application{
		ID:        42,
		JobTitle:  "Nurse",
		FullName:  "Alice Wanjiku",
		Email:     "alice@example.com",
		Phone:     "+254700000000",
		Age:       29,
		Gender:    "female",
		ExamGrade: "B+",
		AppliedAt: time.Date(2026, 3, 10, 9, 5, 0, 0, time.UTC),
	}
}

func TestSendConfirmation(t *testing.T) {
	sender := &fakeSender{}
	n := NewNotifier(sender, "Green Tara", "", WithContent(staticContent{database.SiteContent{
		ContactEmail: "recruitment@example.com",
	}}))

	if err := n.SendConfirmation(context.Background(), testApplication()); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected one mail, got %d", len(sender.sent))
	}
	m := sender.sent[0]
	if m.to != "alice@example.com" {
		t.Fatalf("to = %q", m.to)
	}
	if m.subject != "Application Received - Nurse | Green Tara" {
		t.Fatalf("subject = %q", m.subject)
	}
	for _, want := range []string{"Dear Alice Wanjiku", "GT-42", "March 10, 2026 at 09:05 AM", "recruitment@example.com"} {
		if !strings.Contains(m.body, want) {
			t.Fatalf("body misses %q:\n%s", want, m.body)
		}
	}
}

func TestSendConfirmation_PropagatesSenderError(t *testing.T) {
	n := NewNotifier(&fakeSender{err: errors.New("smtp down")}, "Site", "")
	if err := n.SendConfirmation(context.Background(), testApplication()); err == nil {
		t.Fatalf("expected error")
	}
}

func TestNotifyAdmin_SkippedWithoutAddress(t *testing.T) {
	sender := &fakeSender{}
	n := NewNotifier(sender, "Site", "  ")
	if err := n.NotifyAdmin(context.Background(), testApplication()); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(sender.sent) != 0 {
		t.Fatalf("expected no mail without admin address")
	}
}

func TestNotifyAdmin_Direct(t *testing.T) {
	sender := &fakeSender{}
	n := NewNotifier(sender, "Site", "hr@example.com")
	if err := n.NotifyAdmin(context.Background(), testApplication()); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(sender.sent) != 1 || sender.sent[0].to != "hr@example.com" {
		t.Fatalf("unexpected mails %+v", sender.sent)
	}
	if !strings.Contains(sender.sent[0].body, "KCSE grade:     B+") {
		t.Fatalf("body misses grade:\n%s", sender.sent[0].body)
	}
}

func TestNotifyAdmin_Queued(t *testing.T) {
	sender := &fakeSender{}
	q := &fakeQueue{}
	n := NewNotifier(sender, "Site", "hr@example.com", WithQueue(q))

	ctx := ContextWithCorrelationID(context.Background(), "corr-1")
	if err := n.NotifyAdmin(ctx, testApplication()); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(sender.sent) != 0 {
		t.Fatalf("queued notification must not send inline")
	}
	if len(q.tasks) != 1 || q.tasks[0].Type() != tasks.TypeAdminNotify {
		t.Fatalf("unexpected tasks %+v", q.tasks)
	}
	var p tasks.AdminNotifyPayload
	if err := json.Unmarshal(q.tasks[0].Payload(), &p); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if p.ApplicationID != 42 || p.CorrelationID != "corr-1" {
		t.Fatalf("payload = %+v", p)
	}
}
