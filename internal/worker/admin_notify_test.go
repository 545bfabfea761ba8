package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"

	"jobBoard/internal/database"
	"jobBoard/internal/database/dbtest"
	"jobBoard/internal/tasks"
)

type fakeDeliverer struct {
	delivered []uint
	err       error
}

func (f *fakeDeliverer) DeliverAdminNotification(_ context.Context, app *database.Application) error {
	if f.err != nil {
		return f.err
	}
	f.delivered = append(f.delivered, app.ID)
	return nil
}

func seedApplication(t *testing.T) (*AdminNotifyHandler, *fakeDeliverer, uint) {
	t.Helper()
	db := dbtest.Open(t)
	job := database.Job{Title: "Nurse", Location: "Nairobi", Description: "d"}
	if err := db.Create(&job).Error; err != nil {
		t.Fatalf("create job: %v", err)
	}
	app := database.Application{JobID: job.ID, JobTitle: job.Title, FullName: "Alice", Email: "alice@example.com", Status: database.StatusPending}
	if err := db.Create(&app).Error; err != nil {
		t.Fatalf("create application: %v", err)
	}
	d := &fakeDeliverer{}
	return NewAdminNotifyHandler(db, d, nil), d, app.ID
}

func TestAdminNotifyHandler_Delivers(t *testing.T) {
	h, d, id := seedApplication(t)
	task, err := tasks.NewAdminNotifyTask(id, "corr-1")
	if err != nil {
		t.Fatalf("build task: %v", err)
	}
	if err := h.ProcessTask(context.Background(), task); err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(d.delivered) != 1 || d.delivered[0] != id {
		t.Fatalf("delivered = %v", d.delivered)
	}
}

func TestAdminNotifyHandler_MissingApplicationIsSkipped(t *testing.T) {
	h, d, _ := seedApplication(t)
	task, _ := tasks.NewAdminNotifyTask(9999, "")
	if err := h.ProcessTask(context.Background(), task); err != nil {
		t.Fatalf("expected skip, got %v", err)
	}
	if len(d.delivered) != 0 {
		t.Fatalf("nothing should be delivered")
	}
}

func TestAdminNotifyHandler_Errors(t *testing.T) {
	h, d, id := seedApplication(t)

	err := h.ProcessTask(context.Background(), asynq.NewTask(tasks.TypeAdminNotify, []byte("{")))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("bad payload should skip retry, got %v", err)
	}

	d.err = errors.New("smtp down")
	task, _ := tasks.NewAdminNotifyTask(id, "corr-2")
	if err := h.ProcessTask(context.Background(), task); err == nil {
		t.Fatalf("delivery failure should surface")
	}
}
