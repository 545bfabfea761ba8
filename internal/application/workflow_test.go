package application

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"gorm.io/gorm"

	"jobBoard/internal/database"
	"jobBoard/internal/database/dbtest"
	"jobBoard/internal/errcode"
	"jobBoard/internal/jobs"
)

type fakeStorage struct {
	mu       sync.Mutex
	uploaded map[string][]byte
	deleted  []string
	failOn   string
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{uploaded: map[string][]byte{}}
}

func (s *fakeStorage) UploadFile(_ context.Context, objectName string, reader io.Reader, _ int64, _ string) (*minio.UploadInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failOn != "" && strings.Contains(objectName, s.failOn) {
		return nil, errors.New("minio unavailable")
	}
	b, _ := io.ReadAll(reader)
	s.uploaded[objectName] = b
	return &minio.UploadInfo{Key: objectName}, nil
}

func (s *fakeStorage) DeleteObject(_ context.Context, objectKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, objectKey)
	delete(s.uploaded, objectKey)
	return nil
}

type fakeNotifier struct {
	confirmErr error
	adminErr   error
	confirmed  []uint
	notified   []uint
}

func (n *fakeNotifier) SendConfirmation(_ context.Context, app *database.Application) error {
	if n.confirmErr != nil {
		return n.confirmErr
	}
	n.confirmed = append(n.confirmed, app.ID)
	return nil
}

func (n *fakeNotifier) NotifyAdmin(_ context.Context, app *database.Application) error {
	if n.adminErr != nil {
		return n.adminErr
	}
	n.notified = append(n.notified, app.ID)
	return nil
}

type scanFunc func(ctx context.Context, r io.Reader) error

func (f scanFunc) Scan(ctx context.Context, r io.Reader) error { return f(ctx, r) }

type fixture struct {
	db       *gorm.DB
	store    *fakeStorage
	notifier *fakeNotifier
	wf       *Workflow
	job      *database.Job
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	db := dbtest.Open(t)
	catalog := jobs.NewCatalog(db, time.UTC)
	job, err := catalog.Create(context.Background(), jobs.Input{Title: "Nurse", Location: "Nairobi", Description: "ward"})
	if err != nil {
		t.Fatalf("seed job: %v", err)
	}
	f := &fixture{db: db, store: newFakeStorage(), notifier: &fakeNotifier{}, job: job}
	f.wf = NewWorkflow(db, catalog, f.store, f.notifier, opts)
	f.wf.now = func() time.Time { return time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC) }
	return f
}

func attachment(name string, size int) *Attachment {
	data := bytes.Repeat([]byte("x"), size)
	return &Attachment{
		Filename: name,
		Size:     int64(size),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

func validInput(jobID uint, email string) Input {
	return Input{
		JobID:      " " + uintString(jobID),
		JobTitle:   "Nurse",
		FullName:   "Alice Wanjiku",
		Email:      email,
		Phone:      "+254700000000",
		Age:        "29",
		Gender:     "Female",
		KCSEGrade:  "b+",
		CV:         attachment("cv.pdf", 128),
		IDDocument: attachment("id.JPG", 64),
	}
}

func uintString(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}

func countApplications(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	if err := db.Model(&database.Application{}).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func TestSubmit_Success(t *testing.T) {
	f := newFixture(t, Options{})
	in := validInput(f.job.ID, " Alice@Example.com ")
	in.Certificate = attachment("kcse.png", 10)
	in.Additional = []*Attachment{attachment("a.pdf", 1), attachment("b.pdf", 1), attachment("c.pdf", 1), attachment("d.pdf", 1)}

	res, err := f.wf.Submit(context.Background(), in)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !res.EmailSent {
		t.Fatalf("expected email sent")
	}
	app := res.Application
	if app.ID == 0 || app.Status != database.StatusPending {
		t.Fatalf("unexpected application %+v", app)
	}
	if app.Email != "alice@example.com" || app.Gender != "female" || app.ExamGrade != "B+" || app.Age != 29 {
		t.Fatalf("input not normalised: %+v", app)
	}
	if app.JobTitle != "Nurse" {
		t.Fatalf("job title snapshot = %q", app.JobTitle)
	}

	prefix := "applications/alice_at_example_com/" + uintString(f.job.ID) + "/"
	wantCV := prefix + "cv_20260310_080000.pdf"
	if app.CVDocument != wantCV {
		t.Fatalf("cv key = %q, want %q", app.CVDocument, wantCV)
	}
	if app.IDDocument != prefix+"id_20260310_080000.jpg" {
		t.Fatalf("id key = %q", app.IDDocument)
	}
	if len(app.AdditionalDocuments) != 3 {
		t.Fatalf("expected 3 additional docs kept, got %d", len(app.AdditionalDocuments))
	}
	if len(f.store.uploaded) != 6 {
		t.Fatalf("expected 6 uploads, got %d", len(f.store.uploaded))
	}

	stored, err := f.wf.Get(context.Background(), app.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.CVDocument != wantCV || stored.CertificateDocument == "" || len(stored.AdditionalDocuments) != 3 {
		t.Fatalf("document keys not persisted: %+v", stored)
	}
	if len(f.notifier.confirmed) != 1 || len(f.notifier.notified) != 1 {
		t.Fatalf("notifier calls: %+v", f.notifier)
	}
}

func TestSubmit_DuplicateReturnsFirstTimestamp(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	first, err := f.wf.Submit(ctx, validInput(f.job.ID, "alice@example.com"))
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}

	_, err = f.wf.Submit(ctx, validInput(f.job.ID, "ALICE@example.com"))
	var ce *errcode.ConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if !ce.AppliedAt.Equal(first.Application.AppliedAt) {
		t.Fatalf("appliedAt = %v, want %v", ce.AppliedAt, first.Application.AppliedAt)
	}
	if ce.Status != database.StatusPending {
		t.Fatalf("status = %q", ce.Status)
	}
	if n := countApplications(t, f.db); n != 1 {
		t.Fatalf("expected exactly one application, got %d", n)
	}
}

func TestSubmit_MissingFields(t *testing.T) {
	f := newFixture(t, Options{})
	in := validInput(f.job.ID, "")
	in.Phone = " "
	in.KCSEGrade = ""

	_, err := f.wf.Submit(context.Background(), in)
	var ve *errcode.ValidationError
	if !errors.As(err, &ve) || ve.Reason != errcode.ReasonMissingFields {
		t.Fatalf("expected missing-fields, got %v", err)
	}
	want := []string{"email", "phone", "kcseGrade"}
	if strings.Join(ve.Fields, ",") != strings.Join(want, ",") {
		t.Fatalf("fields = %v, want %v", ve.Fields, want)
	}
	if ve.Error() != "Missing required fields: email, phone, kcseGrade" {
		t.Fatalf("message = %q", ve.Error())
	}
}

func TestSubmit_MalformedValues(t *testing.T) {
	f := newFixture(t, Options{})
	in := validInput(f.job.ID, "not-an-email")
	in.Age = "twenty"
	in.Gender = "robot"

	_, err := f.wf.Submit(context.Background(), in)
	var ve *errcode.ValidationError
	if !errors.As(err, &ve) || ve.Reason != errcode.ReasonMalformed {
		t.Fatalf("expected malformed, got %v", err)
	}
	if strings.Join(ve.Fields, ",") != "email,gender,age" {
		t.Fatalf("fields = %v", ve.Fields)
	}
}

func TestSubmit_UnknownJob(t *testing.T) {
	f := newFixture(t, Options{})
	_, err := f.wf.Submit(context.Background(), validInput(f.job.ID+100, "alice@example.com"))
	var nf *errcode.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestSubmit_MissingDocumentCreatesNothing(t *testing.T) {
	f := newFixture(t, Options{})

	for _, tc := range []struct {
		name  string
		strip func(*Input)
		field string
	}{
		{"no cv", func(in *Input) { in.CV = nil }, "cv"},
		{"no id", func(in *Input) { in.IDDocument = nil }, "id_document"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			in := validInput(f.job.ID, "bob@example.com")
			tc.strip(&in)
			_, err := f.wf.Submit(context.Background(), in)
			var ve *errcode.ValidationError
			if !errors.As(err, &ve) || ve.Reason != errcode.ReasonMissingDocument {
				t.Fatalf("expected missing-document, got %v", err)
			}
			if len(ve.Fields) != 1 || ve.Fields[0] != tc.field {
				t.Fatalf("fields = %v", ve.Fields)
			}
		})
	}
	if n := countApplications(t, f.db); n != 0 {
		t.Fatalf("expected no rows, got %d", n)
	}
	if len(f.store.uploaded) != 0 {
		t.Fatalf("expected no uploads")
	}
}

func TestSubmit_BadFileRejectedBeforeAnyUpload(t *testing.T) {
	f := newFixture(t, Options{})

	for _, tc := range []struct {
		name string
		mod  func(*Input)
	}{
		{"too large certificate", func(in *Input) { in.Certificate = attachment("cert.pdf", 5*1024*1024+1) }},
		{"executable additional", func(in *Input) { in.Additional = []*Attachment{attachment("run.exe", 10)} }},
		{"no extension", func(in *Input) { in.CV = attachment("resume", 10) }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			in := validInput(f.job.ID, "carol@example.com")
			tc.mod(&in)
			_, err := f.wf.Submit(context.Background(), in)
			var ve *errcode.ValidationError
			if !errors.As(err, &ve) || ve.Reason != errcode.ReasonBadFile {
				t.Fatalf("expected bad-file, got %v", err)
			}
		})
	}
	if len(f.store.uploaded) != 0 || len(f.store.deleted) != 0 {
		t.Fatalf("store touched: %+v", f.store)
	}
	if n := countApplications(t, f.db); n != 0 {
		t.Fatalf("expected no rows, got %d", n)
	}
}

func TestNewWorkflow_DefaultLimits(t *testing.T) {
	f := newFixture(t, Options{})
	if f.wf.maxBytes != DefaultMaxBytes || f.wf.maxAdditional != DefaultMaxAdditional {
		t.Fatalf("limits = %d/%d", f.wf.maxBytes, f.wf.maxAdditional)
	}

	f = newFixture(t, Options{MaxAdditional: -1})
	if f.wf.maxAdditional != DefaultMaxAdditional {
		t.Fatalf("negative max additional = %d", f.wf.maxAdditional)
	}
}

func TestSubmit_AdditionalDocsCappedAtConfiguredMax(t *testing.T) {
	f := newFixture(t, Options{MaxAdditional: 1})
	in := validInput(f.job.ID, "erin@example.com")
	in.Additional = []*Attachment{attachment("a.pdf", 10), attachment("b.pdf", 10)}
	res, err := f.wf.Submit(context.Background(), in)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(res.Application.AdditionalDocuments) != 1 {
		t.Fatalf("expected 1 additional doc, got %d", len(res.Application.AdditionalDocuments))
	}
}

func TestSubmit_ExactlyMaxSizeAccepted(t *testing.T) {
	f := newFixture(t, Options{MaxBytes: 1024})
	in := validInput(f.job.ID, "dan@example.com")
	in.CV = attachment("cv.docx", 1024)
	if _, err := f.wf.Submit(context.Background(), in); err != nil {
		t.Fatalf("submit: %v", err)
	}
}

func TestSubmit_InfectedFileRejected(t *testing.T) {
	f := newFixture(t, Options{})
	f.wf.scanner = scanFunc(func(_ context.Context, r io.Reader) error {
		b, _ := io.ReadAll(r)
		if len(b) == 64 {
			return errors.Join(ErrInfected, errors.New("Eicar-Test-Signature"))
		}
		return nil
	})

	_, err := f.wf.Submit(context.Background(), validInput(f.job.ID, "erin@example.com"))
	var ve *errcode.ValidationError
	if !errors.As(err, &ve) || ve.Reason != errcode.ReasonBadFile || ve.Fields[0] != "id_document" {
		t.Fatalf("expected bad-file on id_document, got %v", err)
	}
	if len(f.store.uploaded) != 0 {
		t.Fatalf("expected no uploads")
	}
}

func TestSubmit_EmailFailureStillSucceeds(t *testing.T) {
	f := newFixture(t, Options{})
	f.notifier.confirmErr = errors.New("smtp down")
	f.notifier.adminErr = errors.New("smtp down")

	res, err := f.wf.Submit(context.Background(), validInput(f.job.ID, "frank@example.com"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.EmailSent {
		t.Fatalf("expected EmailSent=false")
	}
	if n := countApplications(t, f.db); n != 1 {
		t.Fatalf("expected the application to persist, got %d rows", n)
	}
}

func TestSubmit_UploadFailureRollsBack(t *testing.T) {
	f := newFixture(t, Options{})
	f.store.failOn = "/id_"

	_, err := f.wf.Submit(context.Background(), validInput(f.job.ID, "gina@example.com"))
	if err == nil {
		t.Fatalf("expected error")
	}
	if isClientError(err) || isConflict(err) {
		t.Fatalf("expected internal error, got %v", err)
	}
	if n := countApplications(t, f.db); n != 0 {
		t.Fatalf("expected rollback, got %d rows", n)
	}
	if len(f.store.uploaded) != 0 || len(f.store.deleted) != 1 {
		t.Fatalf("expected uploaded cv to be cleaned up: %+v", f.store)
	}
}

func TestSubmit_ConcurrentDuplicateHitsUniqueIndex(t *testing.T) {
	f := newFixture(t, Options{})
	// 在查重之后、写库之前插入同一 (job, email)，模拟并发提交。
	f.wf.scanner = scanFunc(func(ctx context.Context, _ io.Reader) error {
		var n int64
		f.db.Model(&database.Application{}).Count(&n)
		if n > 0 {
			return nil
		}
		return f.db.WithContext(ctx).Create(&database.Application{
			JobID: f.job.ID, JobTitle: "Nurse", Email: "hana@example.com", Status: database.StatusReviewed,
		}).Error
	})

	_, err := f.wf.Submit(context.Background(), validInput(f.job.ID, "hana@example.com"))
	var ce *errcode.ConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConflictError from unique index, got %v", err)
	}
	if ce.Status != database.StatusReviewed {
		t.Fatalf("conflict should describe the stored row, got %q", ce.Status)
	}
	if n := countApplications(t, f.db); n != 1 {
		t.Fatalf("expected one row, got %d", n)
	}
	if len(f.store.uploaded) != 0 {
		t.Fatalf("expected no uploads")
	}
}

func TestUniqueIndexOnJobAndEmail(t *testing.T) {
	f := newFixture(t, Options{})
	row := func() *database.Application {
		return &database.Application{JobID: f.job.ID, Email: "ivy@example.com", Status: database.StatusPending}
	}
	if err := f.db.Create(row()).Error; err != nil {
		t.Fatalf("first insert: %v", err)
	}
	err := f.db.Create(row()).Error
	if !database.IsUniqueViolation(err) {
		t.Fatalf("expected unique violation, got %v", err)
	}
}

func TestCheckDuplicate(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	d, err := f.wf.CheckDuplicate(ctx, f.job.ID, "jack@example.com")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if d.HasApplied {
		t.Fatalf("expected no application yet")
	}

	if _, err := f.wf.Submit(ctx, validInput(f.job.ID, "jack@example.com")); err != nil {
		t.Fatalf("submit: %v", err)
	}
	d, err = f.wf.CheckDuplicate(ctx, f.job.ID, " JACK@example.com")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !d.HasApplied || d.AppliedAt.IsZero() || d.Status != database.StatusPending {
		t.Fatalf("unexpected duplicate info %+v", d)
	}
}

func TestSanitizeEmail(t *testing.T) {
	cases := map[string]string{
		"Alice@Example.com":      "alice_at_example_com",
		"a.b+tag@mail.co.ke":     "a_b+tag_at_mail_co_ke",
		"../evil/@example.com":   "___evil__at_example_com",
		" spaced@example.com\t ": "spaced_at_example_com",
	}
	for in, want := range cases {
		if got := SanitizeEmail(in); got != want {
			t.Errorf("SanitizeEmail(%q) = %q, want %q", in, got, want)
		}
	}
}
