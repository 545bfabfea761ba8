package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"jobBoard/internal/database"
	"jobBoard/internal/errcode"
	"jobBoard/internal/metrics"
)

// FileStore 是 storage.Client 中申请流程用到的部分。
type FileStore interface {
	UploadFile(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (*minio.UploadInfo, error)
	DeleteObject(ctx context.Context, objectKey string) error
}

// JobLookup 按 ID 查找职位，不存在时返回 *errcode.NotFoundError。
type JobLookup interface {
	Get(ctx context.Context, id uint) (*database.Job, error)
}

// Notifier 发送申请相关邮件。
type Notifier interface {
	SendConfirmation(ctx context.Context, app *database.Application) error
	NotifyAdmin(ctx context.Context, app *database.Application) error
}

// 未配置时的默认上限。
const (
	DefaultMaxBytes      = 5 * 1024 * 1024
	DefaultMaxAdditional = 3
)

// Options 是 Workflow 的可选参数，零值取默认上限。
type Options struct {
	MaxBytes      int64
	MaxAdditional int
	Scanner       Scanner
	Logger        *slog.Logger
}

// Workflow 负责申请的提交、查重与管理员审阅。
type Workflow struct {
	db            *gorm.DB
	jobs          JobLookup
	store         FileStore
	notifier      Notifier
	scanner       Scanner
	maxBytes      int64
	maxAdditional int
	logger        *slog.Logger
	now           func() time.Time
}

// NewWorkflow 构造 Workflow。
func NewWorkflow(db *gorm.DB, jobs JobLookup, store FileStore, notifier Notifier, opts Options) *Workflow {
	w := &Workflow{
		db:            db,
		jobs:          jobs,
		store:         store,
		notifier:      notifier,
		scanner:       opts.Scanner,
		maxBytes:      opts.MaxBytes,
		maxAdditional: opts.MaxAdditional,
		logger:        opts.Logger,
		now:           time.Now,
	}
	if w.maxBytes <= 0 {
		w.maxBytes = DefaultMaxBytes
	}
	if w.maxAdditional <= 0 {
		w.maxAdditional = DefaultMaxAdditional
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	return w
}

// Result 是成功提交后的返回值。
type Result struct {
	Application *database.Application
	EmailSent   bool
}

// Duplicate 描述某邮箱是否已申请过某职位。
type Duplicate struct {
	HasApplied bool
	AppliedAt  time.Time
	Status     string
}

// namedAttachment 记录附件的表单字段与存储用的文档类型。
type namedAttachment struct {
	field   string
	docType string
	file    *Attachment
}

var errDuplicateRace = errors.New("duplicate application inserted concurrently")

// Submit 校验并保存一次申请。
// 校验顺序：必填字段 → 职位存在 → 重复申请 → 必需附件 → 附件类型/大小/病毒扫描。
// 全部通过后才会写库与上传；邮件失败只影响 EmailSent。
func (w *Workflow) Submit(ctx context.Context, in Input) (*Result, error) {
	res, err := w.submit(ctx, in)
	switch {
	case err == nil:
		metrics.ObserveSubmission(metrics.SubmissionAccepted)
	case isConflict(err):
		metrics.ObserveSubmission(metrics.SubmissionDuplicate)
	case isClientError(err):
		metrics.ObserveSubmission(metrics.SubmissionInvalid)
	default:
		metrics.ObserveSubmission(metrics.SubmissionFailed)
	}
	return res, err
}

func (w *Workflow) submit(ctx context.Context, in Input) (*Result, error) {
	in.normalize()

	sc, err := checkScalars(&in)
	if err != nil {
		return nil, err
	}

	job, err := w.jobs.Get(ctx, sc.jobID)
	if err != nil {
		return nil, err
	}

	dup, err := w.CheckDuplicate(ctx, sc.jobID, in.Email)
	if err != nil {
		return nil, err
	}
	if dup.HasApplied {
		return nil, conflictFrom(dup)
	}

	if err := checkDocuments(&in); err != nil {
		return nil, err
	}

	files := w.collectAttachments(&in)
	for _, f := range files {
		if err := checkFile(f.field, f.file, w.maxBytes); err != nil {
			return nil, err
		}
	}
	if err := w.scanAll(ctx, files); err != nil {
		return nil, err
	}

	jobTitle := job.Title
	if jobTitle == "" {
		jobTitle = in.JobTitle
	}
	app := database.Application{
		JobID:     job.ID,
		JobTitle:  jobTitle,
		FullName:  in.FullName,
		Email:     in.Email,
		Phone:     in.Phone,
		Age:       sc.age,
		Gender:    in.Gender,
		ExamGrade: in.KCSEGrade,
		Status:    database.StatusPending,
	}

	var uploaded []string
	err = w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&app).Error; err != nil {
			if database.IsUniqueViolation(err) {
				return errDuplicateRace
			}
			return fmt.Errorf("insert application: %w", err)
		}

		stamp := w.now().UTC().Format("20060102_150405")
		prefix := fmt.Sprintf("applications/%s/%d/", SanitizeEmail(app.Email), app.JobID)
		keys := make(map[string]string, len(files))
		var additional []string
		for _, f := range files {
			key := prefix + f.docType + "_" + stamp + f.file.Ext()
			if err := w.upload(ctx, key, f.file); err != nil {
				return err
			}
			uploaded = append(uploaded, key)
			if strings.HasPrefix(f.docType, "additional_") {
				additional = append(additional, key)
			} else {
				keys[f.docType] = key
			}
		}

		app.CVDocument = keys[DocCV]
		app.IDDocument = keys[DocID]
		app.CertificateDocument = keys[DocCertificate]
		app.AdditionalDocuments = datatypes.JSONSlice[string](additional)

		updates := map[string]any{
			"cv_document":          app.CVDocument,
			"id_document":          app.IDDocument,
			"certificate_document": app.CertificateDocument,
			"additional_documents": app.AdditionalDocuments,
		}
		if err := tx.Model(&app).Updates(updates).Error; err != nil {
			return fmt.Errorf("record document keys: %w", err)
		}
		return nil
	})
	if err != nil {
		w.removeObjects(ctx, uploaded)
		if errors.Is(err, errDuplicateRace) {
			dup, derr := w.CheckDuplicate(ctx, sc.jobID, in.Email)
			if derr != nil {
				return nil, derr
			}
			return nil, conflictFrom(dup)
		}
		return nil, err
	}

	return &Result{Application: &app, EmailSent: w.notify(ctx, &app)}, nil
}

// CheckDuplicate 查询 (job, email) 是否已有申请，只读。
func (w *Workflow) CheckDuplicate(ctx context.Context, jobID uint, email string) (Duplicate, error) {
	var existing database.Application
	err := w.db.WithContext(ctx).
		Select("id", "applied_at", "status").
		Where("job_id = ? AND email = ?", jobID, NormalizeEmail(email)).
		Take(&existing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Duplicate{}, nil
		}
		return Duplicate{}, fmt.Errorf("check duplicate application: %w", err)
	}
	return Duplicate{HasApplied: true, AppliedAt: existing.AppliedAt, Status: existing.Status}, nil
}

func (w *Workflow) collectAttachments(in *Input) []namedAttachment {
	files := []namedAttachment{
		{field: "cv", docType: DocCV, file: in.CV},
		{field: "id_document", docType: DocID, file: in.IDDocument},
	}
	if in.Certificate != nil {
		files = append(files, namedAttachment{field: "certificate", docType: DocCertificate, file: in.Certificate})
	}
	n := 0
	for _, a := range in.Additional {
		if a == nil {
			continue
		}
		if n == w.maxAdditional {
			break
		}
		n++
		files = append(files, namedAttachment{
			field:   "additional_docs",
			docType: fmt.Sprintf("additional_%d", n),
			file:    a,
		})
	}
	return files
}

func (w *Workflow) scanAll(ctx context.Context, files []namedAttachment) error {
	if w.scanner == nil {
		return nil
	}
	for _, f := range files {
		rc, err := f.file.Open()
		if err != nil {
			return fmt.Errorf("open %s for scan: %w", f.field, err)
		}
		err = w.scanner.Scan(ctx, rc)
		rc.Close()
		if errors.Is(err, ErrInfected) {
			return errcode.Invalid(errcode.ReasonBadFile, f.file.Filename+" failed the virus scan", f.field)
		}
		if err != nil {
			return fmt.Errorf("scan %s: %w", f.field, err)
		}
	}
	return nil
}

func (w *Workflow) upload(ctx context.Context, key string, a *Attachment) error {
	rc, err := a.Open()
	if err != nil {
		return fmt.Errorf("open attachment %q: %w", a.Filename, err)
	}
	defer rc.Close()
	if _, err := w.store.UploadFile(ctx, key, rc, a.Size, ""); err != nil {
		return fmt.Errorf("upload attachment %q: %w", a.Filename, err)
	}
	return nil
}

// removeObjects 回滚时删除已上传的附件，失败只记录日志。
func (w *Workflow) removeObjects(ctx context.Context, keys []string) {
	ctx = context.WithoutCancel(ctx)
	for _, key := range keys {
		if err := w.store.DeleteObject(ctx, key); err != nil {
			w.logger.Error("cleanup uploaded attachment failed",
				slog.String("object_key", key),
				slog.Any("error", err),
			)
		}
	}
}

// notify 发送确认邮件与管理员通知；返回确认邮件是否发出。
func (w *Workflow) notify(ctx context.Context, app *database.Application) bool {
	if w.notifier == nil {
		return false
	}
	ctx = context.WithoutCancel(ctx)

	sent := true
	if err := w.notifier.SendConfirmation(ctx, app); err != nil {
		sent = false
		w.logger.Warn("send confirmation email failed",
			slog.Uint64("application_id", uint64(app.ID)),
			slog.Any("error", err),
		)
	}
	if err := w.notifier.NotifyAdmin(ctx, app); err != nil {
		w.logger.Warn("notify admin failed",
			slog.Uint64("application_id", uint64(app.ID)),
			slog.Any("error", err),
		)
	}
	return sent
}

func conflictFrom(d Duplicate) *errcode.ConflictError {
	return &errcode.ConflictError{
		Message:   "You have already applied for this position",
		AppliedAt: d.AppliedAt,
		Status:    d.Status,
	}
}

func isConflict(err error) bool {
	var ce *errcode.ConflictError
	return errors.As(err, &ce)
}

func isClientError(err error) bool {
	var ve *errcode.ValidationError
	var nf *errcode.NotFoundError
	return errors.As(err, &ve) || errors.As(err, &nf)
}
