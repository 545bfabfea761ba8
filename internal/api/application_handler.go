package api

import (
	"context"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"jobBoard/internal/api/middleware"
	"jobBoard/internal/application"
	"jobBoard/internal/database"
	"jobBoard/internal/errcode"
	"jobBoard/internal/mail"
)

// multipartOverhead 是表单标量字段与分隔符的预留空间。
const multipartOverhead = 1 << 20

// URLSigner 为对象生成限时访问链接。
type URLSigner interface {
	GeneratePresignedURL(ctx context.Context, objectKey string, duration time.Duration) (string, error)
}

// ApplicationHandler 处理申请提交、查重以及管理员审阅。
type ApplicationHandler struct {
	workflow      *application.Workflow
	signer        URLSigner
	urlTTL        time.Duration
	maxBytes      int64
	maxAdditional int
}

// NewApplicationHandler 构造申请处理器。
func NewApplicationHandler(workflow *application.Workflow, signer URLSigner, urlTTL time.Duration, maxBytes int64, maxAdditional int) *ApplicationHandler {
	if urlTTL <= 0 {
		urlTTL = 15 * time.Minute
	}
	return &ApplicationHandler{
		workflow:      workflow,
		signer:        signer,
		urlTTL:        urlTTL,
		maxBytes:      maxBytes,
		maxAdditional: maxAdditional,
	}
}

// Submit POST /api/applications（multipart/form-data）。
func (h *ApplicationHandler) Submit(c *gin.Context) {
	// 附件数量有上限，整体请求体也随之封顶。
	files := int64(3 + h.maxAdditional)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, files*h.maxBytes+multipartOverhead)

	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(c, errcode.Invalid(errcode.ReasonBadFile, "Upload too large"))
			return
		}
		respondError(c, errcode.Invalid(errcode.ReasonMalformed, "Expected multipart/form-data"))
		return
	}

	var in application.Input
	if err := c.ShouldBind(&in); err != nil {
		respondError(c, errcode.Invalid(errcode.ReasonMalformed, "Invalid form: "+err.Error()))
		return
	}
	in.CV = firstFile(form, "cv")
	in.IDDocument = firstFile(form, "id_document")
	in.Certificate = firstFile(form, "certificate")
	for _, field := range []string{"additional_docs", "additional_docs[]"} {
		for _, fh := range form.File[field] {
			in.Additional = append(in.Additional, application.FromFileHeader(fh))
		}
	}

	ctx := mail.ContextWithCorrelationID(c.Request.Context(), middleware.GetCorrelationID(c))
	res, err := h.workflow.Submit(ctx, in)
	if err != nil {
		respondError(c, err)
		return
	}

	middleware.LoggerFromContext(c).Info("application submitted",
		slog.Uint64("application_id", uint64(res.Application.ID)),
		slog.Uint64("job_id", uint64(res.Application.JobID)),
		slog.Bool("email_sent", res.EmailSent),
	)
	c.JSON(http.StatusCreated, gin.H{
		"success":       true,
		"message":       "Application submitted successfully",
		"applicationId": res.Application.ID,
		"emailSent":     res.EmailSent,
	})
}

func firstFile(form *multipart.Form, field string) *application.Attachment {
	if files := form.File[field]; len(files) > 0 {
		return application.FromFileHeader(files[0])
	}
	return nil
}

// CheckApplication GET /api/check-application/:jobId/:email
func (h *ApplicationHandler) CheckApplication(c *gin.Context) {
	jobID, ok := parseIDParam(c, "jobId")
	if !ok {
		return
	}
	dup, err := h.workflow.CheckDuplicate(c.Request.Context(), jobID, c.Param("email"))
	if err != nil {
		respondError(c, err)
		return
	}

	body := gin.H{"hasApplied": dup.HasApplied}
	if dup.HasApplied {
		body["appliedDate"] = dup.AppliedAt.Format(time.RFC3339)
		body["status"] = dup.Status
	}
	c.JSON(http.StatusOK, body)
}

type documentLinks struct {
	CV          string   `json:"cv,omitempty"`
	IDDocument  string   `json:"id_document,omitempty"`
	Certificate string   `json:"certificate,omitempty"`
	Additional  []string `json:"additional_docs"`
}

type applicationResponse struct {
	ID        uint          `json:"id"`
	JobID     uint          `json:"job_id"`
	JobTitle  string        `json:"job_title"`
	FullName  string        `json:"full_name"`
	Email     string        `json:"email"`
	Phone     string        `json:"phone"`
	Age       int           `json:"age"`
	Gender    string        `json:"gender"`
	KCSEGrade string        `json:"kcse_grade"`
	Status    string        `json:"status"`
	Notes     string        `json:"notes"`
	AppliedAt time.Time     `json:"applied_at"`
	UpdatedAt time.Time     `json:"updated_at"`
	Documents documentLinks `json:"documents"`
}

func (h *ApplicationHandler) toResponse(ctx context.Context, app *database.Application) (applicationResponse, error) {
	sign := func(key string) (string, error) {
		if key == "" {
			return "", nil
		}
		return h.signer.GeneratePresignedURL(ctx, key, h.urlTTL)
	}

	docs := documentLinks{Additional: []string{}}
	var err error
	if docs.CV, err = sign(app.CVDocument); err != nil {
		return applicationResponse{}, err
	}
	if docs.IDDocument, err = sign(app.IDDocument); err != nil {
		return applicationResponse{}, err
	}
	if docs.Certificate, err = sign(app.CertificateDocument); err != nil {
		return applicationResponse{}, err
	}
	for _, key := range app.AdditionalDocuments {
		u, err := sign(key)
		if err != nil {
			return applicationResponse{}, err
		}
		docs.Additional = append(docs.Additional, u)
	}

	return applicationResponse{
		ID:        app.ID,
		JobID:     app.JobID,
		JobTitle:  app.JobTitle,
		FullName:  app.FullName,
		Email:     app.Email,
		Phone:     app.Phone,
		Age:       app.Age,
		Gender:    app.Gender,
		KCSEGrade: app.ExamGrade,
		Status:    app.Status,
		Notes:     app.Notes,
		AppliedAt: app.AppliedAt,
		UpdatedAt: app.UpdatedAt,
		Documents: docs,
	}, nil
}

// ListApplications GET /api/admin/applications?status=&gender=&job_id=&search=
func (h *ApplicationHandler) ListApplications(c *gin.Context) {
	filter := application.ListFilter{
		Status: c.Query("status"),
		Gender: c.Query("gender"),
		Search: c.Query("search"),
	}
	if raw := c.Query("job_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			respondError(c, errcode.Invalid(errcode.ReasonMalformed, "Invalid job_id", "job_id"))
			return
		}
		filter.JobID = uint(id)
	}

	ctx := c.Request.Context()
	rows, err := h.workflow.List(ctx, filter)
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]applicationResponse, 0, len(rows))
	for i := range rows {
		item, err := h.toResponse(ctx, &rows[i])
		if err != nil {
			respondError(c, err)
			return
		}
		out = append(out, item)
	}
	c.JSON(http.StatusOK, out)
}

// GetApplication GET /api/admin/applications/:id
func (h *ApplicationHandler) GetApplication(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	app, err := h.workflow.Get(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	out, err := h.toResponse(ctx, app)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

type reviewRequest struct {
	Status *string `json:"status"`
	Notes  *string `json:"notes"`
}

// ReviewApplication PATCH /api/admin/applications/:id
func (h *ApplicationHandler) ReviewApplication(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errcode.Invalid(errcode.ReasonMalformed, "Invalid request body: "+err.Error()))
		return
	}

	ctx := c.Request.Context()
	app, err := h.workflow.UpdateReview(ctx, id, application.ReviewPatch{Status: req.Status, Notes: req.Notes})
	if err != nil {
		respondError(c, err)
		return
	}
	out, err := h.toResponse(ctx, app)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

type bulkStatusRequest struct {
	IDs    []uint `json:"ids"`
	Status string `json:"status"`
}

// BulkStatus POST /api/admin/applications/status
func (h *ApplicationHandler) BulkStatus(c *gin.Context) {
	var req bulkStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errcode.Invalid(errcode.ReasonMalformed, "Invalid request body: "+err.Error()))
		return
	}
	updated, err := h.workflow.BulkSetStatus(c.Request.Context(), req.IDs, req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "updated": updated})
}
