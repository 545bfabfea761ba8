package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"jobBoard/internal/database"
	"jobBoard/internal/errcode"
	"jobBoard/internal/jobs"
)

const placeholderIcon = "https://via.placeholder.com/60"

// JobHandler 提供职位的公开查询与管理员维护接口。
type JobHandler struct {
	catalog *jobs.Catalog
}

// NewJobHandler 构造职位处理器。
func NewJobHandler(catalog *jobs.Catalog) *JobHandler {
	return &JobHandler{catalog: catalog}
}

type jobResponse struct {
	ID               uint      `json:"id"`
	Title            string    `json:"title"`
	Location         string    `json:"location"`
	Salary           string    `json:"salary"`
	Contract         string    `json:"contract"`
	Icon             string    `json:"icon"`
	Description      string    `json:"description"`
	Responsibilities string    `json:"responsibilities"`
	Requirements     string    `json:"requirements"`
	Benefits         string    `json:"benefits"`
	WorkplacePhotos  []string  `json:"workplace_photos"`
	ExpiryDate       *string   `json:"expiry_date"`
	IsActive         bool      `json:"is_active"`
	IsExpired        bool      `json:"is_expired"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (h *JobHandler) toResponse(job *database.Job) jobResponse {
	icon := job.Icon
	if strings.TrimSpace(icon) == "" {
		icon = placeholderIcon
	}
	photos := []string(job.WorkplacePhotos)
	if photos == nil {
		photos = []string{}
	}
	return jobResponse{
		ID:               job.ID,
		Title:            job.Title,
		Location:         job.Location,
		Salary:           job.Salary,
		Contract:         job.Contract,
		Icon:             icon,
		Description:      job.Description,
		Responsibilities: job.Responsibilities,
		Requirements:     job.Requirements,
		Benefits:         job.Benefits,
		WorkplacePhotos:  photos,
		ExpiryDate:       jobs.FormatDate(job.ExpiryDate),
		IsActive:         job.IsActive,
		IsExpired:        !h.catalog.IsActive(job),
		CreatedAt:        job.CreatedAt,
		UpdatedAt:        job.UpdatedAt,
	}
}

// ListJobs GET /api/jobs?search=&location=&active_only=
func (h *JobHandler) ListJobs(c *gin.Context) {
	activeOnly, _ := strconv.ParseBool(c.DefaultQuery("active_only", "false"))
	rows, err := h.catalog.List(c.Request.Context(), jobs.Filter{
		Search:     c.Query("search"),
		Location:   c.Query("location"),
		ActiveOnly: activeOnly,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]jobResponse, 0, len(rows))
	for i := range rows {
		out = append(out, h.toResponse(&rows[i]))
	}
	c.JSON(http.StatusOK, out)
}

// GetJob GET /api/jobs/:id
func (h *JobHandler) GetJob(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	job, err := h.catalog.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.toResponse(job))
}

// jobRequest 同时用于创建与更新；更新时缺失字段保持原值。
type jobRequest struct {
	Title            *string        `json:"title"`
	Location         *string        `json:"location"`
	Salary           *string        `json:"salary"`
	Contract         *string        `json:"contract"`
	Icon             *string        `json:"icon"`
	Description      *string        `json:"description"`
	Responsibilities *string        `json:"responsibilities"`
	Requirements     *string        `json:"requirements"`
	Benefits         *string        `json:"benefits"`
	WorkplacePhotos  *[]string      `json:"workplace_photos"`
	ExpiryDate       jobs.DateField `json:"expiry_date"`
	IsActive         *bool          `json:"is_active"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// CreateJob POST /api/admin/jobs
func (h *JobHandler) CreateJob(c *gin.Context) {
	var req jobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errcode.Invalid(errcode.ReasonMalformed, "Invalid request body: "+err.Error()))
		return
	}

	in := jobs.Input{
		Title:            deref(req.Title),
		Location:         deref(req.Location),
		Salary:           deref(req.Salary),
		Contract:         deref(req.Contract),
		Icon:             deref(req.Icon),
		Description:      deref(req.Description),
		Responsibilities: deref(req.Responsibilities),
		Requirements:     deref(req.Requirements),
		Benefits:         deref(req.Benefits),
		ExpiryDate:       req.ExpiryDate.Ptr(),
		IsActive:         req.IsActive,
	}
	if req.WorkplacePhotos != nil {
		in.WorkplacePhotos = *req.WorkplacePhotos
	}

	job, err := h.catalog.Create(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "message": "Job created", "jobId": job.ID})
}

// UpdateJob PUT /api/admin/jobs/:id
func (h *JobHandler) UpdateJob(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req jobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errcode.Invalid(errcode.ReasonMalformed, "Invalid request body: "+err.Error()))
		return
	}

	job, err := h.catalog.Update(c.Request.Context(), id, jobs.Patch{
		Title:            req.Title,
		Location:         req.Location,
		Salary:           req.Salary,
		Contract:         req.Contract,
		Icon:             req.Icon,
		Description:      req.Description,
		Responsibilities: req.Responsibilities,
		Requirements:     req.Requirements,
		Benefits:         req.Benefits,
		WorkplacePhotos:  req.WorkplacePhotos,
		ExpiryDate:       req.ExpiryDate,
		IsActive:         req.IsActive,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Job updated", "job": h.toResponse(job)})
}

// DeleteJob DELETE /api/admin/jobs/:id
func (h *JobHandler) DeleteJob(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.catalog.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Job deleted"})
}

// parseIDParam 解析正整数路径参数，失败时直接写 400。
func parseIDParam(c *gin.Context, name string) (uint, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		respondError(c, errcode.Invalid(errcode.ReasonMalformed, "Invalid "+name, name))
		return 0, false
	}
	return uint(id), true
}
