package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"jobBoard/internal/api/middleware"
	"jobBoard/internal/content"
	"jobBoard/internal/database"
	"jobBoard/internal/errcode"
)

// ContentHandler 处理站点文案、Logo、主题与预置配色。
type ContentHandler struct {
	store  *content.Store
	signer URLSigner
	urlTTL time.Duration
}

// NewContentHandler 构造内容处理器。
func NewContentHandler(store *content.Store, signer URLSigner, urlTTL time.Duration) *ContentHandler {
	if urlTTL <= 0 {
		urlTTL = 15 * time.Minute
	}
	return &ContentHandler{store: store, signer: signer, urlTTL: urlTTL}
}

type contentResponse struct {
	SiteName     string  `json:"site_name"`
	SiteLogo     *string `json:"site_logo"`
	HeroTitle    string  `json:"hero_title"`
	HeroSubtitle string  `json:"hero_subtitle"`
	AboutText    string  `json:"about_text"`
	ContactEmail string  `json:"contact_email"`
	ContactPhone string  `json:"contact_phone"`
}

func (h *ContentHandler) toResponse(c *gin.Context, sc *database.SiteContent) contentResponse {
	out := contentResponse{
		SiteName:     sc.SiteName,
		HeroTitle:    sc.HeroTitle,
		HeroSubtitle: sc.HeroSubtitle,
		AboutText:    sc.AboutText,
		ContactEmail: sc.ContactEmail,
		ContactPhone: sc.ContactPhone,
	}
	logo := sc.SiteLogo
	// 上传的 Logo 存的是对象 key，其余情况视为外部 URL 原样返回。
	if strings.HasPrefix(logo, "logos/") && h.signer != nil {
		u, err := h.signer.GeneratePresignedURL(c.Request.Context(), logo, h.urlTTL)
		if err != nil {
			middleware.LoggerFromContext(c).Warn("presign site logo failed", "object_key", logo, "error", err)
			logo = ""
		} else {
			logo = u
		}
	}
	if logo != "" {
		out.SiteLogo = &logo
	}
	return out
}

// GetContent GET /api/content
func (h *ContentHandler) GetContent(c *gin.Context) {
	sc, err := h.store.Get(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.toResponse(c, sc))
}

type contentUpdateRequest struct {
	Value *string `json:"value"`
}

// UpdateContent PUT /api/admin/content/:key  body: {"value": "..."}
func (h *ContentHandler) UpdateContent(c *gin.Context) {
	key := c.Param("key")
	var req contentUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errcode.Invalid(errcode.ReasonMalformed, "Invalid request body: "+err.Error()))
		return
	}
	if req.Value == nil {
		respondError(c, errcode.MissingFields("value"))
		return
	}
	if _, err := h.store.Update(c.Request.Context(), key, *req.Value); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": key + " updated"})
}

// UploadLogo POST /api/admin/content/logo（multipart 字段 logo）
func (h *ContentHandler) UploadLogo(c *gin.Context) {
	fh, err := c.FormFile("logo")
	if err != nil {
		respondError(c, errcode.Invalid(errcode.ReasonMissingDocument, "Logo file is required", "logo"))
		return
	}
	f, err := fh.Open()
	if err != nil {
		respondError(c, err)
		return
	}
	defer f.Close()

	sc, err := h.store.UploadLogo(c.Request.Context(), fh.Filename, fh.Size, f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "site_logo updated", "content": h.toResponse(c, sc)})
}

// GetTheme GET /api/theme
func (h *ContentHandler) GetTheme(c *gin.Context) {
	theme, err := h.store.Theme(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, content.ThemeColors(theme))
}

// UpdateTheme PUT /api/admin/theme
func (h *ContentHandler) UpdateTheme(c *gin.Context) {
	var patch content.ThemePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		respondError(c, errcode.Invalid(errcode.ReasonMalformed, "Invalid request body: "+err.Error()))
		return
	}
	theme, err := h.store.UpdateTheme(c.Request.Context(), patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Theme updated", "theme": content.ThemeColors(theme)})
}

type presetResponse struct {
	ID          uint           `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	IsActive    bool           `json:"is_active"`
	Colors      content.Colors `json:"colors"`
}

func toPresetResponse(p *database.ColorPreset) presetResponse {
	return presetResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		IsActive:    p.IsActive,
		Colors:      content.PresetColors(p),
	}
}

// ListPresets GET /api/admin/presets
func (h *ContentHandler) ListPresets(c *gin.Context) {
	rows, err := h.store.ListPresets(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	out := make([]presetResponse, 0, len(rows))
	for i := range rows {
		out = append(out, toPresetResponse(&rows[i]))
	}
	c.JSON(http.StatusOK, out)
}

// CreatePreset POST /api/admin/presets
func (h *ContentHandler) CreatePreset(c *gin.Context) {
	var in content.PresetInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondError(c, errcode.Invalid(errcode.ReasonMalformed, "Invalid request body: "+err.Error()))
		return
	}
	preset, err := h.store.CreatePreset(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toPresetResponse(preset))
}

// ApplyPreset POST /api/admin/presets/:id/apply
func (h *ContentHandler) ApplyPreset(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	theme, err := h.store.ApplyPreset(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Preset applied", "theme": content.ThemeColors(theme)})
}
