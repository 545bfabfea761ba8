package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"jobBoard/internal/analytics"
)

// AnalyticsHandler 返回管理后台的统计数据。
type AnalyticsHandler struct {
	aggregator *analytics.Aggregator
}

func NewAnalyticsHandler(aggregator *analytics.Aggregator) *AnalyticsHandler {
	return &AnalyticsHandler{aggregator: aggregator}
}

// GetAnalytics GET /api/admin/analytics
func (h *AnalyticsHandler) GetAnalytics(c *gin.Context) {
	summary, err := h.aggregator.Summary(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
