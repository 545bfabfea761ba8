package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"jobBoard/internal/api/middleware"
	"jobBoard/internal/errcode"
)

func Error(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"error": msg})
}

func Unauthorized(c *gin.Context)         { Error(c, http.StatusUnauthorized, "Unauthorized") }
func NotFound(c *gin.Context, msg string) { Error(c, http.StatusNotFound, msg) }
func Internal(c *gin.Context, msg string) { Error(c, http.StatusInternalServerError, msg) }

// respondError 把领域错误映射为 HTTP 响应；未知错误记录日志并返回 500。
func respondError(c *gin.Context, err error) {
	var (
		validationErr *errcode.ValidationError
		conflictErr   *errcode.ConflictError
		notFoundErr   *errcode.NotFoundError
		unauthErr     *errcode.UnauthorizedError
	)

	switch {
	case errors.As(err, &validationErr):
		body := gin.H{"error": validationErr.Error(), "reason": validationErr.Reason}
		if len(validationErr.Fields) > 0 {
			body["fields"] = validationErr.Fields
		}
		c.JSON(http.StatusBadRequest, body)
	case errors.As(err, &conflictErr):
		body := gin.H{"error": conflictErr.Error()}
		if !conflictErr.AppliedAt.IsZero() {
			body["appliedDate"] = conflictErr.AppliedAt.Format(time.RFC3339)
		}
		if conflictErr.Status != "" {
			body["status"] = conflictErr.Status
		}
		c.JSON(http.StatusConflict, body)
	case errors.As(err, &notFoundErr):
		NotFound(c, notFoundErr.Error())
	case errors.As(err, &unauthErr):
		Unauthorized(c)
	default:
		middleware.LoggerFromContext(c).Error("request failed", slog.Any("error", err))
		Internal(c, "Internal server error")
	}
}
