package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
	"gorm.io/gorm"

	"jobBoard/internal/database"
	"jobBoard/internal/mail"
	"jobBoard/internal/tasks"
)

// AdminDeliverer 直接发送管理员通知邮件。
type AdminDeliverer interface {
	DeliverAdminNotification(ctx context.Context, app *database.Application) error
}

// AdminNotifyHandler 消费 mail:admin_notify 任务。
type AdminNotifyHandler struct {
	db       *gorm.DB
	notifier AdminDeliverer
	logger   *slog.Logger
}

// NewAdminNotifyHandler 创建任务处理器。
func NewAdminNotifyHandler(db *gorm.DB, notifier AdminDeliverer, logger *slog.Logger) *AdminNotifyHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminNotifyHandler{db: db, notifier: notifier, logger: logger}
}

// ProcessTask 实现 asynq.Handler。
func (h *AdminNotifyHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload tasks.AdminNotifyPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		h.logger.Error("unmarshal task payload failed", slog.Any("error", err))
		return fmt.Errorf("decode admin notify payload: %v: %w", err, asynq.SkipRetry)
	}

	log := h.logger.With(
		slog.String("correlation_id", payload.CorrelationID),
		slog.Uint64("application_id", uint64(payload.ApplicationID)),
	)

	var app database.Application
	if err := h.db.WithContext(ctx).First(&app, payload.ApplicationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warn("application not found, skipping task")
			return nil
		}
		log.Error("query application failed", slog.Any("error", err))
		return err
	}

	ctx = mail.ContextWithCorrelationID(ctx, payload.CorrelationID)
	if err := h.notifier.DeliverAdminNotification(ctx, &app); err != nil {
		log.Error("admin notification failed", slog.Any("error", err))
		return err
	}
	log.Info("admin notification sent")
	return nil
}
