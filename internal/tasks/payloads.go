package tasks

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// 任务类型常量，确保队列生产者与消费者一致。
const (
	TypeAdminNotify = "mail:admin_notify"
)

// AdminNotifyPayload 指明需要通知管理员的申请。
type AdminNotifyPayload struct {
	ApplicationID uint   `json:"application_id"`
	CorrelationID string `json:"correlation_id"`
}

// NewAdminNotifyTask 构造一条新申请的管理员通知任务。
// 通知失败不自动重试，与同步发送时的语义保持一致。
func NewAdminNotifyTask(applicationID uint, correlationID string) (*asynq.Task, error) {
	payload, err := json.Marshal(AdminNotifyPayload{
		ApplicationID: applicationID,
		CorrelationID: correlationID,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeAdminNotify, payload, asynq.MaxRetry(0)), nil
}
