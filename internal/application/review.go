package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"jobBoard/internal/database"
	"jobBoard/internal/errcode"
)

// ListFilter 管理员列表的筛选条件，零值表示不过滤。
type ListFilter struct {
	Status string
	Gender string
	JobID  uint
	Search string
}

// ReviewPatch 管理员审阅时可修改的字段。
type ReviewPatch struct {
	Status *string
	Notes  *string
}

// List 返回申请列表，最新提交在前。
func (w *Workflow) List(ctx context.Context, f ListFilter) ([]database.Application, error) {
	q := w.db.WithContext(ctx).Model(&database.Application{})
	if s := strings.TrimSpace(f.Status); s != "" {
		q = q.Where("status = ?", strings.ToLower(s))
	}
	if g := strings.TrimSpace(f.Gender); g != "" {
		q = q.Where("gender = ?", strings.ToLower(g))
	}
	if f.JobID != 0 {
		q = q.Where("job_id = ?", f.JobID)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		like := database.LikePattern(s)
		q = q.Where(
			"(LOWER(full_name) LIKE ? ESCAPE '\\' OR LOWER(email) LIKE ? ESCAPE '\\' OR LOWER(job_title) LIKE ? ESCAPE '\\')",
			like, like, like,
		)
	}

	var rows []database.Application
	if err := q.Order("applied_at DESC").Order("id DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	return rows, nil
}

// Get 返回单个申请。
func (w *Workflow) Get(ctx context.Context, id uint) (*database.Application, error) {
	var app database.Application
	if err := w.db.WithContext(ctx).First(&app, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errcode.NotFound("application", id)
		}
		return nil, fmt.Errorf("get application %d: %w", id, err)
	}
	return &app, nil
}

// UpdateReview 修改状态和/或备注。状态之间可以任意切换。
func (w *Workflow) UpdateReview(ctx context.Context, id uint, p ReviewPatch) (*database.Application, error) {
	updates := map[string]any{}
	if p.Status != nil {
		status := strings.ToLower(strings.TrimSpace(*p.Status))
		if !ValidStatus(status) {
			return nil, errcode.Invalid(errcode.ReasonMalformed, "Invalid status: "+*p.Status, "status")
		}
		updates["status"] = status
	}
	if p.Notes != nil {
		updates["notes"] = *p.Notes
	}

	app, err := w.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(updates) == 0 {
		return app, nil
	}
	if err := w.db.WithContext(ctx).Model(app).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("update application %d: %w", id, err)
	}
	return w.Get(ctx, id)
}

// BulkSetStatus 批量设置状态，返回受影响的行数。
func (w *Workflow) BulkSetStatus(ctx context.Context, ids []uint, status string) (int64, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	if len(ids) == 0 {
		return 0, errcode.MissingFields("ids")
	}
	if !ValidStatus(status) {
		return 0, errcode.Invalid(errcode.ReasonMalformed, "Invalid status: "+status, "status")
	}
	res := w.db.WithContext(ctx).Model(&database.Application{}).
		Where("id IN ?", ids).
		Update("status", status)
	if res.Error != nil {
		return 0, fmt.Errorf("bulk set status: %w", res.Error)
	}
	return res.RowsAffected, nil
}
