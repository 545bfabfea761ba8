package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"jobBoard/internal/database"
	"jobBoard/internal/errcode"
)

// Catalog 负责招聘信息的增删改查与过期判断。
type Catalog struct {
	db  *gorm.DB
	loc *time.Location
	now func() time.Time
}

// NewCatalog 构造 Catalog。loc 决定“今天”按哪个时区计算。
func NewCatalog(db *gorm.DB, loc *time.Location) *Catalog {
	if loc == nil {
		loc = time.UTC
	}
	return &Catalog{db: db, loc: loc, now: time.Now}
}

// Filter 描述公开列表的筛选条件。
type Filter struct {
	Search     string
	Location   string
	ActiveOnly bool
}

// Input 是创建职位的入参。
type Input struct {
	Title            string
	Location         string
	Salary           string
	Contract         string
	Icon             string
	Description      string
	Responsibilities string
	Requirements     string
	Benefits         string
	WorkplacePhotos  []string
	ExpiryDate       *time.Time
	IsActive         *bool
}

// Patch 是更新职位的入参，nil 字段保持原值。
type Patch struct {
	Title            *string
	Location         *string
	Salary           *string
	Contract         *string
	Icon             *string
	Description      *string
	Responsibilities *string
	Requirements     *string
	Benefits         *string
	WorkplacePhotos  *[]string
	ExpiryDate       DateField
	IsActive         *bool
}

// IsActive 判断职位是否仍在有效期内：没有截止日期，或截止日期不早于今天。
func IsActive(job *database.Job, now time.Time, loc *time.Location) bool {
	if job.ExpiryDate == nil {
		return true
	}
	if loc == nil {
		loc = time.UTC
	}
	return !civilDate(*job.ExpiryDate).Before(civilDate(now.In(loc)))
}

// IsListed 判断职位是否对外展示：已发布且未过期。职位列表与统计共用这一口径。
func IsListed(job *database.Job, now time.Time, loc *time.Location) bool {
	return job.IsActive && IsActive(job, now, loc)
}

// IsActive reports whether job is active at the catalog's current time.
func (c *Catalog) IsActive(job *database.Job) bool {
	return IsActive(job, c.now(), c.loc)
}

// Location returns the timezone used for date comparisons.
func (c *Catalog) Location() *time.Location { return c.loc }

// List 返回符合条件的职位，按创建时间倒序。
func (c *Catalog) List(ctx context.Context, f Filter) ([]database.Job, error) {
	q := c.db.WithContext(ctx).Model(&database.Job{})

	if s := strings.TrimSpace(f.Search); s != "" {
		like := database.LikePattern(s)
		q = q.Where(
			"(LOWER(title) LIKE ? ESCAPE '\\' OR LOWER(location) LIKE ? ESCAPE '\\' OR LOWER(description) LIKE ? ESCAPE '\\')",
			like, like, like,
		)
	}
	if l := strings.TrimSpace(f.Location); l != "" {
		q = q.Where("LOWER(location) LIKE ? ESCAPE '\\'", database.LikePattern(l))
	}

	var rows []database.Job
	if err := q.Order("created_at DESC").Order("id DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}

	if !f.ActiveOnly {
		return rows, nil
	}

	now := c.now()
	active := rows[:0]
	// 仅返回已发布且未过期的职位。
	for i := range rows {
		if IsListed(&rows[i], now, c.loc) {
			active = append(active, rows[i])
		}
	}
	return active, nil
}

// Get 按 ID 返回职位，不存在时返回 NotFoundError。
func (c *Catalog) Get(ctx context.Context, id uint) (*database.Job, error) {
	var job database.Job
	if err := c.db.WithContext(ctx).First(&job, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errcode.NotFound("job", id)
		}
		return nil, fmt.Errorf("get job %d: %w", id, err)
	}
	return &job, nil
}

// Create 新建职位。
func (c *Catalog) Create(ctx context.Context, in Input) (*database.Job, error) {
	var missing []string
	if strings.TrimSpace(in.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(in.Location) == "" {
		missing = append(missing, "location")
	}
	if strings.TrimSpace(in.Description) == "" {
		missing = append(missing, "description")
	}
	if len(missing) > 0 {
		return nil, errcode.MissingFields(missing...)
	}

	job := database.Job{
		Title:            strings.TrimSpace(in.Title),
		Location:         strings.TrimSpace(in.Location),
		Salary:           in.Salary,
		Contract:         in.Contract,
		Icon:             in.Icon,
		Description:      in.Description,
		Responsibilities: in.Responsibilities,
		Requirements:     in.Requirements,
		Benefits:         in.Benefits,
		WorkplacePhotos:  datatypes.JSONSlice[string](in.WorkplacePhotos),
		IsActive:         true,
	}
	if in.ExpiryDate != nil {
		d := civilDate(*in.ExpiryDate)
		job.ExpiryDate = &d
	}
	if in.IsActive != nil {
		job.IsActive = *in.IsActive
	}

	if err := c.db.WithContext(ctx).Create(&job).Error; err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	return &job, nil
}

// Update 仅覆盖 Patch 中出现的字段。
func (c *Catalog) Update(ctx context.Context, id uint, p Patch) (*database.Job, error) {
	job, err := c.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	setString := func(column string, v *string) {
		if v != nil {
			updates[column] = *v
		}
	}
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return nil, errcode.Invalid(errcode.ReasonMalformed, "title must not be empty", "title")
	}
	setString("title", p.Title)
	setString("location", p.Location)
	setString("salary", p.Salary)
	setString("contract", p.Contract)
	setString("icon", p.Icon)
	setString("description", p.Description)
	setString("responsibilities", p.Responsibilities)
	setString("requirements", p.Requirements)
	setString("benefits", p.Benefits)
	if p.WorkplacePhotos != nil {
		updates["workplace_photos"] = datatypes.JSONSlice[string](*p.WorkplacePhotos)
	}
	if p.ExpiryDate.Set {
		if p.ExpiryDate.Valid {
			updates["expiry_date"] = civilDate(p.ExpiryDate.Time)
		} else {
			updates["expiry_date"] = nil
		}
	}
	if p.IsActive != nil {
		updates["is_active"] = *p.IsActive
	}

	if len(updates) == 0 {
		return job, nil
	}

	if err := c.db.WithContext(ctx).Model(job).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("update job %d: %w", id, err)
	}
	return c.Get(ctx, id)
}

// Delete 软删除职位；已有申请保留职位名称快照。
func (c *Catalog) Delete(ctx context.Context, id uint) error {
	res := c.db.WithContext(ctx).Delete(&database.Job{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete job %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return errcode.NotFound("job", id)
	}
	return nil
}

// civilDate 只保留年月日，统一为 UTC 零点。
func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
