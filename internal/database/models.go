package database

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// 申请状态，管理员可任意切换，不强制流转顺序。
const (
	StatusPending     = "pending"
	StatusReviewed    = "reviewed"
	StatusShortlisted = "shortlisted"
	StatusRejected    = "rejected"
)

// AdminUser 表示后台管理员账号。
// 布尔列不带数据库默认值，否则 gorm 在创建时会把 false 替换成默认值。
type AdminUser struct {
	gorm.Model
	Username           string `gorm:"uniqueIndex;size:64"`
	PasswordHash       string `gorm:"size:255"`
	IsStaff            bool   `gorm:"not null"`
	MustChangePassword bool   `gorm:"not null"`
}

// Job 表示一条招聘信息。是否过期由 ExpiryDate 推导，不单独存储。
type Job struct {
	gorm.Model
	Title            string                      `gorm:"size:200;not null"`
	Location         string                      `gorm:"size:200;index"`
	Salary           string                      `gorm:"size:100"`
	Contract         string                      `gorm:"size:100"`
	Icon             string                      `gorm:"size:512"`
	Description      string                      `gorm:"type:text"`
	Responsibilities string                      `gorm:"type:text"`
	Requirements     string                      `gorm:"type:text"`
	Benefits         string                      `gorm:"type:text"`
	WorkplacePhotos  datatypes.JSONSlice[string] `gorm:"type:json"`
	ExpiryDate       *time.Time                  `gorm:"type:date"`
	IsActive         bool                        `gorm:"not null"`
}

// Application 表示一次职位申请。
// JobTitle 是提交时的职位名称快照，职位后续被修改或删除也保留原值。
// (JobID, Email) 上的唯一索引是防止重复申请的最终保障。
type Application struct {
	ID                  uint                        `gorm:"primaryKey"`
	JobID               uint                        `gorm:"not null;uniqueIndex:idx_applications_job_email"`
	Job                 *Job                        `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	JobTitle            string                      `gorm:"size:200;index"`
	FullName            string                      `gorm:"size:200"`
	Email               string                      `gorm:"size:254;not null;uniqueIndex:idx_applications_job_email"`
	Phone               string                      `gorm:"size:50"`
	Age                 int                         `gorm:"index"`
	Gender              string                      `gorm:"size:16;index"`
	ExamGrade           string                      `gorm:"size:4"`
	CVDocument          string                      `gorm:"size:512"`
	IDDocument          string                      `gorm:"size:512"`
	CertificateDocument string                      `gorm:"size:512"`
	AdditionalDocuments datatypes.JSONSlice[string] `gorm:"type:json"`
	Status              string                      `gorm:"size:32;default:pending;index"`
	Notes               string                      `gorm:"type:text"`
	AppliedAt           time.Time                   `gorm:"autoCreateTime;index"`
	UpdatedAt           time.Time
}

// SiteContent 站点文案单例，固定使用 ID = 1。
type SiteContent struct {
	ID           uint   `gorm:"primaryKey"`
	SiteName     string `gorm:"size:200"`
	SiteLogo     string `gorm:"size:512"`
	HeroTitle    string `gorm:"size:500"`
	HeroSubtitle string `gorm:"type:text"`
	AboutText    string `gorm:"type:text"`
	ContactEmail string `gorm:"size:254"`
	ContactPhone string `gorm:"size:50"`
	UpdatedAt    time.Time
}

// ThemeSettings 主题配色单例，固定使用 ID = 1。
type ThemeSettings struct {
	ID               uint   `gorm:"primaryKey"`
	PrimaryColor     string `gorm:"size:7"`
	PrimaryDarkColor string `gorm:"size:7"`
	BackgroundColor  string `gorm:"size:7"`
	HeaderBackground string `gorm:"size:7"`
	GradientStart    string `gorm:"size:7"`
	GradientEnd      string `gorm:"size:7"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ColorPreset 预置配色方案，应用时覆盖 ThemeSettings 并标记为当前方案。
type ColorPreset struct {
	ID               uint   `gorm:"primaryKey"`
	Name             string `gorm:"size:50;uniqueIndex"`
	Description      string `gorm:"type:text"`
	PrimaryColor     string `gorm:"size:7"`
	PrimaryDarkColor string `gorm:"size:7"`
	BackgroundColor  string `gorm:"size:7"`
	HeaderBackground string `gorm:"size:7"`
	GradientStart    string `gorm:"size:7"`
	GradientEnd      string `gorm:"size:7"`
	IsActive         bool   `gorm:"default:false"`
	CreatedAt        time.Time
}

// SingletonID 是所有单例表使用的主键。
const SingletonID uint = 1
