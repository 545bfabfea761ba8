package content

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"jobBoard/internal/database"
	"jobBoard/internal/errcode"
)

// LogoStore 是 storage.Client 中 Logo 上传用到的部分。
type LogoStore interface {
	UploadFile(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) (*minio.UploadInfo, error)
	DeleteObject(ctx context.Context, objectKey string) error
}

// Store 管理站点文案、主题配色与预置方案。
type Store struct {
	db       *gorm.DB
	files    LogoStore
	defaults database.SiteContent
	maxLogo  int64
	logger   *slog.Logger
}

// NewStore 构造 Store。siteName 非空时覆盖默认站点名称。
func NewStore(db *gorm.DB, files LogoStore, siteName string, maxLogoBytes int64, logger *slog.Logger) *Store {
	defaults := DefaultContent()
	if strings.TrimSpace(siteName) != "" {
		defaults.SiteName = siteName
	}
	if maxLogoBytes <= 0 {
		maxLogoBytes = 5 * 1024 * 1024
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, files: files, defaults: defaults, maxLogo: maxLogoBytes, logger: logger}
}

// DefaultContent 是尚未编辑过时返回的站点文案。
func DefaultContent() database.SiteContent {
	return database.SiteContent{
		ID:           database.SingletonID,
		SiteName:     "Green Tara",
		HeroTitle:    "Connecting Kenyans to trusted job opportunities",
		HeroSubtitle: "Browse verified listings locally and in Qatar",
		AboutText:    "Green Tara helps job seekers connect to verified opportunities",
		ContactEmail: "info@greentara.co.ke",
		ContactPhone: "+254 700 123 456",
	}
}

var validate = newValidator()

// newValidator 使用 JSON 字段名报告错误。
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type contentField struct {
	column string
	set    func(*database.SiteContent, string)
	check  func(string) error
}

// contentFields 是允许按 key 更新的字段，key 与 JSON 字段名一致。
var contentFields = map[string]contentField{
	"site_name":     {column: "site_name", set: func(c *database.SiteContent, v string) { c.SiteName = v }, check: maxLen(200)},
	"site_logo":     {column: "site_logo", set: func(c *database.SiteContent, v string) { c.SiteLogo = v }, check: maxLen(512)},
	"hero_title":    {column: "hero_title", set: func(c *database.SiteContent, v string) { c.HeroTitle = v }, check: maxLen(500)},
	"hero_subtitle": {column: "hero_subtitle", set: func(c *database.SiteContent, v string) { c.HeroSubtitle = v }},
	"about_text":    {column: "about_text", set: func(c *database.SiteContent, v string) { c.AboutText = v }},
	"contact_email": {column: "contact_email", set: func(c *database.SiteContent, v string) { c.ContactEmail = v }, check: checkEmail},
	"contact_phone": {column: "contact_phone", set: func(c *database.SiteContent, v string) { c.ContactPhone = v }, check: maxLen(50)},
}

func maxLen(n int) func(string) error {
	return func(v string) error {
		if len([]rune(v)) > n {
			return fmt.Errorf("must be at most %d characters", n)
		}
		return nil
	}
}

func checkEmail(v string) error {
	if err := validate.Var(v, "omitempty,email,max=254"); err != nil {
		return errors.New("must be a valid email address")
	}
	return nil
}

// Get 返回站点文案；尚未保存过时返回默认值。
func (s *Store) Get(ctx context.Context) (*database.SiteContent, error) {
	var sc database.SiteContent
	err := s.db.WithContext(ctx).Take(&sc, database.SingletonID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		d := s.defaults
		return &d, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get site content: %w", err)
	}
	return &sc, nil
}

// Update 按 key 修改一个字段。未知 key 返回 ValidationError。
// 单条 upsert 完成：首次写入时其余字段取默认值。
func (s *Store) Update(ctx context.Context, key, value string) (*database.SiteContent, error) {
	field, ok := contentFields[key]
	if !ok {
		return nil, errcode.Invalid(errcode.ReasonUnknownKey, "Invalid field: "+key, key)
	}
	value = strings.TrimSpace(value)
	if field.check != nil {
		if err := field.check(value); err != nil {
			return nil, errcode.Invalid(errcode.ReasonMalformed, key+" "+err.Error(), key)
		}
	}

	row := s.defaults
	row.ID = database.SingletonID
	field.set(&row, value)
	row.UpdatedAt = time.Now()

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{field.column, "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return nil, fmt.Errorf("update site content %s: %w", key, err)
	}
	return s.Get(ctx)
}

var logoExtensions = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".svg": true, ".webp": true}

// UploadLogo 保存新 Logo 并写入 site_logo，成功后删除旧 Logo。
func (s *Store) UploadLogo(ctx context.Context, filename string, size int64, r io.Reader) (*database.SiteContent, error) {
	if s.files == nil {
		return nil, errors.New("logo storage not configured")
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if !logoExtensions[ext] {
		return nil, errcode.Invalid(errcode.ReasonBadFile, "Logo must be a png, jpg, svg or webp image", "logo")
	}
	if size <= 0 || size > s.maxLogo {
		return nil, errcode.Invalid(errcode.ReasonBadFile,
			fmt.Sprintf("Logo must be at most %dMB", s.maxLogo/(1024*1024)), "logo")
	}

	previous, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}

	key := "logos/" + uuid.NewString() + ext
	if _, err := s.files.UploadFile(ctx, key, r, size, ""); err != nil {
		return nil, fmt.Errorf("upload logo: %w", err)
	}

	updated, err := s.Update(ctx, "site_logo", key)
	if err != nil {
		if derr := s.files.DeleteObject(context.WithoutCancel(ctx), key); derr != nil {
			s.logger.Error("cleanup logo failed", slog.String("object_key", key), slog.Any("error", derr))
		}
		return nil, err
	}

	if old := previous.SiteLogo; strings.HasPrefix(old, "logos/") && old != key {
		if err := s.files.DeleteObject(ctx, old); err != nil {
			s.logger.Warn("delete previous logo failed", slog.String("object_key", old), slog.Any("error", err))
		}
	}
	return updated, nil
}
