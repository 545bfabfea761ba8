package content

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"jobBoard/internal/database"
	"jobBoard/internal/errcode"
)

// Colors 是主题的六个颜色，JSON 字段名与前端 CSS 变量一致。
type Colors struct {
	Primary       string `json:"primary" validate:"required,hexcolor,len=7"`
	PrimaryDark   string `json:"primary_dark" validate:"required,hexcolor,len=7"`
	Background    string `json:"background" validate:"required,hexcolor,len=7"`
	HeaderBg      string `json:"header_bg" validate:"required,hexcolor,len=7"`
	GradientStart string `json:"gradient_start" validate:"required,hexcolor,len=7"`
	GradientEnd   string `json:"gradient_end" validate:"required,hexcolor,len=7"`
}

// ThemePatch 只修改非 nil 的颜色。
type ThemePatch struct {
	Primary       *string `json:"primary" validate:"omitempty,hexcolor,len=7"`
	PrimaryDark   *string `json:"primary_dark" validate:"omitempty,hexcolor,len=7"`
	Background    *string `json:"background" validate:"omitempty,hexcolor,len=7"`
	HeaderBg      *string `json:"header_bg" validate:"omitempty,hexcolor,len=7"`
	GradientStart *string `json:"gradient_start" validate:"omitempty,hexcolor,len=7"`
	GradientEnd   *string `json:"gradient_end" validate:"omitempty,hexcolor,len=7"`
}

// PresetInput 新建预置方案的入参。
type PresetInput struct {
	Name        string `json:"name" validate:"required,max=50"`
	Description string `json:"description"`
	Colors
}

// DefaultTheme 是尚未保存过主题时的配色。
func DefaultTheme() database.ThemeSettings {
	return database.ThemeSettings{
		ID:               database.SingletonID,
		PrimaryColor:     "#1e40af",
		PrimaryDarkColor: "#1e3a8a",
		BackgroundColor:  "#dbeafe",
		HeaderBackground: "#3b82f6",
		GradientStart:    "#2563eb",
		GradientEnd:      "#1d4ed8",
	}
}

// ThemeColors 把存储结构转为 Colors。
func ThemeColors(t *database.ThemeSettings) Colors {
	return Colors{
		Primary:       t.PrimaryColor,
		PrimaryDark:   t.PrimaryDarkColor,
		Background:    t.BackgroundColor,
		HeaderBg:      t.HeaderBackground,
		GradientStart: t.GradientStart,
		GradientEnd:   t.GradientEnd,
	}
}

// PresetColors 把预置方案转为 Colors。
func PresetColors(p *database.ColorPreset) Colors {
	return Colors{
		Primary:       p.PrimaryColor,
		PrimaryDark:   p.PrimaryDarkColor,
		Background:    p.BackgroundColor,
		HeaderBg:      p.HeaderBackground,
		GradientStart: p.GradientStart,
		GradientEnd:   p.GradientEnd,
	}
}

var themeColumns = []string{
	"primary_color", "primary_dark_color", "background_color",
	"header_background", "gradient_start", "gradient_end",
}

// Theme 返回当前主题；尚未保存过时返回默认配色。
func (s *Store) Theme(ctx context.Context) (*database.ThemeSettings, error) {
	var t database.ThemeSettings
	err := s.db.WithContext(ctx).Take(&t, database.SingletonID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		d := DefaultTheme()
		return &d, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get theme: %w", err)
	}
	return &t, nil
}

// UpdateTheme 校验并保存颜色，只覆盖 patch 中给出的颜色。
func (s *Store) UpdateTheme(ctx context.Context, p ThemePatch) (*database.ThemeSettings, error) {
	if err := validate.Struct(p); err != nil {
		return nil, colorError(err)
	}

	row := DefaultTheme()
	var columns []string
	apply := func(v *string, dst *string, column string) {
		if v != nil {
			*dst = strings.ToLower(*v)
			columns = append(columns, column)
		}
	}
	apply(p.Primary, &row.PrimaryColor, "primary_color")
	apply(p.PrimaryDark, &row.PrimaryDarkColor, "primary_dark_color")
	apply(p.Background, &row.BackgroundColor, "background_color")
	apply(p.HeaderBg, &row.HeaderBackground, "header_background")
	apply(p.GradientStart, &row.GradientStart, "gradient_start")
	apply(p.GradientEnd, &row.GradientEnd, "gradient_end")
	if len(columns) == 0 {
		return s.Theme(ctx)
	}

	if err := upsertTheme(s.db.WithContext(ctx), &row, columns); err != nil {
		return nil, err
	}
	return s.Theme(ctx)
}

func upsertTheme(db *gorm.DB, row *database.ThemeSettings, columns []string) error {
	row.ID = database.SingletonID
	row.UpdatedAt = time.Now()
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns(append(columns, "updated_at")),
	}).Create(row).Error
	if err != nil {
		return fmt.Errorf("upsert theme: %w", err)
	}
	return nil
}

// ListPresets 按名称返回全部预置方案。
func (s *Store) ListPresets(ctx context.Context) ([]database.ColorPreset, error) {
	var presets []database.ColorPreset
	if err := s.db.WithContext(ctx).Order("name").Find(&presets).Error; err != nil {
		return nil, fmt.Errorf("list presets: %w", err)
	}
	return presets, nil
}

// CreatePreset 新建预置方案，名称重复返回 ConflictError。
func (s *Store) CreatePreset(ctx context.Context, in PresetInput) (*database.ColorPreset, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := validate.Struct(in); err != nil {
		return nil, colorError(err)
	}
	preset := database.ColorPreset{
		Name:             in.Name,
		Description:      in.Description,
		PrimaryColor:     strings.ToLower(in.Primary),
		PrimaryDarkColor: strings.ToLower(in.PrimaryDark),
		BackgroundColor:  strings.ToLower(in.Background),
		HeaderBackground: strings.ToLower(in.HeaderBg),
		GradientStart:    strings.ToLower(in.GradientStart),
		GradientEnd:      strings.ToLower(in.GradientEnd),
	}
	if err := s.db.WithContext(ctx).Create(&preset).Error; err != nil {
		if database.IsUniqueViolation(err) {
			return nil, &errcode.ConflictError{Message: "A preset named " + in.Name + " already exists"}
		}
		return nil, fmt.Errorf("create preset: %w", err)
	}
	return &preset, nil
}

// ApplyPreset 在一个事务中覆盖主题并把该方案标记为唯一的当前方案。
func (s *Store) ApplyPreset(ctx context.Context, id uint) (*database.ThemeSettings, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var preset database.ColorPreset
		if err := tx.First(&preset, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errcode.NotFound("preset", id)
			}
			return fmt.Errorf("load preset %d: %w", id, err)
		}

		row := database.ThemeSettings{
			PrimaryColor:     preset.PrimaryColor,
			PrimaryDarkColor: preset.PrimaryDarkColor,
			BackgroundColor:  preset.BackgroundColor,
			HeaderBackground: preset.HeaderBackground,
			GradientStart:    preset.GradientStart,
			GradientEnd:      preset.GradientEnd,
		}
		if err := upsertTheme(tx, &row, append([]string(nil), themeColumns...)); err != nil {
			return err
		}

		if err := tx.Model(&database.ColorPreset{}).
			Where("is_active = ?", true).
			Update("is_active", false).Error; err != nil {
			return fmt.Errorf("clear active preset: %w", err)
		}
		if err := tx.Model(&preset).Update("is_active", true).Error; err != nil {
			return fmt.Errorf("activate preset %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Theme(ctx)
}

// colorError 把校验错误转换为 ValidationError，字段名使用 JSON 名。
func colorError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate theme: %w", err)
	}
	var missing, malformed []string
	for _, fe := range verrs {
		name := fe.Field()
		if fe.Tag() == "required" {
			missing = append(missing, name)
		} else {
			malformed = append(malformed, name)
		}
	}
	if len(missing) > 0 {
		return errcode.MissingFields(missing...)
	}
	return errcode.Invalid(errcode.ReasonMalformed,
		"Enter a valid hex color (e.g., #1e40af) for: "+strings.Join(malformed, ", "), malformed...)
}
