package jobs

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire format of job expiry dates.
const DateLayout = "2006-01-02"

// DateField 记录 JSON 中日期字段是否出现、是否为 null。
// 字段缺失：Set=false；显式 null：Set=true, Valid=false。
type DateField struct {
	Set   bool
	Valid bool
	Time  time.Time
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *DateField) UnmarshalJSON(data []byte) error {
	d.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		d.Valid = false
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("expiry_date must be a string: %w", err)
	}
	if strings.TrimSpace(raw) == "" {
		d.Valid = false
		return nil
	}
	t, err := ParseDate(raw)
	if err != nil {
		return err
	}
	d.Valid = true
	d.Time = t
	return nil
}

// Ptr returns the date as a pointer, nil when absent or null.
func (d DateField) Ptr() *time.Time {
	if !d.Valid {
		return nil
	}
	t := d.Time
	return &t
}

// ParseDate accepts YYYY-MM-DD or an RFC 3339 timestamp.
func ParseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(DateLayout, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", raw)
	}
	return civilDate(t), nil
}

// FormatDate renders a nullable date for API responses.
func FormatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(DateLayout)
	return &s
}
