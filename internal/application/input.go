package application

import (
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"jobBoard/internal/database"
	"jobBoard/internal/errcode"
)

// 附件类型，同时作为对象名前缀。
const (
	DocCV          = "cv"
	DocID          = "id"
	DocCertificate = "certificate"
)

// AllowedExtensions 是允许上传的附件扩展名。
var AllowedExtensions = []string{".pdf", ".doc", ".docx", ".jpg", ".jpeg", ".png"}

// Attachment 是一个待保存的上传文件。Open 可以被多次调用。
type Attachment struct {
	Filename    string
	Size        int64
	ContentType string
	Open        func() (io.ReadCloser, error)
}

// FromFileHeader 把 multipart 文件转换为 Attachment；fh 为 nil 时返回 nil。
func FromFileHeader(fh *multipart.FileHeader) *Attachment {
	if fh == nil {
		return nil
	}
	return &Attachment{
		Filename:    fh.Filename,
		Size:        fh.Size,
		ContentType: fh.Header.Get("Content-Type"),
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

// Ext returns the lower-cased file extension including the dot.
func (a *Attachment) Ext() string {
	return strings.ToLower(filepath.Ext(a.Filename))
}

// Input 是一次申请提交。标量字段的 form 标签即表单字段名。
type Input struct {
	JobID     string `form:"jobId" validate:"required"`
	JobTitle  string `form:"jobTitle"`
	FullName  string `form:"fullName" validate:"required"`
	Email     string `form:"email" validate:"required,email"`
	Phone     string `form:"phone" validate:"required"`
	Age       string `form:"age" validate:"required"`
	Gender    string `form:"gender" validate:"required,oneof=male female other"`
	KCSEGrade string `form:"kcseGrade" validate:"required,oneof=A A- B+ B B- C+ C C- D+ D D- E"`

	CV          *Attachment   `form:"-"`
	IDDocument  *Attachment   `form:"-"`
	Certificate *Attachment   `form:"-"`
	Additional  []*Attachment `form:"-"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("form"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// normalize 去除首尾空白，并统一邮箱、性别与成绩的大小写。
func (in *Input) normalize() {
	in.JobID = strings.TrimSpace(in.JobID)
	in.JobTitle = strings.TrimSpace(in.JobTitle)
	in.FullName = strings.TrimSpace(in.FullName)
	in.Email = NormalizeEmail(in.Email)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Age = strings.TrimSpace(in.Age)
	in.Gender = strings.ToLower(strings.TrimSpace(in.Gender))
	in.KCSEGrade = strings.ToUpper(strings.TrimSpace(in.KCSEGrade))
}

// NormalizeEmail 统一邮箱格式，重复申请按规范化后的邮箱判断。
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type scalars struct {
	jobID uint
	age   int
}

// checkScalars 校验必填字段与取值格式。缺失优先于格式错误报告。
func checkScalars(in *Input) (scalars, error) {
	var out scalars

	var missing, malformed []string
	if err := validate.Struct(in); err != nil {
		verrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return out, fmt.Errorf("validate application input: %w", err)
		}
		for _, fe := range verrs {
			if fe.Tag() == "required" {
				missing = append(missing, fe.Field())
			} else {
				malformed = append(malformed, fe.Field())
			}
		}
	}
	if len(missing) > 0 {
		return out, errcode.MissingFields(missing...)
	}

	if id, err := strconv.ParseUint(in.JobID, 10, 64); err != nil || id == 0 {
		malformed = append(malformed, "jobId")
	} else {
		out.jobID = uint(id)
	}
	if age, err := strconv.Atoi(in.Age); err != nil || age < 0 || age > 120 {
		malformed = append(malformed, "age")
	} else {
		out.age = age
	}

	if len(malformed) > 0 {
		return out, errcode.Invalid(errcode.ReasonMalformed,
			"Invalid value for: "+strings.Join(malformed, ", "), malformed...)
	}
	return out, nil
}

// checkDocuments 检查必需附件是否齐全。
func checkDocuments(in *Input) error {
	switch {
	case in.CV == nil && in.IDDocument == nil:
		return errcode.Invalid(errcode.ReasonMissingDocument,
			"CV/Resume and ID/Passport document are required", "cv", "id_document")
	case in.CV == nil:
		return errcode.Invalid(errcode.ReasonMissingDocument, "CV/Resume is required", "cv")
	case in.IDDocument == nil:
		return errcode.Invalid(errcode.ReasonMissingDocument, "ID/Passport document is required", "id_document")
	}
	return nil
}

// checkFile 检查单个附件的扩展名与大小。
func checkFile(field string, a *Attachment, maxBytes int64) error {
	ext := a.Ext()
	allowed := false
	for _, e := range AllowedExtensions {
		if ext == e {
			allowed = true
			break
		}
	}
	if !allowed {
		if ext == "" {
			ext = "(none)"
		}
		return errcode.Invalid(errcode.ReasonBadFile,
			fmt.Sprintf("File type %s not allowed for %s", ext, a.Filename), field)
	}
	if a.Size > maxBytes {
		return errcode.Invalid(errcode.ReasonBadFile,
			fmt.Sprintf("%s is too large. Maximum size is %dMB per file.", a.Filename, maxBytes/(1024*1024)), field)
	}
	if a.Open == nil {
		return errcode.Invalid(errcode.ReasonBadFile, a.Filename+" could not be read", field)
	}
	return nil
}

// SanitizeEmail 把邮箱转换为可用作对象路径的片段。
func SanitizeEmail(email string) string {
	s := strings.NewReplacer("@", "_at_", ".", "_").Replace(NormalizeEmail(email))
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-', r == '+':
			return r
		}
		return '_'
	}, s)
}

// ValidStatus reports whether s is a known application status.
func ValidStatus(s string) bool {
	switch s {
	case database.StatusPending, database.StatusReviewed, database.StatusShortlisted, database.StatusRejected:
		return true
	}
	return false
}
