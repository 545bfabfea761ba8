package mail

import (
	"bytes"
	"fmt"
	"text/template"
	"time"
)

// 纯文本邮件正文模板。
var (
	confirmationTmpl = template.Must(template.New("confirmation").Parse(`Dear {{.FullName}},

Thank you for applying for the position of {{.JobTitle}} at {{.SiteName}}.

We have successfully received your application and all supporting documents.

Application details
  Position:       {{.JobTitle}}
  Application ID: {{.Reference}}
  Submitted:      {{.Submitted}}

Our recruitment team will review your application. If your qualifications
match our requirements, we will contact you within 5-7 business days.
{{if .ContactEmail}}
Questions? Write to {{.ContactEmail}}{{if .ContactPhone}} or call {{.ContactPhone}}{{end}}.
{{end}}
Best regards,
The {{.SiteName}} Recruitment Team

This is an automated confirmation. Please do not reply to this message.
`))

	adminNotifyTmpl = template.Must(template.New("admin_notify").Parse(`A new application was submitted.

  Position:       {{.JobTitle}}
  Application ID: {{.Reference}}
  Applicant:      {{.FullName}}
  Email:          {{.Email}}
  Phone:          {{.Phone}}
  Age:            {{.Age}}
  Gender:         {{.Gender}}
  KCSE grade:     {{.ExamGrade}}
  Submitted:      {{.Submitted}}
`))
)

type mailView struct {
	SiteName     string
	ContactEmail string
	ContactPhone string
	Reference    string
	JobTitle     string
	FullName     string
	Email        string
	Phone        string
	Age          int
	Gender       string
	ExamGrade    string
	Submitted    string
}

// Reference 生成对外展示的申请编号。
func Reference(id uint) string {
	return fmt.Sprintf("GT-%d", id)
}

func formatSubmitted(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format("January 02, 2006 at 03:04 PM")
}

func render(tmpl *template.Template, v mailView) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, v); err != nil {
		return "", fmt.Errorf("render %s mail: %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}
