package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 申请提交结果标签。
const (
	SubmissionAccepted  = "accepted"
	SubmissionInvalid   = "invalid"
	SubmissionDuplicate = "duplicate"
	SubmissionFailed    = "failed"
)

// 邮件种类与结果标签。
const (
	EmailConfirmation = "confirmation"
	EmailAdminNotify  = "admin_notify"

	EmailSent    = "sent"
	EmailFailed  = "failed"
	EmailQueued  = "queued"
	EmailSkipped = "skipped"
)

var (
	applicationsSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jobboard",
			Subsystem: "workflow",
			Name:      "applications_submitted_total",
			Help:      "职位申请提交次数，按结果划分。",
		},
		[]string{"result"},
	)

	notificationEmails = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jobboard",
			Subsystem: "workflow",
			Name:      "notification_emails_total",
			Help:      "通知邮件发送次数，按种类与结果划分。",
		},
		[]string{"kind", "result"},
	)
)

// ObserveSubmission records the outcome of one application submission.
func ObserveSubmission(result string) {
	applicationsSubmitted.WithLabelValues(result).Inc()
}

// ObserveEmail records one notification mail attempt.
func ObserveEmail(kind, result string) {
	notificationEmails.WithLabelValues(kind, result).Inc()
}
