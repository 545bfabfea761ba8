package mail

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	"jobBoard/internal/database"
	"jobBoard/internal/metrics"
	"jobBoard/internal/tasks"
)

// Enqueuer 是 asynq.Client 的最小子集。
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// ContentSource 提供站点名称与联系方式，用于邮件落款。
type ContentSource interface {
	Get(ctx context.Context) (*database.SiteContent, error)
}

// Notifier 组装并发送申请相关的通知邮件。
type Notifier struct {
	sender       Sender
	siteName     string
	adminAddress string
	loc          *time.Location
	content      ContentSource
	queue        Enqueuer
	logger       *slog.Logger
}

// NotifierOption 定制 Notifier。
type NotifierOption func(*Notifier)

// WithQueue 让管理员通知经由 asynq 投递。
func WithQueue(q Enqueuer) NotifierOption {
	return func(n *Notifier) { n.queue = q }
}

// WithContent 使用站点内容中的名称与联系方式。
func WithContent(src ContentSource) NotifierOption {
	return func(n *Notifier) { n.content = src }
}

// WithLocation sets the timezone used to print submission times.
func WithLocation(loc *time.Location) NotifierOption {
	return func(n *Notifier) { n.loc = loc }
}

// WithLogger sets the fallback logger.
func WithLogger(l *slog.Logger) NotifierOption {
	return func(n *Notifier) { n.logger = l }
}

// NewNotifier 构造 Notifier。adminAddress 为空时不发送管理员通知。
func NewNotifier(sender Sender, siteName, adminAddress string, opts ...NotifierOption) *Notifier {
	n := &Notifier{
		sender:       sender,
		siteName:     siteName,
		adminAddress: strings.TrimSpace(adminAddress),
		loc:          time.UTC,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// SendConfirmation 给申请人发送确认邮件。
func (n *Notifier) SendConfirmation(ctx context.Context, app *database.Application) error {
	view := n.view(ctx, app)
	body, err := render(confirmationTmpl, view)
	if err != nil {
		metrics.ObserveEmail(metrics.EmailConfirmation, metrics.EmailFailed)
		return err
	}
	subject := fmt.Sprintf("Application Received - %s | %s", app.JobTitle, view.SiteName)
	if err := n.sender.Send(ctx, app.Email, subject, body); err != nil {
		metrics.ObserveEmail(metrics.EmailConfirmation, metrics.EmailFailed)
		return err
	}
	metrics.ObserveEmail(metrics.EmailConfirmation, metrics.EmailSent)
	return nil
}

// NotifyAdmin 通知管理员有新申请；配置了队列时仅入队。
func (n *Notifier) NotifyAdmin(ctx context.Context, app *database.Application) error {
	if n.adminAddress == "" {
		metrics.ObserveEmail(metrics.EmailAdminNotify, metrics.EmailSkipped)
		return nil
	}
	if n.queue == nil {
		return n.DeliverAdminNotification(ctx, app)
	}

	task, err := tasks.NewAdminNotifyTask(app.ID, correlationID(ctx))
	if err != nil {
		metrics.ObserveEmail(metrics.EmailAdminNotify, metrics.EmailFailed)
		return fmt.Errorf("build admin notify task: %w", err)
	}
	if _, err := n.queue.EnqueueContext(ctx, task); err != nil {
		metrics.ObserveEmail(metrics.EmailAdminNotify, metrics.EmailFailed)
		return fmt.Errorf("enqueue admin notify task: %w", err)
	}
	metrics.ObserveEmail(metrics.EmailAdminNotify, metrics.EmailQueued)
	return nil
}

// DeliverAdminNotification 直接发送管理员通知邮件。
func (n *Notifier) DeliverAdminNotification(ctx context.Context, app *database.Application) error {
	if n.adminAddress == "" {
		metrics.ObserveEmail(metrics.EmailAdminNotify, metrics.EmailSkipped)
		return nil
	}
	view := n.view(ctx, app)
	body, err := render(adminNotifyTmpl, view)
	if err != nil {
		metrics.ObserveEmail(metrics.EmailAdminNotify, metrics.EmailFailed)
		return err
	}
	subject := fmt.Sprintf("New application: %s - %s", app.JobTitle, app.FullName)
	if err := n.sender.Send(ctx, n.adminAddress, subject, body); err != nil {
		metrics.ObserveEmail(metrics.EmailAdminNotify, metrics.EmailFailed)
		return err
	}
	metrics.ObserveEmail(metrics.EmailAdminNotify, metrics.EmailSent)
	return nil
}

func (n *Notifier) view(ctx context.Context, app *database.Application) mailView {
	v := mailView{
		SiteName:  n.siteName,
		Reference: Reference(app.ID),
		JobTitle:  app.JobTitle,
		FullName:  app.FullName,
		Email:     app.Email,
		Phone:     app.Phone,
		Age:       app.Age,
		Gender:    app.Gender,
		ExamGrade: app.ExamGrade,
		Submitted: formatSubmitted(app.AppliedAt, n.loc),
	}
	if n.content == nil {
		return v
	}
	sc, err := n.content.Get(ctx)
	if err != nil {
		n.logger.Warn("load site content for mail failed", slog.Any("error", err))
		return v
	}
	if strings.TrimSpace(sc.SiteName) != "" {
		v.SiteName = sc.SiteName
	}
	v.ContactEmail = sc.ContactEmail
	v.ContactPhone = sc.ContactPhone
	return v
}

type correlationKey struct{}

// ContextWithCorrelationID 把请求的 correlation id 带入邮件任务。
func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

func correlationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}
