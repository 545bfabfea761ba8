package mail

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	gomail "github.com/wneessen/go-mail"

	"jobBoard/internal/config"
)

// ErrNotConfigured 表示未配置 SMTP 主机，邮件不会发出。
var ErrNotConfigured = errors.New("smtp host not configured")

// Sender 发送一封纯文本邮件。
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPSender 通过 SMTP 投递邮件，每次发送建立一次连接。
type SMTPSender struct {
	cfg config.MailConfig
}

// NewSMTPSender 构造 SMTPSender。
func NewSMTPSender(cfg config.MailConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg}
}

// Send implements Sender.
func (s *SMTPSender) Send(ctx context.Context, to, subject, body string) error {
	if strings.TrimSpace(s.cfg.Host) == "" {
		return ErrNotConfigured
	}

	msg := gomail.NewMsg()
	if err := msg.From(s.cfg.From); err != nil {
		return fmt.Errorf("set from %q: %w", s.cfg.From, err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("set recipient %q: %w", to, err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextPlain, body)

	timeout := s.cfg.SendTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	opts := []gomail.Option{
		gomail.WithPort(s.cfg.Port),
		gomail.WithTimeout(timeout),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(s.cfg.Username),
			gomail.WithPassword(s.cfg.Password),
		)
	}

	client, err := gomail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("init smtp client: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send mail to %q: %w", to, err)
	}
	return nil
}
