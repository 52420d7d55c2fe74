package notify

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"github.com/wonny/sheetalert/pkg/config"
	"github.com/wonny/sheetalert/pkg/logger"
)

// SMTPMailer sends plain-text mail through an SMTP relay
type SMTPMailer struct {
	dialer *gomail.Dialer
	sender string
}

// NewSMTPMailer creates a mailer from the mail config
func NewSMTPMailer(cfg config.MailConfig) *SMTPMailer {
	return &SMTPMailer{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		sender: cfg.Sender,
	}
}

// Send implements contracts.Mailer
func (m *SMTPMailer) Send(ctx context.Context, recipient, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.sender)
	msg.SetHeader("To", recipient)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send mail to %s: %w", recipient, err)
	}
	return nil
}

// LogMailer writes messages to the log instead of sending them.
// Used when mail is disabled in development.
type LogMailer struct {
	logger *logger.Logger
}

// NewLogMailer creates a new log mailer
func NewLogMailer(log *logger.Logger) *LogMailer {
	return &LogMailer{logger: log}
}

// Send implements contracts.Mailer
func (m *LogMailer) Send(ctx context.Context, recipient, subject, body string) error {
	m.logger.WithFields(map[string]interface{}{
		"to":      recipient,
		"subject": subject,
		"body":    body,
	}).Info("Mail (not sent)")
	return nil
}
