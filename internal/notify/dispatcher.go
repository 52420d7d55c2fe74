package notify

import (
	"context"

	"github.com/wonny/sheetalert/internal/contracts"
	"github.com/wonny/sheetalert/pkg/logger"
)

// Dispatcher composes alert messages and hands them to a mailer. A failed
// send is logged and the remaining recipients are still tried.
type Dispatcher struct {
	mailer         contracts.Mailer
	subject        string
	unsubscribeURL string
	logger         *logger.Logger
}

// NewDispatcher creates a new dispatcher
func NewDispatcher(mailer contracts.Mailer, subject, unsubscribeURL string, log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		mailer:         mailer,
		subject:        subject,
		unsubscribeURL: unsubscribeURL,
		logger:         log,
	}
}

// Notify sends one message per user and returns how many were accepted
func (d *Dispatcher) Notify(ctx context.Context, alerts []contracts.UserAlerts) int {
	sent := 0

	for _, email := range Compose(alerts, d.unsubscribeURL) {
		if email.Recipient == "" {
			d.logger.Warn("Skipping alert mail for user without email")
			continue
		}

		if err := d.mailer.Send(ctx, email.Recipient, d.subject, email.Body); err != nil {
			d.logger.WithFields(map[string]interface{}{
				"to":    email.Recipient,
				"error": err.Error(),
			}).Error("Failed to send alert mail")
			continue
		}
		sent++
	}

	d.logger.WithFields(map[string]interface{}{
		"users": len(alerts),
		"sent":  sent,
	}).Info("Alert mails dispatched")

	return sent
}
