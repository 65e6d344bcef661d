// Package notify dispatches submission notifications: a confirmation email to
// the applicant and a topic publish for downstream push/WhatsApp channels.
// Dispatch failures are logged, never propagated to the submission result.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"admissions-service/internal/common/logger"
	"admissions-service/internal/models"
)

// EmailSender is satisfied by the SES client.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// Publisher is satisfied by the SNS client.
type Publisher interface {
	Publish(ctx context.Context, message string) error
}

// Notifier fans a submission event out to the configured channels. Either
// channel may be nil when not configured.
type Notifier struct {
	email   EmailSender
	pub     Publisher
	logger  logger.Logger
	enabled bool
}

func New(email EmailSender, pub Publisher, log logger.Logger, enabled bool) *Notifier {
	return &Notifier{
		email:   email,
		pub:     pub,
		logger:  log.WithFields(map[string]interface{}{"component": "notify"}),
		enabled: enabled,
	}
}

// SubmissionReceived notifies the applicant that the application was created.
func (n *Notifier) SubmissionReceived(ctx context.Context, app *models.Application) {
	if !n.enabled {
		return
	}

	if n.email != nil {
		subject := "Your application has been received"
		body := fmt.Sprintf(
			"Hi,\n\nYour application (reference %s) was submitted on %s and is now being processed.\n\nThe admissions team",
			app.ID, app.SubmittedAt.Format(time.RFC1123),
		)
		if err := n.email.SendEmail(ctx, app.OwnerEmail, subject, body); err != nil {
			n.logger.Warn("confirmation email failed", map[string]interface{}{
				"applicationId": app.ID,
				"error":         err.Error(),
			})
		}
	}

	if n.pub != nil {
		msg, err := json.Marshal(map[string]interface{}{
			"type":          "application_submitted",
			"applicationId": app.ID,
			"ownerEmail":    app.OwnerEmail,
			"status":        app.Status,
			"submittedAt":   app.SubmittedAt.UTC().Format(time.RFC3339),
		})
		if err != nil {
			n.logger.Warn("notification payload marshal failed", map[string]interface{}{"error": err.Error()})
			return
		}
		if err := n.pub.Publish(ctx, string(msg)); err != nil {
			n.logger.Warn("notification publish failed", map[string]interface{}{
				"applicationId": app.ID,
				"error":         err.Error(),
			})
		}
	}
}
