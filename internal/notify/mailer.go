// Package notify sends clinic notifications by email.
package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"clinic-backend-go/internal/config"
	"clinic-backend-go/internal/models"
)

type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// Mailer emails the clinic inbox about new contact form submissions.
type Mailer struct {
	dialer sender
	from   string
	inbox  string
	logger *zap.Logger
}

// NewMailer builds a Mailer from the SMTP settings. It returns nil when mail
// is not configured, which callers treat as "notifications off".
func NewMailer(cfg *config.Config, logger *zap.Logger) *Mailer {
	if !cfg.MailEnabled() {
		logger.Info("SMTP not configured, contact notifications disabled")
		return nil
	}
	d := gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword)
	return &Mailer{dialer: d, from: cfg.SMTPUsername, inbox: cfg.ClinicInbox, logger: logger}
}

// NotifyContactSubmission sends one email per submission. The visitor's
// address is set as Reply-To so staff can answer directly.
func (m *Mailer) NotifyContactSubmission(ctx context.Context, sub *models.ContactSubmission) error {
	if m == nil {
		return nil
	}
	if sub.Email == "" {
		return errors.New("submission has no email address")
	}
	msg := gomail.NewMessage()
	msg.SetHeader("From", msg.FormatAddress(m.from, "Clinic Website"))
	msg.SetHeader("To", m.inbox)
	msg.SetHeader("Reply-To", sub.Email)
	msg.SetHeader("Subject", fmt.Sprintf("New contact form message from %s", sub.Name))
	msg.SetBody("text/plain", contactPlainBody(sub))
	msg.AddAlternative("text/html", contactHTMLBody(sub))

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send contact notification: %w", err)
	}
	m.logger.Info("Contact notification sent", zap.String("submissionId", sub.ID))
	return nil
}

func contactPlainBody(sub *models.ContactSubmission) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Name: %s\nEmail: %s\n", sub.Name, sub.Email)
	if sub.Phone != "" {
		fmt.Fprintf(&b, "Phone: %s\n", sub.Phone)
	}
	fmt.Fprintf(&b, "Received: %s\n\n%s\n", sub.SubmittedAt.Format("Mon, 02 Jan 2006 15:04 MST"), sub.Message)
	return b.String()
}

func contactHTMLBody(sub *models.ContactSubmission) string {
	phone := ""
	if sub.Phone != "" {
		phone = fmt.Sprintf("<p><strong>Phone:</strong> %s</p>", html.EscapeString(sub.Phone))
	}
	return fmt.Sprintf(`<html><body style="font-family: sans-serif; color: #333333;">
<h2>New contact form message</h2>
<p><strong>Name:</strong> %s</p>
<p><strong>Email:</strong> %s</p>
%s
<p style="white-space: pre-wrap;">%s</p>
</body></html>`,
		html.EscapeString(sub.Name),
		html.EscapeString(sub.Email),
		phone,
		html.EscapeString(sub.Message),
	)
}
