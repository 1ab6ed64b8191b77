package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

type EmailSender interface {
	Send(ctx context.Context, to, toName, subject, body string) error
}

// SMTPSender sends email via unauthenticated SMTP (Mailpit-compatible).
type SMTPSender struct {
	addr string
	from string
}

func NewSMTPSender(host string, port string, from string) *SMTPSender {
	host = strings.TrimSpace(host)
	port = strings.TrimSpace(port)
	from = strings.TrimSpace(from)
	if from == "" {
		from = "no-reply@slotcal.local"
	}
	return &SMTPSender{
		addr: fmt.Sprintf("%s:%s", host, port),
		from: from,
	}
}

// Send ignores ctx; net/smtp has no context support and the dispatcher bounds
// the whole call with its own timeout.
func (s *SMTPSender) Send(_ context.Context, to, _ string, subject, body string) error {
	msg := buildMessage(s.from, to, subject, body)
	return smtp.SendMail(s.addr, nil, s.from, []string{to}, []byte(msg))
}

func buildMessage(from, to, subject, body string) string {
	// Minimal RFC 5322 message; enough for Mailpit and most SMTP relays.
	return fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s\r\n",
		from,
		to,
		subject,
		strings.ReplaceAll(body, "\n", "\r\n"),
	)
}

type SendGridSender struct {
	client   *sendgrid.Client
	from     string
	fromName string
}

func NewSendGridSender(apiKey, from, fromName string) *SendGridSender {
	if strings.TrimSpace(fromName) == "" {
		fromName = "Slotcal"
	}
	return &SendGridSender{
		client:   sendgrid.NewSendClient(strings.TrimSpace(apiKey)),
		from:     strings.TrimSpace(from),
		fromName: fromName,
	}
}

func (s *SendGridSender) Send(ctx context.Context, to, toName, subject, body string) error {
	msg := mail.NewSingleEmail(mail.NewEmail(s.fromName, s.from), subject, mail.NewEmail(toName, to), body, "")
	resp, err := s.client.SendWithContext(ctx, msg)
	if err != nil {
		return fmt.Errorf("sendgrid: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid returned status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

// EmailChannel delivers reminders to the client's email address.
type EmailChannel struct {
	Sender EmailSender
}

func (c EmailChannel) Notify(ctx context.Context, r Reminder) error {
	to := strings.TrimSpace(r.ClientEmail)
	if to == "" {
		return ErrNoRecipient
	}
	return c.Sender.Send(ctx, to, r.ClientName, r.Subject(), r.Body())
}
