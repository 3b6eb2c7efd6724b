// Package notify emails analysis reports over SMTP.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	gomail "gopkg.in/mail.v2"

	"github.com/kalambet/prism/internal/report"
	"github.com/kalambet/prism/internal/schema"
)

var (
	// ErrDisabled is returned when SMTP is not configured.
	ErrDisabled         = errors.New("email is not configured")
	ErrInvalidRecipient = errors.New("invalid recipient")
)

// EmailConfig holds SMTP configuration for sending emails.
type EmailConfig struct {
	SMTPServer string
	SMTPPort   int
	SMTPUser   string
	SMTPPass   string
	FromEmail  string
}

// Enabled reports whether enough is configured to send mail.
func (c EmailConfig) Enabled() bool {
	return c.SMTPServer != "" && c.FromEmail != ""
}

// Message is a rendered email.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// dialer is the part of gomail.Dialer the sender uses.
type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// EmailSender delivers reports via SMTP.
type EmailSender struct {
	cfg    EmailConfig
	dialer dialer
	logger *slog.Logger
}

// NewEmailSender creates a sender with the given SMTP configuration.
func NewEmailSender(cfg EmailConfig) *EmailSender {
	d := gomail.NewDialer(cfg.SMTPServer, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass)
	d.Timeout = 10 * time.Second
	return &EmailSender{cfg: cfg, dialer: d, logger: slog.Default()}
}

func (s *EmailSender) Enabled() bool { return s.cfg.Enabled() }

// Render builds the email for item.
func Render(to string, item schema.HistoryItem) (Message, error) {
	body, err := report.HTML(item)
	if err != nil {
		return Message{}, err
	}
	subject := fmt.Sprintf("Prism report: %s", item.FileName)
	if item.Sentiment != "" && !schema.IsFallback(item.AnalysisResult) {
		subject += fmt.Sprintf(" [%s]", item.Sentiment)
	}
	return Message{
		To:      to,
		Subject: subject,
		Text:    report.Markdown(item),
		HTML:    body,
	}, nil
}

// SendReport renders item and mails it to the given address.
func (s *EmailSender) SendReport(ctx context.Context, to string, item schema.HistoryItem) error {
	if !s.Enabled() {
		return ErrDisabled
	}
	to = strings.TrimSpace(to)
	if to == "" || !strings.Contains(to, "@") {
		return fmt.Errorf("%w %q", ErrInvalidRecipient, to)
	}
	msg, err := Render(to, item)
	if err != nil {
		return err
	}
	return s.Send(ctx, msg)
}

// Send delivers an email with HTML body and plain text fallback.
func (s *EmailSender) Send(ctx context.Context, msg Message) error {
	if !s.Enabled() {
		return ErrDisabled
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.cfg.FromEmail)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)

	if msg.HTML != "" && msg.Text != "" {
		m.SetBody("text/plain", msg.Text)
		m.AddAlternative("text/html", msg.HTML)
	} else if msg.HTML != "" {
		m.SetBody("text/html", msg.HTML)
	} else {
		m.SetBody("text/plain", msg.Text)
	}

	if err := s.dialer.DialAndSend(m); err != nil {
		s.logger.Warn("email send failed", "to", msg.To, "subject", msg.Subject, "error", err)
		return fmt.Errorf("sending email: %w", err)
	}

	s.logger.Info("email sent", "to", msg.To, "subject", msg.Subject)
	return nil
}
