// Package email delivers rendered appointment notices by SMTP or SendGrid.
package email

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

type Message struct {
	To      string
	ToName  string
	Subject string
	Body    string
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
	ProviderID() string
}

// SMTPSender sends email via unauthenticated SMTP (Mailpit-compatible).
type SMTPSender struct {
	addr string
	from string
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPSender(host, port, from string) *SMTPSender {
	from = strings.TrimSpace(from)
	if from == "" {
		from = "no-reply@apptbook.local"
	}
	return &SMTPSender{
		addr: fmt.Sprintf("%s:%s", strings.TrimSpace(host), strings.TrimSpace(port)),
		from: from,
		send: smtp.SendMail,
	}
}

func (s *SMTPSender) ProviderID() string { return "smtp" }

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.send(s.addr, nil, s.from, []string{msg.To}, buildMessage(s.from, msg))
}

func buildMessage(from string, msg Message) []byte {
	to := msg.To
	if msg.ToName != "" {
		to = fmt.Sprintf("%q <%s>", msg.ToName, msg.To)
	}
	return []byte(fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s\r\n",
		from, to, msg.Subject, msg.Body,
	))
}

type SendGridConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
	// Host overrides the API host (tests).
	Host string
}

type SendGridSender struct {
	client    *sendgrid.Client
	fromEmail string
	fromName  string
	logger    *slog.Logger
}

func NewSendGridSender(cfg SendGridConfig, logger *slog.Logger) (*SendGridSender, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("sendgrid api key is required")
	}
	if cfg.FromEmail == "" {
		cfg.FromEmail = "no-reply@apptbook.local"
	}
	if cfg.FromName == "" {
		cfg.FromName = "Appointments"
	}
	client := sendgrid.NewSendClient(cfg.APIKey)
	if cfg.Host != "" {
		req := sendgrid.GetRequest(cfg.APIKey, "/v3/mail/send", cfg.Host)
		req.Method = "POST"
		client = &sendgrid.Client{Request: req}
	}
	return &SendGridSender{client: client, fromEmail: cfg.FromEmail, fromName: cfg.FromName, logger: logger}, nil
}

func (s *SendGridSender) ProviderID() string { return "sendgrid" }

func (s *SendGridSender) Send(ctx context.Context, msg Message) error {
	from := mail.NewEmail(s.fromName, s.fromEmail)
	to := mail.NewEmail(msg.ToName, msg.To)
	message := mail.NewSingleEmail(from, msg.Subject, to, msg.Body, "")

	resp, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode >= 400 {
		if s.logger != nil {
			s.logger.Warn("sendgrid rejected message", "status", resp.StatusCode, "body", resp.Body)
		}
		return fmt.Errorf("sendgrid returned status %d", resp.StatusCode)
	}
	return nil
}

type NoopSender struct{}

func (NoopSender) ProviderID() string { return "email-noop" }
func (NoopSender) Send(context.Context, Message) error { return nil }
