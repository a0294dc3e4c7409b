// Package email delivers appointment notifications over SMTP.
package email

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"gopkg.in/gomail.v2"

	"github.com/jwalitptl/clinic-api/internal/config"
)

// Message is a single outgoing mail.
type Message struct {
	To       string
	Subject  string
	Body     string
	HTMLBody string
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

type SMTPSender struct {
	dialer dialer
	from   string
}

func NewSMTPSender(cfg config.SMTPConfig) *SMTPSender {
	return &SMTPSender{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)
	if msg.HTMLBody != "" {
		m.AddAlternative("text/html", msg.HTMLBody)
	}

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", msg.To, err)
	}
	return nil
}

// LogSender writes mails to the log instead of sending them. It is used when
// SMTP is disabled.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, msg Message) error {
	log.Ctx(ctx).Info().
		Str("to", msg.To).
		Str("subject", msg.Subject).
		Msg("email suppressed, smtp disabled")
	return nil
}

// NewSender picks the SMTP sender when enabled.
func NewSender(cfg config.SMTPConfig) Sender {
	if !cfg.Enabled {
		return LogSender{}
	}
	return NewSMTPSender(cfg)
}
