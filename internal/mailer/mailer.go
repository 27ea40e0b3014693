package mailer

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"net/textproto"
	"strings"

	"github.com/jordan-wright/email"
)

// Message is a plain-text notification. From falls back to the mailer's
// configured sender.
type Message struct {
	From    string
	To      []string
	Subject string
	Body    string
}

// Validate reports whether m can be handed to a transport.
func (m Message) Validate() error {
	if len(m.To) == 0 {
		return fmt.Errorf("message has no recipients")
	}
	for _, to := range m.To {
		if strings.TrimSpace(to) == "" {
			return fmt.Errorf("message has an empty recipient")
		}
	}
	if strings.TrimSpace(m.Subject) == "" {
		return fmt.Errorf("message has no subject")
	}
	return nil
}

// SMTPConfig holds the relay settings for SMTPMailer.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPMailer sends messages through an SMTP relay.
type SMTPMailer struct {
	cfg  SMTPConfig
	auth smtp.Auth
	// send is swapped in tests.
	send func(e *email.Email, addr string, auth smtp.Auth) error
}

// NewSMTPMailer creates a mailer for the given relay. Auth is only used when
// a username is configured.
func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	return &SMTPMailer{
		cfg:  cfg,
		auth: auth,
		send: func(e *email.Email, addr string, auth smtp.Auth) error {
			return e.Send(addr, auth)
		},
	}
}

// Send delivers msg. net/smtp has no context support, so ctx is only checked
// before dialing.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	from := msg.From
	if from == "" {
		from = m.cfg.From
	}
	e := &email.Email{
		To:      msg.To,
		From:    from,
		Subject: msg.Subject,
		Text:    []byte(msg.Body),
		Headers: textproto.MIMEHeader{},
	}
	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
	if err := m.send(e, addr, m.auth); err != nil {
		return fmt.Errorf("cannot send email: %w", err)
	}
	slog.Info("[Mailer] Email sent", "to", msg.To, "subject", msg.Subject)
	return nil
}

// LogMailer writes messages to the log instead of sending them. Used for
// local runs.
type LogMailer struct{}

func (LogMailer) Send(_ context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	slog.Info("[Mailer] Email (log driver)", "to", msg.To, "subject", msg.Subject, "body", msg.Body)
	return nil
}
