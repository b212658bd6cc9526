package notify

import (
	"fmt"
	"net/smtp"
	"os"
	"strconv"

	"github.com/jordan-wright/email"
)

// Mailer wraps SMTP configuration for sending plain-text alerts.
type Mailer struct {
	host     string
	port     int
	user     string
	password string
	addr     string
}

// NewMailerFromEnv builds a Mailer from SMTP_* environment variables.
// Returns nil when SMTP_HOST is unset, which disables mail entirely.
func NewMailerFromEnv() *Mailer {
	host := os.Getenv("SMTP_HOST")
	if host == "" {
		return nil
	}

	port := 587
	if raw := os.Getenv("SMTP_PORT"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			port = parsed
		}
	}

	return &Mailer{
		host:     host,
		port:     port,
		user:     os.Getenv("SMTP_USER"),
		password: os.Getenv("SMTP_PASSWORD"),
		addr:     fmt.Sprintf("%s:%d", host, port),
	}
}

// Send delivers a plain-text message to the given recipients.
func (m *Mailer) Send(to []string, subject, body string) error {
	if len(to) == 0 {
		return nil
	}

	e := email.NewEmail()
	e.From = m.user
	e.To = to
	e.Subject = subject
	e.Text = []byte(body)

	auth := smtp.PlainAuth("", m.user, m.password, m.host)
	if err := e.Send(m.addr, auth); err != nil {
		return fmt.Errorf("mailer: send: %w", err)
	}
	return nil
}
