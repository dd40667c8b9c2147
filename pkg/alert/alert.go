// Package alert delivers operational alerts, currently over SMTP. The main
// consumer is the LLM circuit breaker, which raises an alert when it opens.
package alert

import (
	"errors"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/soundprediction/chronotope/pkg/config"
)

// Alerter sends a single alert with a subject line and a message body.
type Alerter interface {
	Alert(subject, message string) error
}

// New builds an Alerter from configuration. Alerting that is disabled or has
// no recipients resolves to a no-op sink.
func New(cfg config.AlertConfig) Alerter {
	if !cfg.Enabled || len(cfg.To) == 0 {
		return NoOpAlerter{}
	}
	return &EmailAlerter{cfg: cfg, send: smtp.SendMail}
}

// EmailAlerter delivers alerts as plain-text email over SMTP.
type EmailAlerter struct {
	cfg config.AlertConfig

	// send is swapped out in tests
	send func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error
}

// NewEmailAlerter creates an SMTP alerter for the given settings.
func NewEmailAlerter(cfg config.AlertConfig) *EmailAlerter {
	return &EmailAlerter{cfg: cfg, send: smtp.SendMail}
}

// Alert sends one email to every configured recipient.
func (a *EmailAlerter) Alert(subject, message string) error {
	if len(a.cfg.To) == 0 {
		return errors.New("no alert recipients configured")
	}

	var auth smtp.Auth
	if a.cfg.Username != "" {
		auth = smtp.PlainAuth("", a.cfg.Username, a.cfg.Password, a.cfg.SMTPHost)
	}

	msg := buildMessage(a.cfg.From, a.cfg.To, subject, message)
	addr := fmt.Sprintf("%s:%d", a.cfg.SMTPHost, a.cfg.SMTPPort)
	if err := a.send(addr, auth, a.cfg.From, a.cfg.To, msg); err != nil {
		return fmt.Errorf("sending alert email: %w", err)
	}
	return nil
}

func buildMessage(from string, to []string, subject, body string) []byte {
	var sb strings.Builder
	fmt.Fprintf(&sb, "From: %s\r\n", from)
	fmt.Fprintf(&sb, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&sb, "Subject: %s\r\n", subject)
	sb.WriteString("\r\n")
	sb.WriteString(body)
	sb.WriteString("\r\n")
	return []byte(sb.String())
}

// NoOpAlerter swallows alerts. Used whenever alerting is not configured.
type NoOpAlerter struct{}

// Alert discards the alert.
func (NoOpAlerter) Alert(subject, message string) error { return nil }
