package notify

import (
	"fmt"
	"net/smtp"

	"boxoffice/internal/config"
	"boxoffice/internal/logger"
)

// SMTPMailer sends mail through the configured SMTP relay.
type SMTPMailer struct {
	cfg config.EmailConfig
}

func NewSMTPMailer(cfg config.EmailConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg}
}

func (m *SMTPMailer) Send(to, subject, body string) error {
	if !m.cfg.SendEnabled {
		return nil
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		m.cfg.Sender, to, subject, body)

	addr := m.cfg.SMTPHost + ":" + m.cfg.SMTPPort
	auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.SMTPHost)
	return smtp.SendMail(addr, auth, m.cfg.Sender, []string{to}, []byte(msg))
}

// LogMailer is the development stand-in: it only logs what would be sent.
type LogMailer struct {
	Logger *logger.Logger
}

func (m *LogMailer) Send(to, subject, body string) error {
	m.Logger.LogMail(to, subject, "delivery disabled, message logged only")
	return nil
}
