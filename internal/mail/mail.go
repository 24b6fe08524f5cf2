// Package mail sends plain-text email over SMTP.
package mail

import (
	"log"
	"net/smtp"
	"strings"

	"github.com/iliyamo/conference-cms/internal/config"
)

// Mailer delivers plain-text messages through the configured SMTP server.
// With no host configured it only logs what it would have sent, which keeps
// local development usable without a mail server.
type Mailer struct {
	cfg  config.SMTPConfig
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func New(cfg config.SMTPConfig) *Mailer {
	return &Mailer{cfg: cfg, send: smtp.SendMail}
}

// Send implements queue.MailSender.
func (m *Mailer) Send(to, subject, body string) error {
	if m.cfg.Host == "" {
		log.Printf("mail: smtp not configured; would send %q to %s", subject, to)
		return nil
	}

	var auth smtp.Auth
	if m.cfg.User != "" {
		auth = smtp.PlainAuth("", m.cfg.User, m.cfg.Pass, m.cfg.Host)
	}
	addr := m.cfg.Host + ":" + m.cfg.Port
	return m.send(addr, auth, m.cfg.From, []string{to}, buildMessage(m.cfg.From, to, subject, body))
}

func buildMessage(from, to, subject, body string) []byte {
	// header values must not carry CR/LF
	clean := strings.NewReplacer("\r", "", "\n", "")
	msg := "From: " + clean.Replace(from) + "\r\n" +
		"To: " + clean.Replace(to) + "\r\n" +
		"Subject: " + clean.Replace(subject) + "\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: text/plain; charset=\"utf-8\"\r\n\r\n" +
		body + "\r\n"
	return []byte(msg)
}
