package mailer

import (
	"fmt"
	"log/slog"

	"gopkg.in/gomail.v2"

	"github.com/crjyouth/libris/internal/config"
)

// Mailer sends transactional mail.
type Mailer interface {
	SendPasswordReset(to, name, token string) error
}

type smtpMailer struct {
	dialer *gomail.Dialer
	from   string
}

// New creates an SMTP-backed mailer.
func New(cfg *config.SMTPConfig) Mailer {
	return &smtpMailer{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

func (m *smtpMailer) SendPasswordReset(to, name, token string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", "Password reset request")
	msg.SetBody("text/plain", fmt.Sprintf(
		"Hello %s,\n\nUse the token below to reset your password. It expires shortly.\n\n%s\n\nIf you did not request this, ignore this mail.\n",
		name, token,
	))

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("failed to send mail: %w", err)
	}

	slog.Info("password reset mail sent", "to", to)
	return nil
}
