package mail

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
	"time"

	"acessonucleo-hub/internal/lib/sl"
)

const maxRetries = 3

type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

type SMTPMailer struct {
	cfg SMTPConfig
	log *slog.Logger
	// replaced in tests
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPMailer(cfg SMTPConfig, log *slog.Logger) *SMTPMailer {
	return &SMTPMailer{cfg: cfg, log: log, sendMail: smtp.SendMail}
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) (Receipt, error) {
	headers := "From: " + m.cfg.From + "\r\n" +
		"To: " + strings.Join(msg.To, ", ") + "\r\n" +
		"Subject: " + msg.Subject + "\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: text/html; charset=\"UTF-8\"\r\n" +
		"\r\n"
	body := []byte(headers + msg.HTML + "\r\n")

	auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	addr := m.cfg.Host + ":" + m.cfg.Port

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		err := m.sendMail(addr, auth, m.cfg.From, msg.To, body)
		if err == nil {
			return Receipt{}, nil
		}
		lastErr = err
		m.log.Warn("smtp send failed", slog.Int("attempt", attempt), sl.Err(err))
		if attempt == maxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return Receipt{}, ctx.Err()
		case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
		}
	}
	return Receipt{}, fmt.Errorf("smtp: giving up after %d attempts: %w", maxRetries, lastErr)
}
