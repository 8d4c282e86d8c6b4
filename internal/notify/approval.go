package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"acessonucleo-hub/internal/infra/mail"
	"acessonucleo-hub/internal/lib/sl"
)

var ErrMissingRecipient = errors.New("email is required")

type Auditor interface {
	Record(ctx context.Context, email, action string) error
}

// Approval sends the "access approved" email and records it in the audit log.
type Approval struct {
	mailer   mail.Mailer
	tmpl     *mail.Templates
	audit    Auditor
	loginURL string
	log      *slog.Logger
}

func NewApproval(mailer mail.Mailer, tmpl *mail.Templates, audit Auditor, loginURL string, log *slog.Logger) *Approval {
	return &Approval{mailer: mailer, tmpl: tmpl, audit: audit, loginURL: loginURL, log: log}
}

func (a *Approval) SendApproval(ctx context.Context, email, name string) (mail.Receipt, error) {
	const op = "notify.Approval.SendApproval"

	email = strings.TrimSpace(email)
	if email == "" {
		return mail.Receipt{}, ErrMissingRecipient
	}

	html, err := a.tmpl.Approval(name, a.loginURL)
	if err != nil {
		return mail.Receipt{}, fmt.Errorf("%s: %w", op, err)
	}

	receipt, err := a.mailer.Send(ctx, mail.Message{To: []string{email}, Subject: mail.ApprovalSubject, HTML: html})
	if err != nil {
		return mail.Receipt{}, fmt.Errorf("%s: %w", op, err)
	}
	a.log.Info("approval email sent", slog.String("email", email), slog.String("message_id", receipt.ID))

	if err := a.audit.Record(ctx, email, "Notificação de aprovação enviada para "+name); err != nil {
		a.log.Error("failed to record approval notification", slog.String("email", email), sl.Err(err))
	}
	return receipt, nil
}
