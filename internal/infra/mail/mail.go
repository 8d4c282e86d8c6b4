package mail

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

var ErrNotConfigured = errors.New("mail: no provider configured")

type Message struct {
	To      []string
	Subject string
	HTML    string
}

// Receipt carries the provider's message id when it returns one.
type Receipt struct {
	ID string `json:"id"`
}

type Mailer interface {
	Send(ctx context.Context, msg Message) (Receipt, error)
}

const ApprovalSubject = "Acesso aprovado 🎉"

type approvalData struct {
	Name     string
	LoginURL string
}

type Templates struct {
	t *template.Template
}

func ParseTemplates() (*Templates, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse email templates: %w", err)
	}
	return &Templates{t: tmpl}, nil
}

// Approval renders the approval body; name is HTML-escaped.
func (t *Templates) Approval(name, loginURL string) (string, error) {
	var body bytes.Buffer
	if err := t.t.ExecuteTemplate(&body, "approval.html", approvalData{Name: name, LoginURL: loginURL}); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}
	return body.String(), nil
}

// Disabled is wired when neither Resend nor SMTP is configured.
type Disabled struct{}

func (Disabled) Send(context.Context, Message) (Receipt, error) {
	return Receipt{}, ErrNotConfigured
}

const PasswordResetSubject = "Redefinição de senha"

type passwordResetData struct {
	ResetLink string
	ExpiresAt string
}

func (t *Templates) PasswordReset(resetLink, expiresAt string) (string, error) {
	var body bytes.Buffer
	if err := t.t.ExecuteTemplate(&body, "password_reset.html", passwordResetData{ResetLink: resetLink, ExpiresAt: expiresAt}); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}
	return body.String(), nil
}
