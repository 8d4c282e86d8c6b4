package mail

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApprovalEscapesName(t *testing.T) {
	tmpl, err := ParseTemplates()
	require.NoError(t, err)

	html, err := tmpl.Approval("<script>alert(1)</script>", "")
	require.NoError(t, err)
	assert.NotContains(t, html, "<script>")
	assert.Contains(t, html, "&lt;script&gt;")
	assert.Contains(t, html, "seu acesso foi aprovado")
}

func TestResendSend(t *testing.T) {
	var got resendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer re_test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"email_123"}`)
	}))
	defer srv.Close()

	c := NewResendClient("re_test", "Equipe <onboarding@resend.dev>")
	c.endpoint = srv.URL

	receipt, err := c.Send(context.Background(), Message{To: []string{"ana@example.com"}, Subject: ApprovalSubject, HTML: "<p>oi</p>"})
	require.NoError(t, err)
	assert.Equal(t, "email_123", receipt.ID)
	assert.Equal(t, "Equipe <onboarding@resend.dev>", got.From)
	assert.Equal(t, []string{"ana@example.com"}, got.To)
}

func TestResendProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = io.WriteString(w, `{"message":"Invalid to field"}`)
	}))
	defer srv.Close()

	c := NewResendClient("re_test", "x@example.com")
	c.endpoint = srv.URL

	_, err := c.Send(context.Background(), Message{To: []string{"bad"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid to field")
}

func TestSMTPRetries(t *testing.T) {
	calls := 0
	m := NewSMTPMailer(SMTPConfig{Host: "smtp.example.com", Port: "587", From: "no-reply@example.com"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	m.sendMail = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		calls++
		assert.Equal(t, "smtp.example.com:587", addr)
		if calls < 2 {
			return errors.New("421 try again")
		}
		assert.Contains(t, string(msg), "Subject: "+ApprovalSubject)
		return nil
	}

	_, err := m.Send(context.Background(), Message{To: []string{"ana@example.com"}, Subject: ApprovalSubject, HTML: "<p>oi</p>"})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestDisabled(t *testing.T) {
	_, err := Disabled{}.Send(context.Background(), Message{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}
