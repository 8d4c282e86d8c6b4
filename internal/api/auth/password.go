package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"acessonucleo-hub/internal/app/http/middleware"
	"acessonucleo-hub/internal/infra/mail"
	"acessonucleo-hub/internal/lib/sl"
	"acessonucleo-hub/internal/repository"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

const resetTTL = time.Hour

func generateResetToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

const resetRequested = "Se o email estiver cadastrado, você receberá um link para redefinir a senha."

// POST /api/password/forgot
func (h *Handler) RequestPasswordReset(c *gin.Context) {
	var body struct {
		Email string `json:"email" binding:"required,email"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email inválido"})
		return
	}
	ctx := c.Request.Context()

	ident, err := h.identities.FindByEmail(ctx, body.Email)
	if err != nil {
		// don't reveal whether the email exists
		if !errors.Is(err, repository.ErrNotFound) {
			h.log.Error("password reset lookup failed", sl.Err(err))
		}
		c.JSON(http.StatusOK, gin.H{"message": resetRequested})
		return
	}

	token, err := generateResetToken()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}
	expiresAt := h.now().Add(resetTTL)
	if err := h.identities.CreateResetToken(ctx, ident.ID, hashToken(token), expiresAt); err != nil {
		h.log.Error("failed to store reset token", sl.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Não foi possível gerar o link"})
		return
	}

	if h.mailer != nil && h.templates != nil {
		link := h.appURL + "/redefinir-senha?token=" + token
		html, err := h.templates.PasswordReset(link, expiresAt.Format("02/01/2006 15:04"))
		if err == nil {
			_, err = h.mailer.Send(ctx, mail.Message{To: []string{ident.Email}, Subject: mail.PasswordResetSubject, HTML: html})
		}
		if err != nil {
			h.log.Error("failed to send reset email", slog.String("email", ident.Email), sl.Err(err))
		}
	}

	c.JSON(http.StatusOK, gin.H{"message": resetRequested})
}

// POST /api/password/reset
func (h *Handler) ResetPassword(c *gin.Context) {
	var body struct {
		Token       string `json:"token" binding:"required"`
		NewPassword string `json:"nova_senha" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if !isPasswordStrong(body.NewPassword) {
		c.JSON(http.StatusBadRequest, gin.H{"error": weakPassword})
		return
	}
	ctx := c.Request.Context()

	identityID, err := h.identities.ConsumeResetToken(ctx, hashToken(body.Token), h.now())
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid or expired token"})
		return
	}
	if err != nil {
		h.log.Error("failed to consume reset token", sl.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Não foi possível redefinir a senha"})
		return
	}

	if err := h.setPassword(c, identityID, body.NewPassword); err != nil {
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Senha redefinida com sucesso"})
}

// POST /api/password/change
func (h *Handler) ChangePassword(c *gin.Context) {
	p := middleware.PrincipalFrom(c)
	if p == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var body struct {
		OldPassword string `json:"senha" binding:"required"`
		NewPassword string `json:"nova_senha" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}
	if !isPasswordStrong(body.NewPassword) {
		c.JSON(http.StatusBadRequest, gin.H{"error": weakPassword})
		return
	}

	ident, err := h.identities.FindByID(c.Request.Context(), p.UserID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not found"})
		return
	}
	if ident.PasswordHash == nil || *ident.PasswordHash == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Esta conta não tem senha. Entre com Google ou redefina a senha."})
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*ident.PasswordHash), []byte(body.OldPassword)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Senha atual incorreta"})
		return
	}

	if err := h.setPassword(c, ident.ID, body.NewPassword); err != nil {
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Senha alterada com sucesso"})
}

// setPassword writes the error response itself when it fails.
func (h *Handler) setPassword(c *gin.Context, identityID, password string) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
		return err
	}
	if err := h.identities.UpdatePassword(c.Request.Context(), identityID, string(hashed)); err != nil {
		h.log.Error("failed to update password", slog.String("user_id", identityID), sl.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Não foi possível salvar a senha"})
		return err
	}
	return nil
}
