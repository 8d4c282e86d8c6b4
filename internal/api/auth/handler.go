package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"
	"unicode"
	"unicode/utf8"

	"acessonucleo-hub/internal/authn"
	"acessonucleo-hub/internal/domain/access"
	"acessonucleo-hub/internal/domain/identity"
	"acessonucleo-hub/internal/domain/subscribers"
	"acessonucleo-hub/internal/infra/mail"
	"acessonucleo-hub/internal/lib/sl"
	"acessonucleo-hub/internal/repository"
	"acessonucleo-hub/internal/session"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

type Identities interface {
	FindByID(ctx context.Context, id string) (*identity.Identity, error)
	FindByEmail(ctx context.Context, email string) (*identity.Identity, error)
	FindByGoogleSub(ctx context.Context, sub string) (*identity.Identity, error)
	LinkGoogle(ctx context.Context, id, sub string) error
	Provision(ctx context.Context, ident *identity.Identity, name string, role subscribers.Role) (*subscribers.Subscriber, error)
	UpdatePassword(ctx context.Context, id, hash string) error
	CreateResetToken(ctx context.Context, identityID, tokenHash string, expiresAt time.Time) error
	ConsumeResetToken(ctx context.Context, tokenHash string, now time.Time) (string, error)
}

type Lander interface {
	Landing(ctx context.Context, p *authn.Principal) (access.Result, *subscribers.Subscriber)
}

type EventPublisher interface {
	Publish(ev session.Event)
}

type Handler struct {
	identities Identities
	issuer     *authn.Issuer
	lander     Lander
	events     EventPublisher
	adminEmail string
	log        *slog.Logger

	// password reset
	mailer    mail.Mailer
	templates *mail.Templates
	appURL    string

	google *Google
	now    func() time.Time
}

type Options struct {
	AdminEmail string
	Mailer     mail.Mailer
	Templates  *mail.Templates
	AppURL     string
	Google     *Google
}

func NewHandler(identities Identities, issuer *authn.Issuer, lander Lander, events EventPublisher, opts Options, log *slog.Logger) *Handler {
	return &Handler{
		identities: identities,
		issuer:     issuer,
		lander:     lander,
		events:     events,
		adminEmail: opts.AdminEmail,
		mailer:     opts.Mailer,
		templates:  opts.Templates,
		appURL:     opts.AppURL,
		google:     opts.Google,
		log:        log,
		now:        time.Now,
	}
}

// bcrypt rejects longer inputs; multi-byte runes count per byte.
const maxPasswordBytes = 72

func isPasswordStrong(password string) bool {
	if utf8.RuneCountInString(password) < 8 || len(password) > maxPasswordBytes {
		return false
	}
	var hasUpper, hasLower, hasDigit bool
	for _, c := range password {
		switch {
		case unicode.IsUpper(c):
			hasUpper = true
		case unicode.IsLower(c):
			hasLower = true
		case unicode.IsDigit(c):
			hasDigit = true
		}
	}
	return hasUpper && hasLower && hasDigit
}

const weakPassword = "A senha deve ter no mínimo 8 caracteres e no máximo 72 bytes, com letra maiúscula, minúscula e número"

// POST /api/register
func (h *Handler) Register(c *gin.Context) {
	var input struct {
		Name     string `json:"nome" binding:"required,min=2,max=100"`
		Email    string `json:"email" binding:"required,email,max=255"`
		Password string `json:"senha" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !isPasswordStrong(input.Password) {
		c.JSON(http.StatusBadRequest, gin.H{"error": weakPassword})
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
		return
	}
	hashed := string(hashedPassword)

	email := subscribers.NormalizeEmail(input.Email)
	ident := &identity.Identity{
		Email:        email,
		PasswordHash: &hashed,
		AuthProvider: identity.ProviderLocal,
	}
	sub, err := h.identities.Provision(c.Request.Context(), ident, input.Name, subscribers.RoleFor(email, h.adminEmail))
	if errors.Is(err, repository.ErrConflict) {
		c.JSON(http.StatusConflict, gin.H{"error": "Email já cadastrado"})
		return
	}
	if err != nil {
		h.log.Error("registration failed", slog.String("email", email), sl.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Não foi possível concluir o cadastro"})
		return
	}

	h.log.Info("subscriber registered", slog.String("email", email), slog.String("role", string(sub.Role)))
	c.JSON(http.StatusCreated, gin.H{
		"message":  "Cadastro realizado. Aguarde a aprovação do administrador.",
		"status":   sub.Status,
		"redirect": access.Landing(h.now(), sub).Redirect,
	})
}

// POST /api/login
func (h *Handler) Login(c *gin.Context) {
	var input struct {
		Email    string `json:"email" binding:"required,email,max=255"`
		Password string `json:"senha" binding:"required,max=128"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ident, err := h.identities.FindByEmail(c.Request.Context(), input.Email)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Credenciais inválidas"})
		return
	}
	if err != nil {
		h.log.Error("login lookup failed", sl.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Não foi possível entrar agora"})
		return
	}

	if ident.PasswordHash == nil || *ident.PasswordHash == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Esta conta usa login com Google"})
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*ident.PasswordHash), []byte(input.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Credenciais inválidas"})
		return
	}

	token, redirect, err := h.signIn(c.Request.Context(), ident)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not create token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "redirect": redirect})
}

// signIn issues the session token, announces the login and resolves where the
// client should land.
func (h *Handler) signIn(ctx context.Context, ident *identity.Identity) (string, string, error) {
	token, err := h.issuer.Issue(ident.ID, ident.Email)
	if err != nil {
		h.log.Error("failed to issue token", sl.Err(err))
		return "", "", err
	}

	p := authn.Principal{UserID: ident.ID, Email: ident.Email}
	h.events.Publish(session.Event{Kind: session.SignedIn, Principal: p, At: h.now().UTC()})

	res, _ := h.lander.Landing(ctx, &p)
	return token, res.Redirect, nil
}
