package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"acessonucleo-hub/internal/domain/identity"
	"acessonucleo-hub/internal/domain/subscribers"
	"acessonucleo-hub/internal/lib/sl"
	"acessonucleo-hub/internal/repository"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/gin-gonic/gin"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	googleIssuer = "https://accounts.google.com"
	stateCookie  = "oauth_state"
)

type GoogleConfig struct {
	ClientID         string
	ClientSecret     string
	RedirectURL      string
	FrontendRedirect string
	SecureCookie     bool
}

// Google holds the OAuth client and the ID token verifier, both built once at startup.
type Google struct {
	oauth            *oauth2.Config
	verifier         *oidc.IDTokenVerifier
	frontendRedirect string
	secureCookie     bool
}

func NewGoogle(ctx context.Context, cfg GoogleConfig) (*Google, error) {
	provider, err := oidc.NewProvider(ctx, googleIssuer)
	if err != nil {
		return nil, fmt.Errorf("google oidc provider: %w", err)
	}
	return &Google{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		verifier:         provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
		frontendRedirect: cfg.FrontendRedirect,
		secureCookie:     cfg.SecureCookie,
	}, nil
}

func randomState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// GET /api/auth/google
func (h *Handler) GoogleStart(c *gin.Context) {
	if h.google == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Login com Google não configurado"})
		return
	}
	state, err := randomState()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate state"})
		return
	}

	c.SetCookie(stateCookie, state, 300, "/", "", h.google.secureCookie, true)
	c.Redirect(http.StatusFound, h.google.oauth.AuthCodeURL(state, oauth2.AccessTypeOnline))
}

type googleIDClaims struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	GivenName     string `json:"given_name"`
}

// GET /api/auth/google/callback
func (h *Handler) GoogleCallback(c *gin.Context) {
	if h.google == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Login com Google não configurado"})
		return
	}
	state := c.Query("state")
	code := c.Query("code")
	if code == "" || state == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing code/state"})
		return
	}
	cookieState, err := c.Cookie(stateCookie)
	if err != nil || cookieState != state {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid oauth state"})
		return
	}
	c.SetCookie(stateCookie, "", -1, "/", "", h.google.secureCookie, true)

	ctx := c.Request.Context()
	tok, err := h.google.oauth.Exchange(ctx, code)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "failed to exchange code"})
		return
	}
	rawIDToken, ok := tok.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing id_token"})
		return
	}
	idToken, err := h.google.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid id_token"})
		return
	}
	var claims googleIDClaims
	if err := idToken.Claims(&claims); err != nil || claims.Sub == "" || claims.Email == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "token missing required claims"})
		return
	}
	if !claims.EmailVerified {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Email do Google não verificado"})
		return
	}

	ident, err := h.findOrCreateGoogleIdentity(ctx, &claims)
	if err != nil {
		h.log.Error("google sign-in failed", slog.String("email", claims.Email), sl.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create user"})
		return
	}

	token, redirect, err := h.signIn(ctx, ident)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create token"})
		return
	}

	if h.google.frontendRedirect == "" {
		c.JSON(http.StatusOK, gin.H{"token": token, "redirect": redirect})
		return
	}
	q := url.Values{"token": {token}, "redirect": {redirect}}
	c.Redirect(http.StatusFound, h.google.frontendRedirect+"?"+q.Encode())
}

// findOrCreateGoogleIdentity matches by Google subject, then by email (linking
// the subject), and otherwise provisions a pending subscriber.
func (h *Handler) findOrCreateGoogleIdentity(ctx context.Context, gc *googleIDClaims) (*identity.Identity, error) {
	ident, err := h.identities.FindByGoogleSub(ctx, gc.Sub)
	if err == nil {
		return ident, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	ident, err = h.identities.FindByEmail(ctx, gc.Email)
	switch {
	case err == nil:
		if ident.GoogleSub == nil {
			if err := h.identities.LinkGoogle(ctx, ident.ID, gc.Sub); err != nil {
				return nil, err
			}
			sub := gc.Sub
			ident.GoogleSub = &sub
			ident.EmailConfirmed = true
		}
		return ident, nil
	case !errors.Is(err, repository.ErrNotFound):
		return nil, err
	}

	email := subscribers.NormalizeEmail(gc.Email)
	sub := gc.Sub
	ident = &identity.Identity{
		Email:          email,
		AuthProvider:   identity.ProviderGoogle,
		GoogleSub:      &sub,
		EmailConfirmed: true,
	}
	if _, err := h.identities.Provision(ctx, ident, firstNonEmpty(gc.GivenName, gc.Name, subscribers.LocalPart(email)), subscribers.RoleFor(email, h.adminEmail)); err != nil {
		return nil, err
	}
	return ident, nil
}

func firstNonEmpty(s ...string) string {
	for _, v := range s {
		if v != "" {
			return v
		}
	}
	return ""
}
