package authn

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"acessonucleo-hub/internal/domain/identity"

	"github.com/coreos/go-oidc/v3/oidc"
)

type IdentityFinder interface {
	FindByEmail(ctx context.Context, email string) (*identity.Identity, error)
}

// OIDCVerifier accepts ID tokens from an external issuer and maps their
// verified email onto a local identity.
type OIDCVerifier struct {
	verifier   *oidc.IDTokenVerifier
	identities IdentityFinder
}

func NewOIDCVerifier(ctx context.Context, issuer, clientID string, identities IdentityFinder) (*OIDCVerifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("authn.NewOIDCVerifier: %w", err)
	}
	return &OIDCVerifier{
		verifier:   provider.Verifier(&oidc.Config{ClientID: clientID}),
		identities: identities,
	}, nil
}

func (v *OIDCVerifier) Verify(ctx context.Context, raw string) (*Principal, error) {
	idToken, err := v.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}

	var c struct {
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
	}
	if err := idToken.Claims(&c); err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}
	if c.Email == "" || !c.EmailVerified {
		return nil, ErrInvalidToken
	}

	ident, err := v.identities.FindByEmail(ctx, strings.ToLower(c.Email))
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}
	return &Principal{UserID: ident.ID, Email: ident.Email}, nil
}
