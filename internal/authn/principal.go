package authn

import (
	"context"
	"errors"
)

var ErrInvalidToken = errors.New("invalid or expired token")

// Principal is the authenticated caller. Authorization is never read from the
// token; the gate loads the subscriber row for every request.
type Principal struct {
	UserID string
	Email  string
}

type Verifier interface {
	Verify(ctx context.Context, raw string) (*Principal, error)
}

// Chain accepts a token if any verifier accepts it.
type Chain []Verifier

func (c Chain) Verify(ctx context.Context, raw string) (*Principal, error) {
	for _, v := range c {
		if v == nil {
			continue
		}
		if p, err := v.Verify(ctx, raw); err == nil {
			return p, nil
		}
	}
	return nil, ErrInvalidToken
}
