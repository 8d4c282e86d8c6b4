package credential

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"acessonucleo-hub/internal/domain/credentials"
	"acessonucleo-hub/internal/infra/events"
	"acessonucleo-hub/internal/lib/sl"
	"acessonucleo-hub/internal/repository"
)

const cacheKey = "credencial:adspower:atual"

var (
	ErrNotConfigured = errors.New("shared credential not configured")
	ErrInvalidInput  = errors.New("email_login and senha_atual are required")
)

type Store interface {
	Current(ctx context.Context) (*credentials.SharedCredential, error)
	Save(ctx context.Context, loginEmail, password string, at time.Time) (*credentials.SharedCredential, error)
}

type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	SetIfAbsent(ctx context.Context, key string, value any, expiration time.Duration) (bool, error)
	Invalidate(ctx context.Context, key string) error
}

// View is what a member sees: the credential plus whether it changed since the
// client last revealed it.
type View struct {
	credentials.SharedCredential
	Stale bool `json:"stale"`
}

type Service struct {
	store     Store
	cache     Cache
	ttl       time.Duration
	publisher events.Publisher
	log       *slog.Logger
}

func NewService(store Store, cache Cache, ttl time.Duration, publisher events.Publisher, log *slog.Logger) *Service {
	return &Service{store: store, cache: cache, ttl: ttl, publisher: publisher, log: log}
}

// Current serves from cache and falls back to storage. Cache failures only
// degrade to a storage read.
func (s *Service) Current(ctx context.Context) (*credentials.SharedCredential, error) {
	const op = "credential.Service.Current"

	var cached credentials.SharedCredential
	found, err := s.cache.Get(ctx, cacheKey, &cached)
	if err != nil {
		s.log.Warn("credential cache read failed", sl.Err(err))
	}
	if found {
		return &cached, nil
	}

	cred, err := s.store.Current(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotConfigured
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	// an Update that ran while storage was read has already cached a newer copy
	if _, err := s.cache.SetIfAbsent(ctx, cacheKey, cred, s.ttl); err != nil {
		s.log.Warn("credential cache write failed", sl.Err(err))
	}
	return cred, nil
}

func (s *Service) View(ctx context.Context, revealedAt *time.Time) (*View, error) {
	cred, err := s.Current(ctx)
	if err != nil {
		return nil, err
	}
	return &View{SharedCredential: *cred, Stale: credentials.IsStale(cred.LastUpdated, revealedAt)}, nil
}

// Update overwrites the credential (last writer wins) and writes it through to
// the cache, dropping the cached copy when that write fails.
func (s *Service) Update(ctx context.Context, loginEmail, password string, now time.Time) (*credentials.SharedCredential, error) {
	const op = "credential.Service.Update"

	loginEmail = strings.TrimSpace(loginEmail)
	if loginEmail == "" || password == "" {
		return nil, ErrInvalidInput
	}

	cred, err := s.store.Save(ctx, loginEmail, password, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.cache.Set(ctx, cacheKey, cred, s.ttl); err != nil {
		s.log.Warn("credential cache write failed", sl.Err(err))
		if err := s.cache.Invalidate(ctx, cacheKey); err != nil {
			s.log.Error("credential cache invalidation failed", sl.Err(err))
		}
	}
	if err := s.publisher.Publish(ctx, events.CredentialRotated, events.Message{Email: loginEmail, OccurredAt: now}); err != nil {
		s.log.Warn("credential event not published", sl.Err(err))
	}
	return cred, nil
}
