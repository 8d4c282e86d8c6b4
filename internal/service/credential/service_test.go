package credential

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"acessonucleo-hub/internal/domain/credentials"
	"acessonucleo-hub/internal/infra/cache"
	"acessonucleo-hub/internal/infra/events"
	"acessonucleo-hub/internal/repository"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Current(ctx context.Context) (*credentials.SharedCredential, error) {
	args := m.Called(ctx)
	if v := args.Get(0); v != nil {
		return v.(*credentials.SharedCredential), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStore) Save(ctx context.Context, loginEmail, password string, at time.Time) (*credentials.SharedCredential, error) {
	args := m.Called(ctx, loginEmail, password, at)
	if v := args.Get(0); v != nil {
		return v.(*credentials.SharedCredential), args.Error(1)
	}
	return nil, args.Error(1)
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func redisCache(t *testing.T) *cache.Cache {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	c, err := cache.InitServer(context.Background(), cache.Options{Addr: mr.Addr()})
	require.NoError(t, err)
	return c
}

var updated = time.Date(2025, 5, 10, 12, 0, 0, 0, time.UTC)

func TestCurrentReadsThroughCache(t *testing.T) {
	store := new(mockStore)
	cred := &credentials.SharedCredential{ID: "c1", LoginEmail: "conta@adspower.com", Password: "s1", LastUpdated: updated}
	store.On("Current", mock.Anything).Return(cred, nil).Once()

	svc := NewService(store, redisCache(t), time.Minute, events.Fallback{}, discard())

	first, err := svc.Current(context.Background())
	require.NoError(t, err)
	second, err := svc.Current(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "s1", first.Password)
	assert.Equal(t, first.Password, second.Password)
	assert.True(t, updated.Equal(second.LastUpdated))
	store.AssertExpectations(t)
}

func TestUpdateRefreshesCache(t *testing.T) {
	store := new(mockStore)
	old := &credentials.SharedCredential{ID: "c1", LoginEmail: "conta@adspower.com", Password: "s1", LastUpdated: updated}
	rotated := &credentials.SharedCredential{ID: "c1", LoginEmail: "conta@adspower.com", Password: "s2", LastUpdated: updated.Add(time.Hour)}
	store.On("Current", mock.Anything).Return(old, nil).Once()
	store.On("Save", mock.Anything, "conta@adspower.com", "s2", updated.Add(time.Hour)).Return(rotated, nil).Once()

	svc := NewService(store, redisCache(t), time.Minute, events.Fallback{}, discard())
	ctx := context.Background()

	_, err := svc.Current(ctx)
	require.NoError(t, err)
	_, err = svc.Update(ctx, " conta@adspower.com ", "s2", updated.Add(time.Hour))
	require.NoError(t, err)

	view, err := svc.View(ctx, &updated)
	require.NoError(t, err)
	assert.Equal(t, "s2", view.Password)
	assert.True(t, view.Stale)
	store.AssertExpectations(t)
}

func TestSlowReadDoesNotOverwriteNewerCredential(t *testing.T) {
	store := new(mockStore)
	old := &credentials.SharedCredential{ID: "c1", LoginEmail: "conta@adspower.com", Password: "s1", LastUpdated: updated}
	rotated := &credentials.SharedCredential{ID: "c1", LoginEmail: "conta@adspower.com", Password: "s2", LastUpdated: updated.Add(time.Hour)}

	svc := NewService(store, redisCache(t), time.Minute, events.Fallback{}, discard())
	ctx := context.Background()

	// the admin rotates the credential while the member's read is in storage
	store.On("Current", mock.Anything).Run(func(mock.Arguments) {
		_, err := svc.Update(ctx, "conta@adspower.com", "s2", updated.Add(time.Hour))
		require.NoError(t, err)
	}).Return(old, nil).Once()
	store.On("Save", mock.Anything, "conta@adspower.com", "s2", updated.Add(time.Hour)).Return(rotated, nil).Once()

	first, err := svc.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, "s1", first.Password)

	view, err := svc.View(ctx, &updated)
	require.NoError(t, err)
	assert.Equal(t, "s2", view.Password)
	assert.True(t, view.Stale)
	store.AssertExpectations(t)
}

func TestViewWithoutRevealIsNotStale(t *testing.T) {
	store := new(mockStore)
	store.On("Current", mock.Anything).Return(&credentials.SharedCredential{LoginEmail: "x", Password: "y", LastUpdated: updated}, nil)

	svc := NewService(store, cache.Noop{}, time.Minute, events.Fallback{}, discard())
	view, err := svc.View(context.Background(), nil)
	require.NoError(t, err)
	assert.False(t, view.Stale)
}

func TestCurrentNotConfigured(t *testing.T) {
	store := new(mockStore)
	store.On("Current", mock.Anything).Return(nil, repository.ErrNotFound)

	svc := NewService(store, cache.Noop{}, time.Minute, events.Fallback{}, discard())
	_, err := svc.Current(context.Background())
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestUpdateValidation(t *testing.T) {
	svc := NewService(new(mockStore), cache.Noop{}, time.Minute, events.Fallback{}, discard())
	_, err := svc.Update(context.Background(), "", "s", updated)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestUpdateStoreError(t *testing.T) {
	store := new(mockStore)
	store.On("Save", mock.Anything, "a@b.com", "s", updated).Return(nil, errors.New("db down"))

	svc := NewService(store, cache.Noop{}, time.Minute, events.Fallback{}, discard())
	_, err := svc.Update(context.Background(), "a@b.com", "s", updated)
	assert.Error(t, err)
}
