package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"acessonucleo-hub/internal/authn"
	"acessonucleo-hub/internal/domain/access"
	"acessonucleo-hub/internal/domain/subscribers"
	"acessonucleo-hub/internal/infra/events"
	"acessonucleo-hub/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockStore struct{ mock.Mock }

func (m *mockStore) FindByUserID(ctx context.Context, userID string) (*subscribers.Subscriber, error) {
	args := m.Called(ctx, userID)
	if v := args.Get(0); v != nil {
		return v.(*subscribers.Subscriber), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStore) SuspendIfActive(ctx context.Context, id string, asOf time.Time) (bool, error) {
	args := m.Called(ctx, id, asOf)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) TouchLastLogin(ctx context.Context, userID string, at time.Time) error {
	return m.Called(ctx, userID, at).Error(0)
}

func (m *mockStore) ApproveIfPending(ctx context.Context, userID string) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

type mockAuditor struct{ mock.Mock }

func (m *mockAuditor) Record(ctx context.Context, email, action string) error {
	return m.Called(ctx, email, action).Error(0)
}

type mockPublisher struct{ mock.Mock }

func (m *mockPublisher) Publish(ctx context.Context, key string, msg events.Message) error {
	return m.Called(ctx, key, msg).Error(0)
}

func (m *mockPublisher) Close() {}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

var (
	now       = time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)
	principal = &authn.Principal{UserID: "u-1", Email: "ana@example.com"}
)

func member(status subscribers.Status, expiresAt *time.Time) *subscribers.Subscriber {
	uid := "u-1"
	return &subscribers.Subscriber{ID: "s-1", UserID: &uid, Email: "ana@example.com", Role: subscribers.RoleSubscriber, Status: status, ExpiresAt: expiresAt}
}

func newGate(store Store, audit Auditor, pub events.Publisher, opts Options) *Gate {
	g := NewGate(store, audit, pub, opts, discard())
	g.now = func() time.Time { return now }
	return g
}

func TestEvaluateAllowsActiveMember(t *testing.T) {
	store := new(mockStore)
	store.On("FindByUserID", mock.Anything, "u-1").Return(member(subscribers.StatusActive, nil), nil)

	res, sub := newGate(store, new(mockAuditor), nil, Options{}).Evaluate(context.Background(), principal, access.ActiveMember)
	assert.Equal(t, access.Allow, res.Decision)
	require.NotNil(t, sub)
	store.AssertNotCalled(t, "SuspendIfActive", mock.Anything, mock.Anything, mock.Anything)
}

func TestEvaluateAutoSuspendsExpiredMember(t *testing.T) {
	expired := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	store := new(mockStore)
	audit := new(mockAuditor)
	pub := new(mockPublisher)
	store.On("FindByUserID", mock.Anything, "u-1").Return(member(subscribers.StatusActive, &expired), nil)
	store.On("SuspendIfActive", mock.Anything, "s-1", now).Return(true, nil).Once()
	audit.On("Record", mock.Anything, "ana@example.com", "Assinatura expirada - acesso suspenso automaticamente").Return(nil).Once()
	pub.On("Publish", mock.Anything, events.SubscriberSuspended, mock.Anything).Return(nil).Once()

	g := newGate(store, audit, pub, Options{})
	res, _ := g.Evaluate(context.Background(), principal, access.ActiveMember)
	g.Wait()

	assert.Equal(t, access.RedirectBlocked, res.Decision)
	assert.Equal(t, access.PathBlocked, res.Redirect)
	store.AssertExpectations(t)
	audit.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestAutoSuspendAlreadyAppliedSkipsAudit(t *testing.T) {
	expired := now.Add(-time.Hour)
	store := new(mockStore)
	audit := new(mockAuditor)
	store.On("FindByUserID", mock.Anything, "u-1").Return(member(subscribers.StatusActive, &expired), nil)
	store.On("SuspendIfActive", mock.Anything, "s-1", now).Return(false, nil)

	g := newGate(store, audit, nil, Options{})
	g.Evaluate(context.Background(), principal, access.ActiveMember)
	g.Evaluate(context.Background(), principal, access.ActiveMember)
	g.Wait()

	audit.AssertNotCalled(t, "Record", mock.Anything, mock.Anything, mock.Anything)
}

func TestAutoSuspendFailureStillBlocks(t *testing.T) {
	expired := now.Add(-time.Hour)
	store := new(mockStore)
	store.On("FindByUserID", mock.Anything, "u-1").Return(member(subscribers.StatusActive, &expired), nil)
	store.On("SuspendIfActive", mock.Anything, "s-1", now).Return(false, errors.New("db down"))

	g := newGate(store, new(mockAuditor), nil, Options{})
	res, _ := g.Evaluate(context.Background(), principal, access.ActiveMember)
	g.Wait()
	assert.Equal(t, access.RedirectBlocked, res.Decision)
}

func TestEvaluateNotProvisioned(t *testing.T) {
	store := new(mockStore)
	store.On("FindByUserID", mock.Anything, "u-1").Return(nil, repository.ErrNotFound)

	res, sub := newGate(store, new(mockAuditor), nil, Options{}).Evaluate(context.Background(), principal, access.ActiveMember)
	assert.Equal(t, access.Unauthenticated, res.Decision)
	assert.Nil(t, sub)
}

func TestEvaluateStorageFailureNeverAllows(t *testing.T) {
	store := new(mockStore)
	store.On("FindByUserID", mock.Anything, "u-1").Return(nil, errors.New("timeout"))

	res, _ := newGate(store, new(mockAuditor), nil, Options{}).Evaluate(context.Background(), principal, access.AnyAuthenticated)
	assert.Equal(t, access.ResolutionFailed, res.Decision)
	assert.False(t, res.Allowed())
}

func TestEvaluateAnonymous(t *testing.T) {
	res, _ := newGate(new(mockStore), new(mockAuditor), nil, Options{}).Evaluate(context.Background(), nil, access.AnyAuthenticated)
	assert.Equal(t, access.Unauthenticated, res.Decision)
}

func TestLanding(t *testing.T) {
	store := new(mockStore)
	store.On("FindByUserID", mock.Anything, "u-1").Return(member(subscribers.StatusActive, nil), nil)

	res, _ := newGate(store, new(mockAuditor), nil, Options{}).Landing(context.Background(), principal)
	assert.Equal(t, access.PathMemberArea, res.Redirect)
}

func TestRunHandlesSignIn(t *testing.T) {
	store := new(mockStore)
	audit := new(mockAuditor)
	store.On("TouchLastLogin", mock.Anything, "u-1", now).Return(nil).Once()
	store.On("ApproveIfPending", mock.Anything, "u-1").Return(true, nil).Once()
	audit.On("Record", mock.Anything, "ana@example.com", "Login realizado").Return(nil).Once()
	audit.On("Record", mock.Anything, "ana@example.com", "Acesso aprovado automaticamente no login").Return(nil).Once()

	bus := NewBus(discard())
	ch := bus.Subscribe(4)
	g := newGate(store, audit, nil, Options{AutoApprove: true})

	done := make(chan struct{})
	go func() {
		g.Run(context.Background(), ch)
		close(done)
	}()

	bus.Publish(Event{Kind: SignedIn, Principal: *principal, At: now})
	bus.Publish(Event{Kind: SignedOut, Principal: *principal, At: now})
	bus.Close()
	<-done

	store.AssertExpectations(t)
	audit.AssertExpectations(t)
}

func TestRunWithoutAutoApprove(t *testing.T) {
	store := new(mockStore)
	audit := new(mockAuditor)
	store.On("TouchLastLogin", mock.Anything, "u-1", now).Return(nil)
	audit.On("Record", mock.Anything, mock.Anything, "Login realizado").Return(nil)

	bus := NewBus(discard())
	ch := bus.Subscribe(1)
	bus.Publish(Event{Kind: SignedIn, Principal: *principal, At: now})
	bus.Close()

	newGate(store, audit, nil, Options{}).Run(context.Background(), ch)
	store.AssertNotCalled(t, "ApproveIfPending", mock.Anything, mock.Anything)
}

func TestBusDropsWhenFull(t *testing.T) {
	bus := NewBus(discard())
	ch := bus.Subscribe(1)

	bus.Publish(Event{Kind: SignedIn})
	bus.Publish(Event{Kind: SignedOut})

	first := <-ch
	assert.Equal(t, SignedIn, first.Kind)
	select {
	case ev := <-ch:
		t.Fatalf("unexpected event %v", ev.Kind)
	default:
	}

	bus.Close()
	_, ok := <-ch
	assert.False(t, ok)
	bus.Publish(Event{Kind: SignedIn})
}
