package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"acessonucleo-hub/internal/authn"
	"acessonucleo-hub/internal/domain/access"
	"acessonucleo-hub/internal/domain/subscribers"
	"acessonucleo-hub/internal/infra/events"
	"acessonucleo-hub/internal/lib/sl"
	"acessonucleo-hub/internal/metrics"
	"acessonucleo-hub/internal/repository"
)

const (
	auditAutoSuspend = "Assinatura expirada - acesso suspenso automaticamente"
	auditLogin       = "Login realizado"
	auditAutoApprove = "Acesso aprovado automaticamente no login"
)

type Store interface {
	FindByUserID(ctx context.Context, userID string) (*subscribers.Subscriber, error)
	SuspendIfActive(ctx context.Context, id string, asOf time.Time) (bool, error)
	TouchLastLogin(ctx context.Context, userID string, at time.Time) error
	ApproveIfPending(ctx context.Context, userID string) (bool, error)
}

type Auditor interface {
	Record(ctx context.Context, email, action string) error
}

type Options struct {
	// AutoApprove activates a pending subscriber on their next login.
	AutoApprove bool
	// EffectTimeout bounds each detached side-effect write.
	EffectTimeout time.Duration
}

// Gate resolves the access state of the caller on every protected request and
// dispatches the resolver's side effects in the background.
type Gate struct {
	store     Store
	audit     Auditor
	publisher events.Publisher
	opts      Options
	log       *slog.Logger
	now       func() time.Time

	wg sync.WaitGroup
}

func NewGate(store Store, audit Auditor, publisher events.Publisher, opts Options, log *slog.Logger) *Gate {
	if opts.EffectTimeout <= 0 {
		opts.EffectTimeout = 10 * time.Second
	}
	if publisher == nil {
		publisher = events.Fallback{Log: log}
	}
	return &Gate{store: store, audit: audit, publisher: publisher, opts: opts, log: log, now: time.Now}
}

// Evaluate loads the caller's subscriber row and resolves req against it. A
// storage failure yields ResolutionFailed and never grants access.
func (g *Gate) Evaluate(ctx context.Context, p *authn.Principal, req access.Requirement) (access.Result, *subscribers.Subscriber) {
	if p == nil {
		return g.observe(access.Resolve(g.now(), nil, req)), nil
	}

	sub, err := g.store.FindByUserID(ctx, p.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		// identity without a provisioned row
		return g.observe(access.Result{Decision: access.Unauthenticated, Redirect: access.PathLogin}), nil
	}
	if err != nil {
		g.log.Error("failed to load subscriber", slog.String("user_id", p.UserID), sl.Err(err))
		return g.observe(access.Result{Decision: access.ResolutionFailed}), nil
	}

	res := access.Resolve(g.now(), sub, req)
	g.dispatch(res.Effects)
	return g.observe(res), sub
}

// Landing resolves where the caller should be sent after login.
func (g *Gate) Landing(ctx context.Context, p *authn.Principal) (access.Result, *subscribers.Subscriber) {
	res, sub := g.Evaluate(ctx, p, access.AnyAuthenticated)
	if sub == nil || res.Decision != access.Allow {
		return res, sub
	}
	return access.Landing(g.now(), sub), sub
}

func (g *Gate) observe(res access.Result) access.Result {
	metrics.AccessDecisions.WithLabelValues(string(res.Decision)).Inc()
	return res
}

func (g *Gate) dispatch(effects []access.Effect) {
	for _, eff := range effects {
		eff := eff
		g.wg.Add(1)
		go func() {
			defer g.wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), g.opts.EffectTimeout)
			defer cancel()
			g.apply(ctx, eff)
		}()
	}
}

func (g *Gate) apply(ctx context.Context, eff access.Effect) {
	if eff.Kind != access.EffectAutoSuspend {
		return
	}
	log := g.log.With(slog.String("subscriber_id", eff.SubscriberID), slog.String("email", eff.Email))

	changed, err := g.store.SuspendIfActive(ctx, eff.SubscriberID, eff.AsOf)
	if err != nil {
		log.Error("auto-suspend failed", sl.Err(err))
		return
	}
	if !changed {
		// already suspended, or renewed since the row was read
		return
	}
	metrics.AutoSuspensions.Inc()
	log.Info("subscriber suspended on expiration")

	if err := g.audit.Record(ctx, eff.Email, auditAutoSuspend); err != nil {
		log.Error("failed to write audit log", sl.Err(err))
	}
	msg := events.Message{Email: eff.Email, Status: string(subscribers.StatusSuspended), OccurredAt: g.now().UTC()}
	if err := g.publisher.Publish(ctx, events.SubscriberSuspended, msg); err != nil {
		log.Warn("suspension event not published", sl.Err(err))
	}
}

// Wait blocks until every dispatched effect has finished.
func (g *Gate) Wait() {
	g.wg.Wait()
}

// Run consumes auth-state events until ch is closed or ctx is done.
func (g *Gate) Run(ctx context.Context, ch <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			g.handle(ctx, ev)
		}
	}
}

func (g *Gate) handle(ctx context.Context, ev Event) {
	log := g.log.With(slog.String("user_id", ev.Principal.UserID), slog.String("email", ev.Principal.Email))

	switch ev.Kind {
	case SignedIn:
		if err := g.store.TouchLastLogin(ctx, ev.Principal.UserID, ev.At); err != nil {
			log.Error("failed to update last login", sl.Err(err))
		}
		if err := g.audit.Record(ctx, ev.Principal.Email, auditLogin); err != nil {
			log.Error("failed to write audit log", sl.Err(err))
		}
		if !g.opts.AutoApprove {
			return
		}
		approved, err := g.store.ApproveIfPending(ctx, ev.Principal.UserID)
		if err != nil {
			log.Error("auto-approve failed", sl.Err(err))
			return
		}
		if approved {
			log.Info("pending subscriber approved on login")
			if err := g.audit.Record(ctx, ev.Principal.Email, auditAutoApprove); err != nil {
				log.Error("failed to write audit log", sl.Err(err))
			}
		}
	case SignedOut:
		log.Info("signed out")
	}
}
