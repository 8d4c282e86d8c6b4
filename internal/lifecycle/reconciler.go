package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"acessonucleo-hub/internal/domain/identity"
	"acessonucleo-hub/internal/domain/plans"
	"acessonucleo-hub/internal/domain/subscribers"
	"acessonucleo-hub/internal/domain/webhooks"
	"acessonucleo-hub/internal/infra/events"
	"acessonucleo-hub/internal/infra/mail"
	"acessonucleo-hub/internal/lib/sl"
	"acessonucleo-hub/internal/repository"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type Identities interface {
	FindByEmail(ctx context.Context, email string) (*identity.Identity, error)
	Provision(ctx context.Context, ident *identity.Identity, name string, role subscribers.Role) (*subscribers.Subscriber, error)
}

type Subscribers interface {
	FindByUserID(ctx context.Context, userID string) (*subscribers.Subscriber, error)
	Activate(ctx context.Context, id, planLabel string, expiresAt time.Time) error
}

type Ledger interface {
	Begin(ctx context.Context, ev *webhooks.Event) (repository.Claim, error)
	Finish(ctx context.Context, id uint, procErr error) error
}

type Auditor interface {
	Record(ctx context.Context, email, action string) error
}

type ApprovalNotifier interface {
	SendApproval(ctx context.Context, email, name string) (mail.Receipt, error)
}

type Deps struct {
	Identities  Identities
	Subscribers Subscribers
	Ledger      Ledger
	Audit       Auditor
	Publisher   events.Publisher
	// optional
	Notifier   ApprovalNotifier
	AdminEmail string
}

// notifyTimeout bounds the background approval email, SMTP retries included.
const notifyTimeout = 2 * time.Minute

// Reconciler applies payment events to subscriber state.
type Reconciler struct {
	Deps
	log *slog.Logger
	now func() time.Time

	wg sync.WaitGroup
}

// followUp is the best-effort work run once the delivery is recorded.
type followUp struct {
	routingKey string
	notify     bool
	name       string
}

func NewReconciler(deps Deps, log *slog.Logger) *Reconciler {
	return &Reconciler{Deps: deps, log: log, now: time.Now}
}

// Reconcile validates ev, skips deliveries the ledger already saw, and runs the
// purchase or renewal branch.
func (r *Reconciler) Reconcile(ctx context.Context, ev Event) (*Outcome, error) {
	const op = "lifecycle.Reconcile"

	plan, err := ev.normalize()
	if err != nil {
		return nil, err
	}
	log := r.log.With(
		slog.String("op", op),
		slog.String("source", ev.Source),
		slog.String("kind", string(ev.Kind)),
		slog.String("email", ev.Email),
	)

	var entry *webhooks.Event
	if ev.DeliveryKey != "" && r.Ledger != nil {
		entry = &webhooks.Event{
			Provider:    strings.ToLower(ev.Source),
			DeliveryKey: ev.DeliveryKey,
			EventKind:   string(ev.Kind),
			Email:       ev.Email,
			PayloadJSON: string(ev.Payload),
		}
		claim, err := r.Ledger.Begin(ctx, entry)
		if err != nil {
			return nil, fmt.Errorf("%s: ledger: %w", op, err)
		}
		switch claim {
		case repository.AlreadyProcessed:
			log.Info("duplicate delivery acknowledged", slog.String("delivery_key", ev.DeliveryKey))
			return &Outcome{Action: ActionDuplicate, Email: ev.Email, Plan: plan}, nil
		case repository.InFlight:
			return nil, ErrInFlight
		}
	}

	var (
		out  *Outcome
		next followUp
	)
	if ev.Kind == KindRenewal {
		out, next, err = r.renew(ctx, log, ev, plan)
	} else {
		out, next, err = r.purchase(ctx, log, ev, plan)
	}

	// the writes above are committed even if the provider hung up
	detached := context.WithoutCancel(ctx)
	if entry != nil {
		if ferr := r.Ledger.Finish(detached, entry.ID, err); ferr != nil {
			log.Error("failed to update webhook ledger", sl.Err(ferr))
		}
	}
	if err != nil {
		return nil, err
	}

	r.publish(detached, log, next.routingKey, ev, out)
	if next.notify {
		r.notify(detached, log, ev.Email, next.name)
	}
	return out, nil
}

// Wait blocks until every background approval email has finished.
func (r *Reconciler) Wait() {
	r.wg.Wait()
}

func (r *Reconciler) purchase(ctx context.Context, log *slog.Logger, ev Event, plan plans.Plan) (*Outcome, followUp, error) {
	const op = "lifecycle.purchase"
	expiresAt, err := plans.ComputeExpiration(plan, r.now().UTC())
	if err != nil {
		return nil, followUp{}, fmt.Errorf("%s: %w", op, err)
	}

	ident, err := r.Identities.FindByEmail(ctx, ev.Email)
	if errors.Is(err, repository.ErrNotFound) {
		return r.provision(ctx, log, ev, plan, expiresAt)
	}
	if err != nil {
		return nil, followUp{}, fmt.Errorf("%s: %w", op, err)
	}

	sub, err := r.subscriberOf(ctx, ident)
	if err != nil {
		return nil, followUp{}, fmt.Errorf("%s: %w", op, err)
	}
	wasPending := sub.Status == subscribers.StatusPending

	if err := r.Subscribers.Activate(ctx, sub.ID, plan.Label(), expiresAt); err != nil {
		return nil, followUp{}, fmt.Errorf("%s: activate: %w", op, err)
	}
	log.Info("subscription activated", slog.String("plan", plan.Label()))

	r.audit(ctx, log, ev.Email, fmt.Sprintf("Assinatura ativada via %s - Plano: %s", ev.Source, plan.Label()))

	out := &Outcome{Action: ActionActivated, Email: ev.Email, Plan: plan, ExpiresAt: expiresAt}
	return out, followUp{routingKey: events.SubscriberActivated, notify: wasPending, name: sub.Name}, nil
}

func (r *Reconciler) provision(ctx context.Context, log *slog.Logger, ev Event, plan plans.Plan, expiresAt time.Time) (*Outcome, followUp, error) {
	const op = "lifecycle.provision"

	// nobody knows this password; the buyer sets one through the password
	// reset flow or signs in with Google
	hash, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), bcrypt.DefaultCost)
	if err != nil {
		return nil, followUp{}, fmt.Errorf("%s: %w", op, err)
	}
	hashed := string(hash)

	ident := &identity.Identity{
		Email:          ev.Email,
		PasswordHash:   &hashed,
		AuthProvider:   identity.ProviderWebhook,
		EmailConfirmed: true,
	}
	sub, err := r.Identities.Provision(ctx, ident, ev.Name, subscribers.RoleFor(ev.Email, r.AdminEmail))
	if err != nil {
		return nil, followUp{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := r.Subscribers.Activate(ctx, sub.ID, plan.Label(), expiresAt); err != nil {
		log.Error("identity created but activation failed", slog.String("user_id", ident.ID), sl.Err(err))
		return nil, followUp{}, fmt.Errorf("%w: %v", ErrPartialProvisioning, err)
	}
	log.Info("new subscriber created and activated", slog.String("plan", plan.Label()))

	r.audit(ctx, log, ev.Email, fmt.Sprintf("Novo usuário criado e ativado via %s - Plano: %s", ev.Source, plan.Label()))

	out := &Outcome{Action: ActionProvisioned, Email: ev.Email, Plan: plan, ExpiresAt: expiresAt}
	return out, followUp{routingKey: events.SubscriberCreated, notify: true, name: ev.Name}, nil
}

func (r *Reconciler) renew(ctx context.Context, log *slog.Logger, ev Event, plan plans.Plan) (*Outcome, followUp, error) {
	const op = "lifecycle.renew"

	ident, err := r.Identities.FindByEmail(ctx, ev.Email)
	if errors.Is(err, repository.ErrNotFound) {
		log.Warn("renewal for unknown user")
		return nil, followUp{}, ErrUserNotFound
	}
	if err != nil {
		return nil, followUp{}, fmt.Errorf("%s: %w", op, err)
	}

	sub, err := r.subscriberOf(ctx, ident)
	if err != nil {
		return nil, followUp{}, fmt.Errorf("%s: %w", op, err)
	}
	wasPending := sub.Status == subscribers.StatusPending

	expiresAt, err := plans.Renew(plan, sub.ExpiresAt, r.now().UTC())
	if err != nil {
		return nil, followUp{}, fmt.Errorf("%s: %w", op, err)
	}
	if err := r.Subscribers.Activate(ctx, sub.ID, plan.Label(), expiresAt); err != nil {
		return nil, followUp{}, fmt.Errorf("%s: activate: %w", op, err)
	}
	log.Info("subscription renewed", slog.String("plan", plan.Label()), slog.Time("expires_at", expiresAt))

	r.audit(ctx, log, ev.Email, fmt.Sprintf("Assinatura renovada via %s - Plano: %s - Nova expiração: %s",
		ev.Source, plan.Label(), expiresAt.Format(time.RFC3339)))

	out := &Outcome{Action: ActionRenewed, Email: ev.Email, Plan: plan, ExpiresAt: expiresAt}
	return out, followUp{routingKey: events.SubscriberRenewed, notify: wasPending, name: sub.Name}, nil
}

func (r *Reconciler) subscriberOf(ctx context.Context, ident *identity.Identity) (*subscribers.Subscriber, error) {
	sub, err := r.Subscribers.FindByUserID(ctx, ident.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrSubscriberMissing
	}
	return sub, err
}

func (r *Reconciler) audit(ctx context.Context, log *slog.Logger, email, action string) {
	if err := r.Audit.Record(ctx, email, action); err != nil {
		log.Error("failed to write audit log", slog.String("acao", action), sl.Err(err))
	}
}

func (r *Reconciler) publish(ctx context.Context, log *slog.Logger, key string, ev Event, out *Outcome) {
	if r.Publisher == nil || key == "" {
		return
	}
	expiresAt := out.ExpiresAt
	msg := events.Message{
		Email:      ev.Email,
		Status:     string(subscribers.StatusActive),
		Plan:       out.Plan.Label(),
		ExpiresAt:  &expiresAt,
		Source:     ev.Source,
		OccurredAt: r.now().UTC(),
	}
	if err := r.Publisher.Publish(ctx, key, msg); err != nil {
		log.Warn("lifecycle event not published", slog.String("routing_key", key), sl.Err(err))
	}
}

// notify sends the approval email off the request path.
func (r *Reconciler) notify(ctx context.Context, log *slog.Logger, email, name string) {
	if r.Notifier == nil {
		return
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(ctx, notifyTimeout)
		defer cancel()
		if _, err := r.Notifier.SendApproval(ctx, email, name); err != nil {
			log.Warn("approval notification failed", sl.Err(err))
		}
	}()
}
