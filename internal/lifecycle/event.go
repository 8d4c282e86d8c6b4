package lifecycle

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"acessonucleo-hub/internal/domain/plans"
	"acessonucleo-hub/internal/domain/subscribers"
)

type Kind string

const (
	KindPurchase Kind = "purchase_completed"
	KindRenewal  Kind = "renewal_payment_completed"
)

var (
	ErrValidation          = errors.New("invalid payment event")
	ErrInvalidPlan         = fmt.Errorf("%w: unrecognized plan", ErrValidation)
	ErrUserNotFound        = errors.New("user not found for renewal")
	ErrSubscriberMissing   = errors.New("identity has no subscriber row")
	ErrPartialProvisioning = errors.New("user created but activation failed")
	ErrInFlight            = errors.New("delivery is already being processed")
)

// Event is the provider-neutral payment notification every webhook adapter
// produces.
type Event struct {
	Kind  Kind
	Email string
	// Name may be empty; the email local part is used instead.
	Name string
	// Plan is a catalog value, label or provider offer name.
	Plan   string
	Source string
	// DeliveryKey identifies the delivery for replay detection.
	DeliveryKey string
	Payload     []byte
}

type Action string

const (
	ActionActivated   Action = "activated"
	ActionProvisioned Action = "provisioned"
	ActionRenewed     Action = "renewed"
	ActionDuplicate   Action = "duplicate"
)

type Outcome struct {
	Action    Action
	Email     string
	Plan      plans.Plan
	ExpiresAt time.Time
}

func (o *Outcome) Message() string {
	if o.Action == ActionDuplicate {
		return "Evento já processado para " + o.Email
	}
	return "Webhook processado com sucesso para " + o.Email
}

func (e *Event) normalize() (plans.Plan, error) {
	e.Email = strings.ToLower(strings.TrimSpace(e.Email))
	e.Name = strings.TrimSpace(e.Name)

	if e.Kind != KindPurchase && e.Kind != KindRenewal {
		return "", fmt.Errorf("%w: unknown event kind %q", ErrValidation, e.Kind)
	}
	if e.Email == "" || !strings.Contains(e.Email, "@") {
		return "", fmt.Errorf("%w: email is required", ErrValidation)
	}
	if strings.TrimSpace(e.Plan) == "" {
		return "", fmt.Errorf("%w: plan is required", ErrValidation)
	}

	plan, err := plans.Parse(e.Plan)
	if err != nil {
		plan, err = plans.FromOffer(e.Plan)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidPlan, e.Plan)
	}

	if e.Name == "" {
		e.Name = subscribers.LocalPart(e.Email)
	}
	return plan, nil
}
