package access

import (
	"time"

	"acessonucleo-hub/internal/domain/subscribers"
)

type Decision string

const (
	Allow            Decision = "allow"
	Unauthenticated  Decision = "unauthenticated"
	Forbidden        Decision = "forbidden"
	RedirectPending  Decision = "redirect_pending"
	RedirectBlocked  Decision = "redirect_blocked"
	ResolutionFailed Decision = "resolution_failed"
)

// Client-side destinations.
const (
	PathLogin        = "/login"
	PathAccessDenied = "/acesso-negado"
	PathPending      = "/aguardando"
	PathBlocked      = "/bloqueado"
	PathMemberArea   = "/acesso-adspower"
	PathAdmin        = "/admin"
)

// Requirement is what a route demands. Zero fields mean "no requirement".
type Requirement struct {
	Role   subscribers.Role
	Status subscribers.Status
}

var (
	AnyAuthenticated = Requirement{}
	AdminOnly        = Requirement{Role: subscribers.RoleAdmin}
	ActiveMember     = Requirement{Role: subscribers.RoleSubscriber, Status: subscribers.StatusActive}
)

type EffectKind string

const EffectAutoSuspend EffectKind = "auto_suspend"

// Effect is a write the caller must dispatch; the decision never waits on it.
type Effect struct {
	Kind         EffectKind
	SubscriberID string
	Email        string
	// AsOf is the evaluation time; the write only applies while the row is
	// still expired at that instant.
	AsOf time.Time
}

type Result struct {
	Decision        Decision
	Redirect        string
	Effects         []Effect
	EffectiveStatus subscribers.Status
	Expired         bool
	AdminNote       *string
}

func (r Result) Allowed() bool { return r.Decision == Allow }
