package access

import (
	"time"

	"acessonucleo-hub/internal/domain/subscribers"
)

// Resolve derives the access decision for sub on a route with requirement req.
// It is pure: persisting AutoSuspend is left to the caller via Result.Effects.
func Resolve(now time.Time, sub *subscribers.Subscriber, req Requirement) Result {
	if sub == nil {
		return Result{Decision: Unauthenticated, Redirect: PathLogin}
	}

	if req.Role != "" && sub.Role != req.Role && !sub.IsAdmin() {
		return Result{Decision: Forbidden, Redirect: PathAccessDenied, EffectiveStatus: sub.Status}
	}

	res := Result{EffectiveStatus: sub.Status, Expired: sub.Expired(now)}
	if res.Expired && sub.Status == subscribers.StatusActive {
		res.Effects = append(res.Effects, Effect{
			Kind:         EffectAutoSuspend,
			SubscriberID: sub.ID,
			Email:        sub.Email,
			AsOf:         now,
		})
		res.EffectiveStatus = subscribers.StatusSuspended
	}

	if sub.IsAdmin() {
		res.Decision = Allow
		return res
	}

	if req.Status == subscribers.StatusActive || sub.Role == subscribers.RoleSubscriber {
		return byStatus(res, sub)
	}

	res.Decision = Allow
	return res
}

// byStatus applies the subscriber redirect table to the effective status.
func byStatus(res Result, sub *subscribers.Subscriber) Result {
	switch {
	case res.EffectiveStatus == subscribers.StatusActive && !res.Expired:
		res.Decision = Allow
	case res.EffectiveStatus == subscribers.StatusPending:
		res.Decision = RedirectPending
		res.Redirect = PathPending
	case res.EffectiveStatus == subscribers.StatusSuspended,
		res.EffectiveStatus == subscribers.StatusRejected,
		res.Expired:
		res.Decision = RedirectBlocked
		res.Redirect = PathBlocked
		res.AdminNote = sub.AdminNote
	default:
		res.Decision = Forbidden
		res.Redirect = PathAccessDenied
	}
	return res
}

// Landing picks the home destination for an authenticated user.
func Landing(now time.Time, sub *subscribers.Subscriber) Result {
	res := Resolve(now, sub, AnyAuthenticated)
	if res.Decision != Allow {
		return res
	}
	if sub.IsAdmin() {
		res.Redirect = PathAdmin
	} else {
		res.Redirect = PathMemberArea
	}
	return res
}
