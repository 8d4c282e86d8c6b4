package middleware

import (
	"context"
	"net/http"

	"acessonucleo-hub/internal/authn"
	"acessonucleo-hub/internal/domain/access"
	"acessonucleo-hub/internal/domain/subscribers"

	"github.com/gin-gonic/gin"
)

const subscriberKey = "subscriber"

type Evaluator interface {
	Evaluate(ctx context.Context, p *authn.Principal, req access.Requirement) (access.Result, *subscribers.Subscriber)
}

// RequireAccess runs the access gate for req and stops the chain unless the
// decision is Allow.
func RequireAccess(gate Evaluator, req access.Requirement) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, sub := gate.Evaluate(c.Request.Context(), PrincipalFrom(c), req)
		if res.Allowed() {
			c.Set(subscriberKey, sub)
			c.Next()
			return
		}
		status, body := DecisionResponse(res)
		c.AbortWithStatusJSON(status, body)
	}
}

// DecisionResponse maps a non-allow decision to its HTTP status and body.
func DecisionResponse(res access.Result) (int, gin.H) {
	switch res.Decision {
	case access.Unauthenticated:
		return http.StatusUnauthorized, gin.H{"error": "Não autenticado", "redirect": res.Redirect}
	case access.RedirectPending:
		return http.StatusForbidden, gin.H{"error": "Cadastro aguardando aprovação", "redirect": res.Redirect}
	case access.RedirectBlocked:
		body := gin.H{"error": "Acesso bloqueado", "redirect": res.Redirect}
		if res.AdminNote != nil {
			body["observacao_admin"] = *res.AdminNote
		}
		return http.StatusForbidden, body
	case access.ResolutionFailed:
		return http.StatusServiceUnavailable, gin.H{"error": "Não foi possível verificar seu acesso, tente novamente"}
	default:
		return http.StatusForbidden, gin.H{"error": "Acesso negado", "redirect": access.PathAccessDenied}
	}
}

func SubscriberFrom(c *gin.Context) *subscribers.Subscriber {
	if v, ok := c.Get(subscriberKey); ok {
		if sub, ok := v.(*subscribers.Subscriber); ok {
			return sub
		}
	}
	return nil
}
