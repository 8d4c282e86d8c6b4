package members

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"acessonucleo-hub/internal/app/http/middleware"
	"acessonucleo-hub/internal/authn"
	"acessonucleo-hub/internal/domain/access"
	"acessonucleo-hub/internal/domain/subscribers"
	"acessonucleo-hub/internal/lib/sl"
	"acessonucleo-hub/internal/service/credential"
	"acessonucleo-hub/internal/session"

	"github.com/gin-gonic/gin"
)

type Lander interface {
	Landing(ctx context.Context, p *authn.Principal) (access.Result, *subscribers.Subscriber)
}

type EventPublisher interface {
	Publish(ev session.Event)
}

type CredentialViewer interface {
	View(ctx context.Context, revealedAt *time.Time) (*credential.View, error)
}

type Handler struct {
	lander      Lander
	events      EventPublisher
	credentials CredentialViewer
	log         *slog.Logger
	now         func() time.Time
}

func NewHandler(lander Lander, events EventPublisher, credentials CredentialViewer, log *slog.Logger) *Handler {
	return &Handler{lander: lander, events: events, credentials: credentials, log: log, now: time.Now}
}

// GET /api/me
func (h *Handler) Me(c *gin.Context) {
	p := middleware.PrincipalFrom(c)
	res, sub := h.lander.Landing(c.Request.Context(), p)
	if sub == nil {
		status, body := middleware.DecisionResponse(res)
		c.JSON(status, body)
		return
	}

	c.JSON(http.StatusOK, MeResponse{
		User:   BuildUserDTO(sub),
		Plan:   BuildPlanDTO(h.now(), sub),
		Access: BuildAccessDTO(res),
	})
}

// POST /api/logout
func (h *Handler) Logout(c *gin.Context) {
	if p := middleware.PrincipalFrom(c); p != nil {
		h.events.Publish(session.Event{Kind: session.SignedOut, Principal: *p, At: h.now().UTC()})
	}
	c.JSON(http.StatusOK, gin.H{"message": "Sessão encerrada", "redirect": access.PathLogin})
}

// GET /api/credential?revealed_at=RFC3339
func (h *Handler) Credential(c *gin.Context) {
	var revealedAt *time.Time
	if raw := c.Query("revealed_at"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "revealed_at deve estar em RFC3339"})
			return
		}
		revealedAt = &t
	}

	view, err := h.credentials.View(c.Request.Context(), revealedAt)
	if errors.Is(err, credential.ErrNotConfigured) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Credencial ainda não cadastrada"})
		return
	}
	if err != nil {
		h.log.Error("failed to load shared credential", sl.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Não foi possível carregar a credencial"})
		return
	}
	c.JSON(http.StatusOK, view)
}
