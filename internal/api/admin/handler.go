package admin

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"acessonucleo-hub/internal/app/http/middleware"
	"acessonucleo-hub/internal/domain/credentials"
	"acessonucleo-hub/internal/domain/subscribers"
	"acessonucleo-hub/internal/infra/events"
	"acessonucleo-hub/internal/infra/mail"
	"acessonucleo-hub/internal/lib/sl"
	"acessonucleo-hub/internal/repository"

	"github.com/gin-gonic/gin"
)

type Subscribers interface {
	List(ctx context.Context, status subscribers.Status) ([]subscribers.Subscriber, error)
	FindByID(ctx context.Context, id string) (*subscribers.Subscriber, error)
	UpdateStatus(ctx context.Context, id string, status subscribers.Status, note *string) error
	SetPlan(ctx context.Context, id, planLabel string, expiresAt time.Time) error
	SetExpiration(ctx context.Context, id string, expiresAt *time.Time) error
	CountByStatusAndPlan(ctx context.Context) ([]repository.StatusPlanCount, error)
}

type AuditLog interface {
	Record(ctx context.Context, email, action string) error
	Recent(ctx context.Context, email string, limit int) ([]subscribers.AuditLog, error)
}

type Credentials interface {
	Current(ctx context.Context) (*credentials.SharedCredential, error)
	Update(ctx context.Context, loginEmail, password string, now time.Time) (*credentials.SharedCredential, error)
}

type ApprovalNotifier interface {
	SendApproval(ctx context.Context, email, name string) (mail.Receipt, error)
}

type Handler struct {
	subscribers Subscribers
	audit       AuditLog
	credentials Credentials
	notifier    ApprovalNotifier
	publisher   events.Publisher
	log         *slog.Logger
	now         func() time.Time
}

func NewHandler(subs Subscribers, audit AuditLog, creds Credentials, notifier ApprovalNotifier, publisher events.Publisher, log *slog.Logger) *Handler {
	RegisterValidators()
	return &Handler{
		subscribers: subs,
		audit:       audit,
		credentials: creds,
		notifier:    notifier,
		publisher:   publisher,
		log:         log,
		now:         time.Now,
	}
}

// GET /api/admin/subscribers?status=
func (h *Handler) ListSubscribers(c *gin.Context) {
	status := subscribers.Status(c.Query("status"))
	if status != "" && !status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status inválido"})
		return
	}

	list, err := h.subscribers.List(c.Request.Context(), status)
	if err != nil {
		h.log.Error("failed to list subscribers", sl.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load subscribers"})
		return
	}
	if list == nil {
		list = []subscribers.Subscriber{}
	}
	c.JSON(http.StatusOK, list)
}

// GET /api/admin/subscribers/:id
func (h *Handler) GetSubscriber(c *gin.Context) {
	sub, ok := h.loadSubscriber(c)
	if !ok {
		return
	}

	logs, err := h.audit.Recent(c.Request.Context(), sub.Email, 50)
	if err != nil {
		h.log.Warn("failed to load subscriber logs", slog.String("email", sub.Email), sl.Err(err))
		logs = []subscribers.AuditLog{}
	}
	c.JSON(http.StatusOK, gin.H{"assinante": sub, "logs": logs})
}

// GET /api/admin/logs?limit=&email=
func (h *Handler) Logs(c *gin.Context) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit inválido"})
			return
		}
		limit = n
	}

	logs, err := h.audit.Recent(c.Request.Context(), c.Query("email"), limit)
	if err != nil {
		h.log.Error("failed to load audit logs", sl.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load logs"})
		return
	}
	if logs == nil {
		logs = []subscribers.AuditLog{}
	}
	c.JSON(http.StatusOK, logs)
}

// loadSubscriber writes the error response itself and reports false when the
// :id subscriber can't be loaded.
func (h *Handler) loadSubscriber(c *gin.Context) (*subscribers.Subscriber, bool) {
	sub, err := h.subscribers.FindByID(c.Request.Context(), c.Param("id"))
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Assinante não encontrado"})
		return nil, false
	}
	if err != nil {
		h.log.Error("failed to load subscriber", slog.String("id", c.Param("id")), sl.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load subscriber"})
		return nil, false
	}
	return sub, true
}

// actor is the admin performing the request, for audit lines.
func actor(c *gin.Context) string {
	if p := middleware.PrincipalFrom(c); p != nil {
		return p.Email
	}
	return "admin"
}

func (h *Handler) record(ctx context.Context, email, action string) {
	if err := h.audit.Record(ctx, email, action); err != nil {
		h.log.Error("failed to write audit log", slog.String("acao", action), sl.Err(err))
	}
}

func (h *Handler) publish(ctx context.Context, key string, msg events.Message) {
	if h.publisher == nil {
		return
	}
	if err := h.publisher.Publish(ctx, key, msg); err != nil {
		h.log.Warn("admin event not published", slog.String("routing_key", key), sl.Err(err))
	}
}
