package admin

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"acessonucleo-hub/internal/domain/plans"
	"acessonucleo-hub/internal/domain/subscribers"
	"acessonucleo-hub/internal/infra/events"
	"acessonucleo-hub/internal/lib/sl"
	"acessonucleo-hub/internal/repository"

	"github.com/gin-gonic/gin"
)

type updateStatusRequest struct {
	Status    subscribers.Status `json:"status" binding:"required,status"`
	AdminNote *string            `json:"observacao_admin" binding:"omitempty,max=1000"`
}

// PATCH /api/admin/subscribers/:id/status
func (h *Handler) UpdateStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validationMessage(err)})
		return
	}
	sub, ok := h.loadSubscriber(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	from := sub.Status

	if err := subscribers.CheckTransition(from, req.Status); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	note := req.AdminNote
	if note != nil {
		trimmed := strings.TrimSpace(*note)
		note = &trimmed
	}
	blocking := req.Status == subscribers.StatusSuspended || req.Status == subscribers.StatusRejected
	if blocking && (note == nil || *note == "") {
		def := subscribers.DefaultNote(req.Status)
		note = &def
	}

	if err := h.subscribers.UpdateStatus(ctx, sub.ID, req.Status, note); err != nil {
		h.updateFailed(c, sub.ID, err)
		return
	}
	sub.Status = req.Status
	if note != nil {
		sub.AdminNote = note
	}

	if from != req.Status {
		h.log.Info("subscriber status changed",
			slog.String("id", sub.ID),
			slog.String("from", string(from)),
			slog.String("to", string(req.Status)),
		)
		h.record(ctx, sub.Email, fmt.Sprintf("Status alterado de %s para %s por %s", from, req.Status, actor(c)))
		h.publish(ctx, events.SubscriberStatusChanged, events.Message{
			Email:      sub.Email,
			Status:     string(req.Status),
			ExpiresAt:  sub.ExpiresAt,
			Source:     "admin",
			OccurredAt: h.now().UTC(),
		})
	}

	if from == subscribers.StatusPending && req.Status == subscribers.StatusActive && h.notifier != nil {
		if _, err := h.notifier.SendApproval(ctx, sub.Email, sub.Name); err != nil {
			h.log.Warn("approval notification failed", slog.String("email", sub.Email), sl.Err(err))
		}
	}

	c.JSON(http.StatusOK, sub)
}

type updatePlanRequest struct {
	Plan      string     `json:"plano" binding:"required,plano"`
	StartedAt *time.Time `json:"data_inicio"`
}

// PUT /api/admin/subscribers/:id/plan
func (h *Handler) UpdatePlan(c *gin.Context) {
	var req updatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validationMessage(err)})
		return
	}
	sub, ok := h.loadSubscriber(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	plan, err := plans.Parse(req.Plan)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "plano inválido"})
		return
	}
	anchor := h.now().UTC()
	if req.StartedAt != nil {
		anchor = req.StartedAt.UTC()
	}
	expiresAt, err := plans.ComputeExpiration(plan, anchor)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.subscribers.SetPlan(ctx, sub.ID, plan.Label(), expiresAt); err != nil {
		h.updateFailed(c, sub.ID, err)
		return
	}
	label := plan.Label()
	sub.Plan = &label
	sub.ExpiresAt = &expiresAt

	h.record(ctx, sub.Email, fmt.Sprintf("Plano alterado para %s por %s - Expiração: %s", label, actor(c), expiresAt.Format(time.RFC3339)))
	c.JSON(http.StatusOK, sub)
}

type updateExpirationRequest struct {
	ExpiresAt *time.Time `json:"data_expiracao"`
}

// PUT /api/admin/subscribers/:id/expiration
//
// A null or missing data_expiracao, or an empty body, clears the expiration.
func (h *Handler) UpdateExpiration(c *gin.Context) {
	var req updateExpirationRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "data_expiracao deve estar em RFC3339 ou null"})
		return
	}
	sub, ok := h.loadSubscriber(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	if err := h.subscribers.SetExpiration(ctx, sub.ID, req.ExpiresAt); err != nil {
		h.updateFailed(c, sub.ID, err)
		return
	}
	sub.ExpiresAt = req.ExpiresAt

	action := "Expiração removida por " + actor(c)
	if req.ExpiresAt != nil {
		action = fmt.Sprintf("Expiração alterada para %s por %s", req.ExpiresAt.UTC().Format(time.RFC3339), actor(c))
	}
	h.record(ctx, sub.Email, action)
	c.JSON(http.StatusOK, sub)
}

func (h *Handler) updateFailed(c *gin.Context, id string, err error) {
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Assinante não encontrado"})
		return
	}
	h.log.Error("failed to update subscriber", slog.String("id", id), sl.Err(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Não foi possível atualizar o assinante"})
}
