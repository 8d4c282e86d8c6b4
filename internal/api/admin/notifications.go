package admin

import (
	"errors"
	"log/slog"
	"net/http"

	"acessonucleo-hub/internal/infra/mail"
	"acessonucleo-hub/internal/lib/sl"
	"acessonucleo-hub/internal/notify"

	"github.com/gin-gonic/gin"
)

type approvalRequest struct {
	Email string `json:"email" binding:"required,email"`
	Name  string `json:"nome" binding:"required,max=100"`
}

// POST /api/admin/notifications/approval
func (h *Handler) SendApproval(c *gin.Context) {
	var req approvalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validationMessage(err)})
		return
	}
	if h.notifier == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": mail.ErrNotConfigured.Error()})
		return
	}

	receipt, err := h.notifier.SendApproval(c.Request.Context(), req.Email, req.Name)
	if errors.Is(err, notify.ErrMissingRecipient) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		h.log.Error("approval notification failed", slog.String("email", req.Email), sl.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": receipt})
}
