package admin

import (
	"errors"
	"net/http"

	"acessonucleo-hub/internal/lib/sl"
	"acessonucleo-hub/internal/service/credential"

	"github.com/gin-gonic/gin"
)

// GET /api/admin/credential
func (h *Handler) GetCredential(c *gin.Context) {
	cred, err := h.credentials.Current(c.Request.Context())
	if errors.Is(err, credential.ErrNotConfigured) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Credencial ainda não cadastrada"})
		return
	}
	if err != nil {
		h.log.Error("failed to load shared credential", sl.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Não foi possível carregar a credencial"})
		return
	}
	c.JSON(http.StatusOK, cred)
}

type updateCredentialRequest struct {
	LoginEmail string `json:"email_login" binding:"required,email,max=255"`
	Password   string `json:"senha_atual" binding:"required,max=255"`
}

// PUT /api/admin/credential
func (h *Handler) UpdateCredential(c *gin.Context) {
	var req updateCredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validationMessage(err)})
		return
	}
	ctx := c.Request.Context()

	cred, err := h.credentials.Update(ctx, req.LoginEmail, req.Password, h.now().UTC())
	if errors.Is(err, credential.ErrInvalidInput) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		h.log.Error("failed to update shared credential", sl.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Não foi possível salvar a credencial"})
		return
	}

	h.record(ctx, actor(c), "Credenciais AdsPower atualizadas")
	c.JSON(http.StatusOK, gin.H{"message": "Credenciais atualizadas", "data": cred})
}
