package paymentwebhook

import (
	"encoding/json"
	"net/http"
	"strings"

	"acessonucleo-hub/internal/lifecycle"

	"github.com/gin-gonic/gin"
)

const sourcePayment = "Pagamento"

// paymentPayload is the generic shape with an explicit event kind.
type paymentPayload struct {
	ID       string `json:"id"`
	Event    string `json:"event"`
	Customer struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	} `json:"customer"`
	Subscription struct {
		Plan string `json:"plan"`
	} `json:"subscription"`
}

// POST /webhooks/payment
func (h *Handler) Payment(c *gin.Context) {
	if !h.authorized(c) {
		h.reject(c, sourcePayment, http.StatusUnauthorized, "invalid webhook token")
		return
	}
	body, err := readBody(c)
	if err != nil {
		h.reject(c, sourcePayment, http.StatusBadRequest, "Error reading request body")
		return
	}

	var payload paymentPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		h.reject(c, sourcePayment, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	kind := lifecycle.Kind(strings.TrimSpace(payload.Event))
	if kind != lifecycle.KindPurchase && kind != lifecycle.KindRenewal {
		h.reject(c, sourcePayment, http.StatusBadRequest, "evento desconhecido: "+payload.Event)
		return
	}
	if kind == lifecycle.KindPurchase && strings.TrimSpace(payload.Customer.Name) == "" {
		h.reject(c, sourcePayment, http.StatusBadRequest, "customer.name é obrigatório")
		return
	}

	h.process(c, lifecycle.Event{
		Kind:        kind,
		Email:       payload.Customer.Email,
		Name:        payload.Customer.Name,
		Plan:        payload.Subscription.Plan,
		Source:      sourcePayment,
		DeliveryKey: deliveryKey(c, payload.ID, body),
		Payload:     body,
	})
}
