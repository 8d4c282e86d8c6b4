package paymentwebhook

import (
	"encoding/json"
	"net/http"

	"acessonucleo-hub/internal/lifecycle"

	"github.com/gin-gonic/gin"
)

const (
	sourceLastlink       = "Lastlink"
	lastlinkRecurrentPay = "Recurrent_Payment"
)

type lastlinkPayload struct {
	ID    string `json:"Id"`
	Event string `json:"Event"`
	Data  struct {
		Buyer struct {
			Email string `json:"Email"`
			Name  string `json:"Name"`
		} `json:"Buyer"`
		Offer struct {
			Name string `json:"Name"`
		} `json:"Offer"`
		Purchase *struct {
			Recurrency int `json:"Recurrency"`
		} `json:"Purchase"`
	} `json:"Data"`
}

// renewal: the recurring-payment event, or any charge after the first.
func (p *lastlinkPayload) renewal() bool {
	if p.Event == lastlinkRecurrentPay {
		return true
	}
	return p.Data.Purchase != nil && p.Data.Purchase.Recurrency > 1
}

func (p *lastlinkPayload) event() lifecycle.Event {
	kind := lifecycle.KindPurchase
	if p.renewal() {
		kind = lifecycle.KindRenewal
	}
	return lifecycle.Event{
		Kind:   kind,
		Email:  p.Data.Buyer.Email,
		Name:   p.Data.Buyer.Name,
		Plan:   p.Data.Offer.Name,
		Source: sourceLastlink,
	}
}

// POST /webhooks/lastlink
func (h *Handler) Lastlink(c *gin.Context) {
	if !h.authorized(c) {
		h.reject(c, sourceLastlink, http.StatusUnauthorized, "invalid webhook token")
		return
	}
	body, err := readBody(c)
	if err != nil {
		h.reject(c, sourceLastlink, http.StatusBadRequest, "Error reading request body")
		return
	}

	var payload lastlinkPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		h.reject(c, sourceLastlink, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if payload.Data.Buyer.Email == "" || payload.Data.Offer.Name == "" {
		h.reject(c, sourceLastlink, http.StatusBadRequest, "Dados obrigatórios faltando no payload")
		return
	}

	ev := payload.event()
	ev.DeliveryKey = deliveryKey(c, payload.ID, body)
	ev.Payload = body
	h.process(c, ev)
}
