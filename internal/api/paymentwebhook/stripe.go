package paymentwebhook

import (
	"encoding/json"
	"net/http"

	"acessonucleo-hub/internal/lib/sl"
	"acessonucleo-hub/internal/lifecycle"
	"acessonucleo-hub/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v75"
	"github.com/stripe/stripe-go/v75/webhook"
)

const (
	sourceStripe = "Stripe"
	planMetadata = "plan"
)

// POST /webhooks/stripe
func (h *Handler) Stripe(c *gin.Context) {
	if h.opts.StripeWebhookSecret == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "Stripe webhook not configured"})
		return
	}
	payload, err := readBody(c)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Error reading request body"})
		return
	}

	event, err := webhook.ConstructEventWithOptions(
		payload,
		c.GetHeader("Stripe-Signature"),
		h.opts.StripeWebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true},
	)
	if err != nil {
		h.log.Warn("stripe signature verification failed", sl.Err(err))
		h.reject(c, sourceStripe, http.StatusBadRequest, "Signature verification failed")
		return
	}

	var ev *lifecycle.Event
	switch event.Type {
	case "checkout.session.completed":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			h.reject(c, sourceStripe, http.StatusBadRequest, "Failed to parse session")
			return
		}
		ev = checkoutEvent(&session)

	case "invoice.paid":
		var invoice stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
			h.reject(c, sourceStripe, http.StatusBadRequest, "Failed to parse invoice")
			return
		}
		ev = renewalEvent(&invoice)
	}

	if ev == nil {
		// acknowledged so Stripe stops retrying
		metrics.WebhookEvents.WithLabelValues(sourceStripe, string(event.Type), "ignored").Inc()
		c.JSON(http.StatusOK, gin.H{"success": true, "status": "ignored"})
		return
	}

	ev.Source = sourceStripe
	ev.DeliveryKey = event.ID
	ev.Payload = payload
	h.process(c, *ev)
}

func checkoutEvent(s *stripe.CheckoutSession) *lifecycle.Event {
	ev := &lifecycle.Event{Kind: lifecycle.KindPurchase, Email: s.CustomerEmail, Plan: s.Metadata[planMetadata]}
	if s.CustomerDetails != nil {
		if s.CustomerDetails.Email != "" {
			ev.Email = s.CustomerDetails.Email
		}
		ev.Name = s.CustomerDetails.Name
	}
	return ev
}

// renewalEvent only maps invoices of a subscription's later billing cycles; the
// first invoice is covered by checkout.session.completed.
func renewalEvent(inv *stripe.Invoice) *lifecycle.Event {
	if inv.BillingReason != stripe.InvoiceBillingReasonSubscriptionCycle {
		return nil
	}
	plan := inv.Metadata[planMetadata]
	if plan == "" && inv.Lines != nil {
		for _, line := range inv.Lines.Data {
			if line.Price == nil {
				continue
			}
			if p := line.Price.Metadata[planMetadata]; p != "" {
				plan = p
				break
			}
			if line.Price.LookupKey != "" {
				plan = line.Price.LookupKey
				break
			}
		}
	}
	return &lifecycle.Event{
		Kind:  lifecycle.KindRenewal,
		Email: inv.CustomerEmail,
		Name:  inv.CustomerName,
		Plan:  plan,
	}
}
