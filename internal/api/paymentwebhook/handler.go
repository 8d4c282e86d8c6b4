package paymentwebhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"acessonucleo-hub/internal/lib/sl"
	"acessonucleo-hub/internal/lifecycle"
	"acessonucleo-hub/internal/metrics"

	"github.com/gin-gonic/gin"
)

const maxBodyBytes = 65536

type Reconciler interface {
	Reconcile(ctx context.Context, ev lifecycle.Event) (*lifecycle.Outcome, error)
}

type Options struct {
	// Token, when set, must match the X-Webhook-Token header on Lastlink and
	// generic deliveries.
	Token               string
	StripeWebhookSecret string
}

type Handler struct {
	reconciler Reconciler
	opts       Options
	log        *slog.Logger
}

func NewHandler(reconciler Reconciler, opts Options, log *slog.Logger) *Handler {
	return &Handler{reconciler: reconciler, opts: opts, log: log}
}

func readBody(c *gin.Context) ([]byte, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
	return io.ReadAll(c.Request.Body)
}

// authorized checks the shared token header in constant time.
func (h *Handler) authorized(c *gin.Context) bool {
	if h.opts.Token == "" {
		return true
	}
	got := c.GetHeader("X-Webhook-Token")
	return hmac.Equal([]byte(got), []byte(h.opts.Token))
}

// deliveryKey prefers the provider's own id, then a delivery header, and
// finally the body hash.
func deliveryKey(c *gin.Context, providerID string, body []byte) string {
	if providerID != "" {
		return providerID
	}
	for _, header := range []string{"Idempotency-Key", "X-Delivery-Id"} {
		if v := c.GetHeader(header); v != "" {
			return v
		}
	}
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// process runs the canonical event through the reconciler and writes the response.
func (h *Handler) process(c *gin.Context, ev lifecycle.Event) {
	log := h.log.With(
		slog.String("source", ev.Source),
		slog.String("kind", string(ev.Kind)),
		slog.String("delivery_key", ev.DeliveryKey),
	)

	out, err := h.reconciler.Reconcile(c.Request.Context(), ev)
	if err != nil {
		status, outcome := errorStatus(err)
		metrics.WebhookEvents.WithLabelValues(ev.Source, string(ev.Kind), outcome).Inc()
		if status >= http.StatusInternalServerError {
			log.Error("webhook processing failed", sl.Err(err))
		} else {
			log.Warn("webhook rejected", sl.Err(err))
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	metrics.WebhookEvents.WithLabelValues(ev.Source, string(ev.Kind), string(out.Action)).Inc()
	log.Info("webhook processed", slog.String("action", string(out.Action)), slog.String("email", out.Email))
	c.JSON(http.StatusOK, gin.H{"success": true, "message": out.Message()})
}

func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, lifecycle.ErrValidation):
		return http.StatusBadRequest, "invalid"
	case errors.Is(err, lifecycle.ErrUserNotFound):
		return http.StatusNotFound, "user_not_found"
	case errors.Is(err, lifecycle.ErrInFlight):
		return http.StatusConflict, "in_flight"
	default:
		return http.StatusInternalServerError, "error"
	}
}

func (h *Handler) reject(c *gin.Context, source string, status int, msg string) {
	metrics.WebhookEvents.WithLabelValues(source, "", "rejected").Inc()
	c.JSON(status, gin.H{"error": msg})
}
