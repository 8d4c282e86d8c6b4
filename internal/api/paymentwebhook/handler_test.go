package paymentwebhook

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"acessonucleo-hub/internal/lifecycle"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v75/webhook"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type mockReconciler struct{ mock.Mock }

func (m *mockReconciler) Reconcile(ctx context.Context, ev lifecycle.Event) (*lifecycle.Outcome, error) {
	args := m.Called(ctx, ev)
	out, _ := args.Get(0).(*lifecycle.Outcome)
	return out, args.Error(1)
}

const stripeSecret = "whsec_test"

func newRouter(rec Reconciler, opts Options) *gin.Engine {
	h := NewHandler(rec, opts, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r := gin.New()
	r.POST("/lastlink", h.Lastlink)
	r.POST("/payment", h.Payment)
	r.POST("/stripe", h.Stripe)
	return r
}

func post(r *gin.Engine, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func activated(email string) *lifecycle.Outcome {
	return &lifecycle.Outcome{Action: lifecycle.ActionActivated, Email: email}
}

func TestLastlinkShape(t *testing.T) {
	tests := []struct {
		name string
		body string
		kind lifecycle.Kind
	}{
		{
			name: "first purchase",
			body: `{"Id":"ll_1","Event":"Purchase_Order_Confirmed","Data":{"Buyer":{"Email":"ana@x.com"},"Offer":{"Name":"Oferta Trimestral"},"Purchase":{"Recurrency":1}}}`,
			kind: lifecycle.KindPurchase,
		},
		{
			name: "recurrent payment event",
			body: `{"Id":"ll_2","Event":"Recurrent_Payment","Data":{"Buyer":{"Email":"ana@x.com"},"Offer":{"Name":"Oferta Mensal"}}}`,
			kind: lifecycle.KindRenewal,
		},
		{
			name: "second charge",
			body: `{"Id":"ll_3","Event":"Purchase_Order_Confirmed","Data":{"Buyer":{"Email":"ana@x.com","Name":"Ana"},"Offer":{"Name":"Oferta Mensal"},"Purchase":{"Recurrency":2}}}`,
			kind: lifecycle.KindRenewal,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &mockReconciler{}
			rec.On("Reconcile", mock.Anything, mock.MatchedBy(func(ev lifecycle.Event) bool {
				return ev.Kind == tt.kind && ev.Email == "ana@x.com" && ev.Source == "Lastlink" && strings.HasPrefix(ev.DeliveryKey, "ll_")
			})).Return(activated("ana@x.com"), nil).Once()

			w := post(newRouter(rec, Options{}), "/lastlink", tt.body, nil)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			assert.Contains(t, w.Body.String(), "Webhook processado com sucesso para ana@x.com")
			rec.AssertExpectations(t)
		})
	}
}

func TestLastlinkMissingFields(t *testing.T) {
	rec := &mockReconciler{}
	w := post(newRouter(rec, Options{}), "/lastlink", `{"Event":"x","Data":{"Buyer":{"Email":"ana@x.com"},"Offer":{}}}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = post(newRouter(rec, Options{}), "/lastlink", `not json`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	rec.AssertNotCalled(t, "Reconcile", mock.Anything, mock.Anything)
}

func TestDeliveryKeyFallbacks(t *testing.T) {
	body := `{"event":"renewal_payment_completed","customer":{"email":"ana@x.com"},"subscription":{"plan":"mensal"}}`
	sum := sha256.Sum256([]byte(body))

	rec := &mockReconciler{}
	rec.On("Reconcile", mock.Anything, mock.MatchedBy(func(ev lifecycle.Event) bool {
		return ev.DeliveryKey == "idem-1"
	})).Return(activated("ana@x.com"), nil).Once()
	rec.On("Reconcile", mock.Anything, mock.MatchedBy(func(ev lifecycle.Event) bool {
		return ev.DeliveryKey == hex.EncodeToString(sum[:])
	})).Return(activated("ana@x.com"), nil).Once()

	r := newRouter(rec, Options{})
	require.Equal(t, http.StatusOK, post(r, "/payment", body, map[string]string{"Idempotency-Key": "idem-1"}).Code)
	require.Equal(t, http.StatusOK, post(r, "/payment", body, nil).Code)
	rec.AssertExpectations(t)
}

func TestPaymentShape(t *testing.T) {
	rec := &mockReconciler{}
	rec.On("Reconcile", mock.Anything, mock.MatchedBy(func(ev lifecycle.Event) bool {
		return ev.Kind == lifecycle.KindPurchase && ev.Name == "Bia" && ev.Plan == "semestral"
	})).Return(activated("bia@x.com"), nil).Once()
	r := newRouter(rec, Options{})

	w := post(r, "/payment", `{"event":"purchase_completed","customer":{"name":"Bia","email":"bia@x.com"},"subscription":{"plan":"semestral"}}`, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = post(r, "/payment", `{"event":"purchase_completed","customer":{"email":"bia@x.com"},"subscription":{"plan":"semestral"}}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code, "purchases need a name")

	w = post(r, "/payment", `{"event":"refund","customer":{"name":"Bia","email":"bia@x.com"},"subscription":{"plan":"semestral"}}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	rec.AssertExpectations(t)
}

func TestReconcilerErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{err: lifecycle.ErrInvalidPlan, want: http.StatusBadRequest},
		{err: lifecycle.ErrUserNotFound, want: http.StatusNotFound},
		{err: lifecycle.ErrInFlight, want: http.StatusConflict},
		{err: fmt.Errorf("wrap: %w", lifecycle.ErrPartialProvisioning), want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			rec := &mockReconciler{}
			rec.On("Reconcile", mock.Anything, mock.Anything).Return(nil, tt.err).Once()
			w := post(newRouter(rec, Options{}), "/payment", `{"event":"renewal_payment_completed","customer":{"email":"a@x.com"},"subscription":{"plan":"x"}}`, nil)
			assert.Equal(t, tt.want, w.Code)
			assert.Contains(t, w.Body.String(), `"error"`)
		})
	}
}

func TestSharedToken(t *testing.T) {
	rec := &mockReconciler{}
	rec.On("Reconcile", mock.Anything, mock.Anything).Return(activated("a@x.com"), nil).Once()
	r := newRouter(rec, Options{Token: "s3gredo"})
	body := `{"event":"renewal_payment_completed","customer":{"email":"a@x.com"},"subscription":{"plan":"mensal"}}`

	assert.Equal(t, http.StatusUnauthorized, post(r, "/payment", body, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, post(r, "/payment", body, map[string]string{"X-Webhook-Token": "errado"}).Code)
	assert.Equal(t, http.StatusOK, post(r, "/payment", body, map[string]string{"X-Webhook-Token": "s3gredo"}).Code)
	rec.AssertExpectations(t)
}

func signed(t *testing.T, payload string) (string, map[string]string) {
	t.Helper()
	sp := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: []byte(payload), Secret: stripeSecret})
	return string(sp.Payload), map[string]string{"Stripe-Signature": sp.Header}
}

func TestStripeEvents(t *testing.T) {
	rec := &mockReconciler{}
	rec.On("Reconcile", mock.Anything, mock.MatchedBy(func(ev lifecycle.Event) bool {
		return ev.Kind == lifecycle.KindPurchase && ev.Email == "cli@x.com" && ev.Name == "Cli" &&
			ev.Plan == "mensal" && ev.DeliveryKey == "evt_checkout" && ev.Source == "Stripe"
	})).Return(activated("cli@x.com"), nil).Once()
	rec.On("Reconcile", mock.Anything, mock.MatchedBy(func(ev lifecycle.Event) bool {
		return ev.Kind == lifecycle.KindRenewal && ev.Plan == "trimestral" && ev.DeliveryKey == "evt_invoice"
	})).Return(activated("cli@x.com"), nil).Once()
	r := newRouter(rec, Options{StripeWebhookSecret: stripeSecret})

	body, headers := signed(t, `{"id":"evt_checkout","object":"event","type":"checkout.session.completed","data":{"object":{"id":"cs_1","object":"checkout.session","customer_details":{"email":"cli@x.com","name":"Cli"},"metadata":{"plan":"mensal"}}}}`)
	w := post(r, "/stripe", body, headers)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body, headers = signed(t, `{"id":"evt_invoice","object":"event","type":"invoice.paid","data":{"object":{"id":"in_1","object":"invoice","billing_reason":"subscription_cycle","customer_email":"cli@x.com","lines":{"object":"list","data":[{"id":"il_1","object":"line_item","price":{"id":"price_1","object":"price","metadata":{"plan":"trimestral"}}}]}}}}`)
	w = post(r, "/stripe", body, headers)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body, headers = signed(t, `{"id":"evt_first","object":"event","type":"invoice.paid","data":{"object":{"id":"in_0","object":"invoice","billing_reason":"subscription_create"}}}`)
	w = post(r, "/stripe", body, headers)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ignored")

	rec.AssertExpectations(t)
}

func TestStripeRejectsBadSignature(t *testing.T) {
	rec := &mockReconciler{}
	r := newRouter(rec, Options{StripeWebhookSecret: stripeSecret})
	w := post(r, "/stripe", `{"id":"evt_1","type":"checkout.session.completed"}`, map[string]string{"Stripe-Signature": "t=1,v1=deadbeef"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = post(newRouter(rec, Options{}), "/stripe", `{}`, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	rec.AssertNotCalled(t, "Reconcile", mock.Anything, mock.Anything)
}
