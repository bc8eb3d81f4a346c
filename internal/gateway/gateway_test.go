package gateway_test

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/linemk/order-service/internal/config"
	"github.com/linemk/order-service/internal/gateway"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func newTestClient(t *testing.T, handler http.Handler) *gateway.StripeClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	return gateway.NewStripeClient(logger, config.PaymentConfig{
		SecretKey:       "sk_test_123",
		GatewayURL:      srv.URL,
		Currency:        "pkr",
		MinorUnitFactor: 100,
		RequestTimeout:  2 * time.Second,
	})
}

func TestCreateIntent_SendsFormAndConvertsAmount(t *testing.T) {
	var gotForm map[string]string
	var gotAuth, gotIdempotencyKey string

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/payment_intents", r.URL.Path)
		user, _, ok := r.BasicAuth()
		assert.True(t, ok)
		gotAuth = user
		gotIdempotencyKey = r.Header.Get("Idempotency-Key")

		assert.NoError(t, r.ParseForm())
		gotForm = map[string]string{}
		for k := range r.PostForm {
			gotForm[k] = r.PostForm.Get(k)
		}

		fmt.Fprint(w, `{"id":"pi_123","client_secret":"pi_123_secret","status":"requires_payment_method","amount":250000,"currency":"pkr"}`)
	}))

	intent, err := client.CreateIntent(context.Background(), gateway.CreateIntentInput{
		Amount:        decimal.RequireFromString("2500.00"),
		OrderID:       7,
		CustomerEmail: "user@example.com",
		CustomerName:  "Test User",
		Description:   "Order #7 for Test User",
	})
	assert.NoError(t, err)

	assert.Equal(t, "pi_123", intent.ID)
	assert.Equal(t, "pi_123_secret", intent.ClientSecret)
	// сумма в ответе — в минимальных единицах, наружу отдаётся в основных
	assert.True(t, intent.Amount.Equal(decimal.NewFromInt(2500)), "amount=%s", intent.Amount)

	assert.Equal(t, "sk_test_123", gotAuth)
	assert.NotEmpty(t, gotIdempotencyKey)
	// сумма уходит в минимальных единицах: 2500.00 * 100
	assert.Equal(t, "250000", gotForm["amount"])
	assert.Equal(t, "pkr", gotForm["currency"])
	assert.Equal(t, "7", gotForm["metadata[order_id]"])
	assert.Equal(t, "Test User", gotForm["metadata[customer_name]"])
	assert.Equal(t, "user@example.com", gotForm["receipt_email"])
	assert.Equal(t, "true", gotForm["automatic_payment_methods[enabled]"])
}

func TestCreateIntent_ErrorClassification(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantKind gateway.ErrorKind
	}{
		{
			name:     "card declined",
			status:   http.StatusPaymentRequired,
			body:     `{"error":{"type":"card_error","code":"card_declined","message":"Your card was declined."}}`,
			wantKind: gateway.KindCardDeclined,
		},
		{
			name:     "rate limited",
			status:   http.StatusTooManyRequests,
			body:     `{"error":{"type":"rate_limit_error","message":"Too many requests"}}`,
			wantKind: gateway.KindRateLimited,
		},
		{
			name:     "bad credentials",
			status:   http.StatusUnauthorized,
			body:     `{"error":{"type":"authentication_error","message":"Invalid API Key"}}`,
			wantKind: gateway.KindAuthFailed,
		},
		{
			name:     "server error",
			status:   http.StatusBadGateway,
			body:     `{"error":{"type":"api_error","message":"Something went wrong"}}`,
			wantKind: gateway.KindUnavailable,
		},
		{
			name:     "invalid request",
			status:   http.StatusBadRequest,
			body:     `{"error":{"type":"invalid_request_error","message":"Missing required param"}}`,
			wantKind: gateway.KindInvalidRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))

			_, err := client.CreateIntent(context.Background(), gateway.CreateIntentInput{
				Amount:  decimal.NewFromInt(100),
				OrderID: 7,
			})
			kind, ok := gateway.KindOf(err)
			assert.True(t, ok)
			assert.Equal(t, tt.wantKind, kind)
		})
	}
}

func TestCreateIntent_NetworkErrorIsUnavailable(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	client := gateway.NewStripeClient(logger, config.PaymentConfig{
		SecretKey:       "sk_test_123",
		GatewayURL:      "http://127.0.0.1:1", // заведомо недоступен
		Currency:        "pkr",
		MinorUnitFactor: 100,
		RequestTimeout:  time.Second,
	})

	_, err := client.CreateIntent(context.Background(), gateway.CreateIntentInput{
		Amount:  decimal.NewFromInt(100),
		OrderID: 7,
	})
	kind, ok := gateway.KindOf(err)
	assert.True(t, ok)
	// исход неизвестен: вызывающий должен сверяться, а не считать попытку неудачной
	assert.Equal(t, gateway.KindUnavailable, kind)
}

func TestRetrieveIntent_Success(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/payment_intents/pi_123", r.URL.Path)
		fmt.Fprint(w, `{"id":"pi_123","status":"succeeded","amount":250000,"currency":"pkr"}`)
	}))

	intent, err := client.RetrieveIntent(context.Background(), "pi_123")
	assert.NoError(t, err)
	assert.Equal(t, "succeeded", intent.Status)
	assert.True(t, intent.Amount.Equal(decimal.NewFromInt(2500)))
}

func TestCancelIntent_Success(t *testing.T) {
	var gotPath string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		fmt.Fprint(w, `{"id":"pi_123","status":"canceled"}`)
	}))

	assert.NoError(t, client.CancelIntent(context.Background(), "pi_123"))
	assert.Equal(t, "/v1/payment_intents/pi_123/cancel", gotPath)
}

func TestVerifySignature_Roundtrip(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"payment_intent.succeeded"}`)
	secret := "whsec_test"

	header := gateway.SignPayload(payload, secret, time.Now())
	assert.NoError(t, gateway.VerifySignature(payload, header, secret, 5*time.Minute))
}

func TestVerifySignature_TamperedPayloadRejected(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"payment_intent.succeeded"}`)
	secret := "whsec_test"

	header := gateway.SignPayload(payload, secret, time.Now())
	tampered := []byte(`{"id":"evt_2","type":"payment_intent.succeeded"}`)
	assert.ErrorIs(t, gateway.VerifySignature(tampered, header, secret, 5*time.Minute), gateway.ErrInvalidSignature)
}

func TestVerifySignature_WrongSecretRejected(t *testing.T) {
	payload := []byte(`{}`)
	header := gateway.SignPayload(payload, "whsec_one", time.Now())
	assert.ErrorIs(t, gateway.VerifySignature(payload, header, "whsec_two", 5*time.Minute), gateway.ErrInvalidSignature)
}

func TestVerifySignature_StaleTimestampRejected(t *testing.T) {
	payload := []byte(`{}`)
	secret := "whsec_test"

	header := gateway.SignPayload(payload, secret, time.Now().Add(-time.Hour))
	assert.ErrorIs(t, gateway.VerifySignature(payload, header, secret, 5*time.Minute), gateway.ErrInvalidSignature)
}

func TestVerifySignature_MalformedHeaderRejected(t *testing.T) {
	payload := []byte(`{}`)
	for _, header := range []string{"", "garbage", "t=abc,v1=00", "v1=00", "t=123"} {
		assert.ErrorIs(t, gateway.VerifySignature(payload, header, "whsec_test", 5*time.Minute), gateway.ErrInvalidSignature, "header=%q", header)
	}
}

func TestParseEvent_RequiresIDAndType(t *testing.T) {
	_, err := gateway.ParseEvent([]byte(`{"id":"","type":"payment_intent.succeeded"}`))
	assert.ErrorIs(t, err, gateway.ErrMalformedEvent)

	_, err = gateway.ParseEvent([]byte(`not json`))
	assert.ErrorIs(t, err, gateway.ErrMalformedEvent)

	event, err := gateway.ParseEvent([]byte(`{"id":"evt_1","type":"payment_intent.succeeded","data":{"object":{"id":"pi_123","metadata":{"order_id":"7"}}}}`))
	assert.NoError(t, err)
	assert.Equal(t, "evt_1", event.ID)
	assert.Equal(t, "pi_123", event.Data.Object.ID)
	assert.Equal(t, "7", event.Data.Object.Metadata["order_id"])
}
