package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/linemk/order-service/internal/config"
	"github.com/shopspring/decimal"
)

// StripeClient — реализация Client поверх REST API Stripe.
// Каждый запрос ограничен таймаутом из конфигурации.
type StripeClient struct {
	log         *slog.Logger
	baseURL     string
	secretKey   string
	currency    string
	minorFactor int64
	httpClient  *http.Client
}

// NewStripeClient создаёт клиент шлюза по конфигурации.
func NewStripeClient(log *slog.Logger, cfg config.PaymentConfig) *StripeClient {
	return &StripeClient{
		log:         log,
		baseURL:     strings.TrimRight(cfg.GatewayURL, "/"),
		secretKey:   cfg.SecretKey,
		currency:    cfg.Currency,
		minorFactor: cfg.MinorUnitFactor,
		httpClient:  &http.Client{Timeout: cfg.RequestTimeout},
	}
}

func (c *StripeClient) Currency() string {
	return c.currency
}

// toMinorUnits переводит сумму из основной единицы валюты в минимальную
// (целое число для процессинга).
func (c *StripeClient) toMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(c.minorFactor)).Round(0).IntPart()
}

func (c *StripeClient) fromMinorUnits(n int64) decimal.Decimal {
	return decimal.NewFromInt(n).Div(decimal.NewFromInt(c.minorFactor))
}

// intentResponse — тело ответа процессинга: либо объект PaymentIntent,
// либо конверт с ошибкой.
type intentResponse struct {
	ID           string    `json:"id"`
	ClientSecret string    `json:"client_secret"`
	Status       string    `json:"status"`
	Amount       int64     `json:"amount"`
	Currency     string    `json:"currency"`
	Error        *apiError `json:"error"`
}

type apiError struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (c *StripeClient) CreateIntent(ctx context.Context, in CreateIntentInput) (*Intent, error) {
	const op = "gateway.StripeClient.CreateIntent"

	form := url.Values{}
	form.Set("amount", strconv.FormatInt(c.toMinorUnits(in.Amount), 10))
	form.Set("currency", c.currency)
	form.Set("description", in.Description)
	form.Set("receipt_email", in.CustomerEmail)
	form.Set("metadata[order_id]", strconv.FormatInt(in.OrderID, 10))
	form.Set("metadata[customer_name]", in.CustomerName)
	form.Set("automatic_payment_methods[enabled]", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/payment_intents", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &Error{Kind: KindInvalidRequest, Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	// ключ идемпотентности на каждую попытку: повтор запроса при сетевой ошибке
	// не создаст вторую авторизацию
	req.Header.Set("Idempotency-Key", uuid.NewString())

	body, err := c.do(op, req)
	if err != nil {
		return nil, err
	}

	c.log.Info("payment intent created",
		slog.String("op", op),
		slog.String("intentID", body.ID),
		slog.Int64("orderID", in.OrderID),
	)
	return c.intentFromResponse(body), nil
}

func (c *StripeClient) RetrieveIntent(ctx context.Context, intentID string) (*Intent, error) {
	const op = "gateway.StripeClient.RetrieveIntent"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/payment_intents/"+url.PathEscape(intentID), nil)
	if err != nil {
		return nil, &Error{Kind: KindInvalidRequest, Message: err.Error()}
	}

	body, err := c.do(op, req)
	if err != nil {
		return nil, err
	}
	return c.intentFromResponse(body), nil
}

func (c *StripeClient) CancelIntent(ctx context.Context, intentID string) error {
	const op = "gateway.StripeClient.CancelIntent"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/payment_intents/"+url.PathEscape(intentID)+"/cancel", nil)
	if err != nil {
		return &Error{Kind: KindInvalidRequest, Message: err.Error()}
	}

	if _, err := c.do(op, req); err != nil {
		return err
	}
	c.log.Info("payment intent cancelled", slog.String("op", op), slog.String("intentID", intentID))
	return nil
}

func (c *StripeClient) intentFromResponse(body *intentResponse) *Intent {
	return &Intent{
		ID:           body.ID,
		ClientSecret: body.ClientSecret,
		Status:       body.Status,
		Amount:       c.fromMinorUnits(body.Amount),
		Currency:     body.Currency,
	}
}

func (c *StripeClient) do(op string, req *http.Request) (*intentResponse, error) {
	req.SetBasicAuth(c.secretKey, "")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// таймаут или обрыв сети: исход на стороне процессинга неизвестен
		c.log.Error("gateway request failed", slog.String("op", op), slog.Any("error", err))
		return nil, &Error{Kind: KindUnavailable, Message: err.Error()}
	}
	defer resp.Body.Close()

	body := &intentResponse{}
	if err := json.NewDecoder(resp.Body).Decode(body); err != nil {
		c.log.Error("failed to decode gateway response", slog.String("op", op), slog.Any("error", err))
		return nil, &Error{Kind: KindUnavailable, Message: "malformed gateway response: " + err.Error()}
	}

	if resp.StatusCode >= http.StatusBadRequest || body.Error != nil {
		gerr := classify(resp.StatusCode, body.Error)
		c.log.Error("gateway returned error",
			slog.String("op", op),
			slog.Int("status", resp.StatusCode),
			slog.String("kind", gerr.Kind.String()),
			slog.String("message", gerr.Message),
		)
		return nil, gerr
	}
	return body, nil
}

// classify переводит ответ процессинга в категорию ошибки.
func classify(status int, apiErr *apiError) *Error {
	msg := http.StatusText(status)
	errType := ""
	if apiErr != nil {
		if apiErr.Message != "" {
			msg = apiErr.Message
		}
		errType = apiErr.Type
	}

	switch {
	case status == http.StatusPaymentRequired || errType == "card_error":
		return &Error{Kind: KindCardDeclined, Message: msg}
	case status == http.StatusTooManyRequests || errType == "rate_limit_error":
		return &Error{Kind: KindRateLimited, Message: msg}
	case status == http.StatusUnauthorized || errType == "authentication_error":
		return &Error{Kind: KindAuthFailed, Message: msg}
	case status >= http.StatusInternalServerError:
		return &Error{Kind: KindUnavailable, Message: msg}
	default:
		return &Error{Kind: KindInvalidRequest, Message: msg}
	}
}
