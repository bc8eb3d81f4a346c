package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/linemk/order-service/internal/jwt-new/jwtmiddleware"
	"github.com/linemk/order-service/internal/service"
	"github.com/shopspring/decimal"
)

// CreateIntentRequest — входной JSON для создания платёжной авторизации.
type CreateIntentRequest struct {
	OrderID       int64           `json:"order_id" validate:"required,gt=0"`
	Amount        decimal.Decimal `json:"amount"`
	CustomerEmail string          `json:"customer_email" validate:"required,email"`
	CustomerName  string          `json:"customer_name" validate:"required"`
}

// CreateIntentHandler обрабатывает запрос POST /api/payments/create-intent
func CreateIntentHandler(log *slog.Logger, paymentService service.PaymentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.CreateIntentHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			logger.Error("userID not found in context")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req CreateIntentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Error("invalid request: decoding error", slog.Any("error", err))
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		if err := validate.Struct(req); err != nil {
			logger.Error("invalid request: validation error", slog.Any("error", err))
			http.Error(w, "validation error", http.StatusBadRequest)
			return
		}
		if !req.Amount.IsPositive() {
			logger.Error("invalid request: non-positive amount")
			http.Error(w, "amount must be positive", http.StatusBadRequest)
			return
		}

		intent, err := paymentService.CreateIntent(r.Context(), userID, req.OrderID, req.Amount, req.CustomerEmail, req.CustomerName)
		if err != nil {
			logger.Error("failed to create payment intent", slog.Any("error", err))
			http.Error(w, "failed to create payment intent", statusFromError(err))
			return
		}

		respondJSON(logger, w, http.StatusOK, intent)
	}
}

// PaymentStatusHandler обрабатывает запрос GET /api/payments/{paymentIntentID}
func PaymentStatusHandler(log *slog.Logger, paymentService service.PaymentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.PaymentStatusHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			logger.Error("userID not found in context")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		intentID := chi.URLParam(r, "paymentIntentID")
		if intentID == "" {
			logger.Error("payment intent id is missing")
			http.Error(w, "payment intent id is required", http.StatusBadRequest)
			return
		}

		status, err := paymentService.GetPaymentStatus(r.Context(), userID, intentID)
		if err != nil {
			logger.Error("failed to get payment status", slog.Any("error", err))
			http.Error(w, "failed to get payment status", statusFromError(err))
			return
		}

		respondJSON(logger, w, http.StatusOK, status)
	}
}
