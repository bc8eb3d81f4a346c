package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/linemk/order-service/internal/jwt-new/jwtmiddleware"
	"github.com/linemk/order-service/internal/service"
)

// CheckoutRequest — входной JSON оформления заказа.
type CheckoutRequest struct {
	ShippingAddress string `json:"shipping_address" validate:"required,min=5"`
}

// CheckoutHandler обрабатывает запрос POST /api/checkout
func CheckoutHandler(log *slog.Logger, checkoutService service.CheckoutService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.CheckoutHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			logger.Error("userID not found in context")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req CheckoutRequest
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

		order, err := checkoutService.Checkout(r.Context(), userID, req.ShippingAddress)
		if err != nil {
			logger.Error("checkout failed", slog.Any("error", err))
			http.Error(w, "checkout failed", statusFromError(err))
			return
		}

		respondJSON(logger, w, http.StatusCreated, order)
	}
}
