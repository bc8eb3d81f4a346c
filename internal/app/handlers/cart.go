package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/linemk/order-service/internal/jwt-new/jwtmiddleware"
	"github.com/linemk/order-service/internal/service"
	"github.com/shopspring/decimal"
)

// AddCartItemRequest — входной JSON для добавления товара в корзину.
// Цена фиксируется на момент добавления.
type AddCartItemRequest struct {
	ProductID int64           `json:"product_id" validate:"required,gt=0"`
	Quantity  int             `json:"quantity" validate:"required,gt=0"`
	Price     decimal.Decimal `json:"price"`
}

// UpdateCartItemRequest — входной JSON для изменения количества.
type UpdateCartItemRequest struct {
	Quantity int `json:"quantity" validate:"required,gt=0"`
}

// GetCartHandler обрабатывает запрос GET /api/cart
func GetCartHandler(log *slog.Logger, cartService service.CartService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.GetCartHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			logger.Error("userID not found in context")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		cart, err := cartService.GetCart(r.Context(), userID)
		if err != nil {
			logger.Error("failed to get cart", slog.Any("error", err))
			http.Error(w, "failed to get cart", statusFromError(err))
			return
		}

		respondJSON(logger, w, http.StatusOK, cart)
	}
}

// AddCartItemHandler обрабатывает запрос POST /api/cart/items
func AddCartItemHandler(log *slog.Logger, cartService service.CartService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.AddCartItemHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			logger.Error("userID not found in context")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req AddCartItemRequest
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
		if req.Price.IsNegative() {
			logger.Error("invalid request: negative price")
			http.Error(w, "price must be non-negative", http.StatusBadRequest)
			return
		}

		cart, err := cartService.AddItem(r.Context(), userID, req.ProductID, req.Quantity, req.Price)
		if err != nil {
			logger.Error("failed to add item", slog.Any("error", err))
			http.Error(w, "failed to add item", statusFromError(err))
			return
		}

		respondJSON(logger, w, http.StatusOK, cart)
	}
}

// UpdateCartItemHandler обрабатывает запрос PUT /api/cart/items/{itemID}
func UpdateCartItemHandler(log *slog.Logger, cartService service.CartService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.UpdateCartItemHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			logger.Error("userID not found in context")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		itemID, err := strconv.ParseInt(chi.URLParam(r, "itemID"), 10, 64)
		if err != nil {
			logger.Error("invalid item id", slog.Any("error", err))
			http.Error(w, "invalid item id", http.StatusBadRequest)
			return
		}

		var req UpdateCartItemRequest
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

		cart, err := cartService.UpdateItemQuantity(r.Context(), userID, itemID, req.Quantity)
		if err != nil {
			logger.Error("failed to update item", slog.Any("error", err))
			http.Error(w, "failed to update item", statusFromError(err))
			return
		}

		respondJSON(logger, w, http.StatusOK, cart)
	}
}

// RemoveCartItemHandler обрабатывает запрос DELETE /api/cart/items/{itemID}
func RemoveCartItemHandler(log *slog.Logger, cartService service.CartService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.RemoveCartItemHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			logger.Error("userID not found in context")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		itemID, err := strconv.ParseInt(chi.URLParam(r, "itemID"), 10, 64)
		if err != nil {
			logger.Error("invalid item id", slog.Any("error", err))
			http.Error(w, "invalid item id", http.StatusBadRequest)
			return
		}

		if err := cartService.RemoveItem(r.Context(), userID, itemID); err != nil {
			logger.Error("failed to remove item", slog.Any("error", err))
			http.Error(w, "failed to remove item", statusFromError(err))
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// ClearCartHandler обрабатывает запрос DELETE /api/cart
func ClearCartHandler(log *slog.Logger, cartService service.CartService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.ClearCartHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := jwtmiddleware.FromContext(r.Context())
		if !ok {
			logger.Error("userID not found in context")
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		if err := cartService.ClearCart(r.Context(), userID); err != nil {
			logger.Error("failed to clear cart", slog.Any("error", err))
			http.Error(w, "failed to clear cart", statusFromError(err))
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
