package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/linemk/order-service/internal/gateway"
	"github.com/linemk/order-service/internal/service"
	"github.com/linemk/order-service/internal/storage"
)

// statusFromError переводит ошибку сервисного слоя в HTTP-статус.
func statusFromError(err error) int {
	switch {
	case errors.Is(err, service.ErrCartEmpty),
		errors.Is(err, service.ErrBadQuantity),
		errors.Is(err, service.ErrAmountMismatch):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrNotAllowed):
		return http.StatusForbidden
	case errors.Is(err, storage.ErrCartItemNotFound),
		errors.Is(err, storage.ErrCartNotFound),
		errors.Is(err, storage.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidTransition),
		errors.Is(err, service.ErrPaymentRefMismatch):
		return http.StatusConflict
	}

	// у ошибок шлюза статус определяется категорией
	if kind, ok := gateway.KindOf(err); ok {
		switch kind {
		case gateway.KindCardDeclined:
			return http.StatusPaymentRequired
		case gateway.KindInvalidRequest:
			return http.StatusBadRequest
		case gateway.KindRateLimited:
			return http.StatusServiceUnavailable
		default:
			// AuthFailed и Unavailable: проблема на нашей стороне или у процессинга
			return http.StatusBadGateway
		}
	}
	return http.StatusInternalServerError
}

// respondJSON сериализует ответ; ошибку кодирования чинить уже поздно, только логируем.
func respondJSON(log *slog.Logger, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("failed to encode response", slog.Any("error", err))
	}
}
