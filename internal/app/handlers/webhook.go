package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/linemk/order-service/internal/gateway"
	"github.com/linemk/order-service/internal/service"
)

// WebhookResponse — подтверждение приёма события.
type WebhookResponse struct {
	Received bool `json:"received"`
}

// maxWebhookBody ограничивает размер тела вебхука.
const maxWebhookBody = 1 << 20

// WebhookHandler обрабатывает запрос POST /api/payments/webhook.
// Маршрут не закрыт JWT: аутентичность события гарантирует подпись по телу.
// 200 возвращается на любое проверенное событие, включая прикладные no-op,
// чтобы retry-политика процессинга срабатывала только на транспортные сбои.
func WebhookHandler(log *slog.Logger, webhookService service.WebhookService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.WebhookHandler"
		logger := log.With(slog.String("op", op))

		signature := r.Header.Get(gateway.SignatureHeader)
		if signature == "" {
			logger.Error("missing signature header")
			http.Error(w, "missing signature header", http.StatusBadRequest)
			return
		}

		// подпись считается по сырым байтам, тело читаем до разбора
		payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			logger.Error("failed to read body", slog.Any("error", err))
			http.Error(w, "failed to read body", http.StatusBadRequest)
			return
		}

		if err := webhookService.ProcessEvent(r.Context(), payload, signature); err != nil {
			switch {
			case errors.Is(err, gateway.ErrInvalidSignature):
				logger.Error("invalid signature")
				http.Error(w, "invalid signature", http.StatusBadRequest)
			case errors.Is(err, gateway.ErrMalformedEvent):
				logger.Error("malformed event")
				http.Error(w, "malformed event", http.StatusBadRequest)
			default:
				// транспортная/серверная ошибка: пусть процессинг доставит повторно
				logger.Error("failed to process event", slog.Any("error", err))
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
			return
		}

		respondJSON(logger, w, http.StatusOK, WebhookResponse{Received: true})
	}
}
