package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/linemk/order-service/internal/gateway"
	"github.com/linemk/order-service/internal/storage"
)

// WebhookService — конвейер обработки вебхуков процессинга.
// Жёсткие ворота по порядку: подпись → разбор → дедупликация → применение.
type WebhookService interface {
	// ProcessEvent обрабатывает тело вебхука. nil означает подтверждение (200):
	// после прохождения подписи и дедупликации событие подтверждается даже при
	// прикладном no-op, чтобы не провоцировать повторную доставку.
	ProcessEvent(ctx context.Context, payload []byte, signatureHeader string) error
}

type webhookService struct {
	log              *slog.Logger
	db               *sql.DB
	orderRepo        storage.OrderStorage
	eventRepo        storage.WebhookEventStorage
	webhookSecret    string
	tolerance        time.Duration
	allowRetryPolicy bool
}

func NewWebhookService(log *slog.Logger, db *sql.DB, orderRepo storage.OrderStorage, eventRepo storage.WebhookEventStorage, webhookSecret string, tolerance time.Duration, allowRetryAfterFailure bool) WebhookService {
	return &webhookService{
		log:              log,
		db:               db,
		orderRepo:        orderRepo,
		eventRepo:        eventRepo,
		webhookSecret:    webhookSecret,
		tolerance:        tolerance,
		allowRetryPolicy: allowRetryAfterFailure,
	}
}

func (s *webhookService) ProcessEvent(ctx context.Context, payload []byte, signatureHeader string) error {
	const op = "service.WebhookService.ProcessEvent"
	logger := s.log.With(slog.String("op", op))

	// 1. Подпись проверяется по сырым байтам до любого разбора:
	// неподписанное событие не становится авторитетным никогда.
	if err := gateway.VerifySignature(payload, signatureHeader, s.webhookSecret, s.tolerance); err != nil {
		logger.Error("webhook signature verification failed", slog.Any("error", err))
		return fmt.Errorf("%s: %w", op, err)
	}

	event, err := gateway.ParseEvent(payload)
	if err != nil {
		logger.Error("failed to parse webhook event", slog.Any("error", err))
		return fmt.Errorf("%s: %w", op, err)
	}
	logger = logger.With(slog.String("eventID", event.ID), slog.String("eventType", event.Type))

	// 2. Маршрутизация по явным вариантам. Неизвестный тип — подтверждаем и
	// логируем: процессинг добавляет новые типы, это не ошибка.
	paymentEvent := classifyEvent(event)
	if paymentEvent.Kind == EventUnknown {
		logger.Warn("unhandled webhook event type, acknowledging")
		return nil
	}

	orderID, ok := orderIDFromEvent(event)
	if !ok {
		// событие без order_id в metadata — например, тестовое из консоли процессинга
		logger.Warn("webhook event without order reference, acknowledging")
		return nil
	}
	logger = logger.With(slog.Int64("orderID", orderID))

	// 3. Дедупликация и переход состояния коммитятся одной транзакцией:
	// событие либо применено и записано в журнал, либо ни то ни другое.
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		logger.Error("failed to begin transaction", slog.Any("error", err))
		return fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}

	if err := s.eventRepo.MarkProcessedTx(ctx, tx, event.ID, event.Type); err != nil {
		s.rollback(tx, logger)
		if errors.Is(err, storage.ErrEventAlreadyProcessed) {
			// доставка at-least-once: повтор подтверждаем без побочных эффектов
			logger.Info("duplicate webhook event, acknowledging")
			return nil
		}
		logger.Error("failed to record webhook event", slog.Any("error", err))
		return fmt.Errorf("%s: failed to record webhook event: %w", op, err)
	}

	order, err := s.orderRepo.LockOrderByIDTx(ctx, tx, orderID)
	if err != nil {
		s.rollback(tx, logger)
		if errors.Is(err, storage.ErrOrderNotFound) {
			// вебхук о заказе, которого у нас нет — бесконечные повторы не помогут
			logger.Warn("webhook references unknown order, acknowledging")
			return nil
		}
		logger.Error("failed to lock order", slog.Any("error", err))
		return fmt.Errorf("%s: failed to lock order: %w", op, err)
	}

	changed, err := ApplyPaymentEvent(order, paymentEvent, s.allowRetryPolicy)
	if err != nil {
		s.rollback(tx, logger)
		// целостность: несовпадение ссылки или недопустимый переход не
		// применяются молча, но и повторная доставка их не исправит
		logger.Error("transition rejected",
			slog.String("orderStatus", order.Status),
			slog.String("eventIntentID", paymentEvent.IntentID),
			slog.Any("error", err),
		)
		return nil
	}

	if changed {
		if err := s.orderRepo.UpdateOrderPaymentTx(ctx, tx, order); err != nil {
			s.rollback(tx, logger)
			logger.Error("failed to update order", slog.Any("error", err))
			return fmt.Errorf("%s: failed to update order: %w", op, err)
		}
	}

	if err := tx.Commit(); err != nil {
		logger.Error("failed to commit transaction", slog.Any("error", err))
		return fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	if changed {
		logger.Info("order state updated",
			slog.String("status", order.Status),
			slog.String("paymentStatus", order.PaymentStatus),
		)
	} else {
		logger.Info("webhook applied as no-op")
	}
	return nil
}

// classifyEvent переводит тип события процессинга в явный вариант.
func classifyEvent(event *gateway.Event) PaymentEvent {
	switch event.Type {
	case gateway.EventTypePaymentSucceeded:
		return PaymentEvent{
			Kind:     EventPaymentSucceeded,
			IntentID: event.Data.Object.ID,
		}
	case gateway.EventTypePaymentFailed:
		reason := ""
		if event.Data.Object.LastPaymentError != nil {
			reason = event.Data.Object.LastPaymentError.Message
		}
		return PaymentEvent{
			Kind:          EventPaymentFailed,
			IntentID:      event.Data.Object.ID,
			FailureReason: reason,
		}
	default:
		return PaymentEvent{Kind: EventUnknown}
	}
}

func orderIDFromEvent(event *gateway.Event) (int64, bool) {
	raw, ok := event.Data.Object.Metadata["order_id"]
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func (s *webhookService) rollback(tx *sql.Tx, logger *slog.Logger) {
	if rbErr := tx.Rollback(); rbErr != nil {
		logger.Error("transaction rollback failed", slog.Any("error", rbErr))
	}
}
