package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/linemk/order-service/internal/domain/models"
	"github.com/linemk/order-service/internal/gateway"
	"github.com/linemk/order-service/internal/storage"
	"github.com/shopspring/decimal"
)

// PaymentService управляет платёжной фазой заказа.
type PaymentService interface {
	// CreateIntent создаёт платёжную авторизацию и переводит заказ в pending_payment.
	CreateIntent(ctx context.Context, userID, orderID int64, amount decimal.Decimal, customerEmail, customerName string) (*IntentView, error)
	// GetPaymentStatus возвращает заказ вместе с живым статусом авторизации
	// из процессинга (сверка при недошедшем вебхуке).
	GetPaymentStatus(ctx context.Context, userID int64, intentID string) (*PaymentStatusView, error)
	// CancelOrder отменяет заказ до оплаты; отмена авторизации best-effort.
	CancelOrder(ctx context.Context, userID, orderID int64) (*models.Order, error)
}

// IntentView — ответ на создание авторизации.
type IntentView struct {
	PaymentIntentID string          `json:"payment_intent_id"`
	ClientSecret    string          `json:"client_secret"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
}

// PaymentStatusView — заказ плюс статус на стороне процессинга.
type PaymentStatusView struct {
	OrderID         int64           `json:"order_id"`
	PaymentIntentID string          `json:"payment_intent_id"`
	Status          string          `json:"status"` // статус авторизации у процессинга
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	OrderStatus     string          `json:"order_status"`
}

type paymentService struct {
	log       *slog.Logger
	db        *sql.DB
	orderRepo storage.OrderStorage
	gw        gateway.Client
}

func NewPaymentService(log *slog.Logger, db *sql.DB, orderRepo storage.OrderStorage, gw gateway.Client) PaymentService {
	return &paymentService{
		log:       log,
		db:        db,
		orderRepo: orderRepo,
		gw:        gw,
	}
}

// CreateIntent сначала ходит в процессинг и только потом, в короткой транзакции
// с блокировкой строки заказа, записывает payment_intent_id и переводит статус.
// Блокировка никогда не удерживается через сетевой вызов: если авторизация
// создалась, а транзакция не закоммитилась, заказ остаётся в pending и сверка
// идёт через GetPaymentStatus.
func (s *paymentService) CreateIntent(ctx context.Context, userID, orderID int64, amount decimal.Decimal, customerEmail, customerName string) (*IntentView, error) {
	const op = "service.PaymentService.CreateIntent"
	logger := s.log.With(slog.String("op", op), slog.Int64("userID", userID), slog.Int64("orderID", orderID))

	order, err := s.orderRepo.GetOrderByID(ctx, orderID)
	if err != nil {
		logger.Warn("order lookup failed", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	// чужой заказ неотличим от несуществующего
	if order.UserID != userID {
		logger.Warn("order ownership mismatch")
		return nil, fmt.Errorf("%s: %w", op, storage.ErrOrderNotFound)
	}

	if terminal(order.Status) {
		logger.Warn("order already in terminal state", slog.String("status", order.Status))
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidTransition)
	}

	// сумма авторизации обязана совпадать с зафиксированной суммой заказа
	if !amount.Equal(order.TotalAmount) {
		logger.Warn("amount mismatch",
			slog.String("requested", amount.String()),
			slog.String("orderTotal", order.TotalAmount.String()),
		)
		return nil, fmt.Errorf("%s: %w", op, ErrAmountMismatch)
	}

	intent, err := s.gw.CreateIntent(ctx, gateway.CreateIntentInput{
		Amount:        amount,
		OrderID:       orderID,
		CustomerEmail: customerEmail,
		CustomerName:  customerName,
		Description:   fmt.Sprintf("Order #%d for %s", orderID, customerName),
	})
	if err != nil {
		logger.Error("failed to create payment intent", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to create payment intent: %w", op, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		logger.Error("failed to begin transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}

	locked, err := s.orderRepo.LockOrderByIDTx(ctx, tx, orderID)
	if err != nil {
		s.rollback(tx, logger)
		logger.Error("failed to lock order", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to lock order: %w", op, err)
	}

	event := PaymentEvent{Kind: EventAuthorizationCreated, IntentID: intent.ID}
	if _, err := ApplyPaymentEvent(locked, event, false); err != nil {
		s.rollback(tx, logger)
		logger.Error("transition rejected", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.orderRepo.UpdateOrderPaymentTx(ctx, tx, locked); err != nil {
		s.rollback(tx, logger)
		logger.Error("failed to update order", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to update order: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		logger.Error("failed to commit transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	logger.Info("payment intent attached to order", slog.String("intentID", intent.ID))
	return &IntentView{
		PaymentIntentID: intent.ID,
		ClientSecret:    intent.ClientSecret,
		Amount:          intent.Amount,
		Currency:        intent.Currency,
	}, nil
}

func (s *paymentService) GetPaymentStatus(ctx context.Context, userID int64, intentID string) (*PaymentStatusView, error) {
	const op = "service.PaymentService.GetPaymentStatus"
	logger := s.log.With(slog.String("op", op), slog.Int64("userID", userID), slog.String("intentID", intentID))

	order, err := s.orderRepo.GetOrderByIntentID(ctx, intentID)
	if err != nil {
		logger.Warn("order lookup failed", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if order.UserID != userID {
		logger.Warn("order ownership mismatch")
		return nil, fmt.Errorf("%s: %w", op, storage.ErrOrderNotFound)
	}

	intent, err := s.gw.RetrieveIntent(ctx, intentID)
	if err != nil {
		logger.Error("failed to retrieve intent", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to retrieve intent: %w", op, err)
	}

	return &PaymentStatusView{
		OrderID:         order.ID,
		PaymentIntentID: intentID,
		Status:          intent.Status,
		Amount:          intent.Amount,
		Currency:        intent.Currency,
		OrderStatus:     order.Status,
	}, nil
}

// CancelOrder переводит заказ в cancelled и после коммита пытается отменить
// авторизацию у процессинга. Неудача отмены авторизации логируется и не
// мешает отмене заказа.
func (s *paymentService) CancelOrder(ctx context.Context, userID, orderID int64) (*models.Order, error) {
	const op = "service.PaymentService.CancelOrder"
	logger := s.log.With(slog.String("op", op), slog.Int64("userID", userID), slog.Int64("orderID", orderID))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		logger.Error("failed to begin transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}

	order, err := s.orderRepo.LockOrderByIDTx(ctx, tx, orderID)
	if err != nil {
		s.rollback(tx, logger)
		logger.Warn("order lookup failed", slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if order.UserID != userID {
		s.rollback(tx, logger)
		logger.Warn("order ownership mismatch")
		return nil, fmt.Errorf("%s: %w", op, storage.ErrOrderNotFound)
	}

	changed, err := ApplyPaymentEvent(order, PaymentEvent{Kind: EventCancelled}, false)
	if err != nil {
		s.rollback(tx, logger)
		logger.Warn("cancel rejected", slog.String("status", order.Status), slog.Any("error", err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if changed {
		if err := s.orderRepo.UpdateOrderPaymentTx(ctx, tx, order); err != nil {
			s.rollback(tx, logger)
			logger.Error("failed to update order", slog.Any("error", err))
			return nil, fmt.Errorf("%s: failed to update order: %w", op, err)
		}
	}

	if err := tx.Commit(); err != nil {
		logger.Error("failed to commit transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	// best-effort: авторизация отменяется после коммита, её ошибка не пробрасывается
	if order.PaymentIntentID != "" {
		if err := s.gw.CancelIntent(ctx, order.PaymentIntentID); err != nil {
			logger.Warn("failed to cancel payment intent",
				slog.String("intentID", order.PaymentIntentID),
				slog.Any("error", err),
			)
		}
	}

	logger.Info("order cancelled")
	return order, nil
}

func (s *paymentService) rollback(tx *sql.Tx, logger *slog.Logger) {
	if rbErr := tx.Rollback(); rbErr != nil {
		logger.Error("transaction rollback failed", slog.Any("error", rbErr))
	}
}
