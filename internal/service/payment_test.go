package service_test

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/linemk/order-service/internal/domain/models"
	"github.com/linemk/order-service/internal/gateway"
	"github.com/linemk/order-service/internal/service"
	"github.com/linemk/order-service/internal/storage"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func newPaymentService(t *testing.T, orderRepo *fakeOrderRepo, gw gateway.Client) (service.PaymentService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	svc := service.NewPaymentService(logger, db, orderRepo, gw)
	return svc, mock
}

func pendingOrder(id, userID int64, total decimal.Decimal) *models.Order {
	return &models.Order{
		ID:            id,
		UserID:        userID,
		Status:        models.OrderStatusPending,
		PaymentStatus: models.PaymentStatusPending,
		TotalAmount:   total,
	}
}

func TestCreateIntent_Success(t *testing.T) {
	total := decimal.NewFromInt(2500)
	orderRepo := newFakeOrderRepo(pendingOrder(7, 1, total))
	gw := newFakeGateway()
	svc, mock := newPaymentService(t, orderRepo, gw)

	mock.ExpectBegin()
	mock.ExpectCommit()

	view, err := svc.CreateIntent(context.Background(), 1, 7, total, "user@example.com", "Test User")
	assert.NoError(t, err)
	assert.Equal(t, "pi_test_123", view.PaymentIntentID)
	assert.Equal(t, "pi_test_123_secret", view.ClientSecret)

	// order_id должен уйти в metadata процессинга для корреляции по вебхуку
	assert.Len(t, gw.created, 1)
	assert.Equal(t, int64(7), gw.created[0].OrderID)
	assert.Equal(t, "user@example.com", gw.created[0].CustomerEmail)

	order, _ := orderRepo.GetOrderByID(context.Background(), 7)
	assert.Equal(t, models.OrderStatusPendingPayment, order.Status)
	assert.Equal(t, "pi_test_123", order.PaymentIntentID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateIntent_AmountMismatch(t *testing.T) {
	orderRepo := newFakeOrderRepo(pendingOrder(7, 1, decimal.NewFromInt(2500)))
	gw := newFakeGateway()
	svc, mock := newPaymentService(t, orderRepo, gw)

	_, err := svc.CreateIntent(context.Background(), 1, 7, decimal.NewFromInt(100), "user@example.com", "Test User")
	assert.ErrorIs(t, err, service.ErrAmountMismatch)
	// до шлюза дело не дошло
	assert.Empty(t, gw.created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateIntent_ForeignOrderLooksAbsent(t *testing.T) {
	orderRepo := newFakeOrderRepo(pendingOrder(7, 2, decimal.NewFromInt(2500)))
	svc, mock := newPaymentService(t, orderRepo, newFakeGateway())

	_, err := svc.CreateIntent(context.Background(), 1, 7, decimal.NewFromInt(2500), "user@example.com", "Test User")
	assert.ErrorIs(t, err, storage.ErrOrderNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateIntent_TerminalOrderRejected(t *testing.T) {
	order := pendingOrder(7, 1, decimal.NewFromInt(2500))
	order.Status = models.OrderStatusConfirmed
	order.PaymentStatus = models.PaymentStatusPaid
	svc, mock := newPaymentService(t, newFakeOrderRepo(order), newFakeGateway())

	_, err := svc.CreateIntent(context.Background(), 1, 7, decimal.NewFromInt(2500), "user@example.com", "Test User")
	assert.ErrorIs(t, err, service.ErrInvalidTransition)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateIntent_GatewayErrorPassedThrough(t *testing.T) {
	orderRepo := newFakeOrderRepo(pendingOrder(7, 1, decimal.NewFromInt(2500)))
	gw := newFakeGateway()
	gw.createErr = &gateway.Error{Kind: gateway.KindCardDeclined, Message: "card declined"}
	svc, mock := newPaymentService(t, orderRepo, gw)

	_, err := svc.CreateIntent(context.Background(), 1, 7, decimal.NewFromInt(2500), "user@example.com", "Test User")
	kind, ok := gateway.KindOf(err)
	assert.True(t, ok, "категория ошибки шлюза должна сохраняться через обёртки")
	assert.Equal(t, gateway.KindCardDeclined, kind)

	// заказ остался в pending: авторизация не создана
	order, _ := orderRepo.GetOrderByID(context.Background(), 7)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetPaymentStatus_Success(t *testing.T) {
	order := pendingOrder(7, 1, decimal.NewFromInt(2500))
	order.Status = models.OrderStatusPendingPayment
	order.PaymentIntentID = "pi_123"
	svc, mock := newPaymentService(t, newFakeOrderRepo(order), newFakeGateway())

	view, err := svc.GetPaymentStatus(context.Background(), 1, "pi_123")
	assert.NoError(t, err)
	assert.Equal(t, int64(7), view.OrderID)
	assert.Equal(t, "pi_123", view.PaymentIntentID)
	assert.Equal(t, models.OrderStatusPendingPayment, view.OrderStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetPaymentStatus_ForeignIntentLooksAbsent(t *testing.T) {
	order := pendingOrder(7, 2, decimal.NewFromInt(2500))
	order.PaymentIntentID = "pi_123"
	svc, mock := newPaymentService(t, newFakeOrderRepo(order), newFakeGateway())

	_, err := svc.GetPaymentStatus(context.Background(), 1, "pi_123")
	assert.ErrorIs(t, err, storage.ErrOrderNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelOrder_CancelsIntentBestEffort(t *testing.T) {
	order := pendingOrder(7, 1, decimal.NewFromInt(2500))
	order.Status = models.OrderStatusPendingPayment
	order.PaymentIntentID = "pi_123"
	orderRepo := newFakeOrderRepo(order)
	gw := newFakeGateway()
	// ошибка отмены авторизации не должна ломать отмену заказа
	gw.cancelErr = errBoom
	svc, mock := newPaymentService(t, orderRepo, gw)

	mock.ExpectBegin()
	mock.ExpectCommit()

	cancelled, err := svc.CancelOrder(context.Background(), 1, 7)
	assert.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, cancelled.Status)
	assert.Equal(t, []string{"pi_123"}, gw.cancelled)

	stored, _ := orderRepo.GetOrderByID(context.Background(), 7)
	assert.Equal(t, models.OrderStatusCancelled, stored.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelOrder_ConfirmedOrderRejected(t *testing.T) {
	order := pendingOrder(7, 1, decimal.NewFromInt(2500))
	order.Status = models.OrderStatusConfirmed
	order.PaymentStatus = models.PaymentStatusPaid
	order.PaymentIntentID = "pi_123"
	gw := newFakeGateway()
	svc, mock := newPaymentService(t, newFakeOrderRepo(order), gw)

	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := svc.CancelOrder(context.Background(), 1, 7)
	assert.ErrorIs(t, err, service.ErrInvalidTransition)
	assert.Empty(t, gw.cancelled)
	assert.NoError(t, mock.ExpectationsWereMet())
}
