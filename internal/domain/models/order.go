package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Статусы жизненного цикла заказа. Менять status/payment_status имеет право
// только машина состояний (service.ApplyPaymentEvent).
const (
	OrderStatusPending        = "pending"         // заказ создан, оплата не инициирована
	OrderStatusPendingPayment = "pending_payment" // создана платёжная авторизация
	OrderStatusConfirmed      = "confirmed"       // оплата подтверждена процессингом
	OrderStatusPaymentFailed  = "payment_failed"  // процессинг сообщил об отказе
	OrderStatusCancelled      = "cancelled"       // отменён пользователем до оплаты
)

// Статусы оплаты заказа.
const (
	PaymentStatusPending = "pending"
	PaymentStatusPaid    = "paid"
	PaymentStatusFailed  = "failed"
)

// Order представляет заказ — неизменяемый снимок корзины на момент оформления.
// total_amount и набор позиций после создания не меняются, мутабельны только
// status, payment_status, payment_intent_id и failure_reason.
type Order struct {
	ID              int64           `json:"id"`
	UserID          int64           `json:"user_id"`
	Status          string          `json:"status"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	ShippingAddress string          `json:"shipping_address"`
	PaymentStatus   string          `json:"payment_status"`
	PaymentIntentID string          `json:"payment_intent_id,omitempty"` // внешний идентификатор авторизации
	FailureReason   string          `json:"failure_reason,omitempty"`    // причина отказа от процессинга
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// OrderItem представляет позицию заказа. Имя товара денормализуется при
// оформлении, чтобы заказ не зависел от последующих изменений каталога.
type OrderItem struct {
	ID          int64           `json:"id"`
	OrderID     int64           `json:"order_id"`
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
}
