package service

import (
	"github.com/linemk/order-service/internal/domain/models"
)

// PaymentEventKind — вид события, меняющего платёжное состояние заказа.
// Неизвестные типы вебхуков сводятся к EventUnknown и не доходят до машины состояний.
type PaymentEventKind int

const (
	EventUnknown PaymentEventKind = iota
	// EventAuthorizationCreated — успешно создана платёжная авторизация.
	EventAuthorizationCreated
	// EventPaymentSucceeded — процессинг подтвердил оплату.
	EventPaymentSucceeded
	// EventPaymentFailed — процессинг сообщил об отказе.
	EventPaymentFailed
	// EventCancelled — пользователь отменил заказ до оплаты.
	EventCancelled
)

// PaymentEvent — событие для машины состояний заказа.
type PaymentEvent struct {
	Kind          PaymentEventKind
	IntentID      string // ссылка на авторизацию процессинга
	FailureReason string // причина отказа, сохраняется для показа пользователю
}

// terminal — заказ завершил платёжную фазу (фаза доставки вне этого сервиса).
func terminal(status string) bool {
	return status == models.OrderStatusConfirmed ||
		status == models.OrderStatusPaymentFailed ||
		status == models.OrderStatusCancelled
}

// ApplyPaymentEvent — машина состояний заказа, единственное место, где меняются
// status и payment_status. Мутирует order и возвращает, изменилось ли состояние.
//
// Переходы: pending → pending_payment → {confirmed, payment_failed};
// pending|pending_payment → cancelled. Повтор события в терминальном состоянии —
// идемпотентный no-op. Несовпадение ссылки на авторизацию отклоняется всегда.
// allowRetryAfterFailure разрешает подтвердить заказ из payment_failed, если
// покупатель повторил оплату средствами процессинга.
func ApplyPaymentEvent(order *models.Order, event PaymentEvent, allowRetryAfterFailure bool) (bool, error) {
	switch event.Kind {
	case EventAuthorizationCreated:
		if terminal(order.Status) {
			return false, ErrInvalidTransition
		}
		// повторная авторизация по заказу в pending_payment допустима:
		// прежняя попытка могла закончиться отказом карты без вебхука
		order.Status = models.OrderStatusPendingPayment
		order.PaymentIntentID = event.IntentID
		return true, nil

	case EventPaymentSucceeded:
		if order.PaymentIntentID == "" || order.PaymentIntentID != event.IntentID {
			return false, ErrPaymentRefMismatch
		}
		switch order.Status {
		case models.OrderStatusPendingPayment:
			order.Status = models.OrderStatusConfirmed
			order.PaymentStatus = models.PaymentStatusPaid
			order.FailureReason = ""
			return true, nil
		case models.OrderStatusConfirmed:
			// повторная доставка подтверждения — no-op
			return false, nil
		case models.OrderStatusPaymentFailed:
			if !allowRetryAfterFailure {
				return false, ErrInvalidTransition
			}
			order.Status = models.OrderStatusConfirmed
			order.PaymentStatus = models.PaymentStatusPaid
			order.FailureReason = ""
			return true, nil
		default:
			return false, ErrInvalidTransition
		}

	case EventPaymentFailed:
		if order.PaymentIntentID == "" || order.PaymentIntentID != event.IntentID {
			return false, ErrPaymentRefMismatch
		}
		switch order.Status {
		case models.OrderStatusPendingPayment:
			order.Status = models.OrderStatusPaymentFailed
			order.PaymentStatus = models.PaymentStatusFailed
			order.FailureReason = event.FailureReason
			return true, nil
		case models.OrderStatusPaymentFailed:
			return false, nil
		default:
			return false, ErrInvalidTransition
		}

	case EventCancelled:
		switch order.Status {
		case models.OrderStatusPending, models.OrderStatusPendingPayment:
			order.Status = models.OrderStatusCancelled
			return true, nil
		case models.OrderStatusCancelled:
			return false, nil
		default:
			return false, ErrInvalidTransition
		}

	default:
		return false, ErrInvalidTransition
	}
}
