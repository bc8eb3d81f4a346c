// Package gateway — адаптер внешнего платёжного процессора (Stripe PaymentIntents API).
// Заказ хранит только ссылку payment_intent_id, авторитетные сумма и статус
// авторизации живут на стороне процессинга до прихода вебхука или явной сверки.
package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrorKind — категория ошибки шлюза. Вызывающая сторона ветвится по категории,
// а не по конкретному типу транспортной ошибки.
type ErrorKind int

const (
	// KindUnavailable — таймаут или 5xx: исход авторизации неопределён,
	// сверяться нужно через RetrieveIntent, а не считать попытку неудачной.
	KindUnavailable ErrorKind = iota
	// KindCardDeclined — отказ по карте, пользователь может попробовать другую.
	KindCardDeclined
	// KindRateLimited — временная ошибка, безопасно повторить с backoff.
	KindRateLimited
	// KindInvalidRequest — постоянная ошибка, повтор не поможет.
	KindInvalidRequest
	// KindAuthFailed — неверные учётные данные шлюза: фатально, повторы бессмысленны.
	KindAuthFailed
)

func (k ErrorKind) String() string {
	switch k {
	case KindCardDeclined:
		return "card_declined"
	case KindRateLimited:
		return "rate_limited"
	case KindInvalidRequest:
		return "invalid_request"
	case KindAuthFailed:
		return "auth_failed"
	default:
		return "unavailable"
	}
}

// Error — ошибка шлюза с явным тегом категории.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("gateway: %s: %s", e.Kind, e.Message)
}

// KindOf извлекает категорию из ошибки шлюза.
func KindOf(err error) (ErrorKind, bool) {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind, true
	}
	return 0, false
}

// Intent — платёжная авторизация на стороне процессинга.
// Amount всегда в основных единицах валюты.
type Intent struct {
	ID           string
	ClientSecret string
	Status       string
	Amount       decimal.Decimal
	Currency     string
}

// CreateIntentInput — параметры создания авторизации. order_id и имя покупателя
// попадают в metadata процессинга для последующей корреляции по вебхуку.
type CreateIntentInput struct {
	Amount        decimal.Decimal
	OrderID       int64
	CustomerEmail string
	CustomerName  string
	Description   string
}

// Client описывает операции платёжного шлюза.
type Client interface {
	// CreateIntent создаёт платёжную авторизацию.
	CreateIntent(ctx context.Context, in CreateIntentInput) (*Intent, error)
	// RetrieveIntent — чистое чтение статуса, используется для сверки,
	// когда вебхук не пришёл в разумный срок.
	RetrieveIntent(ctx context.Context, intentID string) (*Intent, error)
	// CancelIntent отменяет авторизацию. Вызов best-effort: ошибка логируется
	// вызывающей стороной и не препятствует отмене заказа.
	CancelIntent(ctx context.Context, intentID string) error
	// Currency возвращает настроенный ISO-код валюты.
	Currency() string
}
