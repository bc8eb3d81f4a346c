package service

import "errors"

var (
	// ErrCartEmpty — оформление заказа по пустой корзине.
	ErrCartEmpty = errors.New("cart is empty")
	// ErrNotAllowed — попытка мутировать чужую позицию корзины.
	ErrNotAllowed = errors.New("not allowed")
	// ErrBadQuantity — недопустимое количество или цена в запросе.
	ErrBadQuantity = errors.New("quantity must be positive")
	// ErrAmountMismatch — сумма в запросе на оплату не совпадает с суммой заказа.
	ErrAmountMismatch = errors.New("amount does not match order total")
	// ErrInvalidTransition — недопустимый переход машины состояний заказа.
	ErrInvalidTransition = errors.New("invalid order state transition")
	// ErrPaymentRefMismatch — событие ссылается не на ту авторизацию, что
	// записана у заказа. Никогда не применяется молча: возможная атака или
	// неверная конфигурация процессинга.
	ErrPaymentRefMismatch = errors.New("payment reference mismatch")
)
