package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Cart представляет корзину пользователя. Корзина создаётся лениво при первом
// обращении и никогда не удаляется, при оформлении заказа из неё удаляются только позиции.
type Cart struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CartItem представляет позицию корзины. На пару (cart_id, product_id) существует
// не более одной строки: повторное добавление суммирует количество.
type CartItem struct {
	ID        int64           `json:"id"`
	CartID    int64           `json:"cart_id"`
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"` // цена за единицу, зафиксированная при добавлении
}
