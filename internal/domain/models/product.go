package models

import "github.com/shopspring/decimal"

// Product представляет товар каталога. Каталог здесь минимальный — он нужен
// только для денормализации имени товара в позициях заказа.
type Product struct {
	ID    int64           `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}
