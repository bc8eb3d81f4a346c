package models

// User представляет пользователя магазина
type User struct {
	ID       int64
	Email    string
	Name     string // имя покупателя, передаётся процессингу при создании авторизации
	PassHash []byte
}
