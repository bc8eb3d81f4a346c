package models

import "time"

// WebhookEvent — запись журнала идемпотентности: идентификаторы уже обработанных
// событий процессинга. Доставка вебхуков at-least-once, поэтому повторное событие
// подтверждается без повторного применения побочных эффектов.
type WebhookEvent struct {
	EventID     string    `json:"event_id"`
	EventType   string    `json:"event_type"`
	ProcessedAt time.Time `json:"processed_at"`
}
