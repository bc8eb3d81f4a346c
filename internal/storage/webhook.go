package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var ErrEventAlreadyProcessed = errors.New("webhook event already processed")

// WebhookEventStorage — журнал идемпотентности вебхуков. Доставка событий
// at-least-once, поэтому факт обработки фиксируется в той же транзакции,
// что и переход состояния заказа.
type WebhookEventStorage interface {
	// MarkProcessedTx регистрирует событие; повторная доставка возвращает
	// ErrEventAlreadyProcessed без побочных эффектов.
	MarkProcessedTx(ctx context.Context, tx *sql.Tx, eventID, eventType string) error
}

type webhookEventRepository struct {
	db *sql.DB
}

func NewWebhookEventRepository(db *sql.DB) WebhookEventStorage {
	return &webhookEventRepository{db: db}
}

func (r *webhookEventRepository) MarkProcessedTx(ctx context.Context, tx *sql.Tx, eventID, eventType string) error {
	query := `INSERT INTO webhook_events (event_id, event_type, processed_at)
	          VALUES ($1, $2, NOW())
	          ON CONFLICT (event_id) DO NOTHING`
	res, err := tx.ExecContext(ctx, query, eventID, eventType)
	if err != nil {
		return fmt.Errorf("failed to record webhook event: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrEventAlreadyProcessed
	}
	return nil
}
