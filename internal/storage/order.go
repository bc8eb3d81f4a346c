package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/linemk/order-service/internal/domain/models"
)

var ErrOrderNotFound = errors.New("order not found")

// OrderStorage описывает методы для работы с заказами.
// Вставка заказа и его позиций выполняется в транзакции вызывающей стороны:
// частично созданный заказ — нарушение корректности.
type OrderStorage interface {
	// CreateOrderTx вставляет заказ и возвращает его идентификатор.
	CreateOrderTx(ctx context.Context, tx *sql.Tx, order *models.Order) (int64, error)
	// CreateOrderItemTx вставляет позицию заказа.
	CreateOrderItemTx(ctx context.Context, tx *sql.Tx, item *models.OrderItem) error
	// GetOrderByID возвращает заказ по идентификатору.
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	// GetOrderByIntentID возвращает заказ по внешнему идентификатору платёжной авторизации.
	GetOrderByIntentID(ctx context.Context, intentID string) (*models.Order, error)
	// GetOrdersByUserID возвращает заказы пользователя, новые первыми.
	GetOrdersByUserID(ctx context.Context, userID int64) ([]*models.Order, error)
	// GetOrderItems возвращает позиции заказа.
	GetOrderItems(ctx context.Context, orderID int64) ([]*models.OrderItem, error)
	// LockOrderByIDTx блокирует строку заказа на время транзакции.
	LockOrderByIDTx(ctx context.Context, tx *sql.Tx, id int64) (*models.Order, error)
	// UpdateOrderPaymentTx сохраняет мутабельные платёжные поля заказа.
	// Единственный легальный вызывающий — машина состояний.
	UpdateOrderPaymentTx(ctx context.Context, tx *sql.Tx, order *models.Order) error
}

// orderRepository — конкретная реализация OrderStorage.
type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository создаёт новый репозиторий заказов.
func NewOrderRepository(db *sql.DB) OrderStorage {
	return &orderRepository{db: db}
}

func (r *orderRepository) CreateOrderTx(ctx context.Context, tx *sql.Tx, order *models.Order) (int64, error) {
	var id int64
	query := `INSERT INTO orders (user_id, status, total_amount, shipping_address, payment_status, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, NOW(), NOW()) RETURNING id`
	err := tx.QueryRowContext(ctx, query,
		order.UserID, order.Status, order.TotalAmount, order.ShippingAddress, order.PaymentStatus,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create order: %w", err)
	}
	return id, nil
}

func (r *orderRepository) CreateOrderItemTx(ctx context.Context, tx *sql.Tx, item *models.OrderItem) error {
	query := `INSERT INTO order_items (order_id, product_id, product_name, quantity, price)
	          VALUES ($1, $2, $3, $4, $5)`
	_, err := tx.ExecContext(ctx, query, item.OrderID, item.ProductID, item.ProductName, item.Quantity, item.Price)
	if err != nil {
		return fmt.Errorf("failed to create order item: %w", err)
	}
	return nil
}

const orderColumns = `id, user_id, status, total_amount, shipping_address, payment_status,
	COALESCE(payment_intent_id, ''), COALESCE(failure_reason, ''), created_at, updated_at`

func scanOrder(row *sql.Row) (*models.Order, error) {
	order := &models.Order{}
	err := row.Scan(
		&order.ID, &order.UserID, &order.Status, &order.TotalAmount, &order.ShippingAddress,
		&order.PaymentStatus, &order.PaymentIntentID, &order.FailureReason, &order.CreatedAt, &order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (r *orderRepository) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+orderColumns+" FROM orders WHERE id = $1", id)
	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return order, nil
}

func (r *orderRepository) GetOrderByIntentID(ctx context.Context, intentID string) (*models.Order, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+orderColumns+" FROM orders WHERE payment_intent_id = $1", intentID)
	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return order, nil
}

func (r *orderRepository) GetOrdersByUserID(ctx context.Context, userID int64) ([]*models.Order, error) {
	query := "SELECT " + orderColumns + " FROM orders WHERE user_id = $1 ORDER BY created_at DESC"
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		order := &models.Order{}
		if err := rows.Scan(
			&order.ID, &order.UserID, &order.Status, &order.TotalAmount, &order.ShippingAddress,
			&order.PaymentStatus, &order.PaymentIntentID, &order.FailureReason, &order.CreatedAt, &order.UpdatedAt,
		); err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *orderRepository) GetOrderItems(ctx context.Context, orderID int64) ([]*models.OrderItem, error) {
	query := `
		SELECT id, order_id, product_id, product_name, quantity, price
		FROM order_items
		WHERE order_id = $1
		ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*models.OrderItem
	for rows.Next() {
		item := &models.OrderItem{}
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.ProductName, &item.Quantity, &item.Price); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// LockOrderByIDTx сериализует конкурентные переходы по одному заказу:
// два вебхука об одном заказе применяются строго по очереди.
func (r *orderRepository) LockOrderByIDTx(ctx context.Context, tx *sql.Tx, id int64) (*models.Order, error) {
	row := tx.QueryRowContext(ctx, "SELECT "+orderColumns+" FROM orders WHERE id = $1 FOR UPDATE NOWAIT", id)
	order, err := scanOrder(row)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			if pqErr.Code == "55P03" { // lock
				return nil, fmt.Errorf("order is locked, please try again: %w", err)
			}
		}
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return order, nil
}

func (r *orderRepository) UpdateOrderPaymentTx(ctx context.Context, tx *sql.Tx, order *models.Order) error {
	query := `UPDATE orders
	          SET status = $1, payment_status = $2, payment_intent_id = NULLIF($3, ''), failure_reason = NULLIF($4, ''), updated_at = NOW()
	          WHERE id = $5`
	res, err := tx.ExecContext(ctx, query,
		order.Status, order.PaymentStatus, order.PaymentIntentID, order.FailureReason, order.ID)
	if err != nil {
		return fmt.Errorf("failed to update order payment state: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrOrderNotFound
	}
	return nil
}
