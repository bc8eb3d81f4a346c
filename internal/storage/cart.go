package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/linemk/order-service/internal/domain/models"
	"github.com/shopspring/decimal"
)

var (
	ErrCartNotFound     = errors.New("cart not found")
	ErrCartItemNotFound = errors.New("cart item not found")
)

// CartStorage описывает методы для работы с корзиной и её позициями.
type CartStorage interface {
	// GetOrCreateByUserID возвращает корзину пользователя, создавая её при первом обращении.
	GetOrCreateByUserID(ctx context.Context, userID int64) (*models.Cart, error)
	// GetByUserID возвращает корзину пользователя без создания.
	GetByUserID(ctx context.Context, userID int64) (*models.Cart, error)
	// LockByIDTx блокирует строку корзины на время транзакции.
	LockByIDTx(ctx context.Context, tx *sql.Tx, cartID int64) (*models.Cart, error)
	// GetItems возвращает позиции корзины.
	GetItems(ctx context.Context, cartID int64) ([]*models.CartItem, error)
	// GetItemByID возвращает позицию корзины по её идентификатору.
	GetItemByID(ctx context.Context, itemID int64) (*models.CartItem, error)
	// UpsertItemTx добавляет позицию или суммирует количество существующей.
	UpsertItemTx(ctx context.Context, tx *sql.Tx, cartID, productID int64, quantity int, price decimal.Decimal) error
	// UpdateItemQuantityTx меняет количество в позиции.
	UpdateItemQuantityTx(ctx context.Context, tx *sql.Tx, itemID int64, quantity int) error
	// DeleteItemTx удаляет позицию.
	DeleteItemTx(ctx context.Context, tx *sql.Tx, itemID int64) error
	// DeleteItemsByCartIDTx удаляет все позиции корзины (используется при оформлении заказа).
	DeleteItemsByCartIDTx(ctx context.Context, tx *sql.Tx, cartID int64) error
	// TouchTx обновляет updated_at корзины.
	TouchTx(ctx context.Context, tx *sql.Tx, cartID int64) error
}

// cartRepository — конкретная реализация CartStorage.
type cartRepository struct {
	db *sql.DB
}

// NewCartRepository создаёт новый репозиторий корзин.
func NewCartRepository(db *sql.DB) CartStorage {
	return &cartRepository{db: db}
}

// GetOrCreateByUserID создаёт корзину лениво: upsert с RETURNING вернёт строку
// и при вставке, и при конфликте по user_id.
func (r *cartRepository) GetOrCreateByUserID(ctx context.Context, userID int64) (*models.Cart, error) {
	cart := &models.Cart{}
	query := `INSERT INTO carts (user_id, updated_at) VALUES ($1, NOW())
	          ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
	          RETURNING id, user_id, updated_at`
	row := r.db.QueryRowContext(ctx, query, userID)
	if err := row.Scan(&cart.ID, &cart.UserID, &cart.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to get or create cart: %w", err)
	}
	return cart, nil
}

func (r *cartRepository) GetByUserID(ctx context.Context, userID int64) (*models.Cart, error) {
	cart := &models.Cart{}
	row := r.db.QueryRowContext(ctx, "SELECT id, user_id, updated_at FROM carts WHERE user_id = $1", userID)
	if err := row.Scan(&cart.ID, &cart.UserID, &cart.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCartNotFound
		}
		return nil, err
	}
	return cart, nil
}

// LockByIDTx сериализует конкурентные мутации одной корзины на уровне строки.
func (r *cartRepository) LockByIDTx(ctx context.Context, tx *sql.Tx, cartID int64) (*models.Cart, error) {
	cart := &models.Cart{}
	row := tx.QueryRowContext(ctx, "SELECT id, user_id, updated_at FROM carts WHERE id = $1 FOR UPDATE NOWAIT", cartID)
	if err := row.Scan(&cart.ID, &cart.UserID, &cart.UpdatedAt); err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			if pqErr.Code == "55P03" { // lock
				return nil, fmt.Errorf("cart is locked, please try again: %w", err)
			}
		}
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCartNotFound
		}
		return nil, err
	}
	return cart, nil
}

func (r *cartRepository) GetItems(ctx context.Context, cartID int64) ([]*models.CartItem, error) {
	query := `
		SELECT id, cart_id, product_id, quantity, price
		FROM cart_items
		WHERE cart_id = $1
		ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, cartID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cart items: %w", err)
	}
	defer rows.Close()

	var items []*models.CartItem
	for rows.Next() {
		item := &models.CartItem{}
		if err := rows.Scan(&item.ID, &item.CartID, &item.ProductID, &item.Quantity, &item.Price); err != nil {
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *cartRepository) GetItemByID(ctx context.Context, itemID int64) (*models.CartItem, error) {
	item := &models.CartItem{}
	row := r.db.QueryRowContext(ctx, "SELECT id, cart_id, product_id, quantity, price FROM cart_items WHERE id = $1", itemID)
	if err := row.Scan(&item.ID, &item.CartID, &item.ProductID, &item.Quantity, &item.Price); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCartItemNotFound
		}
		return nil, err
	}
	return item, nil
}

// UpsertItemTx гарантирует не более одной строки на пару (cart_id, product_id):
// повторное добавление того же товара суммирует количество, а не плодит строки.
func (r *cartRepository) UpsertItemTx(ctx context.Context, tx *sql.Tx, cartID, productID int64, quantity int, price decimal.Decimal) error {
	query := `INSERT INTO cart_items (cart_id, product_id, quantity, price)
	          VALUES ($1, $2, $3, $4)
	          ON CONFLICT (cart_id, product_id)
	          DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity`
	_, err := tx.ExecContext(ctx, query, cartID, productID, quantity, price)
	if err != nil {
		return fmt.Errorf("failed to upsert cart item: %w", err)
	}
	return nil
}

func (r *cartRepository) UpdateItemQuantityTx(ctx context.Context, tx *sql.Tx, itemID int64, quantity int) error {
	res, err := tx.ExecContext(ctx, "UPDATE cart_items SET quantity = $1 WHERE id = $2", quantity, itemID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrCartItemNotFound
	}
	return nil
}

func (r *cartRepository) DeleteItemTx(ctx context.Context, tx *sql.Tx, itemID int64) error {
	res, err := tx.ExecContext(ctx, "DELETE FROM cart_items WHERE id = $1", itemID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrCartItemNotFound
	}
	return nil
}

func (r *cartRepository) DeleteItemsByCartIDTx(ctx context.Context, tx *sql.Tx, cartID int64) error {
	_, err := tx.ExecContext(ctx, "DELETE FROM cart_items WHERE cart_id = $1", cartID)
	if err != nil {
		return fmt.Errorf("failed to drain cart: %w", err)
	}
	return nil
}

func (r *cartRepository) TouchTx(ctx context.Context, tx *sql.Tx, cartID int64) error {
	_, err := tx.ExecContext(ctx, "UPDATE carts SET updated_at = NOW() WHERE id = $1", cartID)
	if err != nil {
		return fmt.Errorf("failed to touch cart: %w", err)
	}
	return nil
}
