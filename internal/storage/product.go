package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
	"github.com/linemk/order-service/internal/domain/models"
)

var ErrProductNotFound = errors.New("product not found")

// ProductStorage описывает методы для работы с каталогом товаров.
type ProductStorage interface {
	// GetProductByID получает товар по идентификатору.
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	// GetNamesByIDs возвращает имена товаров для денормализации в позициях заказа.
	// Отсутствующие в каталоге идентификаторы в карте не появляются.
	GetNamesByIDs(ctx context.Context, ids []int64) (map[int64]string, error)
}

// productRepository — конкретная реализация ProductStorage.
type productRepository struct {
	db *sql.DB
}

// NewProductRepository создаёт новый репозиторий каталога.
func NewProductRepository(db *sql.DB) ProductStorage {
	return &productRepository{db: db}
}

func (r *productRepository) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	product := &models.Product{}
	row := r.db.QueryRowContext(ctx, "SELECT id, name, price FROM products WHERE id = $1", id)
	if err := row.Scan(&product.ID, &product.Name, &product.Price); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}
	return product, nil
}

func (r *productRepository) GetNamesByIDs(ctx context.Context, ids []int64) (map[int64]string, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id, name FROM products WHERE id = ANY($1)", pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := make(map[int64]string, len(ids))
	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		names[id] = name
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return names, nil
}
