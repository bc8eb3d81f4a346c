package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/linemk/order-service/internal/domain/models"
	"github.com/linemk/order-service/internal/storage"
	"github.com/shopspring/decimal"
)

// CheckoutService превращает корзину в неизменяемый заказ.
type CheckoutService interface {
	Checkout(ctx context.Context, userID int64, shippingAddress string) (*OrderView, error)
}

// OrderView — заказ вместе с позициями.
type OrderView struct {
	*models.Order
	Items []*models.OrderItem `json:"items"`
}

type checkoutService struct {
	log         *slog.Logger
	db          *sql.DB
	cartRepo    storage.CartStorage
	orderRepo   storage.OrderStorage
	productRepo storage.ProductStorage
}

func NewCheckoutService(log *slog.Logger, db *sql.DB, cartRepo storage.CartStorage, orderRepo storage.OrderStorage, productRepo storage.ProductStorage) CheckoutService {
	return &checkoutService{
		log:         log,
		db:          db,
		cartRepo:    cartRepo,
		orderRepo:   orderRepo,
		productRepo: productRepo,
	}
}

// Checkout атомарно создаёт заказ из корзины: снимок позиций и суммы, вставка
// заказа и его позиций, полное опустошение корзины — всё в одной транзакции.
// Частично созданный заказ или опустошённая корзина без заказа невозможны.
// Сетевых вызовов внутри транзакции нет: платёжная авторизация создаётся
// отдельным запросом уже после коммита.
func (s *checkoutService) Checkout(ctx context.Context, userID int64, shippingAddress string) (*OrderView, error) {
	const op = "service.CheckoutService.Checkout"
	logger := s.log.With(slog.String("op", op), slog.Int64("userID", userID))
	logger.Info("starting checkout transaction")

	cart, err := s.cartRepo.GetOrCreateByUserID(ctx, userID)
	if err != nil {
		logger.Error("failed to get cart", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to get cart: %w", op, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		logger.Error("failed to begin transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}

	// Блокируем корзину: конкурентный checkout или добавление товара подождут
	if _, err := s.cartRepo.LockByIDTx(ctx, tx, cart.ID); err != nil {
		s.rollback(tx, logger)
		logger.Error("failed to lock cart", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to lock cart: %w", op, err)
	}

	items, err := s.cartRepo.GetItems(ctx, cart.ID)
	if err != nil {
		s.rollback(tx, logger)
		logger.Error("failed to load cart items", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to load cart items: %w", op, err)
	}
	if len(items) == 0 {
		s.rollback(tx, logger)
		logger.Warn("cart is empty")
		return nil, fmt.Errorf("%s: %w", op, ErrCartEmpty)
	}

	// Сумма заказа — снимок на момент оформления, по ценам из корзины.
	// Последующие изменения каталога на неё не влияют.
	total := decimal.Zero
	productIDs := make([]int64, 0, len(items))
	for _, item := range items {
		total = total.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
		productIDs = append(productIDs, item.ProductID)
	}

	names, err := s.productRepo.GetNamesByIDs(ctx, productIDs)
	if err != nil {
		s.rollback(tx, logger)
		logger.Error("failed to load product names", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to load product names: %w", op, err)
	}

	order := &models.Order{
		UserID:          userID,
		Status:          models.OrderStatusPending,
		TotalAmount:     total,
		ShippingAddress: shippingAddress,
		PaymentStatus:   models.PaymentStatusPending,
	}
	orderID, err := s.orderRepo.CreateOrderTx(ctx, tx, order)
	if err != nil {
		s.rollback(tx, logger)
		logger.Error("failed to create order", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to create order: %w", op, err)
	}
	order.ID = orderID

	orderItems := make([]*models.OrderItem, 0, len(items))
	for _, item := range items {
		name, ok := names[item.ProductID]
		if !ok {
			// товар успели убрать из каталога, имя теряем, заказ — нет
			name = fmt.Sprintf("Product %d", item.ProductID)
		}
		orderItem := &models.OrderItem{
			OrderID:     orderID,
			ProductID:   item.ProductID,
			ProductName: name,
			Quantity:    item.Quantity,
			Price:       item.Price,
		}
		if err := s.orderRepo.CreateOrderItemTx(ctx, tx, orderItem); err != nil {
			s.rollback(tx, logger)
			logger.Error("failed to create order item", slog.Any("error", err))
			return nil, fmt.Errorf("%s: failed to create order item: %w", op, err)
		}
		orderItems = append(orderItems, orderItem)
	}

	// Опустошаем корзину в той же транзакции
	if err := s.cartRepo.DeleteItemsByCartIDTx(ctx, tx, cart.ID); err != nil {
		s.rollback(tx, logger)
		logger.Error("failed to drain cart", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to drain cart: %w", op, err)
	}

	if err := s.cartRepo.TouchTx(ctx, tx, cart.ID); err != nil {
		s.rollback(tx, logger)
		logger.Error("failed to touch cart", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to touch cart: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		logger.Error("failed to commit transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	logger.Info("checkout completed",
		slog.Int64("orderID", orderID),
		slog.String("totalAmount", total.String()),
	)
	return &OrderView{Order: order, Items: orderItems}, nil
}

func (s *checkoutService) rollback(tx *sql.Tx, logger *slog.Logger) {
	if rbErr := tx.Rollback(); rbErr != nil {
		logger.Error("transaction rollback failed", slog.Any("error", rbErr))
	}
}
