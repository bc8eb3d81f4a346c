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

// CartService определяет операции над корзиной пользователя.
type CartService interface {
	GetCart(ctx context.Context, userID int64) (*CartView, error)
	AddItem(ctx context.Context, userID, productID int64, quantity int, price decimal.Decimal) (*CartView, error)
	UpdateItemQuantity(ctx context.Context, userID, itemID int64, quantity int) (*CartView, error)
	RemoveItem(ctx context.Context, userID, itemID int64) error
	ClearCart(ctx context.Context, userID int64) error
}

// CartView — корзина с производными значениями. Сумма и число позиций
// пересчитываются при чтении и нигде не хранятся.
type CartView struct {
	ID          int64              `json:"id"`
	UserID      int64              `json:"user_id"`
	Items       []*models.CartItem `json:"items"`
	TotalAmount decimal.Decimal    `json:"total_amount"`
	ItemCount   int                `json:"item_count"`
}

type cartService struct {
	log      *slog.Logger
	db       *sql.DB
	cartRepo storage.CartStorage
}

func NewCartService(log *slog.Logger, db *sql.DB, cartRepo storage.CartStorage) CartService {
	return &cartService{
		log:      log,
		db:       db,
		cartRepo: cartRepo,
	}
}

// GetCart возвращает корзину, создавая её при первом обращении.
func (s *cartService) GetCart(ctx context.Context, userID int64) (*CartView, error) {
	const op = "service.CartService.GetCart"

	cart, err := s.cartRepo.GetOrCreateByUserID(ctx, userID)
	if err != nil {
		s.log.Error("failed to get cart", slog.String("op", op), slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to get cart: %w", op, err)
	}
	return s.buildView(ctx, cart)
}

// AddItem добавляет товар в корзину. Если товар уже есть, количество
// суммируется в существующей позиции — вторая строка не появляется.
func (s *cartService) AddItem(ctx context.Context, userID, productID int64, quantity int, price decimal.Decimal) (*CartView, error) {
	const op = "service.CartService.AddItem"
	logger := s.log.With(slog.String("op", op), slog.Int64("userID", userID), slog.Int64("productID", productID))

	if quantity <= 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrBadQuantity)
	}
	if price.IsNegative() {
		return nil, fmt.Errorf("%s: price must be non-negative: %w", op, ErrBadQuantity)
	}

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

	// Блокируем строку корзины: конкурентные мутации одной корзины сериализуются
	if _, err := s.cartRepo.LockByIDTx(ctx, tx, cart.ID); err != nil {
		s.rollback(tx, logger)
		logger.Error("failed to lock cart", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to lock cart: %w", op, err)
	}

	if err := s.cartRepo.UpsertItemTx(ctx, tx, cart.ID, productID, quantity, price); err != nil {
		s.rollback(tx, logger)
		logger.Error("failed to upsert item", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to upsert item: %w", op, err)
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

	return s.buildView(ctx, cart)
}

// UpdateItemQuantity меняет количество в позиции корзины.
// Позиция должна принадлежать корзине запрашивающего пользователя.
func (s *cartService) UpdateItemQuantity(ctx context.Context, userID, itemID int64, quantity int) (*CartView, error) {
	const op = "service.CartService.UpdateItemQuantity"
	logger := s.log.With(slog.String("op", op), slog.Int64("userID", userID), slog.Int64("itemID", itemID))

	if quantity <= 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrBadQuantity)
	}

	cart, err := s.ownedCartForItem(ctx, userID, itemID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		logger.Error("failed to begin transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}

	if _, err := s.cartRepo.LockByIDTx(ctx, tx, cart.ID); err != nil {
		s.rollback(tx, logger)
		logger.Error("failed to lock cart", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to lock cart: %w", op, err)
	}

	if err := s.cartRepo.UpdateItemQuantityTx(ctx, tx, itemID, quantity); err != nil {
		s.rollback(tx, logger)
		logger.Error("failed to update quantity", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to update quantity: %w", op, err)
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

	return s.buildView(ctx, cart)
}

// RemoveItem удаляет позицию из корзины с той же проверкой владения.
func (s *cartService) RemoveItem(ctx context.Context, userID, itemID int64) error {
	const op = "service.CartService.RemoveItem"
	logger := s.log.With(slog.String("op", op), slog.Int64("userID", userID), slog.Int64("itemID", itemID))

	cart, err := s.ownedCartForItem(ctx, userID, itemID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		logger.Error("failed to begin transaction", slog.Any("error", err))
		return fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}

	if _, err := s.cartRepo.LockByIDTx(ctx, tx, cart.ID); err != nil {
		s.rollback(tx, logger)
		logger.Error("failed to lock cart", slog.Any("error", err))
		return fmt.Errorf("%s: failed to lock cart: %w", op, err)
	}

	if err := s.cartRepo.DeleteItemTx(ctx, tx, itemID); err != nil {
		s.rollback(tx, logger)
		logger.Error("failed to delete item", slog.Any("error", err))
		return fmt.Errorf("%s: failed to delete item: %w", op, err)
	}

	if err := s.cartRepo.TouchTx(ctx, tx, cart.ID); err != nil {
		s.rollback(tx, logger)
		logger.Error("failed to touch cart", slog.Any("error", err))
		return fmt.Errorf("%s: failed to touch cart: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		logger.Error("failed to commit transaction", slog.Any("error", err))
		return fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}
	return nil
}

// ClearCart удаляет все позиции корзины. Сама корзина никогда не удаляется.
func (s *cartService) ClearCart(ctx context.Context, userID int64) error {
	const op = "service.CartService.ClearCart"
	logger := s.log.With(slog.String("op", op), slog.Int64("userID", userID))

	cart, err := s.cartRepo.GetOrCreateByUserID(ctx, userID)
	if err != nil {
		logger.Error("failed to get cart", slog.Any("error", err))
		return fmt.Errorf("%s: failed to get cart: %w", op, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		logger.Error("failed to begin transaction", slog.Any("error", err))
		return fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}

	if _, err := s.cartRepo.LockByIDTx(ctx, tx, cart.ID); err != nil {
		s.rollback(tx, logger)
		logger.Error("failed to lock cart", slog.Any("error", err))
		return fmt.Errorf("%s: failed to lock cart: %w", op, err)
	}

	if err := s.cartRepo.DeleteItemsByCartIDTx(ctx, tx, cart.ID); err != nil {
		s.rollback(tx, logger)
		logger.Error("failed to drain cart", slog.Any("error", err))
		return fmt.Errorf("%s: failed to drain cart: %w", op, err)
	}

	if err := s.cartRepo.TouchTx(ctx, tx, cart.ID); err != nil {
		s.rollback(tx, logger)
		logger.Error("failed to touch cart", slog.Any("error", err))
		return fmt.Errorf("%s: failed to touch cart: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		logger.Error("failed to commit transaction", slog.Any("error", err))
		return fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}
	return nil
}

// ownedCartForItem находит позицию и проверяет, что её корзина принадлежит
// пользователю. Чужая позиция — ErrNotAllowed, а не "не найдено": о
// существовании чужих позиций не сообщаем.
func (s *cartService) ownedCartForItem(ctx context.Context, userID, itemID int64) (*models.Cart, error) {
	item, err := s.cartRepo.GetItemByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	cart, err := s.cartRepo.GetOrCreateByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if item.CartID != cart.ID {
		s.log.Warn("cart item ownership mismatch",
			slog.Int64("userID", userID),
			slog.Int64("itemID", itemID),
		)
		return nil, ErrNotAllowed
	}
	return cart, nil
}

func (s *cartService) buildView(ctx context.Context, cart *models.Cart) (*CartView, error) {
	items, err := s.cartRepo.GetItems(ctx, cart.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart items: %w", err)
	}

	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	if items == nil {
		items = []*models.CartItem{}
	}

	return &CartView{
		ID:          cart.ID,
		UserID:      cart.UserID,
		Items:       items,
		TotalAmount: total,
		ItemCount:   len(items),
	}, nil
}

func (s *cartService) rollback(tx *sql.Tx, logger *slog.Logger) {
	if rbErr := tx.Rollback(); rbErr != nil {
		logger.Error("transaction rollback failed", slog.Any("error", rbErr))
	}
}
