package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/linemk/order-service/internal/storage"
)

// OrderService — чтение заказов пользователя.
type OrderService interface {
	ListOrders(ctx context.Context, userID int64) ([]*OrderView, error)
	GetOrder(ctx context.Context, userID, orderID int64) (*OrderView, error)
}

type orderService struct {
	log       *slog.Logger
	orderRepo storage.OrderStorage
}

func NewOrderService(log *slog.Logger, orderRepo storage.OrderStorage) OrderService {
	return &orderService{
		log:       log,
		orderRepo: orderRepo,
	}
}

func (s *orderService) ListOrders(ctx context.Context, userID int64) ([]*OrderView, error) {
	const op = "service.OrderService.ListOrders"

	orders, err := s.orderRepo.GetOrdersByUserID(ctx, userID)
	if err != nil {
		s.log.Error("failed to list orders", slog.String("op", op), slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to list orders: %w", op, err)
	}

	views := make([]*OrderView, 0, len(orders))
	for _, order := range orders {
		items, err := s.orderRepo.GetOrderItems(ctx, order.ID)
		if err != nil {
			s.log.Error("failed to load order items", slog.String("op", op), slog.Any("error", err))
			return nil, fmt.Errorf("%s: failed to load order items: %w", op, err)
		}
		views = append(views, &OrderView{Order: order, Items: items})
	}
	return views, nil
}

// GetOrder возвращает заказ владельцу; чужой заказ неотличим от несуществующего.
func (s *orderService) GetOrder(ctx context.Context, userID, orderID int64) (*OrderView, error) {
	const op = "service.OrderService.GetOrder"

	order, err := s.orderRepo.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if order.UserID != userID {
		s.log.Warn("order ownership mismatch",
			slog.String("op", op),
			slog.Int64("userID", userID),
			slog.Int64("orderID", orderID),
		)
		return nil, fmt.Errorf("%s: %w", op, storage.ErrOrderNotFound)
	}

	items, err := s.orderRepo.GetOrderItems(ctx, orderID)
	if err != nil {
		s.log.Error("failed to load order items", slog.String("op", op), slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to load order items: %w", op, err)
	}
	return &OrderView{Order: order, Items: items}, nil
}
