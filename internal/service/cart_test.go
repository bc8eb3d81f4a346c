package service_test

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/linemk/order-service/internal/service"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func newCartService(t *testing.T) (service.CartService, *fakeCartRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	cartRepo := newFakeCartRepo()
	svc := service.NewCartService(logger, db, cartRepo)
	return svc, cartRepo, mock
}

func TestGetCart_CreatedLazily(t *testing.T) {
	svc, _, mock := newCartService(t)

	view, err := svc.GetCart(context.Background(), 1)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), view.UserID)
	assert.Empty(t, view.Items)
	assert.Equal(t, 0, view.ItemCount)
	assert.True(t, view.TotalAmount.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddItem_SameProductMergesQuantity(t *testing.T) {
	svc, _, mock := newCartService(t)
	price := decimal.RequireFromString("1000.00")

	mock.ExpectBegin()
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectCommit()

	_, err := svc.AddItem(context.Background(), 1, 5, 2, price)
	assert.NoError(t, err)

	view, err := svc.AddItem(context.Background(), 1, 5, 3, price)
	assert.NoError(t, err)

	// один и тот же товар не плодит строки, количество суммируется
	assert.Len(t, view.Items, 1)
	assert.Equal(t, 5, view.Items[0].Quantity)
	assert.True(t, view.TotalAmount.Equal(decimal.NewFromInt(5000)), "total=%s", view.TotalAmount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddItem_BadQuantityRejected(t *testing.T) {
	svc, _, mock := newCartService(t)

	_, err := svc.AddItem(context.Background(), 1, 5, 0, decimal.NewFromInt(100))
	assert.ErrorIs(t, err, service.ErrBadQuantity)

	_, err = svc.AddItem(context.Background(), 1, 5, -1, decimal.NewFromInt(100))
	assert.ErrorIs(t, err, service.ErrBadQuantity)

	_, err = svc.AddItem(context.Background(), 1, 5, 1, decimal.NewFromInt(-100))
	assert.ErrorIs(t, err, service.ErrBadQuantity)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateItemQuantity_Success(t *testing.T) {
	svc, _, mock := newCartService(t)

	mock.ExpectBegin()
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectCommit()

	view, err := svc.AddItem(context.Background(), 1, 5, 2, decimal.NewFromInt(100))
	assert.NoError(t, err)
	itemID := view.Items[0].ID

	view, err = svc.UpdateItemQuantity(context.Background(), 1, itemID, 7)
	assert.NoError(t, err)
	assert.Equal(t, 7, view.Items[0].Quantity)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateItemQuantity_ForeignItemForbidden(t *testing.T) {
	svc, _, mock := newCartService(t)

	mock.ExpectBegin()
	mock.ExpectCommit()

	// позиция в корзине пользователя 1
	view, err := svc.AddItem(context.Background(), 1, 5, 2, decimal.NewFromInt(100))
	assert.NoError(t, err)
	itemID := view.Items[0].ID

	// пользователь 2 пытается её изменить
	_, err = svc.UpdateItemQuantity(context.Background(), 2, itemID, 7)
	assert.ErrorIs(t, err, service.ErrNotAllowed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRemoveItem_ForeignItemForbidden(t *testing.T) {
	svc, _, mock := newCartService(t)

	mock.ExpectBegin()
	mock.ExpectCommit()

	view, err := svc.AddItem(context.Background(), 1, 5, 2, decimal.NewFromInt(100))
	assert.NoError(t, err)
	itemID := view.Items[0].ID

	err = svc.RemoveItem(context.Background(), 2, itemID)
	assert.ErrorIs(t, err, service.ErrNotAllowed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClearCart_DrainsAllItems(t *testing.T) {
	svc, cartRepo, mock := newCartService(t)

	mock.ExpectBegin()
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectCommit()
	mock.ExpectBegin()
	mock.ExpectCommit()

	_, err := svc.AddItem(context.Background(), 1, 5, 2, decimal.NewFromInt(100))
	assert.NoError(t, err)
	_, err = svc.AddItem(context.Background(), 1, 6, 1, decimal.NewFromInt(200))
	assert.NoError(t, err)

	assert.NoError(t, svc.ClearCart(context.Background(), 1))

	// корзина осталась, позиций нет
	cart, err := cartRepo.GetByUserID(context.Background(), 1)
	assert.NoError(t, err)
	items, _ := cartRepo.GetItems(context.Background(), cart.ID)
	assert.Empty(t, items)
	assert.NoError(t, mock.ExpectationsWereMet())
}
