package service_test

import (
	"context"
	"database/sql"
	"errors"

	"github.com/linemk/order-service/internal/domain/models"
	"github.com/linemk/order-service/internal/gateway"
	"github.com/linemk/order-service/internal/storage"
	"github.com/shopspring/decimal"
)

// Фейки для сервисных тестов: транзакции эмулирует sqlmock,
// а хранилища подменяются in-memory реализациями.

type fakeUserRepo struct {
	users map[string]*models.User // ключ — email
}

var _ storage.UserStorage = (*fakeUserRepo)(nil)

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*models.User)}
}

func (f *fakeUserRepo) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	user, ok := f.users[email]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	return user, nil
}

func (f *fakeUserRepo) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	user.ID = int64(len(f.users) + 1)
	f.users[user.Email] = user
	return user, nil
}

func (f *fakeUserRepo) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	for _, u := range f.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, storage.ErrUserNotFound
}

type fakeCartRepo struct {
	carts      map[int64]*models.Cart        // ключ: userID
	items      map[int64][]*models.CartItem  // ключ: cartID
	nextCartID int64
	nextItemID int64
}

var _ storage.CartStorage = (*fakeCartRepo)(nil)

func newFakeCartRepo() *fakeCartRepo {
	return &fakeCartRepo{
		carts:      make(map[int64]*models.Cart),
		items:      make(map[int64][]*models.CartItem),
		nextCartID: 1,
		nextItemID: 1,
	}
}

func (f *fakeCartRepo) GetOrCreateByUserID(ctx context.Context, userID int64) (*models.Cart, error) {
	if cart, ok := f.carts[userID]; ok {
		return cart, nil
	}
	cart := &models.Cart{ID: f.nextCartID, UserID: userID}
	f.nextCartID++
	f.carts[userID] = cart
	return cart, nil
}

func (f *fakeCartRepo) GetByUserID(ctx context.Context, userID int64) (*models.Cart, error) {
	cart, ok := f.carts[userID]
	if !ok {
		return nil, storage.ErrCartNotFound
	}
	return cart, nil
}

func (f *fakeCartRepo) LockByIDTx(ctx context.Context, tx *sql.Tx, cartID int64) (*models.Cart, error) {
	for _, cart := range f.carts {
		if cart.ID == cartID {
			return cart, nil
		}
	}
	return nil, storage.ErrCartNotFound
}

func (f *fakeCartRepo) GetItems(ctx context.Context, cartID int64) ([]*models.CartItem, error) {
	return f.items[cartID], nil
}

func (f *fakeCartRepo) GetItemByID(ctx context.Context, itemID int64) (*models.CartItem, error) {
	for _, items := range f.items {
		for _, item := range items {
			if item.ID == itemID {
				return item, nil
			}
		}
	}
	return nil, storage.ErrCartItemNotFound
}

func (f *fakeCartRepo) UpsertItemTx(ctx context.Context, tx *sql.Tx, cartID, productID int64, quantity int, price decimal.Decimal) error {
	for _, item := range f.items[cartID] {
		if item.ProductID == productID {
			item.Quantity += quantity
			return nil
		}
	}
	f.items[cartID] = append(f.items[cartID], &models.CartItem{
		ID:        f.nextItemID,
		CartID:    cartID,
		ProductID: productID,
		Quantity:  quantity,
		Price:     price,
	})
	f.nextItemID++
	return nil
}

func (f *fakeCartRepo) UpdateItemQuantityTx(ctx context.Context, tx *sql.Tx, itemID int64, quantity int) error {
	item, err := f.GetItemByID(ctx, itemID)
	if err != nil {
		return err
	}
	item.Quantity = quantity
	return nil
}

func (f *fakeCartRepo) DeleteItemTx(ctx context.Context, tx *sql.Tx, itemID int64) error {
	for cartID, items := range f.items {
		for i, item := range items {
			if item.ID == itemID {
				f.items[cartID] = append(items[:i], items[i+1:]...)
				return nil
			}
		}
	}
	return storage.ErrCartItemNotFound
}

func (f *fakeCartRepo) DeleteItemsByCartIDTx(ctx context.Context, tx *sql.Tx, cartID int64) error {
	f.items[cartID] = nil
	return nil
}

func (f *fakeCartRepo) TouchTx(ctx context.Context, tx *sql.Tx, cartID int64) error {
	return nil
}

type fakeOrderRepo struct {
	orders  map[int64]*models.Order
	items   map[int64][]*models.OrderItem // ключ: orderID
	nextID  int64
	lockErr error // подменяет результат LockOrderByIDTx
}

var _ storage.OrderStorage = (*fakeOrderRepo)(nil)

func newFakeOrderRepo(orders ...*models.Order) *fakeOrderRepo {
	repo := &fakeOrderRepo{
		orders: make(map[int64]*models.Order),
		items:  make(map[int64][]*models.OrderItem),
		nextID: 1,
	}
	for _, o := range orders {
		repo.orders[o.ID] = o
		if o.ID >= repo.nextID {
			repo.nextID = o.ID + 1
		}
	}
	return repo
}

func (f *fakeOrderRepo) CreateOrderTx(ctx context.Context, tx *sql.Tx, order *models.Order) (int64, error) {
	id := f.nextID
	f.nextID++
	stored := *order
	stored.ID = id
	f.orders[id] = &stored
	return id, nil
}

func (f *fakeOrderRepo) CreateOrderItemTx(ctx context.Context, tx *sql.Tx, item *models.OrderItem) error {
	f.items[item.OrderID] = append(f.items[item.OrderID], item)
	return nil
}

func (f *fakeOrderRepo) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	order, ok := f.orders[id]
	if !ok {
		return nil, storage.ErrOrderNotFound
	}
	copied := *order
	return &copied, nil
}

func (f *fakeOrderRepo) GetOrderByIntentID(ctx context.Context, intentID string) (*models.Order, error) {
	for _, o := range f.orders {
		if o.PaymentIntentID == intentID {
			copied := *o
			return &copied, nil
		}
	}
	return nil, storage.ErrOrderNotFound
}

func (f *fakeOrderRepo) GetOrdersByUserID(ctx context.Context, userID int64) ([]*models.Order, error) {
	var orders []*models.Order
	for _, o := range f.orders {
		if o.UserID == userID {
			copied := *o
			orders = append(orders, &copied)
		}
	}
	return orders, nil
}

func (f *fakeOrderRepo) GetOrderItems(ctx context.Context, orderID int64) ([]*models.OrderItem, error) {
	return f.items[orderID], nil
}

func (f *fakeOrderRepo) LockOrderByIDTx(ctx context.Context, tx *sql.Tx, id int64) (*models.Order, error) {
	if f.lockErr != nil {
		return nil, f.lockErr
	}
	return f.GetOrderByID(ctx, id)
}

func (f *fakeOrderRepo) UpdateOrderPaymentTx(ctx context.Context, tx *sql.Tx, order *models.Order) error {
	stored, ok := f.orders[order.ID]
	if !ok {
		return storage.ErrOrderNotFound
	}
	stored.Status = order.Status
	stored.PaymentStatus = order.PaymentStatus
	stored.PaymentIntentID = order.PaymentIntentID
	stored.FailureReason = order.FailureReason
	return nil
}

type fakeEventRepo struct {
	processed map[string]string // event_id -> event_type
}

var _ storage.WebhookEventStorage = (*fakeEventRepo)(nil)

func newFakeEventRepo() *fakeEventRepo {
	return &fakeEventRepo{processed: make(map[string]string)}
}

func (f *fakeEventRepo) MarkProcessedTx(ctx context.Context, tx *sql.Tx, eventID, eventType string) error {
	if _, ok := f.processed[eventID]; ok {
		return storage.ErrEventAlreadyProcessed
	}
	f.processed[eventID] = eventType
	return nil
}

type fakeGateway struct {
	createErr    error
	retrieveErr  error
	cancelErr    error
	created      []gateway.CreateIntentInput
	cancelled    []string
	nextIntentID string
	status       string
}

var _ gateway.Client = (*fakeGateway)(nil)

func newFakeGateway() *fakeGateway {
	return &fakeGateway{nextIntentID: "pi_test_123", status: "requires_payment_method"}
}

func (f *fakeGateway) CreateIntent(ctx context.Context, in gateway.CreateIntentInput) (*gateway.Intent, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, in)
	return &gateway.Intent{
		ID:           f.nextIntentID,
		ClientSecret: f.nextIntentID + "_secret",
		Status:       f.status,
		Amount:       in.Amount,
		Currency:     "pkr",
	}, nil
}

func (f *fakeGateway) RetrieveIntent(ctx context.Context, intentID string) (*gateway.Intent, error) {
	if f.retrieveErr != nil {
		return nil, f.retrieveErr
	}
	return &gateway.Intent{
		ID:       intentID,
		Status:   f.status,
		Amount:   decimal.NewFromInt(2500),
		Currency: "pkr",
	}, nil
}

func (f *fakeGateway) CancelIntent(ctx context.Context, intentID string) error {
	f.cancelled = append(f.cancelled, intentID)
	return f.cancelErr
}

func (f *fakeGateway) Currency() string { return "pkr" }

var errBoom = errors.New("boom")
