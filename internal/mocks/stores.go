package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"thriftstore/internal/models"
	"thriftstore/internal/store"
)

// OrderStore is an in-memory order repository that enforces the unique
// payment id the Mongo index provides.
type OrderStore struct {
	mu     sync.Mutex
	orders map[primitive.ObjectID]models.Order

	InsertErr error
	UpdateErr error
}

func NewOrderStore() *OrderStore {
	return &OrderStore{orders: map[primitive.ObjectID]models.Order{}}
}

func (s *OrderStore) Insert(ctx context.Context, order *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.InsertErr != nil {
		return s.InsertErr
	}
	for _, existing := range s.orders {
		if existing.PaymentDetails.RazorpayPaymentID != "" &&
			existing.PaymentDetails.RazorpayPaymentID == order.PaymentDetails.RazorpayPaymentID {
			return store.ErrDuplicatePayment
		}
	}
	if order.ID.IsZero() {
		order.ID = primitive.NewObjectID()
	}
	s.orders[order.ID] = cloneOrder(*order)
	return nil
}

// Put seeds an order directly.
func (s *OrderStore) Put(order models.Order) models.Order {
	s.mu.Lock()
	defer s.mu.Unlock()

	if order.ID.IsZero() {
		order.ID = primitive.NewObjectID()
	}
	s.orders[order.ID] = cloneOrder(order)
	return order
}

func (s *OrderStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

func (s *OrderStore) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.orders[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := cloneOrder(order)
	return &out, nil
}

func (s *OrderStore) FindByPaymentID(ctx context.Context, paymentID string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, order := range s.orders {
		if order.PaymentDetails.RazorpayPaymentID == paymentID {
			out := cloneOrder(order)
			return &out, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *OrderStore) FindByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Order, error) {
	return s.list(func(o models.Order) bool { return o.UserID == userID }, store.Page{}), nil
}

func (s *OrderStore) FindAll(ctx context.Context, page store.Page) ([]models.Order, error) {
	return s.list(func(models.Order) bool { return true }, page), nil
}

func (s *OrderStore) UpdateStatus(ctx context.Context, id primitive.ObjectID, expected, status string, deliveredAt *time.Time) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.UpdateErr != nil {
		return nil, s.UpdateErr
	}
	order, ok := s.orders[id]
	if !ok || order.OrderStatus != expected {
		return nil, store.ErrNotFound
	}
	order.OrderStatus = status
	if deliveredAt != nil {
		at := *deliveredAt
		order.DeliveredAt = &at
	}
	s.orders[id] = order
	out := cloneOrder(order)
	return &out, nil
}

func (s *OrderStore) list(keep func(models.Order) bool, page store.Page) []models.Order {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []models.Order{}
	for _, order := range s.orders {
		if keep(order) {
			out = append(out, cloneOrder(order))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.Hex() > out[j].ID.Hex()
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if page.Skip > 0 {
		if page.Skip >= int64(len(out)) {
			return []models.Order{}
		}
		out = out[page.Skip:]
	}
	if page.Limit > 0 && page.Limit < int64(len(out)) {
		out = out[:page.Limit]
	}
	return out
}

func cloneOrder(o models.Order) models.Order {
	o.Items = append([]models.OrderItem(nil), o.Items...)
	if o.DeliveredAt != nil {
		at := *o.DeliveredAt
		o.DeliveredAt = &at
	}
	return o
}

// CartStore is an in-memory cart repository.
type CartStore struct {
	mu    sync.Mutex
	items map[primitive.ObjectID]models.CartItem

	ClearErr error
}

func NewCartStore() *CartStore {
	return &CartStore{items: map[primitive.ObjectID]models.CartItem{}}
}

func (s *CartStore) Insert(ctx context.Context, item *models.CartItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item.ID.IsZero() {
		item.ID = primitive.NewObjectID()
	}
	s.items[item.ID] = *item
	return nil
}

func (s *CartStore) FindByUser(ctx context.Context, userID primitive.ObjectID) ([]models.CartItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []models.CartItem{}
	for _, item := range s.items {
		if item.UserID == userID {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *CartStore) UpdateQuantity(ctx context.Context, id, userID primitive.ObjectID, quantity int) (*models.CartItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok || item.UserID != userID {
		return nil, store.ErrNotFound
	}
	item.Quantity = quantity
	s.items[id] = item
	return &item, nil
}

func (s *CartStore) DeleteByID(ctx context.Context, id, userID primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok || item.UserID != userID {
		return store.ErrNotFound
	}
	delete(s.items, id)
	return nil
}

func (s *CartStore) DeleteByUser(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ClearErr != nil {
		return 0, s.ClearErr
	}
	var n int64
	for id, item := range s.items {
		if item.UserID == userID {
			delete(s.items, id)
			n++
		}
	}
	return n, nil
}
