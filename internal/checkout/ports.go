package checkout

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"thriftstore/internal/events"
	"thriftstore/internal/lock"
	"thriftstore/internal/models"
	"thriftstore/internal/payment"
	"thriftstore/internal/store"
)

type OrderStore interface {
	Insert(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error)
	FindByPaymentID(ctx context.Context, paymentID string) (*models.Order, error)
	FindByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Order, error)
	FindAll(ctx context.Context, page store.Page) ([]models.Order, error)
	UpdateStatus(ctx context.Context, id primitive.ObjectID, expected, status string, deliveredAt *time.Time) (*models.Order, error)
}

type CartStore interface {
	DeleteByUser(ctx context.Context, userID primitive.ObjectID) (int64, error)
}

type Gateway interface {
	CreateOrder(ctx context.Context, req payment.OrderRequest) (*payment.Order, error)
}

type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
	Transactional() bool
}

type Locker interface {
	Acquire(ctx context.Context, name string) (func(), error)
}

type Publisher interface {
	Publish(ctx context.Context, routingKey string, data interface{}) error
}

var (
	_ OrderStore = (*store.OrderRepository)(nil)
	_ CartStore  = (*store.CartRepository)(nil)
	_ Gateway    = (*payment.Client)(nil)
	_ Transactor = (*store.Transactor)(nil)
	_ Locker     = (*lock.RedisLock)(nil)
	_ Publisher  = (*events.Publisher)(nil)
)
