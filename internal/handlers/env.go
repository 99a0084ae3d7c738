package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"thriftstore/internal/checkout"
	"thriftstore/internal/models"
	"thriftstore/internal/payment"
	"thriftstore/internal/store"
)

const defaultRequestTimeout = 5 * time.Second

// OrderService is the order workflow behind the order routes.
type OrderService interface {
	InitiatePayment(ctx context.Context, amount decimal.Decimal) (*payment.Order, error)
	VerifyAndPlaceOrder(ctx context.Context, userID primitive.ObjectID, in checkout.PlaceOrderInput) (*models.Order, bool, error)
	GetOrder(ctx context.Context, id primitive.ObjectID, requester checkout.Requester) (*models.Order, error)
	ListUserOrders(ctx context.Context, userID primitive.ObjectID) ([]models.Order, error)
	ListAllOrders(ctx context.Context, page store.Page) ([]models.Order, error)
	CancelOrder(ctx context.Context, id, userID primitive.ObjectID) (*models.Order, error)
	UpdateStatus(ctx context.Context, id primitive.ObjectID, status string) (*models.Order, error)
}

type CartStore interface {
	Insert(ctx context.Context, item *models.CartItem) error
	FindByUser(ctx context.Context, userID primitive.ObjectID) ([]models.CartItem, error)
	UpdateQuantity(ctx context.Context, id, userID primitive.ObjectID, quantity int) (*models.CartItem, error)
	DeleteByID(ctx context.Context, id, userID primitive.ObjectID) error
}

// HealthCheck reports whether one backing service is reachable.
type HealthCheck func(ctx context.Context) error

// Env holds what the handlers need at request time.
type Env struct {
	Orders    OrderService
	Carts     CartStore
	Checks    map[string]HealthCheck
	JWTSecret string
	Timeout   time.Duration
	Logger    *zap.Logger
	Now       func() time.Time
}

var (
	_ OrderService = (*checkout.Service)(nil)
	_ CartStore    = (*store.CartRepository)(nil)
)

func (e *Env) requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	timeout := e.Timeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return context.WithTimeout(c.Request.Context(), timeout)
}

func (e *Env) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Env) logger(component string) *zap.Logger {
	logger := e.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return logger.With(zap.String("component", component))
}
