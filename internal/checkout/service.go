package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"thriftstore/internal/auth"
	"thriftstore/internal/events"
	"thriftstore/internal/lock"
	"thriftstore/internal/models"
	"thriftstore/internal/payment"
	"thriftstore/internal/store"
)

// Settings carries the gateway values the workflow needs at request time.
type Settings struct {
	KeySecret       string
	Currency        string
	MinorUnitFactor int64
}

// Deps are the collaborators of Service. Lock and Events are optional.
type Deps struct {
	Orders  OrderStore
	Carts   CartStore
	Gateway Gateway
	Tx      Transactor
	Lock    Locker
	Events  Publisher
	Logger  *zap.Logger
	Now     func() time.Time
}

// Requester identifies the authenticated caller.
type Requester struct {
	UserID primitive.ObjectID
	Role   string
}

func (r Requester) IsAdmin() bool { return r.Role == auth.RoleAdmin }

// PlaceOrderInput is the client's payment confirmation plus the checkout
// snapshot to persist.
type PlaceOrderInput struct {
	RazorpayOrderID   string
	RazorpayPaymentID string
	RazorpaySignature string
	Items             []models.OrderItem
	TotalAmount       float64
	ShippingAddress   models.ShippingAddress
}

type Service struct {
	orders   OrderStore
	carts    CartStore
	gateway  Gateway
	tx       Transactor
	lock     Locker
	events   Publisher
	logger   *zap.Logger
	now      func() time.Time
	settings Settings
}

func NewService(deps Deps, settings Settings) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	tx := deps.Tx
	if tx == nil {
		tx = inlineTx{}
	}
	return &Service{
		orders:   deps.Orders,
		carts:    deps.Carts,
		gateway:  deps.Gateway,
		tx:       tx,
		lock:     deps.Lock,
		events:   deps.Events,
		logger:   logger.With(zap.String("component", "checkout")),
		now:      now,
		settings: settings,
	}
}

// InitiatePayment opens a gateway order for a major-unit amount. Nothing is
// persisted.
func (s *Service) InitiatePayment(ctx context.Context, amount decimal.Decimal) (*payment.Order, error) {
	minor, err := payment.ToMinorUnits(amount, s.settings.MinorUnitFactor)
	if err != nil {
		return nil, &ValidationError{Field: "amount", Reason: err.Error()}
	}

	req := payment.OrderRequest{
		Amount:   minor,
		Currency: s.settings.Currency,
		Receipt:  payment.NewReceipt(s.now()),
	}

	order, err := s.gateway.CreateOrder(ctx, req)
	if err != nil {
		s.logger.Error("razorpay order creation failed",
			zap.Int64("amount", minor),
			zap.String("receipt", req.Receipt),
			zap.Error(err))
		return nil, &GatewayError{Err: err}
	}

	s.logger.Info("razorpay order created",
		zap.String("razorpayOrderId", order.ID),
		zap.Int64("amount", order.Amount),
		zap.String("receipt", req.Receipt))
	return order, nil
}

// VerifyAndPlaceOrder checks the gateway signature and, only when it matches,
// persists the order and clears the buyer's cart. created is false when the
// same user resubmits a confirmation that already produced an order; the
// existing order is returned in that case.
func (s *Service) VerifyAndPlaceOrder(ctx context.Context, userID primitive.ObjectID, in PlaceOrderInput) (order *models.Order, created bool, err error) {
	if err := validatePlaceOrder(in); err != nil {
		return nil, false, err
	}

	if !payment.VerifySignature(s.settings.KeySecret, in.RazorpayOrderID, in.RazorpayPaymentID, in.RazorpaySignature) {
		s.logger.Warn("payment signature mismatch",
			zap.String("userId", userID.Hex()),
			zap.String("razorpayOrderId", in.RazorpayOrderID),
			zap.String("razorpayPaymentId", in.RazorpayPaymentID))
		return nil, false, ErrInvalidSignature
	}

	release, err := s.acquire(ctx, in.RazorpayPaymentID)
	if err != nil {
		return nil, false, err
	}
	defer release()

	existing, err := s.orders.FindByPaymentID(ctx, in.RazorpayPaymentID)
	switch {
	case err == nil:
		return s.replay(userID, existing)
	case !errors.Is(err, store.ErrNotFound):
		return nil, false, &PersistenceError{Op: "lookup payment", Err: err}
	}

	s.checkTotal(in)

	order = &models.Order{
		UserID:          userID,
		Items:           in.Items,
		TotalAmount:     in.TotalAmount,
		ShippingAddress: in.ShippingAddress,
		PaymentDetails: models.PaymentDetails{
			RazorpayOrderID:   in.RazorpayOrderID,
			RazorpayPaymentID: in.RazorpayPaymentID,
			RazorpaySignature: in.RazorpaySignature,
			PaymentStatus:     models.PaymentStatusCompleted,
		},
		OrderStatus: models.OrderStatusConfirmed,
		CreatedAt:   s.now().UTC(),
	}

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.orders.Insert(ctx, order); err != nil {
			return err
		}
		if !s.tx.Transactional() {
			return nil
		}
		_, err := s.carts.DeleteByUser(ctx, userID)
		return err
	})
	if errors.Is(err, store.ErrDuplicatePayment) {
		existing, findErr := s.orders.FindByPaymentID(ctx, in.RazorpayPaymentID)
		if findErr != nil {
			return nil, false, &PersistenceError{Op: "lookup payment", Err: findErr}
		}
		return s.replay(userID, existing)
	}
	if err != nil {
		s.logger.Error("order persistence failed after verified payment",
			zap.String("userId", userID.Hex()),
			zap.String("razorpayPaymentId", in.RazorpayPaymentID),
			zap.Error(err))
		return nil, false, &PersistenceError{Op: "create order", Err: err}
	}

	if !s.tx.Transactional() {
		if _, err := s.carts.DeleteByUser(ctx, userID); err != nil {
			// The order stands; leftover cart items are cleared by the user.
			s.logger.Warn("cart clear failed after order placement",
				zap.String("orderId", order.ID.Hex()),
				zap.String("userId", userID.Hex()),
				zap.Error(err))
		}
	}

	s.logger.Info("order placed",
		zap.String("orderId", order.ID.Hex()),
		zap.String("userId", userID.Hex()),
		zap.Float64("totalAmount", order.TotalAmount))
	s.publish(ctx, events.OrderPlaced, order)
	return order, true, nil
}

// GetOrder returns the order when the requester owns it or is an admin.
func (s *Service) GetOrder(ctx context.Context, id primitive.ObjectID, requester Requester) (*models.Order, error) {
	order, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.UserID != requester.UserID && !requester.IsAdmin() {
		return nil, ErrForbidden
	}
	return order, nil
}

func (s *Service) ListUserOrders(ctx context.Context, userID primitive.ObjectID) ([]models.Order, error) {
	orders, err := s.orders.FindByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list user orders: %w", err)
	}
	return orders, nil
}

func (s *Service) ListAllOrders(ctx context.Context, page store.Page) ([]models.Order, error) {
	orders, err := s.orders.FindAll(ctx, page)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

// CancelOrder lets the owner cancel an order that has not shipped yet.
func (s *Service) CancelOrder(ctx context.Context, id, userID primitive.ObjectID) (*models.Order, error) {
	order, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, ErrForbidden
	}
	if order.OrderStatus != models.OrderStatusPending && order.OrderStatus != models.OrderStatusConfirmed {
		return nil, &TransitionError{From: order.OrderStatus, To: models.OrderStatusCancelled}
	}

	updated, err := s.transition(ctx, order, models.OrderStatusCancelled, nil)
	if err != nil {
		return nil, err
	}

	s.logger.Info("order cancelled", zap.String("orderId", id.Hex()), zap.String("userId", userID.Hex()))
	s.publish(ctx, events.OrderCancelled, updated)
	return updated, nil
}

// UpdateStatus is the administrative transition. Any known status may be set
// except that a cancelled order stays cancelled. Moving to delivered stamps
// deliveredAt.
func (s *Service) UpdateStatus(ctx context.Context, id primitive.ObjectID, status string) (*models.Order, error) {
	status = strings.TrimSpace(status)
	if !models.ValidOrderStatus(status) {
		return nil, &ValidationError{Field: "orderStatus", Reason: "is invalid"}
	}

	order, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.OrderStatus == models.OrderStatusCancelled && status != models.OrderStatusCancelled {
		return nil, &TransitionError{From: order.OrderStatus, To: status}
	}

	var deliveredAt *time.Time
	if status == models.OrderStatusDelivered {
		at := s.now().UTC()
		deliveredAt = &at
	}

	updated, err := s.transition(ctx, order, status, deliveredAt)
	if err != nil {
		return nil, err
	}

	s.logger.Info("order status updated",
		zap.String("orderId", id.Hex()),
		zap.String("from", order.OrderStatus),
		zap.String("to", status))
	s.publish(ctx, events.OrderStatusUpdated, updated)
	return updated, nil
}

func (s *Service) find(ctx context.Context, id primitive.ObjectID) (*models.Order, error) {
	order, err := s.orders.FindByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find order: %w", err)
	}
	return order, nil
}

func (s *Service) transition(ctx context.Context, order *models.Order, status string, deliveredAt *time.Time) (*models.Order, error) {
	updated, err := s.orders.UpdateStatus(ctx, order.ID, order.OrderStatus, status, deliveredAt)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrConcurrentUpdate
	}
	if err != nil {
		return nil, &PersistenceError{Op: "update order status", Err: err}
	}
	return updated, nil
}

func (s *Service) replay(userID primitive.ObjectID, existing *models.Order) (*models.Order, bool, error) {
	if existing.UserID != userID {
		s.logger.Warn("payment id reused by another user",
			zap.String("orderId", existing.ID.Hex()),
			zap.String("userId", userID.Hex()))
		return nil, false, ErrPaymentAlreadyUsed
	}
	s.logger.Info("payment confirmation replayed", zap.String("orderId", existing.ID.Hex()))
	return existing, false, nil
}

// acquire serialises confirmations for one payment id. A Redis outage does not
// block checkout; the unique payment index still rejects duplicates.
func (s *Service) acquire(ctx context.Context, paymentID string) (func(), error) {
	noop := func() {}
	if s.lock == nil {
		return noop, nil
	}

	release, err := s.lock.Acquire(ctx, paymentID)
	if errors.Is(err, lock.ErrLocked) {
		return nil, ErrPaymentInProgress
	}
	if err != nil {
		s.logger.Warn("payment lock unavailable", zap.String("razorpayPaymentId", paymentID), zap.Error(err))
		return noop, nil
	}
	return release, nil
}

// checkTotal logs when the client total disagrees with its own line items.
// The client total is what gets stored.
func (s *Service) checkTotal(in PlaceOrderInput) {
	sum := decimal.Zero
	for _, item := range in.Items {
		sum = sum.Add(decimal.NewFromFloat(item.Price).Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	if !sum.Equal(decimal.NewFromFloat(in.TotalAmount)) {
		s.logger.Warn("client total differs from item total",
			zap.String("razorpayPaymentId", in.RazorpayPaymentID),
			zap.Float64("totalAmount", in.TotalAmount),
			zap.String("itemsTotal", sum.String()))
	}
}

func (s *Service) publish(ctx context.Context, event string, order *models.Order) {
	if s.events == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
	defer cancel()

	data := map[string]interface{}{
		"orderId":           order.ID.Hex(),
		"userId":            order.UserID.Hex(),
		"orderStatus":       order.OrderStatus,
		"totalAmount":       order.TotalAmount,
		"razorpayPaymentId": order.PaymentDetails.RazorpayPaymentID,
	}
	if err := s.events.Publish(ctx, event, data); err != nil {
		s.logger.Warn("event publish failed", zap.String("event", event), zap.String("orderId", order.ID.Hex()), zap.Error(err))
	}
}

type inlineTx struct{}

func (inlineTx) Transactional() bool { return false }

func (inlineTx) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func validatePlaceOrder(in PlaceOrderInput) error {
	required := []struct {
		field string
		value string
	}{
		{"razorpayOrderId", in.RazorpayOrderID},
		{"razorpayPaymentId", in.RazorpayPaymentID},
		{"razorpaySignature", in.RazorpaySignature},
		{"shippingAddress.fullName", in.ShippingAddress.FullName},
		{"shippingAddress.phone", in.ShippingAddress.Phone},
		{"shippingAddress.address", in.ShippingAddress.Address},
		{"shippingAddress.city", in.ShippingAddress.City},
		{"shippingAddress.state", in.ShippingAddress.State},
		{"shippingAddress.pincode", in.ShippingAddress.Pincode},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return &ValidationError{Field: r.field, Reason: "is required"}
		}
	}

	if len(in.Items) == 0 {
		return &ValidationError{Field: "items", Reason: "must contain at least one item"}
	}
	for i, item := range in.Items {
		if item.ProductID.IsZero() {
			return &ValidationError{Field: fmt.Sprintf("items[%d].productId", i), Reason: "is required"}
		}
		if item.Quantity <= 0 {
			return &ValidationError{Field: fmt.Sprintf("items[%d].quantity", i), Reason: "must be greater than zero"}
		}
		if item.Price < 0 {
			return &ValidationError{Field: fmt.Sprintf("items[%d].price", i), Reason: "must not be negative"}
		}
	}

	if in.TotalAmount <= 0 {
		return &ValidationError{Field: "totalAmount", Reason: "must be greater than zero"}
	}
	return nil
}
