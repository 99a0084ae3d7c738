package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"thriftstore/internal/auth"
	"thriftstore/internal/checkout"
	"thriftstore/internal/mocks"
	"thriftstore/internal/models"
	"thriftstore/internal/payment"
)

const (
	testJWTSecret   = "jwt-secret"
	testKeyID       = "rzp_test_key"
	testKeySecret   = "rzp_test_secret"
	testMinorFactor = 100
)

var testNow = time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)

type testServer struct {
	router  *gin.Engine
	orders  *mocks.OrderStore
	carts   *mocks.CartStore
	gateway *fakeRazorpay
}

// fakeRazorpay records the order requests it receives. The server goroutine
// and the test share its fields through mu.
type fakeRazorpay struct {
	server *httptest.Server

	mu       sync.Mutex
	requests []payment.OrderRequest
	fail     bool
	delay    time.Duration
}

func (f *fakeRazorpay) setFail(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = fail
}

func (f *fakeRazorpay) setDelay(delay time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delay = delay
}

func (f *fakeRazorpay) recorded() []payment.OrderRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]payment.OrderRequest(nil), f.requests...)
}

func newFakeRazorpay(t *testing.T) *fakeRazorpay {
	t.Helper()
	f := &fakeRazorpay{}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != testKeyID || pass != testKeySecret {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		f.mu.Lock()
		fail, delay := f.fail, f.delay
		f.mu.Unlock()

		if delay > 0 {
			select {
			case <-r.Context().Done():
				return
			case <-time.After(delay):
			}
		}
		if fail {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`{"error":{"code":"SERVER_ERROR","description":"upstream down"}}`))
			return
		}

		var req payment.OrderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.requests = append(f.requests, req)
		id := fmt.Sprintf("order_%d", len(f.requests))
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(payment.Order{
			ID:        id,
			Entity:    "order",
			Amount:    req.Amount,
			AmountDue: req.Amount,
			Currency:  req.Currency,
			Receipt:   req.Receipt,
			Status:    "created",
			CreatedAt: testNow.Unix(),
		})
	}))
	t.Cleanup(f.server.Close)
	return f
}

func newTestServer(t *testing.T, opts ...func(*Env)) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ts := &testServer{
		orders:  mocks.NewOrderStore(),
		carts:   mocks.NewCartStore(),
		gateway: newFakeRazorpay(t),
	}

	svc := checkout.NewService(checkout.Deps{
		Orders:  ts.orders,
		Carts:   ts.carts,
		Gateway: payment.NewClient(ts.gateway.server.URL, testKeyID, testKeySecret, 2*time.Second),
		Tx:      mocks.Transactor{},
		Lock:    mocks.NewLock(),
		Now:     func() time.Time { return testNow },
	}, checkout.Settings{KeySecret: testKeySecret, Currency: "INR", MinorUnitFactor: testMinorFactor})

	env := &Env{
		Orders:    svc,
		Carts:     ts.carts,
		JWTSecret: testJWTSecret,
		Timeout:   2 * time.Second,
		Now:       func() time.Time { return testNow },
		Checks: map[string]HealthCheck{
			"mongo": func(context.Context) error { return nil },
		},
	}
	for _, opt := range opts {
		opt(env)
	}

	ts.router = gin.New()
	RegisterRoutes(ts.router, env)
	return ts
}

func token(t *testing.T, userID primitive.ObjectID, role string) string {
	t.Helper()
	raw, err := auth.IssueToken(testJWTSecret, userID, role, time.Hour)
	require.NoError(t, err)
	return raw
}

func (ts *testServer) do(t *testing.T, method, path, bearer string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var payload bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&payload).Encode(body))
	}
	req := httptest.NewRequest(method, path, &payload)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
}

func verifyBody(orderID, paymentID, signature string) gin.H {
	return gin.H{
		"razorpayOrderId":   orderID,
		"razorpayPaymentId": paymentID,
		"razorpaySignature": signature,
		"items": []gin.H{
			{"productId": primitive.NewObjectID().Hex(), "name": "Wool coat", "price": 700, "quantity": 1, "size": "L"},
			{"productId": primitive.NewObjectID().Hex(), "name": "Leather belt", "price": 150, "quantity": 2},
		},
		"totalAmount": 1000,
		"shippingAddress": gin.H{
			"fullName": "Ravi Kumar",
			"phone":    "9123456780",
			"address":  "4 Park Street",
			"city":     "Kolkata",
			"state":    "WB",
			"pincode":  "700016",
		},
	}
}

type orderResponse struct {
	Message string       `json:"message"`
	Order   models.Order `json:"order"`
}

func TestCheckoutFlowEndToEnd(t *testing.T) {
	ts := newTestServer(t)
	buyer := primitive.NewObjectID()
	bearer := token(t, buyer, auth.RoleCustomer)

	w := ts.do(t, http.MethodPost, "/api/cart/add", bearer, gin.H{"productId": primitive.NewObjectID().Hex(), "quantity": 2})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = ts.do(t, http.MethodPost, "/api/orders/create-razorpay-order", bearer, gin.H{"amount": 1000})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var intent payment.Order
	decode(t, w, &intent)
	assert.Equal(t, "order_1", intent.ID)
	assert.Equal(t, int64(100000), intent.Amount)
	assert.Equal(t, "INR", intent.Currency)
	requests := ts.gateway.recorded()
	require.Len(t, requests, 1)
	assert.Equal(t, fmt.Sprintf("receipt_%d", testNow.UnixMilli()), requests[0].Receipt)

	signature := payment.Sign(testKeySecret, intent.ID, "pay_42")
	w = ts.do(t, http.MethodPost, "/api/orders/verify-payment", bearer, verifyBody(intent.ID, "pay_42", signature))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var placed orderResponse
	decode(t, w, &placed)
	assert.Equal(t, "Order placed successfully", placed.Message)
	assert.Equal(t, models.OrderStatusConfirmed, placed.Order.OrderStatus)
	assert.Equal(t, models.PaymentStatusCompleted, placed.Order.PaymentDetails.PaymentStatus)
	assert.Equal(t, buyer, placed.Order.UserID)

	w = ts.do(t, http.MethodGet, "/api/cart", bearer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var cart []models.CartItem
	decode(t, w, &cart)
	assert.Empty(t, cart)

	w = ts.do(t, http.MethodGet, "/api/orders/my-orders", bearer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var mine []models.Order
	decode(t, w, &mine)
	require.Len(t, mine, 1)
	assert.Equal(t, placed.Order.ID, mine[0].ID)

	// Resubmitting the same confirmation returns the stored order.
	w = ts.do(t, http.MethodPost, "/api/orders/verify-payment", bearer, verifyBody(intent.ID, "pay_42", signature))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var replay orderResponse
	decode(t, w, &replay)
	assert.Equal(t, placed.Order.ID, replay.Order.ID)
	assert.Equal(t, 1, ts.orders.Len())
}

func TestVerifyPaymentRejectsTamperedSignature(t *testing.T) {
	ts := newTestServer(t)
	buyer := primitive.NewObjectID()
	bearer := token(t, buyer, auth.RoleCustomer)
	require.NoError(t, ts.carts.Insert(context.Background(), &models.CartItem{UserID: buyer, ProductID: primitive.NewObjectID(), Quantity: 1}))

	signature := payment.Sign(testKeySecret, "order_1", "pay_1")
	w := ts.do(t, http.MethodPost, "/api/orders/verify-payment", bearer, verifyBody("order_1", "pay_2", signature))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"invalid payment signature"}`, w.Body.String())
	assert.Equal(t, 0, ts.orders.Len())
	cart, _ := ts.carts.FindByUser(context.Background(), buyer)
	assert.Len(t, cart, 1)
}

func TestVerifyPaymentValidation(t *testing.T) {
	ts := newTestServer(t)
	bearer := token(t, primitive.NewObjectID(), auth.RoleCustomer)

	body := verifyBody("order_1", "pay_1", payment.Sign(testKeySecret, "order_1", "pay_1"))
	delete(body, "razorpaySignature")
	w := ts.do(t, http.MethodPost, "/api/orders/verify-payment", bearer, body)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp struct {
		Error   string   `json:"error"`
		Details []string `json:"details"`
	}
	decode(t, w, &resp)
	assert.Equal(t, "validation failed", resp.Error)
	assert.Contains(t, resp.Details, "razorpaySignature is required")

	body = verifyBody("order_1", "pay_1", payment.Sign(testKeySecret, "order_1", "pay_1"))
	body["items"] = []gin.H{{"productId": "not-an-id", "name": "Scarf", "price": 10, "quantity": 1}}
	w = ts.do(t, http.MethodPost, "/api/orders/verify-payment", bearer, body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"invalid productId"}`, w.Body.String())
}

func TestVerifyPaymentReusedByAnotherUserConflicts(t *testing.T) {
	ts := newTestServer(t)
	signature := payment.Sign(testKeySecret, "order_1", "pay_1")

	w := ts.do(t, http.MethodPost, "/api/orders/verify-payment", token(t, primitive.NewObjectID(), auth.RoleCustomer), verifyBody("order_1", "pay_1", signature))
	require.Equal(t, http.StatusCreated, w.Code)

	w = ts.do(t, http.MethodPost, "/api/orders/verify-payment", token(t, primitive.NewObjectID(), auth.RoleCustomer), verifyBody("order_1", "pay_1", signature))
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCreateRazorpayOrderGatewayFailure(t *testing.T) {
	ts := newTestServer(t)
	ts.gateway.setFail(true)

	w := ts.do(t, http.MethodPost, "/api/orders/create-razorpay-order", token(t, primitive.NewObjectID(), auth.RoleCustomer), gin.H{"amount": 250})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"failed to create payment order"}`, w.Body.String())
	assert.Equal(t, 0, ts.orders.Len())
}

func TestCreateRazorpayOrderRejectsNonPositiveAmount(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodPost, "/api/orders/create-razorpay-order", token(t, primitive.NewObjectID(), auth.RoleCustomer), gin.H{"amount": 0})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, ts.gateway.recorded())
}

func TestCreateRazorpayOrderSlowGatewayIsGatewayError(t *testing.T) {
	ts := newTestServer(t, func(env *Env) { env.Timeout = 50 * time.Millisecond })
	ts.gateway.setDelay(300 * time.Millisecond)

	w := ts.do(t, http.MethodPost, "/api/orders/create-razorpay-order", token(t, primitive.NewObjectID(), auth.RoleCustomer), gin.H{"amount": 1000})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"failed to create payment order"}`, w.Body.String())
	assert.Equal(t, 0, ts.orders.Len())
}

func TestOrderRoutesRequireToken(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/api/orders/my-orders", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = ts.do(t, http.MethodGet, "/api/orders/my-orders", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGetOrderAccess(t *testing.T) {
	ts := newTestServer(t)
	owner := primitive.NewObjectID()
	order := ts.orders.Put(models.Order{UserID: owner, OrderStatus: models.OrderStatusConfirmed, CreatedAt: testNow})
	path := "/api/orders/" + order.ID.Hex()

	w := ts.do(t, http.MethodGet, path, token(t, owner, auth.RoleCustomer), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodGet, path, token(t, primitive.NewObjectID(), auth.RoleAdmin), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodGet, path, token(t, primitive.NewObjectID(), auth.RoleCustomer), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.JSONEq(t, `{"error":"not authorized"}`, w.Body.String())

	w = ts.do(t, http.MethodGet, "/api/orders/"+primitive.NewObjectID().Hex(), token(t, owner, auth.RoleCustomer), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(t, http.MethodGet, "/api/orders/not-hex", token(t, owner, auth.RoleCustomer), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"invalid id"}`, w.Body.String())
}

func TestCancelOrderRoute(t *testing.T) {
	ts := newTestServer(t)
	owner := primitive.NewObjectID()
	bearer := token(t, owner, auth.RoleCustomer)

	shipped := ts.orders.Put(models.Order{UserID: owner, OrderStatus: models.OrderStatusShipped})
	w := ts.do(t, http.MethodPut, "/api/orders/"+shipped.ID.Hex()+"/cancel", bearer, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"cannot cancel shipped or delivered orders"}`, w.Body.String())

	pending := ts.orders.Put(models.Order{UserID: owner, OrderStatus: models.OrderStatusPending})
	w = ts.do(t, http.MethodPut, "/api/orders/"+pending.ID.Hex()+"/cancel", token(t, primitive.NewObjectID(), auth.RoleCustomer), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = ts.do(t, http.MethodPut, "/api/orders/"+pending.ID.Hex()+"/cancel", bearer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp orderResponse
	decode(t, w, &resp)
	assert.Equal(t, "Order cancelled successfully", resp.Message)
	assert.Equal(t, models.OrderStatusCancelled, resp.Order.OrderStatus)
}

func TestAdminRoutes(t *testing.T) {
	ts := newTestServer(t)
	admin := token(t, primitive.NewObjectID(), auth.RoleAdmin)
	customer := token(t, primitive.NewObjectID(), auth.RoleCustomer)
	for i := 0; i < 3; i++ {
		ts.orders.Put(models.Order{UserID: primitive.NewObjectID(), OrderStatus: models.OrderStatusConfirmed, CreatedAt: testNow.Add(time.Duration(i) * time.Hour)})
	}

	w := ts.do(t, http.MethodGet, "/api/orders", customer, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = ts.do(t, http.MethodGet, "/api/orders?page=1&limit=2", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page []models.Order
	decode(t, w, &page)
	require.Len(t, page, 2)
	assert.True(t, page[0].CreatedAt.After(page[1].CreatedAt))

	w = ts.do(t, http.MethodGet, "/api/orders?page=0", admin, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	target := page[0]
	w = ts.do(t, http.MethodPut, "/api/orders/"+target.ID.Hex()+"/status", admin, gin.H{"orderStatus": "delivered"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp orderResponse
	decode(t, w, &resp)
	assert.Equal(t, "Order status updated", resp.Message)
	assert.Equal(t, models.OrderStatusDelivered, resp.Order.OrderStatus)
	require.NotNil(t, resp.Order.DeliveredAt)

	w = ts.do(t, http.MethodPut, "/api/orders/"+target.ID.Hex()+"/status", admin, gin.H{"orderStatus": "lost"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPut, "/api/orders/"+target.ID.Hex()+"/status", customer, gin.H{"orderStatus": "shipped"})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCartRoutesAreScopedToCaller(t *testing.T) {
	ts := newTestServer(t)
	alice := primitive.NewObjectID()
	bob := primitive.NewObjectID()

	w := ts.do(t, http.MethodPost, "/api/cart/add", token(t, alice, auth.RoleCustomer), gin.H{"productId": primitive.NewObjectID().Hex(), "size": "S"})
	require.Equal(t, http.StatusCreated, w.Code)
	var added struct {
		Cart models.CartItem `json:"cart"`
	}
	decode(t, w, &added)
	assert.Equal(t, 1, added.Cart.Quantity)
	path := "/api/cart/" + added.Cart.ID.Hex()

	w = ts.do(t, http.MethodPut, path, token(t, bob, auth.RoleCustomer), gin.H{"quantity": 5})
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = ts.do(t, http.MethodDelete, path, token(t, bob, auth.RoleCustomer), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(t, http.MethodPut, path, token(t, alice, auth.RoleCustomer), gin.H{"quantity": 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPut, path, token(t, alice, auth.RoleCustomer), gin.H{"quantity": 3})
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodDelete, path, token(t, alice, auth.RoleCustomer), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	items, _ := ts.carts.FindByUser(context.Background(), alice)
	assert.Empty(t, items)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	router := gin.New()
	RegisterRoutes(router, &Env{Checks: map[string]HealthCheck{
		"mongo": func(context.Context) error { return nil },
		"redis": func(context.Context) error { return errors.New("dial tcp: refused") },
	}})
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"Service Unavailable","checks":{"mongo":"ok","redis":"unavailable"}}`, w.Body.String())
}
