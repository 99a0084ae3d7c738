package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"thriftstore/internal/checkout"
	"thriftstore/internal/middleware"
	"thriftstore/internal/models"
)

/* =========================
   REQUEST DTOs
========================= */

type createPaymentRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type orderItemRequest struct {
	ProductID string  `json:"productId" binding:"required"`
	Name      string  `json:"name" binding:"required"`
	Price     float64 `json:"price" binding:"gte=0"`
	Quantity  int     `json:"quantity" binding:"required,gt=0"`
	Size      string  `json:"size"`
	Image     string  `json:"image"`
}

type shippingAddressRequest struct {
	FullName string `json:"fullName" binding:"required"`
	Phone    string `json:"phone" binding:"required"`
	Address  string `json:"address" binding:"required"`
	City     string `json:"city" binding:"required"`
	State    string `json:"state" binding:"required"`
	Pincode  string `json:"pincode" binding:"required"`
}

type verifyPaymentRequest struct {
	RazorpayOrderID   string                 `json:"razorpayOrderId" binding:"required"`
	RazorpayPaymentID string                 `json:"razorpayPaymentId" binding:"required"`
	RazorpaySignature string                 `json:"razorpaySignature" binding:"required"`
	Items             []orderItemRequest     `json:"items" binding:"required,min=1,dive"`
	TotalAmount       float64                `json:"totalAmount" binding:"required,gt=0"`
	ShippingAddress   shippingAddressRequest `json:"shippingAddress"`
}

/* =========================
   PAYMENT INTENT
========================= */

func CreateRazorpayOrder(env *Env) gin.HandlerFunc {
	logger := env.logger("order")

	return func(c *gin.Context) {
		const route = "POST /orders/create-razorpay-order"
		defer handlePanic(c, logger, route)

		var req createPaymentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, logger, http.StatusBadRequest, route, "invalid request body")
			return
		}

		ctx, cancel := env.requestContext(c)
		defer cancel()

		order, err := env.Orders.InitiatePayment(ctx, req.Amount)
		if err != nil {
			respondServiceError(c, logger, route, err, "failed to create payment order")
			return
		}

		c.JSON(http.StatusOK, order)
	}
}

/* =========================
   VERIFY PAYMENT
========================= */

func VerifyPayment(env *Env) gin.HandlerFunc {
	logger := env.logger("order")

	return func(c *gin.Context) {
		const route = "POST /orders/verify-payment"
		defer handlePanic(c, logger, route)

		userID, ok := currentUser(c, logger, route)
		if !ok {
			return
		}

		var req verifyPaymentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		in, err := buildPlaceOrderInput(req)
		if err != nil {
			respondWithError(c, logger, http.StatusBadRequest, route, err.Error())
			return
		}

		ctx, cancel := env.requestContext(c)
		defer cancel()

		order, created, err := env.Orders.VerifyAndPlaceOrder(ctx, userID, in)
		if err != nil {
			respondServiceError(c, logger, route, err, "failed to create order")
			return
		}

		if !created {
			c.JSON(http.StatusOK, gin.H{"message": "Order already placed", "order": order})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"message": "Order placed successfully", "order": order})
	}
}

/* =========================
   QUERIES
========================= */

func GetMyOrders(env *Env) gin.HandlerFunc {
	logger := env.logger("order")

	return func(c *gin.Context) {
		const route = "GET /orders/my-orders"
		defer handlePanic(c, logger, route)

		userID, ok := currentUser(c, logger, route)
		if !ok {
			return
		}

		ctx, cancel := env.requestContext(c)
		defer cancel()

		orders, err := env.Orders.ListUserOrders(ctx, userID)
		if err != nil {
			respondServiceError(c, logger, route, err, "orders could not be fetched")
			return
		}

		c.JSON(http.StatusOK, orders)
	}
}

func GetOrder(env *Env) gin.HandlerFunc {
	logger := env.logger("order")

	return func(c *gin.Context) {
		const route = "GET /orders/:id"
		defer handlePanic(c, logger, route)

		userID, ok := currentUser(c, logger, route)
		if !ok {
			return
		}
		orderID, ok := objectIDParam(c, logger, route)
		if !ok {
			return
		}

		ctx, cancel := env.requestContext(c)
		defer cancel()

		order, err := env.Orders.GetOrder(ctx, orderID, checkout.Requester{UserID: userID, Role: middleware.Role(c)})
		if err != nil {
			respondServiceError(c, logger, route, err, "order could not be fetched")
			return
		}

		c.JSON(http.StatusOK, order)
	}
}

/* =========================
   CANCEL
========================= */

func CancelOrder(env *Env) gin.HandlerFunc {
	logger := env.logger("order")

	return func(c *gin.Context) {
		const route = "PUT /orders/:id/cancel"
		defer handlePanic(c, logger, route)

		userID, ok := currentUser(c, logger, route)
		if !ok {
			return
		}
		orderID, ok := objectIDParam(c, logger, route)
		if !ok {
			return
		}

		ctx, cancel := env.requestContext(c)
		defer cancel()

		order, err := env.Orders.CancelOrder(ctx, orderID, userID)
		if err != nil {
			respondServiceError(c, logger, route, err, "failed to cancel order")
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Order cancelled successfully", "order": order})
	}
}

/* =========================
   BUILD INPUT
========================= */

func buildPlaceOrderInput(req verifyPaymentRequest) (checkout.PlaceOrderInput, error) {
	items := make([]models.OrderItem, 0, len(req.Items))
	for _, item := range req.Items {
		productID, err := primitive.ObjectIDFromHex(strings.TrimSpace(item.ProductID))
		if err != nil {
			return checkout.PlaceOrderInput{}, errInvalidProductID
		}
		items = append(items, models.OrderItem{
			ProductID: productID,
			Name:      strings.TrimSpace(item.Name),
			Price:     item.Price,
			Quantity:  item.Quantity,
			Size:      strings.TrimSpace(item.Size),
			Image:     strings.TrimSpace(item.Image),
		})
	}

	return checkout.PlaceOrderInput{
		RazorpayOrderID:   strings.TrimSpace(req.RazorpayOrderID),
		RazorpayPaymentID: strings.TrimSpace(req.RazorpayPaymentID),
		RazorpaySignature: strings.TrimSpace(req.RazorpaySignature),
		Items:             items,
		TotalAmount:       req.TotalAmount,
		ShippingAddress:   models.ShippingAddress(req.ShippingAddress),
	}, nil
}
