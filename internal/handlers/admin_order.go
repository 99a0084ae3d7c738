package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type updateOrderStatusRequest struct {
	OrderStatus string `json:"orderStatus" binding:"required"`
}

func GetAllOrders(env *Env) gin.HandlerFunc {
	logger := env.logger("admin")

	return func(c *gin.Context) {
		const route = "GET /orders"
		defer handlePanic(c, logger, route)

		page, limit, err := parsePaginationParams(c.Query("page"), c.Query("limit"))
		if err != nil {
			respondWithError(c, logger, http.StatusBadRequest, route, "invalid pagination params")
			return
		}

		ctx, cancel := env.requestContext(c)
		defer cancel()

		orders, err := env.Orders.ListAllOrders(ctx, pageFor(page, limit))
		if err != nil {
			respondServiceError(c, logger, route, err, "orders could not be fetched")
			return
		}

		c.JSON(http.StatusOK, orders)
	}
}

func UpdateOrderStatus(env *Env) gin.HandlerFunc {
	logger := env.logger("admin")

	return func(c *gin.Context) {
		const route = "PUT /orders/:id/status"
		defer handlePanic(c, logger, route)

		orderID, ok := objectIDParam(c, logger, route)
		if !ok {
			return
		}

		var req updateOrderStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := env.requestContext(c)
		defer cancel()

		order, err := env.Orders.UpdateStatus(ctx, orderID, req.OrderStatus)
		if err != nil {
			respondServiceError(c, logger, route, err, "failed to update order")
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Order status updated", "order": order})
	}
}
