package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"thriftstore/internal/models"
	"thriftstore/internal/store"
)

var errInvalidProductID = errors.New("invalid productId")

type addToCartRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  int    `json:"quantity" binding:"omitempty,gt=0"`
	Size      string `json:"size"`
}

type updateCartRequest struct {
	Quantity int `json:"quantity" binding:"required,gt=0"`
}

func AddToCart(env *Env) gin.HandlerFunc {
	logger := env.logger("cart")

	return func(c *gin.Context) {
		const route = "POST /cart/add"
		defer handlePanic(c, logger, route)

		userID, ok := currentUser(c, logger, route)
		if !ok {
			return
		}

		var req addToCartRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		productID, err := primitive.ObjectIDFromHex(strings.TrimSpace(req.ProductID))
		if err != nil {
			respondWithError(c, logger, http.StatusBadRequest, route, errInvalidProductID.Error())
			return
		}

		quantity := req.Quantity
		if quantity == 0 {
			quantity = 1
		}

		item := models.CartItem{
			UserID:    userID,
			ProductID: productID,
			Quantity:  quantity,
			Size:      strings.TrimSpace(req.Size),
			CreatedAt: env.now().UTC(),
		}

		ctx, cancel := env.requestContext(c)
		defer cancel()

		if err := env.Carts.Insert(ctx, &item); err != nil {
			logger.Error("cart insert failed", zap.String("userId", userID.Hex()), zap.Error(err))
			respondWithError(c, logger, http.StatusInternalServerError, route, "db error")
			return
		}

		c.JSON(http.StatusCreated, gin.H{"message": "Added to cart", "cart": item})
	}
}

func GetCart(env *Env) gin.HandlerFunc {
	logger := env.logger("cart")

	return func(c *gin.Context) {
		const route = "GET /cart"
		defer handlePanic(c, logger, route)

		userID, ok := currentUser(c, logger, route)
		if !ok {
			return
		}

		ctx, cancel := env.requestContext(c)
		defer cancel()

		items, err := env.Carts.FindByUser(ctx, userID)
		if err != nil {
			logger.Error("cart lookup failed", zap.String("userId", userID.Hex()), zap.Error(err))
			respondWithError(c, logger, http.StatusInternalServerError, route, "db error")
			return
		}

		c.JSON(http.StatusOK, items)
	}
}

func UpdateCartItem(env *Env) gin.HandlerFunc {
	logger := env.logger("cart")

	return func(c *gin.Context) {
		const route = "PUT /cart/:id"
		defer handlePanic(c, logger, route)

		userID, ok := currentUser(c, logger, route)
		if !ok {
			return
		}
		itemID, ok := objectIDParam(c, logger, route)
		if !ok {
			return
		}

		var req updateCartRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := env.requestContext(c)
		defer cancel()

		item, err := env.Carts.UpdateQuantity(ctx, itemID, userID, req.Quantity)
		if errors.Is(err, store.ErrNotFound) {
			respondWithError(c, logger, http.StatusNotFound, route, "cart item not found")
			return
		}
		if err != nil {
			logger.Error("cart update failed", zap.String("itemId", itemID.Hex()), zap.Error(err))
			respondWithError(c, logger, http.StatusInternalServerError, route, "db error")
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Cart updated", "cart": item})
	}
}

func RemoveFromCart(env *Env) gin.HandlerFunc {
	logger := env.logger("cart")

	return func(c *gin.Context) {
		const route = "DELETE /cart/:id"
		defer handlePanic(c, logger, route)

		userID, ok := currentUser(c, logger, route)
		if !ok {
			return
		}
		itemID, ok := objectIDParam(c, logger, route)
		if !ok {
			return
		}

		ctx, cancel := env.requestContext(c)
		defer cancel()

		err := env.Carts.DeleteByID(ctx, itemID, userID)
		if errors.Is(err, store.ErrNotFound) {
			respondWithError(c, logger, http.StatusNotFound, route, "cart item not found")
			return
		}
		if err != nil {
			logger.Error("cart delete failed", zap.String("itemId", itemID.Hex()), zap.Error(err))
			respondWithError(c, logger, http.StatusInternalServerError, route, "db error")
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "Removed from cart"})
	}
}
