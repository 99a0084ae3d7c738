package handlers

import (
	"github.com/gin-gonic/gin"

	"thriftstore/internal/middleware"
)

// RegisterRoutes mounts the order, cart and health routes on r.
func RegisterRoutes(r gin.IRouter, env *Env) {
	userAuth := middleware.UserAuth(env.JWTSecret, env.logger("auth"))
	adminAuth := middleware.AdminAuth(env.JWTSecret, env.logger("auth"))

	r.GET("/healthz", Health(env))

	api := r.Group("/api")

	orders := api.Group("/orders")
	{
		orders.POST("/create-razorpay-order", userAuth, CreateRazorpayOrder(env))
		orders.POST("/verify-payment", userAuth, VerifyPayment(env))
		orders.GET("/my-orders", userAuth, GetMyOrders(env))
		orders.GET("/:id", userAuth, GetOrder(env))
		orders.PUT("/:id/cancel", userAuth, CancelOrder(env))

		orders.GET("", adminAuth, GetAllOrders(env))
		orders.PUT("/:id/status", adminAuth, UpdateOrderStatus(env))
	}

	cart := api.Group("/cart")
	cart.Use(userAuth)
	{
		cart.POST("/add", AddToCart(env))
		cart.GET("", GetCart(env))
		cart.PUT("/:id", UpdateCartItem(env))
		cart.DELETE("/:id", RemoveFromCart(env))
	}
}
