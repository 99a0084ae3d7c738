package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"thriftstore/internal/checkout"
	"thriftstore/internal/middleware"
)

func handlePanic(c *gin.Context, logger *zap.Logger, route string) {
	if r := recover(); r != nil {
		logger.Error("panic recovered", zap.String("route", route), zap.Any("panic", r))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func respondWithError(c *gin.Context, logger *zap.Logger, status int, route string, message string) {
	fields := []zap.Field{zap.String("route", route), zap.Int("status", status), zap.String("error", message)}
	if status >= http.StatusInternalServerError {
		logger.Error("returning error", fields...)
	} else {
		logger.Info("returning error", fields...)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}

// respondServiceError maps checkout errors to HTTP responses. fallback is the
// client-facing message for gateway, persistence and unexpected failures.
func respondServiceError(c *gin.Context, logger *zap.Logger, route string, err error, fallback string) {
	var (
		validationErr  *checkout.ValidationError
		transitionErr  *checkout.TransitionError
		gatewayErr     *checkout.GatewayError
		persistenceErr *checkout.PersistenceError
	)

	switch {
	case errors.As(err, &validationErr):
		respondWithError(c, logger, http.StatusBadRequest, route, validationErr.Error())
	case errors.Is(err, checkout.ErrInvalidSignature):
		respondWithError(c, logger, http.StatusBadRequest, route, err.Error())
	case errors.As(err, &transitionErr):
		respondWithError(c, logger, http.StatusBadRequest, route, transitionErr.Error())
	case errors.Is(err, checkout.ErrForbidden):
		respondWithError(c, logger, http.StatusForbidden, route, err.Error())
	case errors.Is(err, checkout.ErrOrderNotFound):
		respondWithError(c, logger, http.StatusNotFound, route, err.Error())
	case errors.Is(err, checkout.ErrPaymentInProgress),
		errors.Is(err, checkout.ErrPaymentAlreadyUsed),
		errors.Is(err, checkout.ErrConcurrentUpdate):
		respondWithError(c, logger, http.StatusConflict, route, err.Error())
	case errors.As(err, &gatewayErr), errors.As(err, &persistenceErr):
		logger.Error("request failed", zap.String("route", route), zap.Error(err))
		respondWithError(c, logger, http.StatusInternalServerError, route, fallback)
	case errors.Is(err, context.DeadlineExceeded):
		logger.Error("request timed out", zap.String("route", route), zap.Error(err))
		respondWithError(c, logger, http.StatusGatewayTimeout, route, "request timed out")
	default:
		logger.Error("unexpected error", zap.String("route", route), zap.Error(err))
		respondWithError(c, logger, http.StatusInternalServerError, route, fallback)
	}
}

func respondValidationError(c *gin.Context, err error) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		details := make([]string, 0, len(validationErrors))
		for _, fieldError := range validationErrors {
			field := lowerCamel(fieldError.Field())
			switch fieldError.Tag() {
			case "required":
				details = append(details, fmt.Sprintf("%s is required", field))
			default:
				details = append(details, fmt.Sprintf("%s is invalid", field))
			}
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":   "validation failed",
			"details": details,
		})
		return
	}

	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
}

func lowerCamel(field string) string {
	if field == "" {
		return field
	}
	return strings.ToLower(field[:1]) + field[1:]
}

func objectIDParam(c *gin.Context, logger *zap.Logger, route string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		respondWithError(c, logger, http.StatusBadRequest, route, "invalid id")
		return primitive.NilObjectID, false
	}
	return id, true
}

func currentUser(c *gin.Context, logger *zap.Logger, route string) (primitive.ObjectID, bool) {
	userID, ok := middleware.UserID(c)
	if !ok {
		respondWithError(c, logger, http.StatusUnauthorized, route, "unauthorized")
		return primitive.NilObjectID, false
	}
	return userID, true
}
