package middleware

import (
	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const (
	userIDKey = "userId"
	roleKey   = "role"
)

// UserAuth accepts any authenticated caller and injects userId and role into
// the context.
func UserAuth(secret string, logger *zap.Logger) gin.HandlerFunc {
	return AuthGuard(secret, logger)
}

// UserID returns the caller id set by UserAuth.
func UserID(c *gin.Context) (primitive.ObjectID, bool) {
	value, ok := c.Get(userIDKey)
	if !ok {
		return primitive.NilObjectID, false
	}
	id, ok := value.(primitive.ObjectID)
	return id, ok
}

func Role(c *gin.Context) string {
	return c.GetString(roleKey)
}
