package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const healthCheckTimeout = 2 * time.Second

// Health pings every registered backing service. Any failure turns the whole
// response into 503.
func Health(env *Env) gin.HandlerFunc {
	logger := env.logger("health")

	return func(c *gin.Context) {
		names := make([]string, 0, len(env.Checks))
		for name := range env.Checks {
			names = append(names, name)
		}
		sort.Strings(names)

		status := http.StatusOK
		results := gin.H{}
		for _, name := range names {
			ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
			err := env.Checks[name](ctx)
			cancel()

			if err != nil {
				logger.Warn("dependency unavailable", zap.String("dependency", name), zap.Error(err))
				results[name] = "unavailable"
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}

		c.JSON(status, gin.H{"status": http.StatusText(status), "checks": results})
	}
}
