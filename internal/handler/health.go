package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/duregger/cafe-rio-nutrition/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// Health returns liveness plus store and Redis connectivity. rdb may be nil
// when Redis is not configured; Redis is optional, so only the store decides
// the status code.
func Health(ping func(context.Context) error, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()

		dbStatus := "connected"
		if ping(ctx) != nil {
			dbStatus = "error"
		}

		redisStatus := "disabled"
		if rdb != nil {
			redisStatus = "connected"
			if rdb.Ping(ctx).Err() != nil {
				redisStatus = "error"
			}
		}

		status := http.StatusOK
		if dbStatus != "connected" {
			status = http.StatusServiceUnavailable
		}
		resp := apierror.Response{
			Success: status == http.StatusOK,
			Data: gin.H{
				"timestamp": time.Now().UTC().Format(time.RFC3339),
				"db":        dbStatus,
				"redis":     redisStatus,
			},
		}
		if !resp.Success {
			resp.Error = "Store unavailable"
		}
		c.JSON(status, resp)
	}
}
