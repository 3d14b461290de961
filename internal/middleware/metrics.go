package middleware

import (
	"time"

	"github.com/duregger/cafe-rio-nutrition/internal/infra"

	"github.com/gin-gonic/gin"
)

// Metrics records request counts and latencies by route pattern.
func Metrics(collector *infra.Collector) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		collector.ObserveRequest(c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}
