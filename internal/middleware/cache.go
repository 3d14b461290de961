package middleware

import (
	"net/http"

	"github.com/duregger/cafe-rio-nutrition/internal/infra"

	"github.com/gin-gonic/gin"
)

// InvalidateOnWrite drops cached read responses after mutating requests.
// 4xx responses wrote nothing; a 5xx may follow committed batches.
func InvalidateOnWrite(cache infra.ResponseCache) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			return
		}
		if s := c.Writer.Status(); s < http.StatusBadRequest || s >= http.StatusInternalServerError {
			cache.Invalidate(c.Request.Context())
		}
	}
}
