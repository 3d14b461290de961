package handler

import (
	"encoding/json"
	"net/http"

	"github.com/duregger/cafe-rio-nutrition/internal/apierror"
	"github.com/duregger/cafe-rio-nutrition/internal/infra"

	"github.com/gin-gonic/gin"
)

// serveCached answers a public list read from the response cache, keyed by
// the full request URI, and fills the cache on a miss.
func serveCached(c *gin.Context, cache infra.ResponseCache, load func() (interface{}, int, error)) {
	key := c.Request.URL.RequestURI()
	if body, ok := cache.Get(c.Request.Context(), key); ok {
		c.Header("X-Cache", "HIT")
		c.Data(http.StatusOK, "application/json; charset=utf-8", body)
		return
	}
	data, n, err := load()
	if err != nil {
		respondError(c, err)
		return
	}
	body, err := json.Marshal(apierror.Response{Success: true, Data: data, Count: &n})
	if err != nil {
		respondError(c, err)
		return
	}
	cache.Set(c.Request.Context(), key, body)
	c.Header("X-Cache", "MISS")
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}
