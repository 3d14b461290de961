package middleware

import (
	"strings"

	"github.com/duregger/cafe-rio-nutrition/internal/apierror"
	"github.com/duregger/cafe-rio-nutrition/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const (
	PrincipalKey = "principal"
	APIKeyHeader = "X-API-Key"
)

// Authenticate resolves the X-API-Key header or the Bearer token into a
// principal. Requests without valid credentials stop here with 401.
func Authenticate(auth service.Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		bearer := ""
		if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
			bearer = strings.TrimPrefix(h, "Bearer ")
		}
		p, err := auth.Authenticate(c.Request.Context(), c.GetHeader(APIKeyHeader), bearer)
		if err != nil {
			abortWith(c, err)
			return
		}
		c.Set(PrincipalKey, p)
		c.Next()
	}
}

// RequireAction asks the access policy whether the authenticated principal
// may perform action. Mount it after Authenticate.
func RequireAction(policy *service.AccessPolicy, action service.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := GetPrincipal(c)
		if err := policy.Authorize(p, action).Err(); err != nil {
			ev := log.Info().Str("request_id", c.GetString(RequestIDKey)).Str("path", c.FullPath())
			if p != nil {
				ev = ev.Str("kind", p.Kind).Str("email", p.Email)
			}
			ev.Msg("access denied")
			abortWith(c, err)
			return
		}
		c.Next()
	}
}

// GetPrincipal returns the authenticated caller, or nil.
func GetPrincipal(c *gin.Context) *service.Principal {
	v, ok := c.Get(PrincipalKey)
	if !ok {
		return nil
	}
	p, _ := v.(*service.Principal)
	return p
}

func abortWith(c *gin.Context, err error) {
	c.AbortWithStatusJSON(apierror.StatusOf(err), apierror.New(apierror.PublicMessage(err)))
}
