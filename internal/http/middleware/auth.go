// README: Bearer token auth; resolves the caller into an order.Actor on the gin context.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"petride/internal/modules/order"
)

const callerKey = "caller"

// Authenticator turns a bearer token into the calling actor.
type Authenticator interface {
	Authenticate(ctx context.Context, rawToken string) (order.Actor, error)
}

func Auth(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		actor, err := auth.Authenticate(c.Request.Context(), strings.TrimSpace(raw))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(callerKey, actor)
		c.Next()
	}
}

// Caller returns the authenticated actor. It is the zero Actor on public routes.
func Caller(c *gin.Context) order.Actor {
	v, ok := c.Get(callerKey)
	if !ok {
		return order.Actor{}
	}
	actor, _ := v.(order.Actor)
	return actor
}

// RequireRole rejects callers whose role is not listed.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := Caller(c).Role
		for _, r := range roles {
			if r == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	}
}
