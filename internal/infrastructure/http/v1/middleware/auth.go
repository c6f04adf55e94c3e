package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"vintrack/internal/core/apperror"
	appctx "vintrack/internal/core/context"
)

// TokenValidator validates an access token and resolves the operator.
type TokenValidator interface {
	ValidateToken(tokenString string) (*appctx.Actor, error)
}

// Auth middleware validates bearer tokens and stamps the operator onto the
// request context. Every movement written downstream carries this identity
// as performed_by.
func Auth(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			abortUnauthorized(c, "invalid authorization header format")
			return
		}

		actor, err := validator.ValidateToken(parts[1])
		if err != nil {
			abortUnauthorized(c, "invalid token")
			return
		}

		ctx := appctx.WithActor(c.Request.Context(), actor)
		c.Request = c.Request.WithContext(ctx)

		c.Set("actor_id", actor.ID)

		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, message string) {
	_ = c.Error(apperror.NewUnauthorized(message))
	c.Abort()
}
