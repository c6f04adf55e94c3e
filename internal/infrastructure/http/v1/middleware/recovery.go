// Package middleware provides HTTP middleware components.
package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"vintrack/internal/core/apperror"
	appctx "vintrack/internal/core/context"
	"vintrack/pkg/logger"
)

// Recovery converts a handler panic into a 500 response. The stack
// trace and the request that triggered it go to the log; the client
// only sees the generic internal error.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				ctx := c.Request.Context()
				logger.Error(ctx, "panic recovered",
					"method", c.Request.Method,
					"path", c.Request.URL.Path,
					"panic", err,
					"stack", string(debug.Stack()),
				)

				_ = c.Error(
					apperror.NewInternal(fmt.Errorf("panic: %v", err)).
						WithDetail("request_id", appctx.GetRequestID(ctx)),
				)
				c.Abort()
			}
		}()
		c.Next()
	}
}
