package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	appctx "vintrack/internal/core/context"
	"vintrack/pkg/logger"
)

// Logger writes one access log line per request. Warehouse mutations
// are audited through the movement ledger; this log exists for latency
// and failure triage, so it carries the operator alongside the usual
// request fields.
func Logger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		fields := []any{
			"method", c.Request.Method,
			"path", path,
			"query", query,
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		}
		if actor := appctx.GetActor(c.Request.Context()); actor != nil {
			fields = append(fields, "operator", actor.ID)
		}
		if errs := c.Errors.ByType(gin.ErrorTypePrivate); len(errs) > 0 {
			fields = append(fields, "errors", errs.String())
		}

		log.WithContext(c.Request.Context()).Infow("http request", fields...)
	}
}
