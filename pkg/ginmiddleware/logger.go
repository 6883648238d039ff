package ginmiddleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// InjectLogger seeds every request context with the base logger so
// downstream code can use zctx.From. It must run before Logger and
// Recovery.
func InjectLogger(lg *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := zctx.Base(c.Request.Context(), lg)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// Logger writes one structured access log line per request.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		zctx.From(c.Request.Context()).Info("Request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", c.GetString(HeaderRequestID)),
		)
	}
}
