package ginmiddleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// Recovery recovers from handler panics, logs the stack and responds
// with a JSON 500.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				zctx.From(c.Request.Context()).Error("Panic recovered",
					zap.Any("panic", rec),
					zap.String("path", c.Request.URL.Path),
					zap.Stack("stack"),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError,
					gin.H{"success": false, "message": "internal server error"})
			}
		}()
		c.Next()
	}
}
