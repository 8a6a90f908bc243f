package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"feedbackapp/internal/observability"
)

// Recovery returns a middleware that converts handler panics into 500
// responses with a structured log entry instead of crashing the process.
func Recovery(logger *observability.Logger) gin.HandlerFunc {
	if logger == nil {
		panic("Recovery: logger is nil")
	}

	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				err := fmt.Errorf("panic: %v", r)
				logger.Error(c.Request.Context(), "Handler panicked", err, map[string]interface{}{
					"method": c.Request.Method,
					"path":   c.Request.URL.Path,
					"stack":  string(debug.Stack()),
				})

				if !c.Writer.Written() {
					c.JSON(http.StatusInternalServerError, gin.H{
						"error": "Internal server error",
						"code":  "INTERNAL_ERROR",
					})
				}
				c.Abort()
			}
		}()

		c.Next()
	}
}
