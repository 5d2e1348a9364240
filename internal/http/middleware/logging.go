// README: Request logging middleware; stores a request-scoped zerolog logger in the context.
package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"boleia/internal/log"
)

const headerRequestID = "X-Request-ID"

// Logging reads or generates X-Request-ID, attaches a child logger to the
// request context and logs the completed request.
func Logging(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		reqID := c.GetHeader(headerRequestID)
		if reqID == "" {
			reqID = uuid.New().String()
		}

		child := logger.With().
			Str(log.FieldRequestID, reqID).
			Str(log.FieldMethod, c.Request.Method).
			Str(log.FieldPath, c.Request.URL.Path).
			Str(log.FieldClientIP, c.ClientIP()).
			Logger()

		c.Header(headerRequestID, reqID)
		c.Request = c.Request.WithContext(log.WithLogger(c.Request.Context(), child))

		c.Next()

		status := c.Writer.Status()
		evt := child.Info()
		if status >= 500 {
			evt = child.Error()
		}
		evt.Int(log.FieldStatus, status).
			Float64(log.FieldLatency, float64(time.Since(start).Milliseconds())).
			Msg("request completed")
	}
}
