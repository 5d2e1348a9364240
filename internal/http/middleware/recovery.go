// README: Recovery middleware turning handler panics into 500 responses.
package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"boleia/internal/log"
)

func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				l := log.Ctx(c.Request.Context())
				l.Error().
					Interface("panic", r).
					Bytes("stack", debug.Stack()).
					Msg("handler panic")
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			}
		}()
		c.Next()
	}
}
