package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/flexprice/payflow/internal/types"
)

// RequestID stamps every request with a correlation id, honoring one the
// client already sent
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = types.GenerateUUIDWithPrefix(types.UUID_PREFIX_REQUEST)
		}

		ctx := types.SetRequestID(c.Request.Context(), requestID)
		c.Request = c.Request.WithContext(ctx)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}
