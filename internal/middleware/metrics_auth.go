package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// MetricsAuthMiddleware creates a middleware that protects metrics endpoint with Bearer token
func MetricsAuthMiddleware(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		// No token configured leaves the endpoint open
		if token == "" {
			c.Next()
			return
		}

		provided, ok := bearerToken(c)
		if !ok {
			c.Header("WWW-Authenticate", `Bearer realm="Metrics"`)
			abortWithError(c, http.StatusUnauthorized, "unauthorized", "Bearer token required")
			return
		}

		// Constant-time comparison to prevent timing attacks
		if subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
			c.Header("WWW-Authenticate", `Bearer realm="Metrics"`)
			abortWithError(c, http.StatusUnauthorized, "unauthorized", "Invalid token")
			return
		}

		c.Next()
	}
}
