package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clavis-id/clavis/core"
	"github.com/clavis-id/clavis/service"
)

// AuthMiddleware creates middleware that validates bearer access tokens and
// places the verified identity in the request context.
func AuthMiddleware(didAuth *service.DIDAuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")

		if len(auth) < 8 || auth[:7] != "Bearer " {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header"})
			return
		}

		token := auth[7:]

		identity, err := didAuth.ValidateAccessToken(c.Request.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, core.ErrTokenExpired):
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token expired"})
			case errors.Is(err, core.ErrTokenRevoked):
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token revoked"})
			default:
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			}
			return
		}

		c.Set("identity", identity)

		c.Next()
	}
}
