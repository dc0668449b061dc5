package http

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/clavis-id/clavis/service"
)

// SetupRouter sets up the Gin router.
func SetupRouter(
	didAuth *service.DIDAuthService,
	oauth *service.OAuthService,
	contexts *service.ContextRegistry,
	authorizeTimeout time.Duration,
) *gin.Engine {
	router := gin.Default()

	authHandlers := NewAuthHandlers(didAuth, contexts)
	oauthHandlers := NewOAuthHandlers(oauth, authorizeTimeout)

	requireAuth := AuthMiddleware(didAuth)

	// DID authentication routes
	auth := router.Group("/auth")
	{
		auth.POST("/did/initiate", authHandlers.Initiate)
		auth.POST("/did/complete", authHandlers.Complete)
		auth.POST("/refresh", authHandlers.Refresh)
		auth.POST("/logout", authHandlers.Logout)
	}

	// OAuth2 authorization routes. The authorize and consent endpoints need
	// an authenticated subject; the token endpoint authenticates the client.
	oauth2 := router.Group("/oauth2")
	{
		oauth2.GET("/authorize", requireAuth, oauthHandlers.Authorize)
		oauth2.POST("/consent", requireAuth, oauthHandlers.Consent)
		oauth2.POST("/deny", requireAuth, oauthHandlers.Deny)
		oauth2.POST("/token", oauthHandlers.Token)
	}

	// Protected API routes
	api := router.Group("/api")
	api.Use(requireAuth)
	{
		api.GET("/me", authHandlers.Me)
		api.POST("/context/switch", authHandlers.SwitchContext)
		api.POST("/context/rollback", authHandlers.RollbackContext)
		api.POST("/context/logout", authHandlers.LogoutContext)
	}

	return router
}
