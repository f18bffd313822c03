package api

import (
	"net/http"

	"email-agent-backend/internal/auth/delivery"
	authUsecase "email-agent-backend/internal/auth/usecase"
	emailDelivery "email-agent-backend/internal/email/delivery"
	"email-agent-backend/pkg/metrics"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(r *gin.Engine, authUsecase authUsecase.AuthUsecase, agentHandler *emailDelivery.EmailAgentHandler, oauthHandler *emailDelivery.OAuthHandler) {
	authHandler := delivery.NewAuthHandler(authUsecase)
	requireAuth := delivery.AuthMiddleware(authUsecase)

	api := r.Group("/api")
	{
		// Health check (no auth required)
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})
		api.GET("/metrics", gin.WrapH(metrics.Handler()))

		// Auth routes
		auth := api.Group("/auth")
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.GET("/me", requireAuth, authHandler.Me)
		}

		// FCM routes (protected)
		fcm := api.Group("/fcm")
		fcm.Use(requireAuth)
		{
			fcm.POST("/register", authHandler.RegisterFCMToken)
			fcm.DELETE("/:token", authHandler.UnregisterFCMToken)
		}

		// Google redirects here without our bearer token; the signed state identifies the user
		api.GET("/email-agent/oauth/gmail/callback", oauthHandler.Callback)

		// Email agent routes (protected)
		agent := api.Group("/email-agent")
		agent.Use(requireAuth)
		{
			agent.POST("/connect", agentHandler.Connect)
			agent.GET("/status", agentHandler.Status)
			agent.POST("/run", agentHandler.Run)
			agent.GET("/digests", agentHandler.History)
			agent.GET("/digests/:id", agentHandler.Details)
			agent.DELETE("/digests/:id", agentHandler.Delete)
			agent.GET("/oauth/gmail", oauthHandler.Start)
		}

		// Settings routes (protected) - Runtime configuration
		settings := api.Group("/settings")
		settings.Use(requireAuth)
		{
			settings.GET("/ollama", GetOllamaSettings)
			settings.PUT("/ollama", UpdateOllamaSettings)
			settings.POST("/ollama/test", TestOllamaConnection)
		}
	}
}
