package api

import (
	"context"
	"log"
	"net/http"

	authUsecase "email-agent-backend/internal/auth/usecase"
	emailDelivery "email-agent-backend/internal/email/delivery"
	emailUsecasePkg "email-agent-backend/internal/email/usecase"
	"email-agent-backend/pkg/ai"
	"email-agent-backend/pkg/config"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	authUsecase  authUsecase.AuthUsecase
	agentHandler *emailDelivery.EmailAgentHandler
	oauthHandler *emailDelivery.OAuthHandler
	config       *config.Config
}

// NewAIGenerator initializes the runtime settings and returns a generator that
// reads the Ollama endpoint through them. It returns nil when no provider can be
// built; the analyzer then uses its fallbacks.
func NewAIGenerator(ctx context.Context, cfg *config.Config) ai.TextGenerator {
	// Initialize runtime config for settings API
	InitRuntimeConfig(cfg.OllamaBaseURL, cfg.OllamaModel)

	aiCfg := ai.DynamicConfig{
		Provider:         ai.ProviderType(cfg.AIProvider),
		GeminiAPIKey:     cfg.GeminiApiKey,
		GeminiModel:      cfg.GeminiModel,
		GetOllamaBaseURL: GetRuntimeOllamaBaseURL,
		GetOllamaModel:   GetRuntimeOllamaModel,
	}
	generator, err := ai.NewTextGeneratorWithDynamicConfig(ctx, aiCfg)
	if err != nil {
		log.Printf("[WARN] Failed to initialize AI service, using fallback analysis: %v", err)
		return nil
	}
	log.Printf("AI service initialized with provider: %s (dynamic config enabled)", cfg.AIProvider)
	return generator
}

func NewHandler(authUc authUsecase.AuthUsecase, connUc emailUsecasePkg.ConnectionUsecase, digestUc emailUsecasePkg.DigestUsecase, oauth emailDelivery.OAuthProvider, cfg *config.Config) *Handler {
	return &Handler{
		authUsecase:  authUc,
		agentHandler: emailDelivery.NewEmailAgentHandler(connUc, digestUc),
		oauthHandler: emailDelivery.NewOAuthHandler(oauth, connUc, cfg.JWTSecret, cfg.FrontendURL),
		config:       cfg,
	}
}

// Router builds the Gin engine with CORS and every route registered
func (h *Handler) Router() *gin.Engine {
	r := gin.Default()

	// CORS middleware
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	SetupRoutes(r, h.authUsecase, h.agentHandler, h.oauthHandler)
	return r
}

// Server returns an http.Server so main can shut it down gracefully
func (h *Handler) Server(addr string) *http.Server {
	return &http.Server{
		Addr:    addr,
		Handler: h.Router(),
	}
}
