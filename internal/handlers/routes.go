package handlers

import (
	"context"
	"net/http"

	"agent-ledger/internal/auth"
	"agent-ledger/internal/metrics"
	"agent-ledger/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Pinger reports storage health
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers bundles every route group
type Handlers struct {
	Auth          *AuthHandler
	Creators      *CreatorHandler
	Agents        *AgentHandler
	Subscriptions *SubscriptionHandler
	DB            Pinger
}

// RegisterRoutes mounts the API on router
func RegisterRoutes(router *gin.Engine, h Handlers, log *logger.Logger) {
	router.GET("/health", func(c *gin.Context) {
		if h.DB != nil {
			if err := h.DB.Ping(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	authGroup := router.Group("/auth")
	{
		authGroup.POST("/privy", h.Auth.PrivyLogin)
	}

	// Public reads
	public := router.Group("/api")
	{
		public.GET("/creators", h.Creators.ListCreators)
		public.GET("/creators/:username", h.Creators.GetCreator)
		public.GET("/creators/:username/agents", h.Creators.ListAgents)
		public.GET("/subscriptions/active/:agentId", h.Subscriptions.Active)
		public.GET("/subscriptions/get-charge/:plan", h.Subscriptions.GetCharge)
		public.GET("/subscriptions/token/:token/get-metadata", h.Subscriptions.TokenMetadata)
	}

	protected := router.Group("/api")
	protected.Use(auth.AuthMiddleware(log))
	{
		protected.GET("/me", h.Auth.Me)

		protected.POST("/creator/link", h.Creators.Link)
		protected.DELETE("/creator/link", h.Creators.Unlink)
		protected.GET("/creator/holdings", h.Creators.GetHoldings)
		protected.POST("/creator/withdraw", h.Creators.Withdraw)

		protected.POST("/agents", h.Agents.CreateAgent)
		protected.GET("/agents", h.Agents.ListAgents)
		protected.GET("/agents/:id", h.Agents.GetAgent)
		protected.PATCH("/agents/:id", h.Agents.UpdateAgent)
		protected.PUT("/agents/:id/social-links", h.Agents.UpdateSocialLinks)
		protected.PUT("/agents/:id/access-tokens", h.Agents.UpdateAccessTokens)
		protected.PUT("/agents/:id/credentials", h.Agents.UpdateCredentials)
		protected.GET("/agents/:id/creators/wallet", h.Agents.CreatorWallets)
		protected.POST("/agents/:id/send-tweet", h.Agents.SendTweet)

		protected.POST("/subscriptions", h.Subscriptions.Subscribe)
		protected.GET("/subscriptions", h.Subscriptions.ListSubscriptions)
		protected.GET("/subscriptions/:id", h.Subscriptions.GetSubscription)
	}
}
