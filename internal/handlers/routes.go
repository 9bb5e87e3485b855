package handlers

import (
	"github.com/gin-gonic/gin"

	"vaultcrack/internal/middleware"
)

type Routes struct {
	Auth    *AuthHandler
	Game    *GameHandler
	Relay   *RelayHandler
	Tokens  middleware.TokenValidator
	Limiter middleware.RateLimitChecker
}

func (r Routes) Register(router *gin.Engine) {
	router.GET("/healthz", r.Relay.Health)

	auth := router.Group("/auth")
	{
		auth.GET("/nonce", r.Auth.Nonce)
		auth.POST("/verify", r.Auth.Verify)
	}

	api := router.Group("/api")
	{
		api.GET("/game-state", r.Game.GetGameState)
		api.GET("/players/:wallet", r.Game.GetPlayer)
		api.GET("/tiers", r.Game.GetTiers)
		api.GET("/tiers/current", r.Game.GetCurrentTier)
		api.GET("/signer/status", r.Game.GetSignerStatus)
		api.GET("/vault/reconcile", r.Game.GetReconciliation)

		api.GET("/ws", r.Relay.HandleWebSocket)
		api.POST("/relay/viewer", r.Relay.IngestViewerEvent)
	}

	protected := api.Group("")
	protected.Use(middleware.AuthMiddleware(r.Tokens), middleware.RateLimitMiddleware(r.Limiter))
	{
		protected.POST("/combat/start", r.Game.StartCombat)
		protected.POST("/vault/attempt", r.Game.AttemptVault)
		protected.GET("/vault/attempts", r.Game.GetAttemptHistory)
		protected.POST("/entries/gasless", r.Game.EnterGasless)
	}
}
