package api

import (
	"github.com/gin-gonic/gin"

	"github.com/playduel/backend/internal/api/handlers"
	"github.com/playduel/backend/internal/arena"
	"github.com/playduel/backend/internal/config"
	"github.com/playduel/backend/internal/leaderboard"
	"github.com/playduel/backend/internal/store"
	"github.com/playduel/backend/internal/ws"
)

// SetupRoutes configures all API routes
func SetupRoutes(router *gin.Engine, st *store.Store, cache *leaderboard.Cache, hub *arena.Hub, cfg *config.Config) {
	// CORS middleware for browser clients
	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// WebSocket gateway: same protocol as the TCP port, one JSON object
	// per text message.
	router.GET("/ws", ws.HandleGateway(hub))

	// API v1 group
	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", handlers.HealthCheck)
		v1.GET("/status", handlers.GetStatus(hub, cache))
		v1.GET("/leaderboard", handlers.GetLeaderboard(st, cache, cfg))

		players := v1.Group("/players")
		{
			players.GET("/:pseudo/ranking", handlers.GetPlayerRanking(st))
			players.GET("/:pseudo/rank", handlers.GetPlayerRank(st))
			players.GET("/:pseudo/history", handlers.GetPlayerHistory(st, cfg))
		}
	}
}
