package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/playduel/backend/internal/arena"
	"github.com/playduel/backend/internal/leaderboard"
)

// GetStatus reports the live state of the arena: connected players, queue
// depths and running matches. With Redis configured the connected pseudos
// are included.
func GetStatus(hub *arena.Hub, cache *leaderboard.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats := hub.Snapshot()
		payload := gin.H{"arena": stats}

		if cache != nil {
			online, err := cache.OnlineMembers(c.Request.Context())
			if err != nil {
				log.Printf("[API] Online members read failed: %v", err)
			} else {
				payload["online_players"] = online
			}
		}

		c.JSON(http.StatusOK, payload)
	}
}
