package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/playduel/backend/internal/config"
	"github.com/playduel/backend/internal/leaderboard"
	"github.com/playduel/backend/internal/store"
)

// GetLeaderboard returns the top rated players. Reads hit the Redis mirror
// first and fall back to PostgreSQL when the cache is absent, cold or
// failing.
func GetLeaderboard(st *store.Store, cache *leaderboard.Cache, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cache != nil {
			entries, err := cache.TopRatings(c.Request.Context(), cfg.TopPlayersLimit)
			if err != nil {
				log.Printf("[API] Leaderboard cache read failed, using database: %v", err)
			} else if len(entries) > 0 {
				c.JSON(http.StatusOK, gin.H{"players": entries, "source": "cache"})
				return
			}
		}

		players, err := st.TopPlayers(cfg.TopPlayersLimit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load leaderboard"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"players": players, "source": "database"})
	}
}
