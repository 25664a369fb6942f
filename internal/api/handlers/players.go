package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/playduel/backend/internal/config"
	"github.com/playduel/backend/internal/store"
)

// GetPlayerRanking returns a player's ELO record, creating the default
// record for players never seen before.
func GetPlayerRanking(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		pseudo := c.Param("pseudo")
		ranking, err := st.GetRanking(pseudo)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load ranking"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ranking": ranking})
	}
}

// GetPlayerRank returns a player's 1-based position among ranked players.
func GetPlayerRank(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		pseudo := c.Param("pseudo")
		rank, err := st.RankOf(pseudo)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute rank"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"pseudo": pseudo, "rank": rank})
	}
}

// GetPlayerHistory returns a player's recent ranked matches, newest first.
func GetPlayerHistory(st *store.Store, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		pseudo := c.Param("pseudo")
		history, err := st.HistoryOf(pseudo, cfg.HistoryLimit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load history"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"pseudo": pseudo, "history": history})
	}
}
