// Package leaderboard keeps a Redis mirror of who is online and of the
// current ratings, so the HTTP side can answer leaderboard reads without
// hitting PostgreSQL. The database stays the source of truth; every method
// degrades to a logged error, never a failure the caller must handle.
package leaderboard

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	ratingsKey = "arena:leaderboard"
	onlineKey  = "arena:online"

	opTimeout = 2 * time.Second
)

// Entry is one leaderboard row read back from the cache.
type Entry struct {
	Pseudo    string `json:"pseudo"`
	EloRating int    `json:"elo_rating"`
}

type Cache struct {
	rdb *redis.Client
}

func New(rdb *redis.Client) *Cache {
	return &Cache{rdb: rdb}
}

func (c *Cache) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), opTimeout)
}

func (c *Cache) PlayerOnline(pseudo string) {
	ctx, cancel := c.ctx()
	defer cancel()
	if err := c.rdb.SAdd(ctx, onlineKey, pseudo).Err(); err != nil {
		log.Printf("[REDIS] Mark %s online failed: %v", pseudo, err)
	}
}

func (c *Cache) PlayerOffline(pseudo string) {
	ctx, cancel := c.ctx()
	defer cancel()
	if err := c.rdb.SRem(ctx, onlineKey, pseudo).Err(); err != nil {
		log.Printf("[REDIS] Mark %s offline failed: %v", pseudo, err)
	}
}

func (c *Cache) RatingChanged(pseudo string, rating int) {
	ctx, cancel := c.ctx()
	defer cancel()
	err := c.rdb.ZAdd(ctx, ratingsKey, redis.Z{Score: float64(rating), Member: pseudo}).Err()
	if err != nil {
		log.Printf("[REDIS] Record rating for %s failed: %v", pseudo, err)
	}
}

// OnlineMembers lists the currently connected pseudos.
func (c *Cache) OnlineMembers(ctx context.Context) ([]string, error) {
	return c.rdb.SMembers(ctx, onlineKey).Result()
}

// TopRatings reads the highest cached ratings, best first. An empty result
// means the cache is cold and the caller should fall back to the database.
func (c *Cache) TopRatings(ctx context.Context, limit int) ([]Entry, error) {
	zs, err := c.rdb.ZRevRangeWithScores(ctx, ratingsKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(zs))
	for _, z := range zs {
		pseudo, ok := z.Member.(string)
		if !ok {
			continue
		}
		entries = append(entries, Entry{Pseudo: pseudo, EloRating: int(z.Score)})
	}
	return entries, nil
}
