// Package redis dials the optional cache behind the leaderboard mirror.
package redis

import (
	"context"
	"log"

	"github.com/redis/go-redis/v9"
)

// Connect parses a Redis URL, dials it and verifies the connection.
func Connect(redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opt)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}

	log.Printf("[REDIS] Connected to %s", opt.Addr)
	return client, nil
}
