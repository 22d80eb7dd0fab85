package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/team-balancer/internal/config"
)

// NewClient creates a Redis client from configuration and verifies the connection
func NewClient(cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	// Test connection
	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return client, nil
}

// lockKey returns the Redis key guarding team generation for a match
func lockKey(matchID int64) string {
	return fmt.Sprintf("match:%d:teams:lock", matchID)
}

// teamsKey returns the Redis key caching the teams of a match
func teamsKey(matchID int64) string {
	return fmt.Sprintf("match:%d:teams", matchID)
}
