package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/team-balancer/internal/domain"
)

// TeamCache keeps the generated teams of a match as a JSON document
type TeamCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewTeamCache creates a cache whose entries expire after ttl
func NewTeamCache(client *redis.Client, ttl time.Duration) *TeamCache {
	return &TeamCache{
		client: client,
		ttl:    ttl,
	}
}

// Get returns the cached teams of a match. ok is false on a miss.
func (c *TeamCache) Get(ctx context.Context, matchID int64) ([]domain.Team, bool, error) {
	data, err := c.client.Get(ctx, teamsKey(matchID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("reading cached teams: %w", err)
	}

	var teams []domain.Team
	if err := json.Unmarshal(data, &teams); err != nil {
		return nil, false, fmt.Errorf("decoding cached teams: %w", err)
	}
	return teams, true, nil
}

// Set stores the teams of a match
func (c *TeamCache) Set(ctx context.Context, matchID int64, teams []domain.Team) error {
	data, err := json.Marshal(teams)
	if err != nil {
		return fmt.Errorf("encoding teams: %w", err)
	}
	if err := c.client.Set(ctx, teamsKey(matchID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("caching teams: %w", err)
	}
	return nil
}

// Invalidate drops the cached teams of a match
func (c *TeamCache) Invalidate(ctx context.Context, matchID int64) error {
	if err := c.client.Del(ctx, teamsKey(matchID)).Err(); err != nil {
		return fmt.Errorf("invalidating cached teams: %w", err)
	}
	return nil
}
