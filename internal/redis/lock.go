package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only while it still holds the caller's token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// MatchLock is a lease-based mutual exclusion per match, shared by every
// instance talking to the same Redis.
type MatchLock struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewMatchLock creates a lock whose leases expire after ttl
func NewMatchLock(client *redis.Client, ttl time.Duration, logger *slog.Logger) *MatchLock {
	return &MatchLock{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

// TryLock attempts to take the lease for a match without waiting. When the
// lease is held elsewhere it returns ok=false and no error.
func (l *MatchLock) TryLock(ctx context.Context, matchID int64) (func(), bool, error) {
	key := lockKey(matchID)
	token := uuid.New().String()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquiring lock for match %d: %w", matchID, err)
	}
	if !ok {
		return nil, false, nil
	}

	unlock := func() {
		// The caller's context may already be done by the time the lease is returned.
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
			l.logger.Warn("failed to release match lock", "match_id", matchID, "error", err)
		}
	}
	return unlock, true, nil
}
