package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	appcredential "github.com/finsight/backend/internal/application/credential"
)

// releaseScript deletes the lock key only if it still holds our token, so
// a release that arrives after the TTL expired cannot drop someone else's
// lock.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisRefreshGuard deduplicates credential refreshes across process
// instances using a Redis SETNX lock. Within a single process the store
// already serializes refreshes per key; this guard extends that to
// distributed deployments.
type RedisRefreshGuard struct {
	client    *redis.Client
	keyPrefix string
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// NewRedisRefreshGuard creates a guard with its own Redis client and
// verifies connectivity.
func NewRedisRefreshGuard(cfg RedisConfig) (*RedisRefreshGuard, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisRefreshGuard{
		client:    client,
		keyPrefix: "guard:",
	}, nil
}

// NewRedisRefreshGuardWithClient creates a guard with an existing Redis
// client. Useful for testing or when sharing a client across components.
func NewRedisRefreshGuardWithClient(client *redis.Client, keyPrefix string) *RedisRefreshGuard {
	if keyPrefix == "" {
		keyPrefix = "guard:"
	}
	return &RedisRefreshGuard{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// TryAcquire attempts to take the lock for key. On success it returns a
// release func the caller must invoke when done. A nil release with a nil
// error means another holder owns the lock.
func (g *RedisRefreshGuard) TryAcquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	fullKey := g.keyPrefix + key
	token := uuid.NewString()

	ok, err := g.client.SetNX(ctx, fullKey, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire refresh lock: %w", err)
	}
	if !ok {
		return nil, nil
	}

	release := func() {
		// Best effort: the TTL reclaims the lock if the release is lost.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, _ = releaseScript.Run(releaseCtx, g.client, []string{fullKey}, token).Result()
	}
	return release, nil
}

// Close closes the Redis client
func (g *RedisRefreshGuard) Close() error {
	return g.client.Close()
}

var _ appcredential.RefreshGuard = (*RedisRefreshGuard)(nil)
