package session

import (
	"context"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

const revokedSessionsKey = "session:revoked"

// Cache is the Redis-backed fast path for "has this session been revoked
// since the access token was issued" — a Redis set keyed by session id,
// checked with Sadd/Sismember/Srem. It never replaces the authoritative
// Postgres lookup in Manager.ValidateAccess; it only lets a revocation
// (logout, reuse detection) take effect before the next scheduled DB
// round trip would have caught it anyway.
type Cache interface {
	MarkRevoked(ctx context.Context, sessionID uuid.UUID) error
	IsRevoked(ctx context.Context, sessionID uuid.UUID) (bool, error)
	ClearRevoked(ctx context.Context, sessionID uuid.UUID) error
}

type redisCache struct {
	client *goredis.Client
}

func NewRedisCache(client *goredis.Client) Cache {
	return &redisCache{client: client}
}

func (c *redisCache) MarkRevoked(ctx context.Context, sessionID uuid.UUID) error {
	return c.client.SAdd(ctx, revokedSessionsKey, sessionID.String()).Err()
}

func (c *redisCache) IsRevoked(ctx context.Context, sessionID uuid.UUID) (bool, error) {
	return c.client.SIsMember(ctx, revokedSessionsKey, sessionID.String()).Result()
}

func (c *redisCache) ClearRevoked(ctx context.Context, sessionID uuid.UUID) error {
	return c.client.SRem(ctx, revokedSessionsKey, sessionID.String()).Err()
}

// lastActiveThrottle is the minimum interval between last_active writes
// for one session.
const lastActiveThrottle = 30 * time.Second
