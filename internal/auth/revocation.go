package auth

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const sessionRevokedKeyPrefix = "auth:session:revoked:"

// RevocationList 在 Redis 中记录已注销的会话，保留到会话原本的过期时间。
type RevocationList struct {
	redis redis.UniversalClient
}

// NewRevocationList 构造 RevocationList。
func NewRevocationList(client redis.UniversalClient) *RevocationList {
	return &RevocationList{redis: client}
}

// Revoke 注销会话。expiresAt 已过去时仍写入一秒，避免竞态下的重放。
func (r *RevocationList) Revoke(ctx context.Context, sessionID string, expiresAt time.Time) error {
	if sessionID == "" {
		return nil
	}
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		ttl = time.Second
	}
	return r.redis.Set(ctx, sessionRevokedKeyPrefix+sessionID, "revoked", ttl).Err()
}

// IsRevoked reports whether the session has been revoked.
func (r *RevocationList) IsRevoked(ctx context.Context, sessionID string) (bool, error) {
	err := r.redis.Get(ctx, sessionRevokedKeyPrefix+sessionID).Err()
	if err == nil {
		return true, nil
	}
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	return false, err
}
