package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestRevocationList(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	list := NewRevocationList(client)
	ctx := context.Background()

	revoked, err := list.IsRevoked(ctx, "jti-1")
	if err != nil || revoked {
		t.Fatalf("fresh session: revoked=%v err=%v", revoked, err)
	}

	if err := list.Revoke(ctx, "jti-1", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	revoked, err = list.IsRevoked(ctx, "jti-1")
	if err != nil || !revoked {
		t.Fatalf("after revoke: revoked=%v err=%v", revoked, err)
	}
	if ttl := mr.TTL(sessionRevokedKeyPrefix + "jti-1"); ttl <= 59*time.Minute {
		t.Fatalf("ttl = %v, want about one hour", ttl)
	}

	// 已过期的会话也至少保留一秒。
	if err := list.Revoke(ctx, "jti-2", time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("revoke expired: %v", err)
	}
	if ttl := mr.TTL(sessionRevokedKeyPrefix + "jti-2"); ttl != time.Second {
		t.Fatalf("ttl = %v, want 1s", ttl)
	}
}
