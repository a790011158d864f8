package repository

import (
	"context"
	"time"
)

// RevokeToken stores the token id with a TTL equal to the token's remaining lifetime.
func (that *RedisStore) RevokeToken(ctx context.Context, tokenID string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}

	if err := that.client.Set(ctx, revokedTokenKey(tokenID), 1, ttl).Err(); err != nil {
		return unavailable(err, "failed to revoke token")
	}

	return nil
}

func (that *RedisStore) IsTokenRevoked(ctx context.Context, tokenID string) (bool, error) {
	count, err := that.client.Exists(ctx, revokedTokenKey(tokenID)).Result()
	if err != nil {
		return false, unavailable(err, "failed to check revoked token")
	}

	return count > 0, nil
}
