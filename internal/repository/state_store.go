package repository

import (
	"context"
	"time"
)

// StateStore abstracts ephemeral key-value state such as revoked tokens.
// Implementations: Redis (production) or in-memory (single instance, tests).
type StateStore interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// RevokedTokenKey is the StateStore key marking an access token as logged out
func RevokedTokenKey(token string) string {
	return "blacklist:" + token
}
