// Package cache provides the TTL key/value store backing all dedup and
// per-contact flag state.
package cache

import (
	"context"
	"time"
)

// Store is the idempotency/cache collaborator contract. All dedup logic
// in the router is expressed as read-decide-write against this
// interface; SetNX exists only for the optional atomic dedup mode.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
}
