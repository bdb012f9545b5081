package store

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("not found")
)

// CounterStore persists rate-limit window counters. IncrAndGet must be atomic:
// the increment and the read-back happen as one operation, and the TTL is
// applied when the key is first created.
type CounterStore interface {
	IncrAndGet(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// TokenStore persists opaque tokens bound to a subject. DeleteIfEquals must be
// atomic so a single-use token cannot validate twice under concurrent requests.
type TokenStore interface {
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	DeleteIfEquals(ctx context.Context, key string, value string) (bool, error)
}

// Blocklist is a set-membership store for denied subjects.
type Blocklist interface {
	Add(ctx context.Context, member string, ttl time.Duration) error
	Contains(ctx context.Context, member string) (bool, error)
}
