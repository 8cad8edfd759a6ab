package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// DefaultSessionTTL bounds how long a mirrored session outlives its process (48 hours)
	DefaultSessionTTL = 48 * time.Hour
	// DefaultSupplierTTL is the TTL for supplier entries, refreshed on every reload
	DefaultSupplierTTL = 48 * time.Hour
	// DefaultCacheTTL is the default TTL for cached resolutions (24 hours)
	DefaultCacheTTL = 24 * time.Hour
)

// Store handles Redis operations for sessions, suppliers, usage and cache
type Store struct {
	client redis.Cmdable
}

// NewStore creates a new Redis store
func NewStore(client redis.Cmdable) *Store {
	return &Store{
		client: client,
	}
}

// Ping reports whether Redis answers.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
