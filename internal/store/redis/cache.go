package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// resolutionKey scopes a cached resolution by action so "pgvcl" resolved for
// the portal and for a name change can differ.
func resolutionKey(query, action string) string {
	return CacheKey(action + ":" + query)
}

// CacheResolution stores a query -> supplier ID resolution in cache
func (s *Store) CacheResolution(ctx context.Context, query, action, supplierID string, ttl time.Duration) error {
	if err := s.client.Set(ctx, resolutionKey(query, action), supplierID, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache resolution: %w", err)
	}
	return nil
}

// GetCachedResolution retrieves a cached resolution. A miss returns "".
func (s *Store) GetCachedResolution(ctx context.Context, query, action string) (string, error) {
	id, err := s.client.Get(ctx, resolutionKey(query, action)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("failed to get cached resolution: %w", err)
	}
	return id, nil
}

// FlushCache removes all cached resolutions
func (s *Store) FlushCache(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, KeyPrefixCache+"*", 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to flush cache: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete cache keys: %w", err)
	}
	return nil
}
