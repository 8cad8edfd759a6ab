package redis

import (
	"context"
	"fmt"
	"strconv"
)

// IncrementUsage increments the redirect counter for a supplier
func (s *Store) IncrementUsage(ctx context.Context, supplierID string) error {
	if err := s.client.HIncrBy(ctx, KeyUsage, supplierID, 1).Err(); err != nil {
		return fmt.Errorf("failed to increment usage: %w", err)
	}
	return nil
}

// GetUsageStats retrieves redirect counters for all suppliers
func (s *Store) GetUsageStats(ctx context.Context) (map[string]int64, error) {
	raw, err := s.client.HGetAll(ctx, KeyUsage).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get usage stats: %w", err)
	}

	stats := make(map[string]int64, len(raw))
	for id, v := range raw {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			continue
		}
		stats[id] = n
	}
	return stats, nil
}
