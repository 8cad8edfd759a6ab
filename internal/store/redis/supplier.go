package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/MrSnakeDoc/sevasetu/internal/domain"
	"github.com/redis/go-redis/v9"
)

// SaveSuppliersMany stores the loaded directory in Redis (bulk operation).
// Suppliers that left the directory are removed from the set.
func (s *Store) SaveSuppliersMany(ctx context.Context, suppliers []*domain.Supplier) error {
	existing, err := s.client.SMembers(ctx, KeyAllSuppliers).Result()
	if err != nil {
		return fmt.Errorf("failed to get supplier IDs: %w", err)
	}

	keep := make(map[string]struct{}, len(suppliers))
	pipe := s.client.Pipeline()
	for _, sup := range suppliers {
		data, err := json.Marshal(sup)
		if err != nil {
			return fmt.Errorf("failed to marshal supplier %s: %w", sup.ID, err)
		}
		keep[sup.ID] = struct{}{}
		pipe.Set(ctx, SupplierKey(sup.ID), data, DefaultSupplierTTL)
		pipe.SAdd(ctx, KeyAllSuppliers, sup.ID)
	}
	for _, id := range existing {
		if _, ok := keep[id]; ok {
			continue
		}
		pipe.Del(ctx, SupplierKey(id))
		pipe.SRem(ctx, KeyAllSuppliers, id)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save suppliers: %w", err)
	}
	return nil
}

// GetSupplier retrieves a supplier by ID
func (s *Store) GetSupplier(ctx context.Context, id string) (*domain.Supplier, error) {
	data, err := s.client.Get(ctx, SupplierKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("supplier not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get supplier: %w", err)
	}

	var sup domain.Supplier
	if err := json.Unmarshal(data, &sup); err != nil {
		return nil, fmt.Errorf("failed to unmarshal supplier: %w", err)
	}
	return &sup, nil
}
