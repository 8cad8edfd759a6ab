package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/MrSnakeDoc/sevasetu/internal/domain"
	"github.com/redis/go-redis/v9"
)

// SaveSession stores a session snapshot in Redis
func (s *Store) SaveSession(ctx context.Context, session *domain.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, SessionKey(session.ID), data, DefaultSessionTTL)
	pipe.SAdd(ctx, KeyAllSessions, session.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// GetSession retrieves a session snapshot by ID
func (s *Store) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	data, err := s.client.Get(ctx, SessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var session domain.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

// LoadSessions retrieves every mirrored session. IDs whose snapshot expired
// are dropped from the index set.
func (s *Store) LoadSessions(ctx context.Context) ([]*domain.Session, error) {
	ids, err := s.client.SMembers(ctx, KeyAllSessions).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get session IDs: %w", err)
	}
	if len(ids) == 0 {
		return []*domain.Session{}, nil
	}

	sessions := make([]*domain.Session, 0, len(ids))
	var stale []string
	for _, id := range ids {
		session, err := s.GetSession(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrSessionNotFound) {
				stale = append(stale, id)
			}
			continue
		}
		sessions = append(sessions, session)
	}

	if len(stale) > 0 {
		members := make([]any, len(stale))
		for i, id := range stale {
			members[i] = id
		}
		if err := s.client.SRem(ctx, KeyAllSessions, members...).Err(); err != nil {
			return sessions, fmt.Errorf("failed to prune session set: %w", err)
		}
	}
	return sessions, nil
}

// DeleteSessions removes session snapshots from Redis
func (s *Store) DeleteSessions(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}

	keys := make([]string, len(ids))
	members := make([]any, len(ids))
	for i, id := range ids {
		keys[i] = SessionKey(id)
		members[i] = id
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, keys...)
	pipe.SRem(ctx, KeyAllSessions, members...)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete sessions: %w", err)
	}
	return nil
}
