package scheduler

import (
	"context"
	"sort"
	"time"

	"github.com/MrSnakeDoc/sevasetu/internal/domain"
	"github.com/MrSnakeDoc/sevasetu/internal/logger"
)

// InterruptedByRestart is recorded on sessions whose run died with the previous process.
const InterruptedByRestart = "interrupted by restart"

// SessionSource is the Redis side of the session registry. Implemented by redisstore.Store.
type SessionSource interface {
	LoadSessions(ctx context.Context) ([]*domain.Session, error)
	SaveSession(ctx context.Context, s *domain.Session) error
}

// Restorer accepts sessions loaded at startup. Implemented by sessions.Registry.
type Restorer interface {
	Restore(sessions []*domain.Session) int
}

// RedisSyncer restores session snapshots from Redis into the registry on startup
type RedisSyncer struct {
	store    SessionSource
	registry Restorer
	logger   logger.Logger
	now      func() time.Time
}

// NewRedisSyncer creates a new Redis syncer
func NewRedisSyncer(
	store SessionSource,
	registry Restorer,
	log logger.Logger,
) *RedisSyncer {
	return &RedisSyncer{
		store:    store,
		registry: registry,
		logger:   log,
		now:      time.Now,
	}
}

// Sync loads sessions from Redis into the registry. Sessions that were still
// running when the previous process stopped cannot be resumed and are closed
// with an error.
func (rs *RedisSyncer) Sync(ctx context.Context) error {
	rs.logger.Info("restoring sessions from redis")

	sessions, err := rs.store.LoadSessions(ctx)
	if err != nil {
		return err
	}

	if len(sessions) == 0 {
		rs.logger.Info("no sessions found in redis")
		return nil
	}

	now := rs.now()
	var interrupted []*domain.Session
	for _, s := range sessions {
		if s.Status.Terminal() {
			continue
		}
		s.Apply(domain.SessionDelta{
			Status:    domain.StatusError,
			Progress:  domain.Progress(0),
			Error:     InterruptedByRestart,
			FailedAt:  &now,
			Timestamp: now,
		})
		interrupted = append(interrupted, s)
	}

	// oldest first so the registry's LRU keeps the newest on overflow
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].UpdatedAt.Before(sessions[j].UpdatedAt) })
	restored := rs.registry.Restore(sessions)

	for _, s := range interrupted {
		if err := rs.store.SaveSession(ctx, s); err != nil {
			rs.logger.Warn("failed to save interrupted session",
				logger.String("session_id", s.ID),
				logger.Error(err))
		}
	}

	rs.logger.Info("restored sessions from redis",
		logger.Int("count", restored),
		logger.Int("interrupted", len(interrupted)))

	return nil
}
