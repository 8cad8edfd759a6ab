package scheduler

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/sevasetu/internal/logger"
)

const (
	// DefaultSessionRetention is how long a finished session stays queryable
	DefaultSessionRetention = 24 * time.Hour
)

// Reaper removes finished sessions. Implemented by sessions.Registry.
type Reaper interface {
	Reap(retention time.Duration) []string
}

// SessionReaper handles removal of sessions that ended longer ago than the retention
type SessionReaper struct {
	registry  Reaper
	logger    logger.Logger
	interval  time.Duration
	retention time.Duration
	stopCh    chan struct{}
}

// NewSessionReaper creates a new session reaper
func NewSessionReaper(
	registry Reaper,
	log logger.Logger,
	interval time.Duration,
	retention time.Duration,
) *SessionReaper {
	if retention == 0 {
		retention = DefaultSessionRetention
	}

	return &SessionReaper{
		registry:  registry,
		logger:    log,
		interval:  interval,
		retention: retention,
		stopCh:    make(chan struct{}),
	}
}

// Start begins the periodic reaping process
func (sr *SessionReaper) Start(ctx context.Context) {
	sr.Collect()

	ticker := time.NewTicker(sr.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				sr.Collect()
			case <-sr.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the reaper
func (sr *SessionReaper) Stop() {
	close(sr.stopCh)
}

// Collect removes expired sessions and returns how many were dropped.
func (sr *SessionReaper) Collect() int {
	reaped := sr.registry.Reap(sr.retention)
	if len(reaped) == 0 {
		sr.logger.Debug("no sessions to reap")
		return 0
	}

	sr.logger.Info("reaped finished sessions",
		logger.Int("count", len(reaped)),
		logger.Duration("retention", sr.retention))
	return len(reaped)
}
