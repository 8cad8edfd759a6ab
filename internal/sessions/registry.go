// Package sessions holds the bounded registry of automation sessions.
package sessions

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/MrSnakeDoc/sevasetu/internal/domain"
	"github.com/MrSnakeDoc/sevasetu/internal/logger"
)

const DefaultCapacity = 1000

// Eviction reasons reported to OnEvict.
const (
	EvictCapacity  = "capacity"
	EvictRetention = "retention"
)

// Persister mirrors registry state to an external store. Failures are logged,
// never returned to registry callers.
type Persister interface {
	SaveSession(ctx context.Context, s *domain.Session) error
	DeleteSessions(ctx context.Context, ids ...string) error
}

// Options configures a Registry.
type Options struct {
	// Capacity bounds the number of sessions kept; the least recently
	// touched session is evicted first.
	Capacity int

	Persister Persister
	Logger    logger.Logger

	// OnEvict is called (outside any lock) for every session dropped by the registry.
	OnEvict func(id, reason string)

	// Now defaults to time.Now.
	Now func() time.Time
}

// Registry maps session ids to their current state. Readers always get copies.
type Registry struct {
	mu      sync.Mutex
	cache   *lru.Cache[string, *domain.Session]
	evicted []string // filled by the LRU callback while mu is held

	persistMu sync.Mutex
	persist   Persister
	log       logger.Logger
	onEvict   func(id, reason string)
	now       func() time.Time
}

// New creates a registry.
func New(opts Options) (*Registry, error) {
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	r := &Registry{
		persist: opts.Persister,
		log:     opts.Logger,
		onEvict: opts.OnEvict,
		now:     opts.Now,
	}

	cache, err := lru.NewWithEvict(opts.Capacity, func(id string, _ *domain.Session) {
		r.evicted = append(r.evicted, id)
	})
	if err != nil {
		return nil, fmt.Errorf("create session cache: %w", err)
	}
	r.cache = cache
	return r, nil
}

// Create inserts a new session.
func (r *Registry) Create(s *domain.Session) error {
	r.mu.Lock()
	if r.cache.Contains(s.ID) {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", domain.ErrDuplicateSession, s.ID)
	}
	r.cache.Add(s.ID, s.Clone())
	evicted := r.drainEvicted()
	r.mu.Unlock()

	r.dropped(evicted, EvictCapacity)
	r.mirror(s.ID)
	return nil
}

// Update merges a delta into the session and returns the merged snapshot.
func (r *Registry) Update(id string, d domain.SessionDelta) (*domain.Session, error) {
	r.mu.Lock()
	s, ok := r.cache.Get(id)
	if !ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	if d.Timestamp.IsZero() {
		d.Timestamp = r.now()
	}
	s.Apply(d)
	snap := s.Clone()
	r.mu.Unlock()

	r.mirror(id)
	return snap, nil
}

// Get returns a snapshot of the session.
func (r *Registry) Get(id string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.cache.Peek(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	return s.Clone(), nil
}

// List returns snapshots of every session, oldest first.
func (r *Registry) List() []*domain.Session {
	r.mu.Lock()
	out := make([]*domain.Session, 0, r.cache.Len())
	for _, s := range r.cache.Values() {
		out = append(out, s.Clone())
	}
	r.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}

// Len returns the number of sessions held.
func (r *Registry) Len() int {
	return r.cache.Len()
}

// Stop marks the session stopped. It does not remove it, and a session that
// already reached a terminal state is left as is.
func (r *Registry) Stop(id string) (*domain.Session, error) {
	return r.Update(id, domain.StopDelta(r.now()))
}

// Restore inserts snapshots loaded from the external store, replacing any
// session with the same id. Restored sessions are not mirrored back.
func (r *Registry) Restore(sessions []*domain.Session) int {
	r.mu.Lock()
	for _, s := range sessions {
		r.cache.Add(s.ID, s.Clone())
	}
	evicted := r.drainEvicted()
	r.mu.Unlock()

	r.dropped(evicted, EvictCapacity)
	return len(sessions) - len(evicted)
}

// Reap removes terminal sessions that ended before now-retention and returns their ids.
func (r *Registry) Reap(retention time.Duration) []string {
	cutoff := r.now().Add(-retention)

	r.mu.Lock()
	var expired []string
	for _, id := range r.cache.Keys() {
		s, ok := r.cache.Peek(id)
		if !ok || !s.Status.Terminal() {
			continue
		}
		ended := s.EndedAt()
		if ended.IsZero() {
			ended = s.UpdatedAt
		}
		if ended.Before(cutoff) {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		r.cache.Remove(id)
	}
	// Remove fires the evict callback too; those ids are already in expired.
	r.evicted = r.evicted[:0]
	r.mu.Unlock()

	r.dropped(expired, EvictRetention)
	return expired
}

func (r *Registry) drainEvicted() []string {
	if len(r.evicted) == 0 {
		return nil
	}
	out := append([]string(nil), r.evicted...)
	r.evicted = r.evicted[:0]
	return out
}

func (r *Registry) dropped(ids []string, reason string) {
	if len(ids) == 0 {
		return
	}
	for _, id := range ids {
		r.log.Debug("session dropped", logger.String("session_id", id), logger.String("reason", reason))
		if r.onEvict != nil {
			r.onEvict(id, reason)
		}
	}
	if r.persist == nil {
		return
	}

	r.persistMu.Lock()
	defer r.persistMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.persist.DeleteSessions(ctx, ids...); err != nil {
		r.log.Warn("failed to delete sessions from store", logger.Int("count", len(ids)), logger.Error(err))
	}
}

// mirror writes the latest snapshot of id to the persister. Calls are
// serialized and each re-reads the registry, so the store ends with the
// newest state even when updates race.
func (r *Registry) mirror(id string) {
	if r.persist == nil {
		return
	}

	r.persistMu.Lock()
	defer r.persistMu.Unlock()

	snap, err := r.Get(id)
	if err != nil {
		// evicted between the mutation and the mirror
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.persist.SaveSession(ctx, snap); err != nil {
		r.log.Warn("failed to mirror session", logger.String("session_id", id), logger.Error(err))
	}
}
