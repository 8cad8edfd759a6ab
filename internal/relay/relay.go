// Package relay pushes session status changes to at most one subscriber per session.
package relay

import (
	"hash/fnv"
	"sync"
	"time"

	"github.com/MrSnakeDoc/sevasetu/internal/domain"
	"github.com/MrSnakeDoc/sevasetu/internal/logger"
	"github.com/MrSnakeDoc/sevasetu/internal/metrics"
)

// DefaultIdleWindow is how long a channel may stay silent before the latest
// snapshot is pushed again.
const DefaultIdleWindow = time.Second

const lockStripes = 64

// Message kinds, also used as the metrics label.
const (
	KindSnapshot  = "snapshot"
	KindDelta     = "delta"
	KindHeartbeat = "heartbeat"
)

// Sink receives messages for one session. Send must be safe to call after
// Close and then return an error.
type Sink interface {
	Send(v any) error
	Close() error
}

// Store is the part of the session registry the relay needs.
type Store interface {
	Get(id string) (*domain.Session, error)
	Update(id string, d domain.SessionDelta) (*domain.Session, error)
}

// Relay is a set of topics keyed by session id, each with zero or one sink.
//
// Work on one session id (publish, subscribe, heartbeat) is serialized by a
// striped lock so the subscriber sees updates in the order they were produced.
type Relay struct {
	store Store
	log   logger.Logger
	idle  time.Duration

	stripes [lockStripes]sync.Mutex

	mu    sync.Mutex
	sinks map[string]Sink
}

// New creates a relay backed by store. idle <= 0 selects DefaultIdleWindow.
func New(store Store, log logger.Logger, idle time.Duration) *Relay {
	if idle <= 0 {
		idle = DefaultIdleWindow
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Relay{
		store: store,
		log:   log,
		idle:  idle,
		sinks: make(map[string]Sink),
	}
}

// IdleWindow returns the heartbeat interval.
func (r *Relay) IdleWindow() time.Duration { return r.idle }

// Subscribe registers sink as the subscriber for id and reports whether a
// previous subscriber was replaced (and closed). The current snapshot, if the
// session exists, is delivered before any later delta. If that snapshot is
// already terminal the channel is closed right after it.
func (r *Relay) Subscribe(id string, sink Sink) (replaced bool) {
	lk := r.lockFor(id)
	lk.Lock()
	defer lk.Unlock()

	r.mu.Lock()
	old, replaced := r.sinks[id]
	r.sinks[id] = sink
	r.mu.Unlock()

	if replaced {
		r.log.Info("relay subscriber replaced", logger.String("session_id", id))
		_ = old.Close()
	} else {
		metrics.RelaySubscribers.Inc()
	}

	snap, err := r.store.Get(id)
	if err != nil {
		return replaced
	}
	if !r.deliver(id, sink, snap, KindSnapshot) {
		return replaced
	}
	if snap.Status.Terminal() {
		r.finish(id, sink)
	}
	return replaced
}

// Unsubscribe removes sink if it is still the subscriber for id.
func (r *Relay) Unsubscribe(id string, sink Sink) bool {
	lk := r.lockFor(id)
	lk.Lock()
	defer lk.Unlock()

	return r.remove(id, sink)
}

// Publish merges d into the registry and forwards it to the subscriber.
// Only registry errors are returned; a failed delivery deregisters the sink.
// When the merged session is terminal the channel is closed after delivery.
func (r *Relay) Publish(id string, d domain.SessionDelta) (*domain.Session, error) {
	lk := r.lockFor(id)
	lk.Lock()
	defer lk.Unlock()

	snap, err := r.store.Update(id, d)
	if err != nil {
		return nil, err
	}

	sink := r.current(id)
	if sink == nil {
		return snap, nil
	}

	d.SessionID = id
	if d.Timestamp.IsZero() {
		d.Timestamp = snap.UpdatedAt
	}
	if r.deliver(id, sink, d, KindDelta) && snap.Status.Terminal() {
		r.finish(id, sink)
	}
	return snap, nil
}

// Heartbeat pushes the latest snapshot to sink if it is still the subscriber for id.
func (r *Relay) Heartbeat(id string, sink Sink) {
	lk := r.lockFor(id)
	lk.Lock()
	defer lk.Unlock()

	if r.current(id) != sink {
		return
	}
	snap, err := r.store.Get(id)
	if err != nil {
		// session evicted while subscribed
		r.remove(id, sink)
		_ = sink.Close()
		return
	}
	r.deliver(id, sink, snap, KindHeartbeat)
}

// Connections returns the number of registered subscribers.
func (r *Relay) Connections() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.sinks)
}

// Close closes every subscriber.
func (r *Relay) Close() {
	r.mu.Lock()
	sinks := r.sinks
	r.sinks = make(map[string]Sink)
	r.mu.Unlock()

	for range sinks {
		metrics.RelaySubscribers.Dec()
	}
	for _, s := range sinks {
		_ = s.Close()
	}
}

// deliver sends v and deregisters the sink on failure.
func (r *Relay) deliver(id string, sink Sink, v any, kind string) bool {
	if err := sink.Send(v); err != nil {
		metrics.RelaySendFailures.Inc()
		r.log.Debug("relay delivery failed, dropping subscriber",
			logger.String("session_id", id),
			logger.String("kind", kind),
			logger.Error(err),
		)
		r.remove(id, sink)
		_ = sink.Close()
		return false
	}
	metrics.RelayMessages.WithLabelValues(kind).Inc()
	return true
}

func (r *Relay) finish(id string, sink Sink) {
	r.remove(id, sink)
	_ = sink.Close()
}

func (r *Relay) current(id string) Sink {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.sinks[id]
}

func (r *Relay) remove(id string, sink Sink) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.sinks[id]; !ok || cur != sink {
		return false
	}
	delete(r.sinks, id)
	metrics.RelaySubscribers.Dec()
	return true
}

func (r *Relay) lockFor(id string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return &r.stripes[h.Sum32()%lockStripes]
}
