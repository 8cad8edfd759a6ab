package relay

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/MrSnakeDoc/sevasetu/internal/domain"
	"github.com/MrSnakeDoc/sevasetu/internal/sessions"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recordSink struct {
	mu     sync.Mutex
	msgs   []any
	closed bool
	fail   bool
}

func (s *recordSink) Send(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errSinkClosed
	}
	if s.fail {
		return errors.New("broken pipe")
	}
	s.msgs = append(s.msgs, v)
	return nil
}

func (s *recordSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *recordSink) messages() []any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]any(nil), s.msgs...)
}

func (s *recordSink) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func newTestRelay(t *testing.T, idle time.Duration) (*Relay, *sessions.Registry) {
	t.Helper()
	reg, err := sessions.New(sessions.Options{Capacity: 100})
	require.NoError(t, err)
	return New(reg, nil, idle), reg
}

func TestSubscribeFlushesSnapshot(t *testing.T) {
	r, reg := newTestRelay(t, 0)
	require.NoError(t, reg.Create(domain.NewSession("rpa_1", "dgvcl", "name_change", "", time.Now())))

	sink := &recordSink{}
	replaced := r.Subscribe("rpa_1", sink)
	assert.False(t, replaced)
	assert.Equal(t, 1, r.Connections())

	msgs := sink.messages()
	require.Len(t, msgs, 1)
	snap, ok := msgs[0].(*domain.Session)
	require.True(t, ok, "first message should be the session snapshot")
	assert.Equal(t, domain.StatusStarting, snap.Status)
	assert.Equal(t, 0, snap.Progress)
}

func TestSubscribeUnknownSessionSendsNothing(t *testing.T) {
	r, _ := newTestRelay(t, 0)

	sink := &recordSink{}
	r.Subscribe("ghost", sink)
	assert.Empty(t, sink.messages())
	assert.Equal(t, 1, r.Connections())
	assert.True(t, r.Unsubscribe("ghost", sink))
	assert.Equal(t, 0, r.Connections())
}

func TestSubscribeReplaces(t *testing.T) {
	r, reg := newTestRelay(t, 0)
	require.NoError(t, reg.Create(domain.NewSession("rpa_1", "dgvcl", "name_change", "", time.Now())))

	first := &recordSink{}
	second := &recordSink{}
	assert.False(t, r.Subscribe("rpa_1", first))
	assert.True(t, r.Subscribe("rpa_1", second))

	assert.True(t, first.isClosed(), "replaced sink must be closed")
	assert.Equal(t, 1, r.Connections())

	// the stale sink cannot unsubscribe the new one
	assert.False(t, r.Unsubscribe("rpa_1", first))
	assert.Equal(t, 1, r.Connections())

	_, err := r.Publish("rpa_1", domain.SessionDelta{Step: domain.Step1, Progress: domain.Progress(20)})
	require.NoError(t, err)
	assert.Len(t, first.messages(), 1)
	assert.Len(t, second.messages(), 2)
}

func TestPublishOrderAndTermination(t *testing.T) {
	r, reg := newTestRelay(t, 0)
	require.NoError(t, reg.Create(domain.NewSession("rpa_1", "dgvcl", "name_change", "", time.Now())))

	sink := &recordSink{}
	r.Subscribe("rpa_1", sink)

	steps := []string{domain.Step1, domain.Step2, domain.Step3}
	for _, step := range steps {
		_, err := r.Publish("rpa_1", domain.SessionDelta{
			Status:   domain.StatusProcessing,
			Step:     step,
			Progress: domain.Progress(domain.ProgressForStep(step)),
		})
		require.NoError(t, err)
	}

	now := time.Now()
	snap, err := r.Publish("rpa_1", domain.SessionDelta{
		Status:      domain.StatusCompleted,
		Progress:    domain.Progress(100),
		CompletedAt: &now,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, snap.Status)

	msgs := sink.messages()
	require.Len(t, msgs, 5)
	for i, step := range steps {
		d, ok := msgs[i+1].(domain.SessionDelta)
		require.True(t, ok)
		assert.Equal(t, step, d.Step)
		assert.Equal(t, "rpa_1", d.SessionID)
		assert.False(t, d.Timestamp.IsZero())
	}
	last := msgs[4].(domain.SessionDelta)
	assert.Equal(t, domain.StatusCompleted, last.Status)

	assert.True(t, sink.isClosed(), "terminal delta closes the channel")
	assert.Equal(t, 0, r.Connections())

	// the registry has every update even without a subscriber
	_, err = r.Publish("rpa_1", domain.SessionDelta{Message: "late"})
	require.NoError(t, err)
}

func TestSubscribeToFinishedSession(t *testing.T) {
	r, reg := newTestRelay(t, 0)
	require.NoError(t, reg.Create(domain.NewSession("rpa_1", "dgvcl", "name_change", "", time.Now())))
	_, err := reg.Update("rpa_1", domain.SessionDelta{Status: domain.StatusFailed})
	require.NoError(t, err)

	sink := &recordSink{}
	r.Subscribe("rpa_1", sink)

	assert.Len(t, sink.messages(), 1)
	assert.True(t, sink.isClosed())
	assert.Equal(t, 0, r.Connections())
}

func TestDeliveryFailureDeregisters(t *testing.T) {
	r, reg := newTestRelay(t, 0)
	require.NoError(t, reg.Create(domain.NewSession("rpa_1", "dgvcl", "name_change", "", time.Now())))

	sink := &recordSink{}
	r.Subscribe("rpa_1", sink)

	sink.mu.Lock()
	sink.fail = true
	sink.mu.Unlock()

	snap, err := r.Publish("rpa_1", domain.SessionDelta{Step: domain.Step4, Progress: domain.Progress(80)})
	require.NoError(t, err, "delivery errors are never raised")
	assert.Equal(t, 80, snap.Progress)
	assert.Equal(t, 0, r.Connections())
	assert.True(t, sink.isClosed())

	got, err := reg.Get("rpa_1")
	require.NoError(t, err)
	assert.Equal(t, 80, got.Progress)
}

func TestPublishUnknownSession(t *testing.T) {
	r, _ := newTestRelay(t, 0)
	_, err := r.Publish("ghost", domain.SessionDelta{Message: "x"})
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestHeartbeat(t *testing.T) {
	r, reg := newTestRelay(t, 0)
	require.NoError(t, reg.Create(domain.NewSession("rpa_1", "dgvcl", "name_change", "", time.Now())))

	sink := &recordSink{}
	stale := &recordSink{}
	r.Subscribe("rpa_1", sink)

	r.Heartbeat("rpa_1", sink)
	r.Heartbeat("rpa_1", stale)

	assert.Len(t, sink.messages(), 2)
	assert.Empty(t, stale.messages())
}

func TestClose(t *testing.T) {
	r, _ := newTestRelay(t, 0)
	a, b := &recordSink{}, &recordSink{}
	r.Subscribe("a", a)
	r.Subscribe("b", b)

	r.Close()
	assert.True(t, a.isClosed())
	assert.True(t, b.isClosed())
	assert.Equal(t, 0, r.Connections())
}
