package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/MrSnakeDoc/sevasetu/internal/automation"
	"github.com/MrSnakeDoc/sevasetu/internal/domain"
	"github.com/MrSnakeDoc/sevasetu/internal/relay"
	"github.com/MrSnakeDoc/sevasetu/internal/sessions"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type harness struct {
	orch  *Orchestrator
	reg   *sessions.Registry
	relay *relay.Relay
}

func newHarness(t *testing.T, bot automation.Bot, capability automation.Capability) *harness {
	t.Helper()
	return newHarnessWithCapacity(t, 100, bot, capability)
}

func newHarnessWithCapacity(t *testing.T, capacity int, bot automation.Bot, capability automation.Capability) *harness {
	t.Helper()
	reg, err := sessions.New(sessions.Options{Capacity: capacity})
	require.NoError(t, err)
	rl := relay.New(reg, nil, time.Hour)

	bots := automation.NewRegistry()
	if bot != nil {
		bots.Register(automation.ProviderDGVCL, bot)
	}

	o := New(Options{
		Store:      reg,
		Publisher:  rl,
		Bots:       bots,
		Capability: capability,
		Now:        func() time.Time { return time.Date(2026, 5, 4, 9, 30, 15, 0, time.UTC) },
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(t, o.Shutdown(ctx))
	})
	return &harness{orch: o, reg: reg, relay: rl}
}

func (h *harness) wait(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.orch.Wait(ctx))
}

func (h *harness) get(t *testing.T, id string) *domain.Session {
	t.Helper()
	s, err := h.reg.Get(id)
	require.NoError(t, err)
	return s
}

type deltaSink struct {
	mu     sync.Mutex
	deltas []domain.SessionDelta
}

func (s *deltaSink) Send(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := v.(domain.SessionDelta); ok {
		s.deltas = append(s.deltas, d)
	}
	return nil
}

func (s *deltaSink) Close() error { return nil }

func (s *deltaSink) all() []domain.SessionDelta {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.SessionDelta(nil), s.deltas...)
}

// gatedBot blocks until release is closed, then runs fn.
func gatedBot(release <-chan struct{}, fn automation.BotFunc) automation.Bot {
	return automation.BotFunc(func(ctx context.Context, app string, form automation.FormData, report automation.Reporter) (domain.Result, error) {
		select {
		case <-release:
		case <-ctx.Done():
			return domain.Result{}, ctx.Err()
		}
		return fn(ctx, app, form, report)
	})
}

func succeed(context.Context, string, automation.FormData, automation.Reporter) (domain.Result, error) {
	return domain.Result{Success: true, Reference: "REF-1"}, nil
}

func TestStartCreatesStartingSession(t *testing.T) {
	release := make(chan struct{})
	h := newHarness(t, gatedBot(release, succeed), nil)

	started, err := h.orch.Start(StartRequest{Provider: "dgvcl", ApplicationType: "name_change", Requester: "42"})
	require.NoError(t, err)
	assert.Equal(t, "rpa_20260504_093015_42", started.SessionID)
	assert.Equal(t, "/rpa/ws/rpa_20260504_093015_42", started.WebsocketURL)

	s := h.get(t, started.SessionID)
	assert.Equal(t, domain.StatusStarting, s.Status)
	assert.Equal(t, 0, s.Progress)
	assert.Equal(t, 1, h.orch.Running())

	close(release)
	h.wait(t)

	s = h.get(t, started.SessionID)
	assert.Equal(t, domain.StatusCompleted, s.Status)
	assert.Equal(t, 100, s.Progress)
	require.NotNil(t, s.Result)
	assert.Equal(t, "REF-1", s.Result.Reference)
	assert.NotNil(t, s.CompletedAt)
	assert.Equal(t, 0, h.orch.Running())
}

func TestStartUnavailable(t *testing.T) {
	h := newHarness(t, automation.BotFunc(succeed), automation.CapabilityFunc(func() error {
		return errors.New("chromium missing")
	}))

	_, err := h.orch.Start(StartRequest{Provider: "dgvcl", ApplicationType: "name_change"})
	assert.ErrorIs(t, err, domain.ErrAutomationUnavailable)
	assert.Equal(t, 0, h.reg.Len(), "no session is created when automation is unavailable")
}

func TestStartDuplicateHint(t *testing.T) {
	h := newHarness(t, automation.BotFunc(succeed), nil)

	_, err := h.orch.Start(StartRequest{Provider: "dgvcl", ApplicationType: "x", SessionHint: "mine"})
	require.NoError(t, err)
	_, err = h.orch.Start(StartRequest{Provider: "dgvcl", ApplicationType: "x", SessionHint: "mine"})
	assert.ErrorIs(t, err, domain.ErrDuplicateSession)
	h.wait(t)
}

func TestStartRejectsIDOfEvictedRunningSession(t *testing.T) {
	release := make(chan struct{})
	bot := automation.BotFunc(func(ctx context.Context, app string, _ automation.FormData, report automation.Reporter) (domain.Result, error) {
		<-release // ignores cancellation on purpose
		report(automation.StepUpdate{Step: "STEP 1", Message: "from " + app})
		return domain.Result{Success: true, Reference: app}, nil
	})
	h := newHarnessWithCapacity(t, 1, bot, nil)

	_, err := h.orch.Start(StartRequest{Provider: "dgvcl", ApplicationType: "first", SessionHint: "a"})
	require.NoError(t, err)
	_, err = h.orch.Start(StartRequest{Provider: "dgvcl", ApplicationType: "other", SessionHint: "b"})
	require.NoError(t, err)

	_, err = h.reg.Get("a")
	require.ErrorIs(t, err, domain.ErrSessionNotFound, "a is evicted by b")

	_, err = h.orch.Start(StartRequest{Provider: "dgvcl", ApplicationType: "second", SessionHint: "a"})
	assert.ErrorIs(t, err, domain.ErrDuplicateSession, "the first run of a is still in flight")
	assert.Equal(t, 2, h.orch.Running())

	close(release)
	h.wait(t)
	assert.Equal(t, 0, h.orch.Running())

	s := h.get(t, "b")
	assert.Equal(t, domain.StatusCompleted, s.Status)
	require.NotNil(t, s.Result)
	assert.Equal(t, "other", s.Result.Reference)
	assert.Empty(t, s.Error)

	_, err = h.reg.Get("a")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound, "the finished first run does not recreate a")
}

func TestStopRightAfterStartCancelsRun(t *testing.T) {
	h := newHarness(t, automation.BotFunc(func(ctx context.Context, _ string, _ automation.FormData, _ automation.Reporter) (domain.Result, error) {
		<-ctx.Done()
		return domain.Result{}, ctx.Err()
	}), nil)

	started, err := h.orch.Start(StartRequest{Provider: "dgvcl", ApplicationType: "name_change"})
	require.NoError(t, err)
	_, err = h.orch.Stop(started.SessionID)
	require.NoError(t, err)
	h.wait(t)

	s := h.get(t, started.SessionID)
	assert.Equal(t, domain.StatusStopped, s.Status)
	assert.NotContains(t, s.Error, "shutdown")
}

func TestWebsocketURLEscapesID(t *testing.T) {
	h := newHarness(t, automation.BotFunc(succeed), nil)

	started, err := h.orch.Start(StartRequest{Provider: "dgvcl", ApplicationType: "x", SessionHint: "a/b?c"})
	require.NoError(t, err)
	assert.Equal(t, "/rpa/ws/a%2Fb%3Fc", started.WebsocketURL)
	h.wait(t)
}

func TestUnsupportedProviderFails(t *testing.T) {
	h := newHarness(t, automation.BotFunc(succeed), nil)

	started, err := h.orch.Start(StartRequest{Provider: "pgvcl", ApplicationType: "name_change"})
	require.NoError(t, err)
	assert.Equal(t, "rpa_20260504_093015_anonymous", started.SessionID)
	h.wait(t)

	s := h.get(t, started.SessionID)
	assert.Equal(t, domain.StatusFailed, s.Status)
	assert.Equal(t, 0, s.Progress)
	require.NotNil(t, s.Result)
	assert.False(t, s.Result.Success)
	assert.Equal(t, "Provider pgvcl not supported yet", s.Result.Error)
}

func TestStepProgressIsForwarded(t *testing.T) {
	release := make(chan struct{})
	labels := []string{"STEP 1", "STEP 2", "STEP 3", "STEP 4", "STEP 5", "NOT A STEP", "COMPLETE"}
	bot := gatedBot(release, func(_ context.Context, _ string, _ automation.FormData, report automation.Reporter) (domain.Result, error) {
		for _, l := range labels {
			report(automation.StepUpdate{Step: l, Message: "at " + l, Waiting: l == "STEP 3"})
		}
		return domain.Result{Success: true}, nil
	})
	h := newHarness(t, bot, nil)

	started, err := h.orch.Start(StartRequest{Provider: "DGVCL", ApplicationType: "name_change"})
	require.NoError(t, err)

	sink := &deltaSink{}
	h.relay.Subscribe(started.SessionID, sink)
	close(release)
	h.wait(t)

	deltas := sink.all()
	require.Len(t, deltas, len(labels)+1)

	want := []int{20, 40, 60, 80, 90, 0, 100}
	for i, l := range labels {
		assert.Equal(t, l, deltas[i].Step)
		require.NotNil(t, deltas[i].Progress)
		assert.Equal(t, want[i], *deltas[i].Progress, "progress for %s", l)
	}
	assert.Equal(t, domain.StatusWaiting, deltas[2].Status)
	assert.Equal(t, domain.StatusProcessing, deltas[3].Status)
	assert.Equal(t, domain.StatusCompleted, deltas[len(deltas)-1].Status)
}

func TestBotErrorIsRecorded(t *testing.T) {
	h := newHarness(t, automation.BotFunc(func(context.Context, string, automation.FormData, automation.Reporter) (domain.Result, error) {
		return domain.Result{}, errors.New("chrome crashed")
	}), nil)

	started, err := h.orch.Start(StartRequest{Provider: "dgvcl", ApplicationType: "name_change"})
	require.NoError(t, err)
	h.wait(t)

	s := h.get(t, started.SessionID)
	assert.Equal(t, domain.StatusError, s.Status)
	assert.Equal(t, 0, s.Progress)
	assert.Contains(t, s.Error, "chrome crashed")
	assert.NotNil(t, s.FailedAt)
}

func TestBotPanicIsRecorded(t *testing.T) {
	h := newHarness(t, automation.BotFunc(func(context.Context, string, automation.FormData, automation.Reporter) (domain.Result, error) {
		panic("nil map")
	}), nil)

	started, err := h.orch.Start(StartRequest{Provider: "dgvcl", ApplicationType: "name_change"})
	require.NoError(t, err)
	h.wait(t)

	s := h.get(t, started.SessionID)
	assert.Equal(t, domain.StatusError, s.Status)
	assert.Contains(t, s.Error, "panic: nil map")
}

func TestStopCancelsRun(t *testing.T) {
	entered := make(chan struct{})
	h := newHarness(t, automation.BotFunc(func(ctx context.Context, _ string, _ automation.FormData, report automation.Reporter) (domain.Result, error) {
		report(automation.StepUpdate{Step: "STEP 1"})
		close(entered)
		<-ctx.Done()
		return domain.Result{}, ctx.Err()
	}), nil)

	started, err := h.orch.Start(StartRequest{Provider: "dgvcl", ApplicationType: "name_change"})
	require.NoError(t, err)
	<-entered

	snap, err := h.orch.Stop(started.SessionID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusStopped, snap.Status)
	h.wait(t)

	s := h.get(t, started.SessionID)
	assert.Equal(t, domain.StatusStopped, s.Status, "stopped is sticky")
	assert.NotNil(t, s.StoppedAt)
	assert.Contains(t, s.Error, "context canceled")
	assert.NotContains(t, s.Error, "shutdown")
}

func TestStopKeepsStatusWhenBotStillSucceeds(t *testing.T) {
	release := make(chan struct{})
	h := newHarness(t, automation.BotFunc(func(context.Context, string, automation.FormData, automation.Reporter) (domain.Result, error) {
		<-release // ignores cancellation on purpose
		return domain.Result{Success: true, Reference: "LATE"}, nil
	}), nil)

	started, err := h.orch.Start(StartRequest{Provider: "dgvcl", ApplicationType: "name_change"})
	require.NoError(t, err)

	_, err = h.orch.Stop(started.SessionID)
	require.NoError(t, err)
	close(release)
	h.wait(t)

	s := h.get(t, started.SessionID)
	assert.Equal(t, domain.StatusStopped, s.Status)
	require.NotNil(t, s.Result, "the result of a stopped run is still attached")
	assert.Equal(t, "LATE", s.Result.Reference)
	assert.NotNil(t, s.CompletedAt)
}

func TestStopUnknownSession(t *testing.T) {
	h := newHarness(t, nil, nil)
	_, err := h.orch.Stop("ghost")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestShutdownInterruptsRuns(t *testing.T) {
	entered := make(chan struct{})
	h := newHarness(t, automation.BotFunc(func(ctx context.Context, _ string, _ automation.FormData, _ automation.Reporter) (domain.Result, error) {
		close(entered)
		<-ctx.Done()
		return domain.Result{}, ctx.Err()
	}), nil)

	started, err := h.orch.Start(StartRequest{Provider: "dgvcl", ApplicationType: "name_change"})
	require.NoError(t, err)
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.orch.Shutdown(ctx))

	s := h.get(t, started.SessionID)
	assert.Equal(t, domain.StatusError, s.Status)
	assert.Contains(t, s.Error, "interrupted by shutdown")
}

func TestSessionID(t *testing.T) {
	at := time.Date(2025, 12, 31, 23, 59, 58, 0, time.UTC)
	assert.Equal(t, "rpa_20251231_235958_anonymous", SessionID(at, ""))
	assert.Equal(t, "rpa_20251231_235958_7", SessionID(at, " 7 "))
}
