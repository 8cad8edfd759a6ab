// Package orchestrator starts automation runs off the request path and
// records their progress and outcome.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/MrSnakeDoc/sevasetu/internal/automation"
	"github.com/MrSnakeDoc/sevasetu/internal/domain"
	"github.com/MrSnakeDoc/sevasetu/internal/logger"
	"github.com/MrSnakeDoc/sevasetu/internal/metrics"
)

// Store creates sessions. Implemented by sessions.Registry.
type Store interface {
	Create(s *domain.Session) error
}

// Publisher merges a delta into the registry and forwards it to the
// subscriber. Implemented by relay.Relay.
type Publisher interface {
	Publish(id string, d domain.SessionDelta) (*domain.Session, error)
}

// StartRequest asks for one automation run.
type StartRequest struct {
	Provider        string
	ApplicationType string
	FormData        automation.FormData
	Requester       string
	// SessionHint, when set, is used as the session id.
	SessionHint string
}

// Started is returned to the caller as soon as the run is scheduled.
type Started struct {
	SessionID    string
	WebsocketURL string
}

// Options configures an Orchestrator.
type Options struct {
	Store      Store
	Publisher  Publisher
	Bots       *automation.Registry
	Capability automation.Capability
	Logger     logger.Logger
	Now        func() time.Time
}

// task is the handle of one detached run.
type task struct {
	cancel  context.CancelFunc
	stopped bool
}

// Orchestrator runs bots and records their outcome.
type Orchestrator struct {
	store      Store
	pub        Publisher
	bots       *automation.Registry
	capability automation.Capability
	log        logger.Logger
	now        func() time.Time

	base       context.Context
	cancelBase context.CancelFunc

	mu    sync.Mutex
	tasks map[string]*task
	wg    sync.WaitGroup
}

// New creates an orchestrator.
func New(opts Options) *Orchestrator {
	if opts.Bots == nil {
		opts.Bots = automation.NewRegistry()
	}
	if opts.Capability == nil {
		opts.Capability = automation.Always
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	base, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		store:      opts.Store,
		pub:        opts.Publisher,
		bots:       opts.Bots,
		capability: opts.Capability,
		log:        opts.Logger,
		now:        opts.Now,
		base:       base,
		cancelBase: cancel,
		tasks:      make(map[string]*task),
	}
}

// Available returns nil when bots can run in this process.
func (o *Orchestrator) Available() error {
	if err := o.capability.Check(); err != nil {
		if errors.Is(err, domain.ErrAutomationUnavailable) {
			return err
		}
		return fmt.Errorf("%w: %v", domain.ErrAutomationUnavailable, err)
	}
	return nil
}

// Start checks the automation capability, creates the session in the starting
// state and runs the bot in the background. Nothing is created when the
// capability is missing.
func (o *Orchestrator) Start(req StartRequest) (Started, error) {
	if err := o.Available(); err != nil {
		return Started{}, err
	}

	now := o.now()
	id := strings.TrimSpace(req.SessionHint)
	if id == "" {
		id = SessionID(now, req.Requester)
	}

	s := domain.NewSession(id, req.Provider, req.ApplicationType, req.Requester, now)
	ctx, cancel := context.WithCancel(o.base)
	t := &task{cancel: cancel}

	// The registry may have evicted or reaped a session whose run is still
	// going, so the task table is checked too. Create and registration share
	// the lock so a Stop never sees a session without its handle.
	o.mu.Lock()
	if _, busy := o.tasks[id]; busy {
		o.mu.Unlock()
		cancel()
		return Started{}, domain.ErrDuplicateSession
	}
	if err := o.store.Create(s); err != nil {
		o.mu.Unlock()
		cancel()
		return Started{}, err
	}
	o.tasks[id] = t
	o.wg.Add(1)
	o.mu.Unlock()

	metrics.SessionsStarted.WithLabelValues(automation.ParseProvider(req.Provider).String()).Inc()
	o.log.Info("automation started",
		logger.String("session_id", id),
		logger.String("provider", req.Provider),
		logger.String("application_type", req.ApplicationType),
	)

	go o.run(ctx, id, t, req)

	return Started{SessionID: id, WebsocketURL: "/rpa/ws/" + url.PathEscape(id)}, nil
}

// Stop marks the session stopped and cancels its run if one is in flight.
func (o *Orchestrator) Stop(id string) (*domain.Session, error) {
	snap, err := o.pub.Publish(id, domain.StopDelta(o.now()))
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	t, running := o.tasks[id]
	if running {
		t.stopped = true
	}
	o.mu.Unlock()

	if running {
		t.cancel()
		o.log.Info("automation cancelled", logger.String("session_id", id))
	}
	return snap, nil
}

// Running returns the number of runs in flight.
func (o *Orchestrator) Running() int {
	o.mu.Lock()
	defer o.mu.Unlock()

	return len(o.tasks)
}

// Wait blocks until every run has returned or ctx is done.
func (o *Orchestrator) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown cancels every run and waits for them to record their outcome.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.cancelBase()
	return o.Wait(ctx)
}

func (o *Orchestrator) run(ctx context.Context, id string, t *task, req StartRequest) {
	defer o.wg.Done()
	defer o.forget(id, t)

	provider := automation.ParseProvider(req.Provider)
	log := o.log.With(logger.String("session_id", id), logger.String("provider", req.Provider))

	defer func() {
		if r := recover(); r != nil {
			o.recordError(id, provider, &domain.AutomationExecutionError{
				Provider: req.Provider,
				Err:      fmt.Errorf("panic: %v", r),
			}, log)
		}
	}()

	bot, ok := o.bots.Lookup(provider)
	if !ok {
		o.finish(id, provider, domain.Result{
			Success: false,
			Error:   fmt.Sprintf("Provider %s not supported yet", req.Provider),
		}, log)
		return
	}

	report := func(u automation.StepUpdate) {
		status := domain.StatusProcessing
		if u.Waiting {
			status = domain.StatusWaiting
		}
		if _, err := o.pub.Publish(id, domain.SessionDelta{
			Status:   status,
			Step:     u.Step,
			Message:  u.Message,
			Progress: domain.Progress(domain.ProgressForStep(u.Step)),
		}); err != nil {
			log.Warn("step update dropped", logger.String("step", u.Step), logger.Error(err))
		}
	}

	res, err := bot.Run(ctx, req.ApplicationType, req.FormData, report)
	if err != nil {
		if ctx.Err() != nil && !o.wasStopped(t) {
			err = fmt.Errorf("interrupted by shutdown: %w", err)
		}
		o.recordError(id, provider, &domain.AutomationExecutionError{Provider: req.Provider, Err: err}, log)
		return
	}
	o.finish(id, provider, res, log)
}

// finish writes the terminal update for a bot that returned a result.
func (o *Orchestrator) finish(id string, provider automation.Provider, res domain.Result, log logger.Logger) {
	now := o.now()
	d := domain.SessionDelta{
		Status:      domain.StatusFailed,
		Progress:    domain.Progress(0),
		Result:      &res,
		CompletedAt: &now,
	}
	if res.Success {
		d.Status = domain.StatusCompleted
		d.Progress = domain.Progress(100)
	}

	snap, err := o.pub.Publish(id, d)
	if err != nil {
		log.Warn("final status dropped", logger.Error(err))
		return
	}
	metrics.SessionsFinished.WithLabelValues(provider.String(), string(snap.Status)).Inc()
	log.Info("automation finished", logger.String("status", string(snap.Status)), logger.Bool("success", res.Success))
}

// recordError writes the terminal update for a run that broke.
func (o *Orchestrator) recordError(id string, provider automation.Provider, err error, log logger.Logger) {
	now := o.now()
	snap, perr := o.pub.Publish(id, domain.SessionDelta{
		Status:   domain.StatusError,
		Progress: domain.Progress(0),
		Error:    err.Error(),
		FailedAt: &now,
	})
	if perr != nil {
		log.Warn("error status dropped", logger.Error(perr))
		return
	}
	metrics.SessionsFinished.WithLabelValues(provider.String(), string(snap.Status)).Inc()
	log.Error("automation failed", logger.Error(err))
}

func (o *Orchestrator) wasStopped(t *task) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	return t.stopped
}

// forget drops the handle of a finished run. The entry is only removed while
// it still belongs to that run.
func (o *Orchestrator) forget(id string, t *task) {
	o.mu.Lock()
	if o.tasks[id] == t {
		delete(o.tasks, id)
	}
	o.mu.Unlock()

	t.cancel()
}

// SessionID builds the default id: rpa_<YYYYMMDD_HHMMSS>_<requester|anonymous>.
func SessionID(now time.Time, requester string) string {
	requester = strings.TrimSpace(requester)
	if requester == "" {
		requester = "anonymous"
	}
	return fmt.Sprintf("rpa_%s_%s", now.Format("20060102_150405"), requester)
}
