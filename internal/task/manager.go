package task

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nidhogg/holiday-agent/internal/criteria"
	"github.com/nidhogg/holiday-agent/internal/metrics"
	"github.com/nidhogg/holiday-agent/internal/source"
	"github.com/nidhogg/holiday-agent/internal/workflow"
	"go.uber.org/zap"
)

const (
	DefaultWorkers = 4
	DefaultTimeout = 120 * time.Second

	notifyTimeout = 30 * time.Second
)

// Pipeline runs one search.
type Pipeline interface {
	Run(ctx context.Context, req criteria.Request) (*workflow.Result, error)
}

// Notifier is told about every task that reaches a terminal state.
type Notifier interface {
	Notify(ctx context.Context, t Task) error
}

// ErrorReporter receives task failures, e.g. for Sentry.
type ErrorReporter interface {
	CaptureError(ctx context.Context, err error, tags map[string]string)
}

// Options configures a Manager. Zero values get defaults.
type Options struct {
	Workers  int
	Timeout  time.Duration
	Notifier Notifier
	Tracker  ErrorReporter
}

// Manager runs search tasks in the background and keeps every task for the
// lifetime of the process.
type Manager struct {
	pipeline Pipeline
	notifier Notifier
	tracker  ErrorReporter
	timeout  time.Duration
	sem      chan struct{}
	logger   *zap.Logger
	now      func() time.Time

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu     sync.RWMutex
	tasks  map[string]*Task
	closed bool
}

// NewManager creates a Manager.
func NewManager(p Pipeline, opts Options, logger *zap.Logger) *Manager {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		pipeline: p,
		notifier: opts.Notifier,
		tracker:  opts.Tracker,
		timeout:  opts.Timeout,
		sem:      make(chan struct{}, opts.Workers),
		logger:   logger,
		now:      time.Now,
		baseCtx:  ctx,
		cancel:   cancel,
		tasks:    make(map[string]*Task),
	}
}

// Submit validates req, records a pending task and starts it in the
// background. It never waits for the search itself.
func (m *Manager) Submit(req criteria.Request, caller CallerRef) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}

	t := &Task{
		ID:        uuid.New().String(),
		Status:    StatusPending,
		CreatedAt: m.now(),
		Caller:    caller,
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return "", ErrShuttingDown
	}
	m.tasks[t.ID] = t
	m.wg.Add(1)
	m.mu.Unlock()

	m.logger.Info("task submitted",
		zap.String("task_id", t.ID),
		zap.Bool("free_text", req.IsFreeText()),
		zap.String("platform", caller.Platform))

	go m.run(t.ID, req)
	return t.ID, nil
}

// Get returns a snapshot of the task.
func (m *Manager) Get(id string) (Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tasks[id]
	if !ok {
		return Task{}, ErrNotFound
	}
	return *t, nil
}

// Shutdown refuses new tasks and waits for running ones. If ctx ends first,
// running tasks are cancelled and ctx's error is returned once they stop.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.cancel()
		return nil
	case <-ctx.Done():
		m.cancel()
		<-done
		return ctx.Err()
	}
}

func (m *Manager) run(id string, req criteria.Request) {
	defer m.wg.Done()

	select {
	case m.sem <- struct{}{}:
	case <-m.baseCtx.Done():
		m.start(id)
		if snap, ok := m.finish(id, nil, fmt.Errorf("cancelled before start: %w", m.baseCtx.Err())); ok {
			m.notify(snap)
		}
		return
	}

	// occupy has released the worker slot by the time the push starts.
	if snap, ok := m.occupy(id, req); ok {
		m.notify(snap)
	}
}

// occupy runs the pipeline for id while holding a worker slot.
func (m *Manager) occupy(id string, req criteria.Request) (Task, bool) {
	defer func() { <-m.sem }()

	m.start(id)
	metrics.TasksInFlight.Inc()
	defer metrics.TasksInFlight.Dec()

	ctx, cancel := context.WithTimeout(m.baseCtx, m.timeout)
	defer cancel()

	res, err := m.execute(ctx, req)
	if err != nil && errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("search timed out after %s: %w", m.timeout, err)
	}
	return m.finish(id, res, err)
}

func (m *Manager) execute(ctx context.Context, req criteria.Request) (res *workflow.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("pipeline panicked", zap.Any("panic", r))
			res, err = nil, fmt.Errorf("internal error: %v", r)
		}
	}()
	res, err = m.pipeline.Run(ctx, req)
	if err == nil && (res == nil || res.Report == nil) {
		err = errors.New("pipeline returned no report")
	}
	return res, err
}

func (m *Manager) start(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.tasks[id]
	if err := Transition(t.Status, StatusRunning); err != nil {
		m.logger.Error("bad task transition", zap.String("task_id", id), zap.Error(err))
		return
	}
	now := m.now()
	t.Status = StatusRunning
	t.StartedAt = &now
}

// finish moves id to its terminal state and returns the final snapshot.
// ok is false when the transition was not allowed.
func (m *Manager) finish(id string, res *workflow.Result, runErr error) (snap Task, ok bool) {
	to := StatusDone
	if runErr != nil {
		to = StatusFailed
	}

	m.mu.Lock()
	t := m.tasks[id]
	if err := Transition(t.Status, to); err != nil {
		m.mu.Unlock()
		m.logger.Error("bad task transition", zap.String("task_id", id), zap.Error(err))
		return Task{}, false
	}
	now := m.now()
	t.Status = to
	t.FinishedAt = &now
	if res != nil {
		t.Config = res.Config
		t.Warnings = res.Warnings
	}
	if runErr != nil {
		t.Error = runErr.Error()
	} else {
		t.Report = res.Report
		t.Offers = res.Offers
	}
	snap = *t
	m.mu.Unlock()

	metrics.IncrementTask(string(to))
	if runErr != nil {
		m.logger.Warn("task failed", zap.String("task_id", id), zap.Error(runErr))
		if m.tracker != nil {
			m.tracker.CaptureError(m.baseCtx, runErr, map[string]string{"task_id": id, "kind": errorKind(runErr)})
		}
	} else {
		m.logger.Info("task done",
			zap.String("task_id", id),
			zap.Int("offers", len(snap.Offers)),
			zap.Duration("duration", snap.Duration()))
	}
	return snap, true
}

func (m *Manager) notify(t Task) {
	if m.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(m.baseCtx), notifyTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("notifier panicked", zap.String("task_id", t.ID), zap.Any("panic", r))
		}
	}()
	if err := m.notifier.Notify(ctx, t); err != nil {
		m.logger.Warn("completion notification failed", zap.String("task_id", t.ID), zap.Error(err))
	}
}

func errorKind(err error) string {
	var (
		cerr *workflow.ConfigError
		perr *workflow.ProcessingError
		serr *source.Error
	)
	switch {
	case errors.As(err, &cerr):
		return "config"
	case errors.As(err, &perr):
		return "processing"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.As(err, &serr):
		return "source"
	}
	return "internal"
}
