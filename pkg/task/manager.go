// Package task runs the long-lived feature loops of one account and sequences
// their start and stop through the gate.
package task

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/entrhq/livecontrol/pkg/gate"
	"github.com/entrhq/livecontrol/pkg/logging"
	"github.com/entrhq/livecontrol/pkg/types"
)

// ID identifies a feature task within an account.
type ID string

const (
	CommentReply ID = "autoReply"
	AutoPopup    ID = "autoPopup"
	AutoSpeak    ID = "autoSpeak"
)

// DisplayName returns a readable task name.
func DisplayName(id ID) string {
	switch id {
	case CommentReply:
		return "Auto reply"
	case AutoPopup:
		return "Auto popup"
	case AutoSpeak:
		return "Auto speak"
	default:
		return string(id)
	}
}

// Status is the lifecycle state of a task.
type Status string

const (
	StatusIdle     Status = "idle"
	StatusRunning  Status = "running"
	StatusStopping Status = "stopping"
	StatusStopped  Status = "stopped"
	StatusError    Status = "error"
)

// Failure reason codes returned in Result.Reason besides the gate codes.
const (
	ReasonTaskNotFound   = "TASK_NOT_FOUND"
	ReasonAlreadyRunning = "ALREADY_RUNNING"
	ReasonError          = "ERROR"
)

var (
	ErrTaskNotFound   = errors.New("task not found")
	ErrAlreadyRunning = errors.New("task already running")
)

// Runner is the body of a feature task. Start sets the task up, registers cleanups
// with rt.Defer and returns; long-running work continues in goroutines bound to ctx.
type Runner interface {
	Start(ctx context.Context, rt *Runtime) error
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, rt *Runtime) error

func (f RunnerFunc) Start(ctx context.Context, rt *Runtime) error { return f(ctx, rt) }

// StateFunc reports the owning account's current connection and stream state.
type StateFunc func() (types.ConnectStatus, types.StreamStatus)

// StopHook observes every completed stop. err is set when the task failed.
type StopHook func(id ID, reason types.StopReason, err error)

// Result is the outcome of Start. Denials are results, not errors.
type Result struct {
	Success bool
	Reason  string
	Message string
	Action  gate.Action
	Err     error
}

type entry struct {
	runner Runner
	status Status
	run    *Runtime
}

// Manager owns the tasks of exactly one account.
type Manager struct {
	accountID string
	state     StateFunc
	onStop    StopHook
	log       *logging.Logger

	mu    sync.Mutex
	tasks map[ID]*entry
}

// Option configures a Manager.
type Option func(*Manager)

// WithStopHook sets the stop observer.
func WithStopHook(h StopHook) Option {
	return func(m *Manager) { m.onStop = h }
}

// WithLogger sets the manager logger.
func WithLogger(l *logging.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// NewManager creates a task manager for accountID.
func NewManager(accountID string, state StateFunc, opts ...Option) *Manager {
	m := &Manager{
		accountID: accountID,
		state:     state,
		log:       logging.Nop(),
		tasks:     make(map[ID]*entry),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Register adds or replaces an idle task.
func (m *Manager) Register(id ID, r Runner) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.tasks[id]; ok && (e.status == StatusRunning || e.status == StatusStopping) {
		m.log.Warnf("task %s is running, keeping current runner", id)
		return
	}
	m.tasks[id] = &entry{runner: r, status: StatusIdle}
}

// Start checks the gate and launches the task. A gate denial leaves the task untouched.
func (m *Manager) Start(ctx context.Context, id ID) Result {
	m.mu.Lock()
	_, ok := m.tasks[id]
	m.mu.Unlock()
	if !ok {
		return Result{Reason: ReasonTaskNotFound, Message: "unknown task " + string(id), Err: ErrTaskNotFound}
	}

	connect, stream := m.state()
	if g := gate.Evaluate(connect, stream); !g.OK {
		return Result{Reason: string(g.Reason), Message: g.Message, Action: g.Action}
	}

	m.mu.Lock()
	e, ok := m.tasks[id]
	if !ok {
		m.mu.Unlock()
		return Result{Reason: ReasonTaskNotFound, Message: "unknown task " + string(id), Err: ErrTaskNotFound}
	}
	if e.status == StatusRunning || e.status == StatusStopping {
		m.mu.Unlock()
		return Result{Reason: ReasonAlreadyRunning, Message: DisplayName(id) + " is already running", Err: ErrAlreadyRunning}
	}
	rt := newRuntime(m, id, ctx)
	e.status = StatusRunning
	e.run = rt
	runner := e.runner
	m.mu.Unlock()

	m.log.Infof("starting %s", id)
	if err := rt.start(runner); err != nil {
		m.log.Errorf("%s failed to start: %v", id, err)
		rt.cancel()
		rt.dispose()
		m.mu.Lock()
		if e.run == rt {
			e.status = StatusError
		}
		m.mu.Unlock()
		rt.markDone()
		return Result{Reason: ReasonError, Message: err.Error(), Err: err}
	}
	return Result{Success: true}
}

// Stop stops a running task and waits for its cleanups. Stopping an idle,
// stopped or failed task does nothing. It never fails.
func (m *Manager) Stop(id ID, reason types.StopReason) {
	m.mu.Lock()
	e, ok := m.tasks[id]
	if !ok {
		m.mu.Unlock()
		m.log.Warnf("stop for unknown task %s", id)
		return
	}
	rt := e.run
	switch e.status {
	case StatusStopping:
		m.mu.Unlock()
		<-rt.done
		return
	case StatusRunning:
		e.status = StatusStopping
		m.mu.Unlock()
	default:
		m.mu.Unlock()
		return
	}

	m.log.Infof("stopping %s (%s)", id, reason)
	m.finish(e, rt, StatusStopped, reason, nil)
}

// fail handles a task-initiated failure of run rt.
func (m *Manager) fail(rt *Runtime, err error) {
	m.mu.Lock()
	e, ok := m.tasks[rt.id]
	if !ok || e.run != rt || e.status != StatusRunning {
		m.mu.Unlock()
		return
	}
	e.status = StatusStopping
	m.mu.Unlock()

	m.log.Errorf("%s failed: %v", rt.id, err)
	m.finish(e, rt, StatusError, types.StopReasonError, err)
}

func (m *Manager) finish(e *entry, rt *Runtime, final Status, reason types.StopReason, err error) {
	rt.cancel()
	rt.dispose()

	m.mu.Lock()
	if e.run == rt {
		e.status = final
	}
	m.mu.Unlock()
	rt.markDone()

	if m.onStop != nil {
		m.onStop(rt.id, reason, err)
	}
}

// StopAll stops every running or stopping task concurrently and returns their ids.
func (m *Manager) StopAll(reason types.StopReason) []ID {
	m.mu.Lock()
	var ids []ID
	for id, e := range m.tasks {
		if e.status == StatusRunning || e.status == StatusStopping {
			ids = append(ids, id)
		}
	}
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id ID) {
			defer wg.Done()
			m.Stop(id, reason)
		}(id)
	}
	wg.Wait()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Status returns the status of id.
func (m *Manager) Status(id ID) (Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.tasks[id]
	if !ok {
		return "", ErrTaskNotFound
	}
	return e.status, nil
}

// AllStatus returns a snapshot of every registered task.
func (m *Manager) AllStatus() map[ID]Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[ID]Status, len(m.tasks))
	for id, e := range m.tasks {
		out[id] = e.status
	}
	return out
}

// Running returns the ids of running tasks, sorted.
func (m *Manager) Running() []ID {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []ID
	for id, e := range m.tasks {
		if e.status == StatusRunning {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
