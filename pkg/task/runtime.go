package task

import (
	"context"
	"fmt"
	"sync"

	"github.com/entrhq/livecontrol/pkg/logging"
)

// Runtime is one run of a task, from Start to its stop. A restarted task gets a new Runtime.
type Runtime struct {
	id        ID
	accountID string
	mgr       *Manager
	ctx       context.Context
	cancel    context.CancelFunc
	log       *logging.Logger

	mu        sync.Mutex
	disposers []func() error
	disposed  bool

	// done is closed when the run has fully stopped.
	done     chan struct{}
	doneOnce sync.Once
}

func newRuntime(m *Manager, id ID, parent context.Context) *Runtime {
	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	return &Runtime{
		id:        id,
		accountID: m.accountID,
		mgr:       m,
		ctx:       ctx,
		cancel:    cancel,
		log:       m.log.Scope(string(id)),
		done:      make(chan struct{}),
	}
}

// Context is cancelled when the run stops.
func (rt *Runtime) Context() context.Context { return rt.ctx }

// AccountID returns the owning account.
func (rt *Runtime) AccountID() string { return rt.accountID }

// Log returns the task logger.
func (rt *Runtime) Log() *logging.Logger { return rt.log }

// Defer registers a cleanup step. Cleanups run once, newest first, when the run stops.
// A cleanup registered after the run stopped runs immediately.
func (rt *Runtime) Defer(fn func() error) {
	rt.mu.Lock()
	if !rt.disposed {
		rt.disposers = append(rt.disposers, fn)
		rt.mu.Unlock()
		return
	}
	rt.mu.Unlock()
	rt.runDisposer(fn)
}

// Fail stops this run with an error. It returns immediately; the stop happens
// in the background so it can be called from goroutines a cleanup waits on.
func (rt *Runtime) Fail(err error) {
	go rt.mgr.fail(rt, err)
}

func (rt *Runtime) markDone() {
	rt.doneOnce.Do(func() { close(rt.done) })
}

// dispose runs every registered cleanup exactly once. Failures are logged and skipped.
func (rt *Runtime) dispose() {
	rt.mu.Lock()
	if rt.disposed {
		rt.mu.Unlock()
		return
	}
	rt.disposed = true
	fns := rt.disposers
	rt.disposers = nil
	rt.mu.Unlock()

	for i := len(fns) - 1; i >= 0; i-- {
		rt.runDisposer(fns[i])
	}
}

func (rt *Runtime) runDisposer(fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			rt.log.Errorf("cleanup panicked: %v", r)
		}
	}()
	if err := fn(); err != nil {
		rt.log.Warnf("cleanup failed: %v", err)
	}
}

// start runs the runner, turning a panic into an error.
func (rt *Runtime) start(r Runner) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("task panicked: %v", p)
		}
	}()
	return r.Start(rt.ctx, rt)
}
