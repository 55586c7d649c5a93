package task

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/entrhq/livecontrol/pkg/gate"
	"github.com/entrhq/livecontrol/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type accountState struct {
	mu      sync.Mutex
	connect types.ConnectStatus
	stream  types.StreamStatus
}

func (s *accountState) get() (types.ConnectStatus, types.StreamStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connect, s.stream
}

func liveState() *accountState {
	return &accountState{connect: types.ConnectStatusConnected, stream: types.StreamStatusLive}
}

type stopRecord struct {
	id     ID
	reason types.StopReason
	err    error
}

type stopRecorder struct {
	mu    sync.Mutex
	stops []stopRecord
}

func (r *stopRecorder) hook(id ID, reason types.StopReason, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stops = append(r.stops, stopRecord{id, reason, err})
}

func (r *stopRecorder) get() []stopRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]stopRecord(nil), r.stops...)
}

// countingRunner registers n cleanups and counts their invocations.
type countingRunner struct {
	cleanups int
	calls    atomic.Int32
	startErr error
	rt       *Runtime
}

func (r *countingRunner) Start(ctx context.Context, rt *Runtime) error {
	r.rt = rt
	for i := 0; i < r.cleanups; i++ {
		rt.Defer(func() error {
			r.calls.Add(1)
			return nil
		})
	}
	return r.startErr
}

func TestStart_GateDenied(t *testing.T) {
	state := &accountState{connect: types.ConnectStatusDisconnected, stream: types.StreamStatusUnknown}
	m := NewManager("acct-1", state.get)
	runner := &countingRunner{}
	m.Register(AutoSpeak, runner)

	result := m.Start(context.Background(), AutoSpeak)

	assert.False(t, result.Success)
	assert.Equal(t, string(gate.ReasonNotConnected), result.Reason)
	assert.Equal(t, gate.ActionConnect, result.Action)
	assert.NotEmpty(t, result.Message)
	assert.NoError(t, result.Err)
	assert.Nil(t, runner.rt, "runner must not be invoked")

	status, err := m.Status(AutoSpeak)
	require.NoError(t, err)
	assert.Equal(t, StatusIdle, status)
}

func TestStart_NotLive(t *testing.T) {
	state := &accountState{connect: types.ConnectStatusConnected, stream: types.StreamStatusOffline}
	m := NewManager("acct-1", state.get)
	m.Register(AutoPopup, &countingRunner{})

	result := m.Start(context.Background(), AutoPopup)
	assert.Equal(t, string(gate.ReasonNotLive), result.Reason)
	assert.Equal(t, gate.ActionGoLive, result.Action)
}

func TestStart_NotFound(t *testing.T) {
	m := NewManager("acct-1", liveState().get)

	result := m.Start(context.Background(), AutoSpeak)
	assert.False(t, result.Success)
	assert.Equal(t, ReasonTaskNotFound, result.Reason)
	assert.ErrorIs(t, result.Err, ErrTaskNotFound)
}

func TestStart_AlreadyRunning(t *testing.T) {
	m := NewManager("acct-1", liveState().get)
	m.Register(AutoSpeak, &countingRunner{})

	require.True(t, m.Start(context.Background(), AutoSpeak).Success)
	result := m.Start(context.Background(), AutoSpeak)

	assert.Equal(t, ReasonAlreadyRunning, result.Reason)
	assert.ErrorIs(t, result.Err, ErrAlreadyRunning)
}

func TestStart_RunnerErrorDisposes(t *testing.T) {
	m := NewManager("acct-1", liveState().get)
	runner := &countingRunner{cleanups: 2, startErr: errors.New("listener refused")}
	m.Register(CommentReply, runner)

	result := m.Start(context.Background(), CommentReply)

	assert.False(t, result.Success)
	assert.Equal(t, ReasonError, result.Reason)
	assert.Equal(t, "listener refused", result.Message)
	assert.Equal(t, int32(2), runner.calls.Load())

	status, _ := m.Status(CommentReply)
	assert.Equal(t, StatusError, status)

	// A failed task can be started again
	runner.startErr = nil
	assert.True(t, m.Start(context.Background(), CommentReply).Success)
}

func TestStart_RunnerPanicIsRecovered(t *testing.T) {
	m := NewManager("acct-1", liveState().get)
	m.Register(AutoSpeak, RunnerFunc(func(context.Context, *Runtime) error {
		panic("boom")
	}))

	result := m.Start(context.Background(), AutoSpeak)
	assert.Equal(t, ReasonError, result.Reason)
	assert.Contains(t, result.Message, "boom")
}

func TestStop_IsIdempotent(t *testing.T) {
	rec := &stopRecorder{}
	m := NewManager("acct-1", liveState().get, WithStopHook(rec.hook))
	runner := &countingRunner{cleanups: 3}
	m.Register(AutoSpeak, runner)

	require.True(t, m.Start(context.Background(), AutoSpeak).Success)

	m.Stop(AutoSpeak, types.StopReasonManual)
	m.Stop(AutoSpeak, types.StopReasonManual)

	assert.Equal(t, int32(3), runner.calls.Load(), "each cleanup runs exactly once")
	status, _ := m.Status(AutoSpeak)
	assert.Equal(t, StatusStopped, status)
	assert.Len(t, rec.get(), 1)
	assert.Equal(t, types.StopReasonManual, rec.get()[0].reason)
}

func TestStop_IdleIsNoop(t *testing.T) {
	rec := &stopRecorder{}
	m := NewManager("acct-1", liveState().get, WithStopHook(rec.hook))
	m.Register(AutoSpeak, &countingRunner{})

	m.Stop(AutoSpeak, types.StopReasonManual)
	m.Stop("missing", types.StopReasonManual)

	status, _ := m.Status(AutoSpeak)
	assert.Equal(t, StatusIdle, status)
	assert.Empty(t, rec.get())
}

func TestStop_CancelsContextAndRunsCleanupsNewestFirst(t *testing.T) {
	m := NewManager("acct-1", liveState().get)

	var order []int
	var runCtx context.Context
	m.Register(AutoPopup, RunnerFunc(func(ctx context.Context, rt *Runtime) error {
		runCtx = ctx
		rt.Defer(func() error { order = append(order, 1); return nil })
		rt.Defer(func() error { order = append(order, 2); return errors.New("listener gone") })
		rt.Defer(func() error { panic("broken cleanup") })
		rt.Defer(func() error { order = append(order, 4); return nil })
		return nil
	}))

	require.True(t, m.Start(context.Background(), AutoPopup).Success)
	m.Stop(AutoPopup, types.StopReasonStreamEnded)

	assert.Error(t, runCtx.Err())
	assert.Equal(t, []int{4, 2, 1}, order, "a failing cleanup does not block the rest")
}

func TestStart_CallerCancellationDoesNotStopTask(t *testing.T) {
	m := NewManager("acct-1", liveState().get)
	var runCtx context.Context
	m.Register(AutoSpeak, RunnerFunc(func(ctx context.Context, rt *Runtime) error {
		runCtx = ctx
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	require.True(t, m.Start(ctx, AutoSpeak).Success)
	cancel()

	assert.NoError(t, runCtx.Err())
	m.Stop(AutoSpeak, types.StopReasonManual)
	assert.Error(t, runCtx.Err())
}

func TestFail_StopsOnlyThatTask(t *testing.T) {
	rec := &stopRecorder{}
	m := NewManager("acct-1", liveState().get, WithStopHook(rec.hook))
	failing := &countingRunner{cleanups: 1}
	healthy := &countingRunner{cleanups: 1}
	m.Register(AutoSpeak, failing)
	m.Register(AutoPopup, healthy)

	require.True(t, m.Start(context.Background(), AutoSpeak).Success)
	require.True(t, m.Start(context.Background(), AutoPopup).Success)

	failing.rt.Fail(errors.New("send failed"))
	failing.rt.Fail(errors.New("send failed again"))

	require.Eventually(t, func() bool {
		s, _ := m.Status(AutoSpeak)
		return s == StatusError
	}, time.Second, 5*time.Millisecond)

	s, _ := m.Status(AutoPopup)
	assert.Equal(t, StatusRunning, s)
	assert.Equal(t, int32(1), failing.calls.Load())
	assert.Zero(t, healthy.calls.Load())

	require.Eventually(t, func() bool { return len(rec.get()) == 1 }, time.Second, 5*time.Millisecond)
	stop := rec.get()[0]
	assert.Equal(t, AutoSpeak, stop.id)
	assert.Equal(t, types.StopReasonError, stop.reason)
	assert.EqualError(t, stop.err, "send failed")
}

func TestStopAll_Concurrent(t *testing.T) {
	m := NewManager("acct-1", liveState().get)

	// Each cleanup blocks until all three are in progress, which only
	// completes if the stops run concurrently.
	var arrived sync.WaitGroup
	arrived.Add(3)
	for _, id := range []ID{AutoSpeak, AutoPopup, CommentReply} {
		m.Register(id, RunnerFunc(func(ctx context.Context, rt *Runtime) error {
			rt.Defer(func() error {
				arrived.Done()
				arrived.Wait()
				return nil
			})
			return nil
		}))
		require.True(t, m.Start(context.Background(), id).Success)
	}

	done := make(chan []ID)
	go func() { done <- m.StopAll(types.StopReasonDisconnected) }()

	select {
	case ids := <-done:
		assert.Equal(t, []ID{AutoPopup, AutoSpeak, CommentReply}, ids)
	case <-time.After(2 * time.Second):
		t.Fatal("StopAll did not stop tasks concurrently")
	}

	for id, s := range m.AllStatus() {
		assert.Equal(t, StatusStopped, s, id)
	}
	assert.Empty(t, m.Running())
}

func TestStop_WhileStoppingWaits(t *testing.T) {
	m := NewManager("acct-1", liveState().get)
	release := make(chan struct{})
	m.Register(AutoSpeak, RunnerFunc(func(ctx context.Context, rt *Runtime) error {
		rt.Defer(func() error { <-release; return nil })
		return nil
	}))
	require.True(t, m.Start(context.Background(), AutoSpeak).Success)

	first := make(chan struct{})
	go func() {
		m.Stop(AutoSpeak, types.StopReasonManual)
		close(first)
	}()
	require.Eventually(t, func() bool {
		s, _ := m.Status(AutoSpeak)
		return s == StatusStopping
	}, time.Second, 5*time.Millisecond)

	second := make(chan struct{})
	go func() {
		m.Stop(AutoSpeak, types.StopReasonManual)
		close(second)
	}()

	select {
	case <-second:
		t.Fatal("second stop returned before cleanup finished")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	<-first
	<-second
	s, _ := m.Status(AutoSpeak)
	assert.Equal(t, StatusStopped, s)
}

func TestDeferAfterStopRunsImmediately(t *testing.T) {
	m := NewManager("acct-1", liveState().get)
	runner := &countingRunner{}
	m.Register(AutoSpeak, runner)
	require.True(t, m.Start(context.Background(), AutoSpeak).Success)
	m.Stop(AutoSpeak, types.StopReasonManual)

	ran := false
	runner.rt.Defer(func() error { ran = true; return nil })
	assert.True(t, ran)
}

func TestRegister_KeepsRunningRunner(t *testing.T) {
	m := NewManager("acct-1", liveState().get)
	first := &countingRunner{cleanups: 1}
	m.Register(AutoSpeak, first)
	require.True(t, m.Start(context.Background(), AutoSpeak).Success)

	m.Register(AutoSpeak, &countingRunner{})
	m.Stop(AutoSpeak, types.StopReasonManual)

	assert.Equal(t, int32(1), first.calls.Load())
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Auto reply", DisplayName(CommentReply))
	assert.Equal(t, "custom", DisplayName("custom"))
}
