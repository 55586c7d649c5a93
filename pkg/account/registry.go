// Package account owns the per-account automation state: the browser session,
// the platform adapter, the stream detector and the feature tasks.
//
// Accounts are independent. Tearing one down never touches another account's
// tasks, buffers or browser.
package account

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/entrhq/livecontrol/pkg/browser"
	"github.com/entrhq/livecontrol/pkg/gate"
	"github.com/entrhq/livecontrol/pkg/logging"
	"github.com/entrhq/livecontrol/pkg/platform"
	"github.com/entrhq/livecontrol/pkg/stream"
	"github.com/entrhq/livecontrol/pkg/task"
	"github.com/entrhq/livecontrol/pkg/types"
)

const (
	// MaxSessions bounds concurrently open browser sessions.
	MaxSessions = 10

	// ConnectTimeout bounds how long a login may take before the account shows an error.
	ConnectTimeout = 60 * time.Second
)

// SessionFactory launches browser sessions. *browser.Factory satisfies it.
type SessionFactory interface {
	CreateSession(ctx context.Context, opts browser.SessionOptions) (*browser.Session, error)
	SetExecutablePath(path string)
}

// PlatformSource creates platform adapters. *platform.Registry satisfies it.
type PlatformSource interface {
	New(id string) (platform.Platform, error)
}

// TaskBuilder creates the feature task runners of one account.
type TaskBuilder func(env task.Env) map[task.ID]task.Runner

// ConnectRequest asks for an account to be connected.
type ConnectRequest struct {
	AccountID        string
	Platform         string
	Headless         bool
	StorageStatePath string
	// ChromePath overrides the browser executable for this and later launches.
	ChromePath string
}

// ConnectResult acknowledges a connect request. Success means the browser is up;
// login completes later and is reported through events.
type ConnectResult struct {
	Success         bool
	BrowserLaunched bool
	Error           string
	Err             error
}

// Snapshot is a read-only view of one account.
type Snapshot struct {
	AccountID string
	Name      string
	Connect   types.ConnectState
	Stream    types.StreamStatus
	Tasks     map[task.ID]task.Status
}

// accountSession is the live state of one account. Fields are guarded by Registry.mu.
type accountSession struct {
	id       string
	adapter  platform.Platform
	browser  *browser.Session
	detector *stream.Detector
	tasks    *task.Manager
	log      *logging.Logger

	connect types.ConnectState
	attempt uint64
	timer   *time.Timer
	cancel  context.CancelFunc
	closed  bool
	// live is set while the current live period has been seen, for auto start.
	live bool
}

// Registry maps account ids to their sessions and enforces the admission limit.
type Registry struct {
	factory   SessionFactory
	platforms PlatformSource
	emit      types.EmitFunc
	log       *logging.Logger

	limit          int
	connectTimeout time.Duration
	detectorOpts   []stream.Option
	buildTasks     TaskBuilder
	autoStart      []task.ID

	mu       sync.Mutex
	sessions map[string]*accountSession
	states   map[string]types.ConnectState
	names    map[string]string
	attempts uint64
}

// Option configures a Registry.
type Option func(*Registry)

// WithEmitter sets the UI event sink.
func WithEmitter(emit types.EmitFunc) Option {
	return func(r *Registry) { r.emit = emit }
}

// WithLogger sets the registry logger. Accounts log to scoped children.
func WithLogger(l *logging.Logger) Option {
	return func(r *Registry) { r.log = l }
}

// WithLimit overrides MaxSessions.
func WithLimit(n int) Option {
	return func(r *Registry) { r.limit = n }
}

// WithConnectTimeout overrides ConnectTimeout.
func WithConnectTimeout(d time.Duration) Option {
	return func(r *Registry) { r.connectTimeout = d }
}

// WithDetectorOptions passes options to every stream detector.
func WithDetectorOptions(opts ...stream.Option) Option {
	return func(r *Registry) { r.detectorOpts = append(r.detectorOpts, opts...) }
}

// WithTaskBuilder sets how feature tasks are created for each account.
func WithTaskBuilder(b TaskBuilder) Option {
	return func(r *Registry) { r.buildTasks = b }
}

// WithAutoStart starts the given tasks whenever an account goes live.
func WithAutoStart(ids ...task.ID) Option {
	return func(r *Registry) { r.autoStart = ids }
}

// NewRegistry creates an empty registry.
func NewRegistry(factory SessionFactory, platforms PlatformSource, opts ...Option) *Registry {
	r := &Registry{
		factory:        factory,
		platforms:      platforms,
		log:            logging.Nop(),
		limit:          MaxSessions,
		connectTimeout: ConnectTimeout,
		sessions:       make(map[string]*accountSession),
		states:         make(map[string]types.ConnectState),
		names:          make(map[string]string),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) publish(e *types.Event) {
	if r.emit != nil {
		r.emit(e)
	}
}

// Connect reserves a session slot, launches the browser and returns once the
// browser is up. The login handshake continues in the background.
func (r *Registry) Connect(ctx context.Context, req ConnectRequest) ConnectResult {
	if req.AccountID == "" {
		return failed(fmt.Errorf("account id is required"))
	}
	adapter, err := r.platforms.New(req.Platform)
	if err != nil {
		return failed(err)
	}

	r.mu.Lock()
	previous := r.sessions[req.AccountID]
	if previous != nil && previous.connect.Status == types.ConnectStatusConnecting {
		r.mu.Unlock()
		return failed(ErrConnectInProgress)
	}
	active := len(r.sessions)
	if previous != nil {
		active-- // replaced below
	}
	if active >= r.limit {
		r.mu.Unlock()
		r.log.Warnf("admission denied for %s: %d sessions open", req.AccountID, active)
		return failed(fmt.Errorf("%w (limit %d)", ErrAdmissionDenied, r.limit))
	}

	r.attempts++
	s := r.newAccountSession(req, adapter, r.attempts)
	r.sessions[req.AccountID] = s
	state := s.connect
	r.mu.Unlock()

	if previous != nil {
		s.log.Infof("replacing previous session")
		r.teardown(previous, types.ConnectState{}, "")
	}
	r.publish(types.NewConnectStateChangedEvent(req.AccountID, state.Status, ""))

	if req.ChromePath != "" {
		r.factory.SetExecutablePath(req.ChromePath)
	}

	bs, err := r.factory.CreateSession(ctx, browser.SessionOptions{
		Headless:         req.Headless,
		StorageStatePath: req.StorageStatePath,
	})
	if err != nil {
		s.log.Errorf("browser launch failed: %v", err)
		r.teardown(s, types.ConnectState{
			Status:   types.ConnectStatusError,
			Platform: req.Platform,
			Error:    err.Error(),
		}, "")
		return ConnectResult{Error: err.Error(), Err: err}
	}

	loginCtx, cancel := context.WithCancel(context.Background())
	r.mu.Lock()
	if s.closed {
		// Disconnected while the browser was launching
		r.mu.Unlock()
		cancel()
		_ = bs.Close()
		return failed(fmt.Errorf("connect cancelled"))
	}
	s.browser = bs
	s.cancel = cancel
	attempt := s.attempt
	s.timer = time.AfterFunc(r.connectTimeout, func() { r.loginTimedOut(s, attempt) })
	r.mu.Unlock()

	s.detector.UpdateBrowserSession(bs)
	bs.OnLost(func() {
		s.log.Warnf("browser page closed")
		r.teardown(s, types.ConnectState{Status: types.ConnectStatusDisconnected, Platform: req.Platform}, "browser closed")
	})

	go r.login(loginCtx, s, attempt, bs)

	return ConnectResult{Success: true, BrowserLaunched: true}
}

func failed(err error) ConnectResult {
	return ConnectResult{Error: err.Error(), Err: err}
}

func (r *Registry) newAccountSession(req ConnectRequest, adapter platform.Platform, attempt uint64) *accountSession {
	s := &accountSession{
		id:      req.AccountID,
		adapter: adapter,
		log:     r.log.Scope("@" + req.AccountID),
		attempt: attempt,
		connect: types.ConnectState{
			Status:   types.ConnectStatusConnecting,
			Platform: req.Platform,
		},
	}

	probe, _ := adapter.(platform.LiveDetector)
	opts := append([]stream.Option{stream.WithLogger(s.log.Scope("stream"))}, r.detectorOpts...)
	s.detector = stream.NewDetector(req.AccountID, probe, func(state types.StreamStatus) {
		r.streamChanged(s, state)
	}, opts...)

	s.tasks = task.NewManager(req.AccountID, func() (types.ConnectStatus, types.StreamStatus) {
		r.mu.Lock()
		status := s.connect.Status
		r.mu.Unlock()
		return status, s.detector.State()
	}, task.WithLogger(s.log), task.WithStopHook(func(id task.ID, reason types.StopReason, err error) {
		text := gate.StopReasonText(reason, task.DisplayName(id))
		if err != nil {
			text += ": " + err.Error()
		}
		r.publish(types.NewTaskStoppedEvent(req.AccountID, string(id), reason, text))
	}))

	if r.buildTasks != nil {
		env := task.Env{
			AccountID: req.AccountID,
			Platform:  adapter,
			Session: func() *browser.Session {
				r.mu.Lock()
				defer r.mu.Unlock()
				if s.closed {
					return nil
				}
				return s.browser
			},
			Emit: r.emit,
			Log:  s.log,
		}
		for id, runner := range r.buildTasks(env) {
			s.tasks.Register(id, runner)
		}
	}
	return s
}

// login runs the platform handshake for one connect attempt.
func (r *Registry) login(ctx context.Context, s *accountSession, attempt uint64, bs *browser.Session) {
	loggedIn, err := s.adapter.Connect(ctx, bs)
	if err == nil && !loggedIn {
		s.log.Infof("waiting for login")
		err = s.adapter.Login(ctx, bs)
	}
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		s.log.Errorf("login failed: %v", err)
		r.mu.Lock()
		platformID := s.connect.Platform
		r.mu.Unlock()
		r.teardown(s, types.ConnectState{
			Status:   types.ConnectStatusError,
			Platform: platformID,
			Error:    err.Error(),
		}, err.Error())
		return
	}

	var name string
	if namer, ok := s.adapter.(platform.AccountNamer); ok {
		if name, err = namer.AccountName(ctx, bs); err != nil {
			s.log.Warnf("could not read account name: %v", err)
		}
	}
	r.loginSucceeded(s, attempt, name)
}

func (r *Registry) loginSucceeded(s *accountSession, attempt uint64, name string) {
	r.mu.Lock()
	if s.closed || s.attempt != attempt {
		r.mu.Unlock()
		return
	}
	late := s.connect.Status == types.ConnectStatusError
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	now := time.Now()
	s.connect.Status = types.ConnectStatusConnected
	s.connect.Error = ""
	s.connect.LastVerified = &now
	if name == "" {
		name = r.names[s.id]
	}
	if name != "" {
		r.names[s.id] = name
	}
	r.mu.Unlock()

	if late {
		s.log.Warnf("login finished after the connect timeout")
	}
	s.log.Infof("connected as %q", name)
	r.publish(types.NewAccountNameResolvedEvent(s.id, name))
	if !r.isOpen(s) {
		return
	}
	r.publish(types.NewConnectStateChangedEvent(s.id, types.ConnectStatusConnected, ""))

	// teardown sets closed under r.mu before stopping the detector, so a
	// detector started here is always stopped by it.
	r.mu.Lock()
	defer r.mu.Unlock()
	if !s.closed {
		s.detector.Start()
	}
}

func (r *Registry) isOpen(s *accountSession) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !s.closed
}

func (r *Registry) loginTimedOut(s *accountSession, attempt uint64) {
	r.mu.Lock()
	if s.closed || s.attempt != attempt || s.connect.Status != types.ConnectStatusConnecting {
		r.mu.Unlock()
		return
	}
	s.connect.Status = types.ConnectStatusError
	s.connect.Error = ErrConnectTimeout.Error()
	s.timer = nil
	r.mu.Unlock()

	s.log.Warnf("login not finished after %s", r.connectTimeout)
	r.publish(types.NewConnectStateChangedEvent(s.id, types.ConnectStatusError, ErrConnectTimeout.Error()))
}

// streamChanged runs on the detector goroutine for every transition.
func (r *Registry) streamChanged(s *accountSession, state types.StreamStatus) {
	r.publish(types.NewStreamStateChangedEvent(s.id, state))

	r.mu.Lock()
	wasLive := s.live
	s.live = state == types.StreamStatusLive
	closed := s.closed
	r.mu.Unlock()

	if closed {
		return
	}
	if wasLive && state != types.StreamStatusLive {
		if stopped := s.tasks.StopAll(types.StopReasonStreamEnded); len(stopped) > 0 {
			s.log.Infof("stream left live, stopped %v", stopped)
		}
	}
	if !wasLive && state == types.StreamStatusLive {
		for _, id := range r.autoStart {
			if res := s.tasks.Start(context.Background(), id); !res.Success {
				s.log.Warnf("auto start %s: %s %s", id, res.Reason, res.Message)
			}
		}
	}
}

// teardown releases everything s owns. It is safe to call more than once.
// final is recorded and published only while s is still the account's current session.
// A non-empty reason also publishes a disconnected event.
func (r *Registry) teardown(s *accountSession, final types.ConnectState, reason string) {
	r.mu.Lock()
	if s.closed {
		r.mu.Unlock()
		return
	}
	s.closed = true
	current := r.sessions[s.id] == s
	if current {
		delete(r.sessions, s.id)
		r.states[s.id] = final
	}
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	cancel := s.cancel
	bs := s.browser
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.tasks.StopAll(types.StopReasonDisconnected)
	s.detector.Stop()
	s.detector.SetState(types.StreamStatusUnknown)
	s.detector.UpdateBrowserSession(nil)

	if bs != nil {
		if err := bs.Close(); err != nil {
			s.log.Warnf("closing browser: %v", err)
		}
	}

	if current {
		r.publish(types.NewConnectStateChangedEvent(s.id, final.Status, final.Error))
		if reason != "" {
			r.publish(types.NewDisconnectedEvent(s.id, reason))
		}
	}
	s.log.Infof("session closed")
}

// CloseSession disconnects an account. Closing an account without a session is a no-op.
func (r *Registry) CloseSession(accountID string) {
	r.mu.Lock()
	s := r.sessions[accountID]
	var platformID string
	if s != nil {
		platformID = s.connect.Platform
	}
	r.mu.Unlock()

	if s == nil {
		return
	}
	r.teardown(s, types.ConnectState{Status: types.ConnectStatusDisconnected, Platform: platformID}, "")
}

// CloseAll disconnects every account concurrently.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			r.CloseSession(id)
		}(id)
	}
	wg.Wait()
}

func (r *Registry) session(accountID string) *accountSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[accountID]
}

// StartTask starts a feature task for an account through the gate.
func (r *Registry) StartTask(ctx context.Context, accountID string, id task.ID) task.Result {
	s := r.session(accountID)
	if s == nil {
		g := gate.Evaluate(r.ConnectState(accountID).Status, types.StreamStatusUnknown)
		return task.Result{Reason: string(g.Reason), Message: g.Message, Action: g.Action}
	}
	return s.tasks.Start(ctx, id)
}

// StopTask stops a feature task. It never fails.
func (r *Registry) StopTask(accountID string, id task.ID, reason types.StopReason) {
	if s := r.session(accountID); s != nil {
		s.tasks.Stop(id, reason)
	}
}

// TaskStatus returns a task status; accounts without a session report idle.
func (r *Registry) TaskStatus(accountID string, id task.ID) (task.Status, error) {
	s := r.session(accountID)
	if s == nil {
		return task.StatusIdle, nil
	}
	return s.tasks.Status(id)
}

// ConnectState returns the connection record of an account.
func (r *Registry) ConnectState(accountID string) types.ConnectState {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[accountID]; ok {
		return s.connect
	}
	if st, ok := r.states[accountID]; ok {
		return st
	}
	return types.ConnectState{Status: types.ConnectStatusDisconnected}
}

// StreamState returns the last detected stream state of an account.
func (r *Registry) StreamState(accountID string) types.StreamStatus {
	if s := r.session(accountID); s != nil {
		return s.detector.State()
	}
	return types.StreamStatusUnknown
}

// GetAccountName returns the resolved display name.
func (r *Registry) GetAccountName(accountID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.names[accountID]
}

// SetAccountName records a display name.
func (r *Registry) SetAccountName(accountID, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names[accountID] = name
}

// Count returns the number of open sessions.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Snapshot returns a view of every account that has a session or a recorded state.
func (r *Registry) Snapshot() []Snapshot {
	r.mu.Lock()
	type pending struct {
		snap Snapshot
		s    *accountSession
	}
	var rows []pending
	for id, s := range r.sessions {
		rows = append(rows, pending{Snapshot{AccountID: id, Name: r.names[id], Connect: s.connect}, s})
	}
	for id, st := range r.states {
		if _, ok := r.sessions[id]; ok {
			continue
		}
		rows = append(rows, pending{snap: Snapshot{AccountID: id, Name: r.names[id], Connect: st, Stream: types.StreamStatusUnknown}})
	}
	r.mu.Unlock()

	out := make([]Snapshot, 0, len(rows))
	for _, p := range rows {
		if p.s != nil {
			p.snap.Stream = p.s.detector.State()
			p.snap.Tasks = p.s.tasks.AllStatus()
		}
		out = append(out, p.snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AccountID < out[j].AccountID })
	return out
}
