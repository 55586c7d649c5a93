// Package stream polls a platform adapter to track whether an account is broadcasting.
package stream

import (
	"context"
	"sync"
	"time"

	"github.com/entrhq/livecontrol/pkg/browser"
	"github.com/entrhq/livecontrol/pkg/logging"
	"github.com/entrhq/livecontrol/pkg/platform"
	"github.com/entrhq/livecontrol/pkg/types"
)

// DefaultInterval is the delay between probes.
const DefaultInterval = 2000 * time.Millisecond

// ChangeFunc is called once per state transition, never for a repeated state.
// Calls for one detector are serialized, so it must not call SetState.
type ChangeFunc func(state types.StreamStatus)

// Option configures a Detector.
type Option func(*Detector)

// WithInterval sets the probe interval while live.
func WithInterval(d time.Duration) Option {
	return func(det *Detector) {
		det.interval = d
		if !det.offlineSet {
			det.offlineInterval = d
		}
	}
}

// WithOfflineInterval sets the probe interval while not live.
func WithOfflineInterval(d time.Duration) Option {
	return func(det *Detector) {
		det.offlineInterval = d
		det.offlineSet = true
	}
}

// WithStagger delays the first probe by a deterministic per-account amount in [0, max].
// It spreads the probes of accounts that connect at the same time.
func WithStagger(max time.Duration) Option {
	return func(det *Detector) { det.staggerMax = max }
}

// WithLogger sets the detector logger.
func WithLogger(l *logging.Logger) Option {
	return func(det *Detector) { det.log = l }
}

// Detector polls one account. It is safe for concurrent use.
type Detector struct {
	accountID string
	probe     platform.LiveDetector
	onChange  ChangeFunc
	log       *logging.Logger

	interval        time.Duration
	offlineInterval time.Duration
	offlineSet      bool
	staggerMax      time.Duration

	// notifyMu orders state changes with their notifications.
	notifyMu sync.Mutex

	mu      sync.Mutex
	session *browser.Session
	state   types.StreamStatus
	cancel  context.CancelFunc
}

// NewDetector creates a stopped detector in the unknown state.
func NewDetector(accountID string, probe platform.LiveDetector, onChange ChangeFunc, opts ...Option) *Detector {
	d := &Detector{
		accountID:       accountID,
		probe:           probe,
		onChange:        onChange,
		log:             logging.Nop(),
		interval:        DefaultInterval,
		offlineInterval: DefaultInterval,
		state:           types.StreamStatusUnknown,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start probes immediately (or after the stagger delay) and then on every interval.
// Starting a running detector only logs a warning.
func (d *Detector) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cancel != nil {
		d.log.Warnf("stream detector already polling")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	go d.run(ctx, d.firstDelay())
	d.log.Debugf("stream detector started")
}

// Stop ends polling. A probe in flight when Stop is called cannot change the state.
// Stop does not wait for that probe, so it is safe to call from a ChangeFunc.
func (d *Detector) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cancel == nil {
		return
	}
	d.cancel()
	d.cancel = nil
	d.log.Debugf("stream detector stopped")
}

// IsPolling reports whether the detector is running.
func (d *Detector) IsPolling() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cancel != nil
}

// UpdateBrowserSession rebinds the detector after a reconnect. A nil session pauses probing.
func (d *Detector) UpdateBrowserSession(s *browser.Session) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.session = s
}

// State returns the last known stream state.
func (d *Detector) State() types.StreamStatus {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// SetState overrides the state without probing. It notifies only on an actual change.
func (d *Detector) SetState(state types.StreamStatus) {
	d.transition(nil, state)
}

func (d *Detector) run(ctx context.Context, delay time.Duration) {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		d.check(ctx)
		timer.Reset(d.nextInterval())
	}
}

func (d *Detector) check(ctx context.Context) {
	d.mu.Lock()
	session := d.session
	d.mu.Unlock()

	if session == nil || d.probe == nil {
		return
	}

	live, err := d.probe.IsLive(ctx, session)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		d.log.Warnf("live probe failed: %v", err)
		if d.State() == types.StreamStatusLive {
			// Never assume still live after a failed probe
			d.transition(ctx, types.StreamStatusOffline)
		}
		return
	}

	next := types.StreamStatusOffline
	if live {
		next = types.StreamStatusLive
	}
	d.transition(ctx, next)
}

// transition applies next and notifies. A non-nil ctx must still be the active
// polling context, so a stopped loop can never publish a stale result.
func (d *Detector) transition(ctx context.Context, next types.StreamStatus) {
	d.notifyMu.Lock()
	defer d.notifyMu.Unlock()

	d.mu.Lock()
	if ctx != nil && ctx.Err() != nil {
		d.mu.Unlock()
		return
	}
	prev := d.state
	if prev == next {
		d.mu.Unlock()
		return
	}
	d.state = next
	d.mu.Unlock()

	d.log.Infof("stream state %s -> %s", prev, next)
	if d.onChange != nil {
		d.onChange(next)
	}
}

func (d *Detector) nextInterval() time.Duration {
	if d.State() == types.StreamStatusLive {
		return d.interval
	}
	return d.offlineInterval
}

func (d *Detector) firstDelay() time.Duration {
	if d.staggerMax <= 0 {
		return 0
	}
	return staggerFor(d.accountID, d.staggerMax)
}

// staggerFor hashes accountID into [0, max] with millisecond granularity.
func staggerFor(accountID string, max time.Duration) time.Duration {
	var h uint32
	for _, c := range accountID {
		h = h*31 + uint32(c)
	}
	ms := max.Milliseconds()
	return time.Duration(int64(h)%(ms+1)) * time.Millisecond
}
