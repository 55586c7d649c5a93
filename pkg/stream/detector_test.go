package stream

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/entrhq/livecontrol/pkg/browser"
	"github.com/entrhq/livecontrol/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type probeResult struct {
	live bool
	err  error
}

// scriptedProbe replays results in order and repeats the last one.
type scriptedProbe struct {
	mu      sync.Mutex
	results []probeResult
	calls   int
	block   chan struct{}
}

func (p *scriptedProbe) IsLive(ctx context.Context, _ *browser.Session) (bool, error) {
	p.mu.Lock()
	i := p.calls
	p.calls++
	block := p.block
	var r probeResult
	if len(p.results) > 0 {
		if i >= len(p.results) {
			i = len(p.results) - 1
		}
		r = p.results[i]
	}
	p.mu.Unlock()

	if block != nil {
		<-block
	}
	return r.live, r.err
}

func (p *scriptedProbe) set(results ...probeResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.results = results
	p.calls = 0
}

func (p *scriptedProbe) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type changes struct {
	mu     sync.Mutex
	states []types.StreamStatus
}

func (c *changes) record(s types.StreamStatus) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.states = append(c.states, s)
}

func (c *changes) get() []types.StreamStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]types.StreamStatus(nil), c.states...)
}

func newTestDetector(probe *scriptedProbe, rec *changes) *Detector {
	d := NewDetector("acct-1", probe, rec.record, WithInterval(10*time.Millisecond))
	d.UpdateBrowserSession(&browser.Session{})
	return d
}

func TestDetector_NotifiesOnlyOnTransition(t *testing.T) {
	probe := &scriptedProbe{results: []probeResult{{live: false}, {live: false}, {live: true}, {live: true}}}
	rec := &changes{}
	d := newTestDetector(probe, rec)

	d.Start()
	defer d.Stop()

	require.Eventually(t, func() bool { return probe.callCount() >= 6 }, time.Second, 5*time.Millisecond)
	d.Stop()

	assert.Equal(t, []types.StreamStatus{types.StreamStatusOffline, types.StreamStatusLive}, rec.get())
	assert.Equal(t, types.StreamStatusLive, d.State())
}

func TestDetector_FirstProbeIsImmediate(t *testing.T) {
	probe := &scriptedProbe{results: []probeResult{{live: true}}}
	rec := &changes{}
	d := NewDetector("acct-1", probe, rec.record, WithInterval(time.Hour))
	d.UpdateBrowserSession(&browser.Session{})

	d.Start()
	defer d.Stop()

	assert.Eventually(t, func() bool { return d.State() == types.StreamStatusLive }, time.Second, 5*time.Millisecond)
}

func TestDetector_FailureWhileLiveGoesOffline(t *testing.T) {
	probe := &scriptedProbe{results: []probeResult{{live: true}}}
	rec := &changes{}
	d := newTestDetector(probe, rec)

	d.Start()
	defer d.Stop()
	require.Eventually(t, func() bool { return d.State() == types.StreamStatusLive }, time.Second, 5*time.Millisecond)

	probe.set(probeResult{err: errors.New("page crashed")})
	require.Eventually(t, func() bool { return probe.callCount() >= 3 }, time.Second, 5*time.Millisecond)
	d.Stop()

	assert.Equal(t, []types.StreamStatus{types.StreamStatusLive, types.StreamStatusOffline}, rec.get(),
		"exactly one offline notification after repeated failures")
}

func TestDetector_FailureWhileUnknownKeepsState(t *testing.T) {
	probe := &scriptedProbe{results: []probeResult{{err: errors.New("not ready")}}}
	rec := &changes{}
	d := newTestDetector(probe, rec)

	d.Start()
	require.Eventually(t, func() bool { return probe.callCount() >= 2 }, time.Second, 5*time.Millisecond)
	d.Stop()

	assert.Equal(t, types.StreamStatusUnknown, d.State())
	assert.Empty(t, rec.get())
}

func TestDetector_StartTwiceIsNoop(t *testing.T) {
	probe := &scriptedProbe{results: []probeResult{{live: false}}}
	d := NewDetector("acct-1", probe, nil, WithInterval(time.Hour))
	d.UpdateBrowserSession(&browser.Session{})

	d.Start()
	d.Start()
	defer d.Stop()

	require.Eventually(t, func() bool { return probe.callCount() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, probe.callCount(), "a second loop must not start")
}

func TestDetector_StopIsIdempotent(t *testing.T) {
	d := NewDetector("acct-1", &scriptedProbe{}, nil)
	d.Stop()
	d.Start()
	assert.True(t, d.IsPolling())
	d.Stop()
	d.Stop()
	assert.False(t, d.IsPolling())
}

func TestDetector_ProbeInFlightAtStopIsIgnored(t *testing.T) {
	block := make(chan struct{})
	probe := &scriptedProbe{results: []probeResult{{live: true}}, block: block}
	rec := &changes{}
	d := newTestDetector(probe, rec)

	d.Start()
	require.Eventually(t, func() bool { return probe.callCount() == 1 }, time.Second, 5*time.Millisecond)

	d.Stop()
	close(block)
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, types.StreamStatusUnknown, d.State())
	assert.Empty(t, rec.get())
}

func TestDetector_NilSessionSkipsProbe(t *testing.T) {
	probe := &scriptedProbe{results: []probeResult{{live: true}}}
	rec := &changes{}
	d := NewDetector("acct-1", probe, rec.record, WithInterval(5*time.Millisecond))

	d.Start()
	defer d.Stop()
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, probe.callCount())

	d.UpdateBrowserSession(&browser.Session{})
	assert.Eventually(t, func() bool { return d.State() == types.StreamStatusLive }, time.Second, 5*time.Millisecond)
}

func TestDetector_SetState(t *testing.T) {
	rec := &changes{}
	d := NewDetector("acct-1", nil, rec.record)

	d.SetState(types.StreamStatusLive)
	d.SetState(types.StreamStatusLive)
	d.SetState(types.StreamStatusUnknown)

	assert.Equal(t, []types.StreamStatus{types.StreamStatusLive, types.StreamStatusUnknown}, rec.get())
}

func TestDetector_AdaptiveInterval(t *testing.T) {
	d := NewDetector("acct-1", nil, nil, WithInterval(2*time.Second), WithOfflineInterval(5*time.Second))
	assert.Equal(t, 5*time.Second, d.nextInterval())
	d.SetState(types.StreamStatusLive)
	assert.Equal(t, 2*time.Second, d.nextInterval())
}

func TestStaggerFor(t *testing.T) {
	max := 1500 * time.Millisecond
	a := staggerFor("acct-1", max)
	assert.Equal(t, a, staggerFor("acct-1", max), "stagger is deterministic")
	for _, id := range []string{"", "a", "acct-2", "a-very-long-account-identifier-0123456789"} {
		s := staggerFor(id, max)
		assert.GreaterOrEqual(t, s, time.Duration(0))
		assert.LessOrEqual(t, s, max)
	}

	d := NewDetector("acct-1", nil, nil)
	assert.Zero(t, d.firstDelay(), "no stagger by default")
}
