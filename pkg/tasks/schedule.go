package tasks

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/entrhq/livecontrol/pkg/browser"
	"github.com/entrhq/livecontrol/pkg/task"
)

// DefaultMaxFailures is how many consecutive step failures stop a loop task.
const DefaultMaxFailures = 3

var errNoSession = errors.New("browser session is gone")

// Schedule picks the wait between two steps, uniformly within [Min, Max].
type Schedule struct {
	Min time.Duration
	Max time.Duration
}

func (s Schedule) next() time.Duration {
	if s.Max <= s.Min {
		return s.Min
	}
	return s.Min + rand.N(s.Max-s.Min+1)
}

func (s Schedule) validate() error {
	if s.Min <= 0 {
		return fmt.Errorf("interval must be positive, got %s", s.Min)
	}
	return nil
}

// picker walks n items either in order or randomly without immediate repeats.
type picker struct {
	n      int
	random bool
	last   int
}

func newPicker(n int, random bool) *picker {
	return &picker{n: n, random: random, last: -1}
}

func (p *picker) next() int {
	if !p.random || p.n < 2 {
		p.last = (p.last + 1) % p.n
		return p.last
	}
	var i int
	if p.last < 0 {
		i = rand.IntN(p.n)
	} else if i = rand.IntN(p.n - 1); i >= p.last {
		i++
	}
	p.last = i
	return i
}

// runLoop calls step immediately and then after every scheduled wait until the
// run stops. maxFailures consecutive step errors fail the run.
func runLoop(rt *task.Runtime, sched Schedule, maxFailures int, session func() *browser.Session,
	step func(ctx context.Context, s *browser.Session) error) {
	ctx := rt.Context()
	timer := time.NewTimer(0)
	defer timer.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		err := errNoSession
		if s := session(); s != nil {
			err = step(ctx, s)
		}
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			failures++
			rt.Log().Warnf("step failed (%d/%d): %v", failures, maxFailures, err)
			if failures >= maxFailures {
				rt.Fail(fmt.Errorf("%d consecutive failures, last: %w", failures, err))
				return
			}
		} else {
			failures = 0
		}
		timer.Reset(sched.next())
	}
}
