package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/entrhq/livecontrol/pkg/browser"
	"github.com/entrhq/livecontrol/pkg/platform"
	"github.com/entrhq/livecontrol/pkg/task"
)

// PopupConfig configures the product popup loop.
type PopupConfig struct {
	ProductIDs  []int
	Schedule    Schedule
	Random      bool
	MaxFailures int
}

type autoPopup struct {
	env task.Env
	cfg PopupConfig
}

// NewAutoPopup returns the runner that pops products up on a schedule.
// Stopping cancels a popup in flight.
func NewAutoPopup(env task.Env, cfg PopupConfig) task.Runner {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = DefaultMaxFailures
	}
	return &autoPopup{env: env, cfg: cfg}
}

func (a *autoPopup) Start(_ context.Context, rt *task.Runtime) error {
	performer, ok := a.env.Platform.(platform.PopupPerformer)
	if !ok {
		return fmt.Errorf("%s cannot pop up products: %w", a.env.Platform.ID(), platform.ErrUnsupported)
	}
	if len(a.cfg.ProductIDs) == 0 {
		return errors.New("no product ids configured")
	}
	if err := a.cfg.Schedule.validate(); err != nil {
		return err
	}

	pick := newPicker(len(a.cfg.ProductIDs), a.cfg.Random)
	go runLoop(rt, a.cfg.Schedule, a.cfg.MaxFailures, a.env.Session, func(ctx context.Context, s *browser.Session) error {
		id := a.cfg.ProductIDs[pick.next()]
		if err := performer.PerformPopup(ctx, s, id); err != nil {
			return fmt.Errorf("popup %d: %w", id, err)
		}
		rt.Log().Debugf("popped up product %d", id)
		return nil
	})
	rt.Log().Infof("cycling %d products every %s-%s", len(a.cfg.ProductIDs), a.cfg.Schedule.Min, a.cfg.Schedule.Max)
	return nil
}
