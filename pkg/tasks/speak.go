package tasks

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/entrhq/livecontrol/pkg/browser"
	"github.com/entrhq/livecontrol/pkg/platform"
	"github.com/entrhq/livecontrol/pkg/task"
)

// SpeakConfig configures the scripted message loop.
type SpeakConfig struct {
	Messages []string
	Schedule Schedule
	Random   bool

	// ExtraSpaces pads each message with a few spaces so platforms that
	// reject duplicate comments accept repeats.
	ExtraSpaces bool

	MaxFailures int
}

type autoSpeak struct {
	env task.Env
	cfg SpeakConfig
}

// NewAutoSpeak returns the runner that posts cfg.Messages on a schedule.
func NewAutoSpeak(env task.Env, cfg SpeakConfig) task.Runner {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = DefaultMaxFailures
	}
	return &autoSpeak{env: env, cfg: cfg}
}

func (a *autoSpeak) Start(_ context.Context, rt *task.Runtime) error {
	sender, ok := a.env.Platform.(platform.CommentSender)
	if !ok {
		return fmt.Errorf("%s cannot post comments: %w", a.env.Platform.ID(), platform.ErrUnsupported)
	}
	if len(a.cfg.Messages) == 0 {
		return errors.New("no messages configured")
	}
	if err := a.cfg.Schedule.validate(); err != nil {
		return err
	}

	pick := newPicker(len(a.cfg.Messages), a.cfg.Random)
	go runLoop(rt, a.cfg.Schedule, a.cfg.MaxFailures, a.env.Session, func(ctx context.Context, s *browser.Session) error {
		text := a.cfg.Messages[pick.next()]
		if a.cfg.ExtraSpaces {
			text = pad(text)
		}
		return sender.PerformComment(ctx, s, text)
	})
	rt.Log().Infof("speaking %d messages every %s-%s", len(a.cfg.Messages), a.cfg.Schedule.Min, a.cfg.Schedule.Max)
	return nil
}

func pad(text string) string {
	return text + strings.Repeat(" ", 1+rand.IntN(3))
}
