package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/entrhq/livecontrol/pkg/batch"
	"github.com/entrhq/livecontrol/pkg/broadcast"
	"github.com/entrhq/livecontrol/pkg/platform"
	"github.com/entrhq/livecontrol/pkg/reply"
	"github.com/entrhq/livecontrol/pkg/task"
	"github.com/entrhq/livecontrol/pkg/types"
)

const replyQueue = 32

// ReplyConfig configures the comment listener and its replies.
type ReplyConfig struct {
	// Source selects the platform's comment feed (for example "control" or "compass").
	Source string

	// Responder drafts replies. Nil listens without replying.
	Responder reply.Generator

	// BroadcastAddr enables the websocket feed when set.
	BroadcastAddr string

	// BatchOptions tune the buffer between the listener and the UI.
	BatchOptions []batch.Option
}

type commentReply struct {
	env task.Env
	cfg ReplyConfig
}

// NewCommentReply returns the runner that listens to live comments,
// forwards them in batches, broadcasts them and answers them.
func NewCommentReply(env task.Env, cfg ReplyConfig) task.Runner {
	return &commentReply{env: env, cfg: cfg}
}

func (c *commentReply) Start(_ context.Context, rt *task.Runtime) error {
	listener, ok := c.env.Platform.(platform.CommentListener)
	if !ok {
		return fmt.Errorf("%s cannot listen to comments: %w", c.env.Platform.ID(), platform.ErrUnsupported)
	}
	session := c.env.Session()
	if session == nil {
		return errNoSession
	}
	ctx := rt.Context()
	log := rt.Log()

	var ws *broadcast.Server
	if c.cfg.BroadcastAddr != "" {
		ws = broadcast.NewServer(broadcast.WithLogger(log.Scope("ws")))
		if err := ws.Start(c.cfg.BroadcastAddr); err != nil {
			// listening goes on without the feed
			log.Warnf("comment broadcast disabled: %v", err)
			ws = nil
		} else {
			rt.Defer(ws.Stop)
		}
	}

	var replies chan types.LiveMessage
	if c.cfg.Responder != nil {
		if sender, ok := c.env.Platform.(platform.CommentSender); ok {
			replies = make(chan types.LiveMessage, replyQueue)
			go c.replyLoop(ctx, rt, sender, replies)
		} else {
			log.Warnf("%s cannot post comments, replies disabled", c.env.Platform.ID())
		}
	}

	buf := batch.NewBuffer[types.LiveMessage](func(items []batch.Item[types.LiveMessage]) {
		msgs := make([]types.LiveMessage, len(items))
		for i, it := range items {
			msgs[i] = it.Message
		}
		c.env.EmitEvent(types.NewCommentsEvent(c.env.AccountID, msgs))
	}, c.cfg.BatchOptions...)

	// stopped is set by the final flush. Add runs under mu so nothing is
	// queued behind that flush.
	var (
		mu      sync.Mutex
		stopped bool
	)
	onMessage := func(msg types.LiveMessage) {
		if msg.Time.IsZero() {
			msg.Time = time.Now()
		}
		mu.Lock()
		if stopped || ctx.Err() != nil {
			mu.Unlock()
			return
		}
		buf.Add(c.env.AccountID, msg)
		mu.Unlock()

		if ws != nil {
			ws.Broadcast(msg)
		}
		if replies != nil && msg.IsComment() {
			select {
			case replies <- msg:
			default:
				log.Debugf("reply queue full, skipping %s", msg.ID)
			}
		}
	}

	if err := listener.StartCommentListener(ctx, session, onMessage, c.cfg.Source); err != nil {
		return fmt.Errorf("start comment listener: %w", err)
	}
	rt.Defer(listener.StopCommentListener)
	rt.Defer(func() error {
		mu.Lock()
		stopped = true
		mu.Unlock()
		buf.Flush()
		buf.Clear()
		return nil
	})

	log.Infof("listening to comments (source %q)", c.cfg.Source)
	return nil
}

func (c *commentReply) replyLoop(ctx context.Context, rt *task.Runtime, sender platform.CommentSender, in <-chan types.LiveMessage) {
	log := rt.Log()
	for {
		var msg types.LiveMessage
		select {
		case <-ctx.Done():
			return
		case msg = <-in:
		}

		text, err := c.cfg.Responder.Generate(ctx, msg)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				log.Warnf("no reply for %s: %v", msg.ID, err)
			}
			continue
		}
		if text == "" {
			continue
		}
		session := c.env.Session()
		if session == nil {
			continue
		}
		if err := sender.PerformComment(ctx, session, text); err != nil && ctx.Err() == nil {
			log.Warnf("reply to %s failed: %v", msg.Nickname, err)
			continue
		}
		log.Debugf("replied to %s", msg.Nickname)
	}
}
