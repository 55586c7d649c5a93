package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/entrhq/livecontrol/pkg/gate"
	"github.com/entrhq/livecontrol/pkg/logging"
	"github.com/entrhq/livecontrol/pkg/task"
	"github.com/entrhq/livecontrol/pkg/types"
)

var featureNames = map[string]task.ID{
	"reply": task.CommentReply,
	"speak": task.AutoSpeak,
	"popup": task.AutoPopup,
}

// parseFeatures maps --start values to task ids.
func parseFeatures(names []string) ([]task.ID, error) {
	var ids []task.ID
	seen := make(map[task.ID]bool)
	for _, n := range names {
		id, ok := featureNames[strings.ToLower(strings.TrimSpace(n))]
		if !ok {
			return nil, fmt.Errorf("unknown feature %q (must be reply, speak or popup)", n)
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids, nil
}

type taskStarter interface {
	StartTask(ctx context.Context, accountID string, id task.ID) task.Result
}

// pendingStarts starts the requested features of each account once, as soon
// as the account's state lets them run. Unlike auto start on live, a
// feature stopped later is not started again.
type pendingStarts struct {
	accounts taskStarter
	log      *logging.Logger

	mu      sync.Mutex
	pending map[string][]task.ID
}

func newPendingStarts(accounts taskStarter, log *logging.Logger, accountIDs []string, ids []task.ID) *pendingStarts {
	p := &pendingStarts{accounts: accounts, log: log, pending: make(map[string][]task.ID)}
	if len(ids) == 0 {
		return p
	}
	for _, a := range accountIDs {
		p.pending[a] = append([]task.ID(nil), ids...)
	}
	return p
}

func (p *pendingStarts) handle(ctx context.Context, e *types.Event) {
	if e.Type != types.EventTypeConnectStateChanged && e.Type != types.EventTypeStreamStateChanged {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	waiting := p.pending[e.AccountID]
	if len(waiting) == 0 {
		return
	}
	var left []task.ID
	for _, id := range waiting {
		res := p.accounts.StartTask(ctx, e.AccountID, id)
		switch {
		case res.Success:
			p.log.Infof("%s started for %s", task.DisplayName(id), e.AccountID)
		case res.Reason == string(gate.ReasonNotConnected), res.Reason == string(gate.ReasonNotLive):
			left = append(left, id)
		case errors.Is(res.Err, task.ErrAlreadyRunning):
		default:
			p.log.Warnf("%s could not start for %s: %s", task.DisplayName(id), e.AccountID, res.Message)
		}
	}
	if len(left) == 0 {
		delete(p.pending, e.AccountID)
		return
	}
	p.pending[e.AccountID] = left
}

// waiting returns the features still pending for accountID.
func (p *pendingStarts) waiting(accountID string) []task.ID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]task.ID(nil), p.pending[accountID]...)
}
