package task

import (
	"github.com/entrhq/livecontrol/pkg/browser"
	"github.com/entrhq/livecontrol/pkg/logging"
	"github.com/entrhq/livecontrol/pkg/platform"
	"github.com/entrhq/livecontrol/pkg/types"
)

// Env is what a feature task sees of its account.
type Env struct {
	AccountID string
	Platform  platform.Platform

	// Session returns the current browser session, nil once disconnected.
	Session func() *browser.Session

	// Emit forwards events to the UI boundary.
	Emit types.EmitFunc

	Log *logging.Logger
}

// EmitEvent sends e if an emitter is set.
func (e Env) EmitEvent(ev *types.Event) {
	if e.Emit != nil {
		e.Emit(ev)
	}
}
