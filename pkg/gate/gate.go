// Package gate decides whether a feature task may start for an account.
package gate

import "github.com/entrhq/livecontrol/pkg/types"

// Reason is a machine-readable denial code.
type Reason string

const (
	ReasonNotConnected Reason = "NOT_CONNECTED"
	ReasonNotLive      Reason = "NOT_LIVE"
	// ReasonAuthLost is reserved. No authentication source feeds Evaluate yet.
	ReasonAuthLost Reason = "AUTH_LOST"
)

// Action is the remedial step suggested to the user.
type Action string

const (
	ActionConnect Action = "CONNECT"
	ActionGoLive  Action = "GO_LIVE"
	ActionRelogin Action = "RELOGIN"
)

// Result is the outcome of a gate check. A zero Reason means allowed.
type Result struct {
	OK      bool
	Reason  Reason
	Message string
	Action  Action
}

var allowed = Result{OK: true}

// Evaluate checks connection first, then stream state.
// It has no side effects and the same inputs always give the same result.
func Evaluate(connect types.ConnectStatus, stream types.StreamStatus) Result {
	if connect != types.ConnectStatusConnected {
		return Result{
			Reason:  ReasonNotConnected,
			Message: notConnectedMessage(connect),
			Action:  ActionConnect,
		}
	}
	if stream != types.StreamStatusLive {
		return Result{
			Reason:  ReasonNotLive,
			Message: "The stream is not live. Start broadcasting first",
			Action:  ActionGoLive,
		}
	}
	return allowed
}

func notConnectedMessage(status types.ConnectStatus) string {
	switch status {
	case types.ConnectStatusConnecting:
		return "Still connecting to the control console, please wait"
	case types.ConnectStatusError:
		return "Connection failed. Reconnect to the control console"
	default:
		return "Connect to the control console first"
	}
}

// StopReasonText renders a task stop reason for display.
func StopReasonText(reason types.StopReason, taskName string) string {
	switch reason {
	case types.StopReasonManual:
		return taskName + " stopped"
	case types.StopReasonDisconnected:
		return taskName + " stopped: connection lost"
	case types.StopReasonStreamEnded:
		return taskName + " stopped: stream ended"
	case types.StopReasonAuthLost:
		return taskName + " stopped: login expired"
	case types.StopReasonGateFailed:
		return taskName + " stopped: start conditions no longer met"
	case types.StopReasonError:
		return taskName + " stopped after an error"
	default:
		return taskName + " stopped"
	}
}
