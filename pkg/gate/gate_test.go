package gate

import (
	"testing"

	"github.com/entrhq/livecontrol/pkg/types"
	"github.com/stretchr/testify/assert"
)

var (
	connectStatuses = []types.ConnectStatus{
		types.ConnectStatusDisconnected,
		types.ConnectStatusConnecting,
		types.ConnectStatusConnected,
		types.ConnectStatusError,
	}
	streamStatuses = []types.StreamStatus{
		types.StreamStatusUnknown,
		types.StreamStatusOffline,
		types.StreamStatusLive,
		types.StreamStatusEnded,
	}
)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name    string
		connect types.ConnectStatus
		stream  types.StreamStatus
		ok      bool
		reason  Reason
		action  Action
	}{
		{"connected and live", types.ConnectStatusConnected, types.StreamStatusLive, true, "", ""},
		{"disconnected", types.ConnectStatusDisconnected, types.StreamStatusUnknown, false, ReasonNotConnected, ActionConnect},
		{"connecting while live", types.ConnectStatusConnecting, types.StreamStatusLive, false, ReasonNotConnected, ActionConnect},
		{"error", types.ConnectStatusError, types.StreamStatusOffline, false, ReasonNotConnected, ActionConnect},
		{"connected offline", types.ConnectStatusConnected, types.StreamStatusOffline, false, ReasonNotLive, ActionGoLive},
		{"connected ended", types.ConnectStatusConnected, types.StreamStatusEnded, false, ReasonNotLive, ActionGoLive},
		{"connected unknown", types.ConnectStatusConnected, types.StreamStatusUnknown, false, ReasonNotLive, ActionGoLive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Evaluate(tt.connect, tt.stream)
			assert.Equal(t, tt.ok, result.OK)
			assert.Equal(t, tt.reason, result.Reason)
			assert.Equal(t, tt.action, result.Action)
		})
	}
}

func TestEvaluateIsTotalAndPure(t *testing.T) {
	for _, c := range connectStatuses {
		for _, s := range streamStatuses {
			first := Evaluate(c, s)
			assert.Equal(t, first, Evaluate(c, s), "%s/%s not deterministic", c, s)

			if first.OK {
				assert.Empty(t, first.Reason)
				continue
			}
			assert.NotEmpty(t, first.Reason, "%s/%s", c, s)
			assert.NotEmpty(t, first.Message, "%s/%s", c, s)
			assert.NotEmpty(t, first.Action, "%s/%s", c, s)
		}
	}
}

func TestNotConnectedMessageVariesBySubState(t *testing.T) {
	disconnected := Evaluate(types.ConnectStatusDisconnected, types.StreamStatusLive).Message
	connecting := Evaluate(types.ConnectStatusConnecting, types.StreamStatusLive).Message
	failed := Evaluate(types.ConnectStatusError, types.StreamStatusLive).Message

	assert.NotEqual(t, disconnected, connecting)
	assert.NotEqual(t, connecting, failed)
	assert.NotEqual(t, disconnected, failed)
}

func TestStopReasonText(t *testing.T) {
	assert.Equal(t, "Auto popup stopped: stream ended", StopReasonText(types.StopReasonStreamEnded, "Auto popup"))
	assert.Equal(t, "Auto reply stopped: connection lost", StopReasonText(types.StopReasonDisconnected, "Auto reply"))
	assert.Equal(t, "Auto speak stopped", StopReasonText(types.StopReasonManual, "Auto speak"))
	assert.Equal(t, "Auto speak stopped", StopReasonText("unknown", "Auto speak"))
}
