package types

import (
	"testing"
)

func TestEventType(t *testing.T) {
	tests := []struct {
		eventType EventType
		expected  string
	}{
		{eventType: EventTypeAccountNameResolved, expected: "account_name_resolved"},
		{eventType: EventTypeConnectStateChanged, expected: "connect_state_changed"},
		{eventType: EventTypeStreamStateChanged, expected: "stream_state_changed"},
		{eventType: EventTypeDisconnected, expected: "disconnected"},
		{eventType: EventTypeTaskStopped, expected: "task_stopped"},
		{eventType: EventTypeNewComments, expected: "new_comments"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if string(tt.eventType) != tt.expected {
				t.Errorf("EventType = %v, want %v", tt.eventType, tt.expected)
			}
		})
	}
}

func TestNewStreamStateChangedEvent(t *testing.T) {
	e := NewStreamStateChangedEvent("acct-1", StreamStatusLive)

	if e.Type != EventTypeStreamStateChanged {
		t.Errorf("Type = %v, want %v", e.Type, EventTypeStreamStateChanged)
	}
	if e.AccountID != "acct-1" {
		t.Errorf("AccountID = %q", e.AccountID)
	}
	if e.StreamStatus != StreamStatusLive {
		t.Errorf("StreamStatus = %v", e.StreamStatus)
	}
	if e.ID == "" || e.Time.IsZero() {
		t.Error("expected event id and time to be set")
	}
}

func TestNewTaskStoppedEvent(t *testing.T) {
	e := NewTaskStoppedEvent("acct-1", "autoPopup", StopReasonStreamEnded, "stream ended")

	if e.TaskID != "autoPopup" || e.StopReason != StopReasonStreamEnded || e.Message != "stream ended" {
		t.Errorf("unexpected event: %+v", e)
	}
}

func TestNewCommentsEventKeepsOrder(t *testing.T) {
	batch := []LiveMessage{{ID: "1"}, {ID: "2"}, {ID: "3"}}
	e := NewCommentsEvent("acct-1", batch)

	for i, m := range e.Comments {
		if m.ID != batch[i].ID {
			t.Errorf("comment %d = %q, want %q", i, m.ID, batch[i].ID)
		}
	}
}

func TestEventIDsAreUnique(t *testing.T) {
	a := NewDisconnectedEvent("acct-1", "closed")
	b := NewDisconnectedEvent("acct-1", "closed")
	if a.ID == b.ID {
		t.Error("expected distinct event ids")
	}
}

func TestStreamStatusIsLive(t *testing.T) {
	if !StreamStatusLive.IsLive() {
		t.Error("live should be live")
	}
	for _, s := range []StreamStatus{StreamStatusUnknown, StreamStatusOffline, StreamStatusEnded} {
		if s.IsLive() {
			t.Errorf("%s should not be live", s)
		}
	}
}

func TestLiveMessageIsComment(t *testing.T) {
	if !(LiveMessage{Type: LiveMessageComment, Content: "hi"}).IsComment() {
		t.Error("comment with content should be a comment")
	}
	if (LiveMessage{Type: LiveMessageComment}).IsComment() {
		t.Error("empty comment should not count")
	}
	if (LiveMessage{Type: LiveMessageRoomEnter, Content: "x"}).IsComment() {
		t.Error("room enter is not a comment")
	}
}

func TestConnectStatePersistable(t *testing.T) {
	if got := (ConnectState{Status: ConnectStatusConnecting, Platform: "dev"}).Persistable(); got.Status != ConnectStatusDisconnected || got.Platform != "dev" {
		t.Errorf("connecting should persist as disconnected, got %+v", got)
	}
	if got := (ConnectState{Status: ConnectStatusConnected}).Persistable(); got.Status != ConnectStatusConnected {
		t.Errorf("connected should be kept, got %s", got.Status)
	}
}
