package types

import (
	"time"

	"github.com/google/uuid"
)

// EventType defines the type of notification pushed to the UI boundary.
type EventType string

const (
	EventTypeAccountNameResolved EventType = "account_name_resolved" // EventTypeAccountNameResolved indicates login succeeded and the account display name is known.
	EventTypeConnectStateChanged EventType = "connect_state_changed" // EventTypeConnectStateChanged indicates the connection status of an account changed.
	EventTypeStreamStateChanged  EventType = "stream_state_changed"  // EventTypeStreamStateChanged indicates the detector observed a stream transition.
	EventTypeDisconnected        EventType = "disconnected"          // EventTypeDisconnected indicates an account session was torn down asynchronously.
	EventTypeTaskStopped         EventType = "task_stopped"          // EventTypeTaskStopped indicates a feature task left the running state.
	EventTypeNewComments         EventType = "new_comments"          // EventTypeNewComments carries a flushed batch of live messages.
)

// Event is a notification emitted by the orchestrator for the UI layer.
// Every event is scoped to exactly one account.
type Event struct {
	// Time is when the event was created.
	Time time.Time

	// ID uniquely identifies the event.
	ID string

	// Type indicates the kind of event.
	Type EventType

	// AccountID is the account the event belongs to.
	AccountID string

	// AccountName is the resolved display name (account name events).
	AccountName string

	// ConnectStatus is the new connection status (connect state events).
	ConnectStatus ConnectStatus

	// StreamStatus is the new stream status (stream state events).
	StreamStatus StreamStatus

	// TaskID is the task that stopped (task stopped events).
	TaskID string

	// StopReason is why the task stopped (task stopped events).
	StopReason StopReason

	// Message holds human readable detail: an error, a disconnect reason or a stop text.
	Message string

	// Comments is the batch payload (new comments events), in arrival order.
	Comments []LiveMessage
}

// EmitFunc delivers an event to the UI boundary. Implementations must not block for long.
type EmitFunc func(event *Event)

func newEvent(eventType EventType, accountID string) *Event {
	return &Event{
		Time:      time.Now(),
		ID:        uuid.NewString(),
		Type:      eventType,
		AccountID: accountID,
	}
}

// NewAccountNameResolvedEvent creates an account name event.
func NewAccountNameResolvedEvent(accountID, name string) *Event {
	e := newEvent(EventTypeAccountNameResolved, accountID)
	e.AccountName = name
	return e
}

// NewConnectStateChangedEvent creates a connect state event.
func NewConnectStateChangedEvent(accountID string, status ConnectStatus, message string) *Event {
	e := newEvent(EventTypeConnectStateChanged, accountID)
	e.ConnectStatus = status
	e.Message = message
	return e
}

// NewStreamStateChangedEvent creates a stream state event.
func NewStreamStateChangedEvent(accountID string, status StreamStatus) *Event {
	e := newEvent(EventTypeStreamStateChanged, accountID)
	e.StreamStatus = status
	return e
}

// NewDisconnectedEvent creates a disconnected event.
func NewDisconnectedEvent(accountID, reason string) *Event {
	e := newEvent(EventTypeDisconnected, accountID)
	e.Message = reason
	return e
}

// NewTaskStoppedEvent creates a task stopped event.
func NewTaskStoppedEvent(accountID, taskID string, reason StopReason, text string) *Event {
	e := newEvent(EventTypeTaskStopped, accountID)
	e.TaskID = taskID
	e.StopReason = reason
	e.Message = text
	return e
}

// NewCommentsEvent creates a batched comments event.
func NewCommentsEvent(accountID string, comments []LiveMessage) *Event {
	e := newEvent(EventTypeNewComments, accountID)
	e.Comments = comments
	return e
}
