package types

import "time"

// ConnectStatus is the connection status of an account's control console.
type ConnectStatus string

const (
	ConnectStatusDisconnected ConnectStatus = "disconnected" // ConnectStatusDisconnected indicates no browser session is attached.
	ConnectStatusConnecting   ConnectStatus = "connecting"   // ConnectStatusConnecting indicates a launch or login is in flight.
	ConnectStatusConnected    ConnectStatus = "connected"    // ConnectStatusConnected indicates the console is logged in and verified.
	ConnectStatusError        ConnectStatus = "error"        // ConnectStatusError indicates the last connect attempt failed or timed out.
)

// StreamStatus is the broadcast state of an account as seen by the detector.
type StreamStatus string

const (
	StreamStatusUnknown StreamStatus = "unknown" // StreamStatusUnknown is the state before the first probe.
	StreamStatusOffline StreamStatus = "offline" // StreamStatusOffline indicates the account is not broadcasting.
	StreamStatusLive    StreamStatus = "live"    // StreamStatusLive indicates the account is broadcasting.
	StreamStatusEnded   StreamStatus = "ended"   // StreamStatusEnded indicates a broadcast just finished.
)

// IsLive reports whether s is the live state. Ended collapses to not live.
func (s StreamStatus) IsLive() bool {
	return s == StreamStatusLive
}

// StopReason explains why a feature task was stopped.
type StopReason string

const (
	StopReasonManual       StopReason = "manual"
	StopReasonDisconnected StopReason = "disconnected"
	StopReasonStreamEnded  StopReason = "stream_ended"
	StopReasonAuthLost     StopReason = "auth_lost"
	StopReasonGateFailed   StopReason = "gate_failed"
	StopReasonError        StopReason = "error"
)

// ConnectState is the connection record of one account.
type ConnectState struct {
	Status       ConnectStatus `json:"status"`
	Platform     string        `json:"platform"`
	Error        string        `json:"error,omitempty"`
	LastVerified *time.Time    `json:"last_verified,omitempty"`
}

// Persistable returns a copy safe to store across restarts.
// Connecting is transient and is stored as disconnected.
func (s ConnectState) Persistable() ConnectState {
	if s.Status == ConnectStatusConnecting {
		s.Status = ConnectStatusDisconnected
	}
	return s
}
