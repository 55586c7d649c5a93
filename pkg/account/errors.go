package account

import "errors"

var (
	// ErrAdmissionDenied is returned when the live session limit is reached.
	// Disconnecting another account frees a slot.
	ErrAdmissionDenied = errors.New("too many accounts connected")

	// ErrSessionNotFound is returned for accounts without a live session.
	ErrSessionNotFound = errors.New("account session not found")

	// ErrConnectTimeout marks a login that did not finish in time. The session stays open for a retry.
	ErrConnectTimeout = errors.New("connect timed out waiting for login")

	// ErrConnectInProgress is returned when the account is already connecting.
	ErrConnectInProgress = errors.New("connect already in progress")
)
