package session

import "errors"

// Session errors. Invalid intents return one of these; they never panic.
var (
	// ErrSessionNotFound is returned when no session has the given ID.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionClosed is returned for events and intents after Close.
	ErrSessionClosed = errors.New("session closed")
	// ErrSessionEnded is returned for playback intents after end of stream.
	ErrSessionEnded = errors.New("session ended")
	// ErrNotReady is returned for playback intents before the media is ready
	// or while it is errored.
	ErrNotReady = errors.New("session not ready")
	// ErrRetryNotAllowed is returned when Retry is called outside the errored state.
	ErrRetryNotAllowed = errors.New("retry is only allowed after a playback error")
	// ErrInvalidValue is returned for out of range intent values.
	ErrInvalidValue = errors.New("invalid value")
)
