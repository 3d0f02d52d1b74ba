package praxis

import "errors"

// Sentinel errors for common failure modes.
var (
	// ErrValidation indicates a request failed validation.
	ErrValidation = errors.New("validation error")

	// ErrConnectionFailed indicates the transport never produced a response.
	ErrConnectionFailed = errors.New("connection failed")

	// ErrStreamInterrupted indicates a reply body failed after zero or more
	// bytes were delivered.
	ErrStreamInterrupted = errors.New("stream interrupted")

	// ErrInvalidReference indicates misuse of the Log API: mutating a
	// message that is not the streaming tail.
	ErrInvalidReference = errors.New("invalid log reference")

	// ErrSessionLost indicates no session token could be learned for the
	// current view. The backend may treat the next turn as a new conversation.
	ErrSessionLost = errors.New("session lost")

	// ErrSessionConflict indicates an attempt to bind a second, different
	// token to a view that already has one.
	ErrSessionConflict = errors.New("session token conflict")

	// ErrEmptyInput indicates an empty or whitespace-only submission.
	ErrEmptyInput = errors.New("empty input")

	// ErrBusy indicates a submission while another turn is in flight.
	ErrBusy = errors.New("turn in progress")

	// ErrNoView indicates a submission before a conversation view was entered.
	ErrNoView = errors.New("no conversation view")
)
