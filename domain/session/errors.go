package session

import "errors"

var (
	// ErrNoDetectionResult is returned when a decision arrives before
	// any detection result has ever been observed
	ErrNoDetectionResult = errors.New("no detection result observed yet")

	// ErrSubmissionInFlight is returned when a decision arrives while a
	// previous one is still being submitted
	ErrSubmissionInFlight = errors.New("an answer submission is already in flight")

	// ErrInvalidState is returned when an operation is not legal in the
	// session's current state
	ErrInvalidState = errors.New("operation not valid in current session state")

	// ErrCancelled is returned when the session was abandoned and its
	// resources released
	ErrCancelled = errors.New("session cancelled")
)
