package capture

import "errors"

var (
	// ErrCameraDenied is returned when the camera cannot be acquired;
	// the attempt is terminal and the caller must retry from the start
	ErrCameraDenied = errors.New("camera access denied or unavailable")

	// ErrNoStream is returned when an operation requires a live stream
	// that was never opened
	ErrNoStream = errors.New("no live camera stream")

	// ErrRecorderAlreadyStarted is returned when Start is called on a
	// running recorder
	ErrRecorderAlreadyStarted = errors.New("recorder already started")

	// ErrRecorderNotStarted is returned when Stop or WriteFrame is
	// called before Start
	ErrRecorderNotStarted = errors.New("recorder not started")

	// ErrRecorderStopped is returned when a recorder is used after a
	// successful Stop
	ErrRecorderStopped = errors.New("recorder already stopped")

	// ErrArtifactTooLarge is returned when an artifact exceeds the
	// upload size limit for its kind
	ErrArtifactTooLarge = errors.New("media artifact exceeds size limit")
)
