package capture

import (
	"context"

	"survey-capture/domain/scoring"
)

// Frame is one decoded camera frame, carried as encoded PNG bytes with its
// pixel dimensions
type Frame struct {
	PNG    []byte
	Width  int
	Height int
}

// CameraSource defines the interface for a live camera stream.
// The stream and its frames are exclusively owned by the media pipeline
// for the session's lifetime.
type CameraSource interface {
	// Open acquires the camera. Failure here is a permission error.
	Open(ctx context.Context) error

	// ReadFrame blocks until the next frame is available
	ReadFrame(ctx context.Context) (Frame, error)

	// Close releases the camera and all its tracks. It must be safe to
	// call on every exit path.
	Close() error
}

// Recorder defines the interface for the single continuous session
// recorder. Start and Stop are each valid at most once: starting twice or
// stopping before a start is a programming error and fails fast with a
// resource error. A Stop that itself fails may be retried.
type Recorder interface {
	// Start begins recording
	Start() error

	// WriteFrame appends one frame to the recording
	WriteFrame(frame Frame) error

	// Stop finalizes the recording and returns the encoded video bytes
	// spanning the full duration since Start
	Stop() (MediaArtifact, error)
}

// Detector defines the interface for per-frame face detection. It reports
// raw detector output; scoring is the scoring engine's concern.
type Detector interface {
	// Detect runs detection against one frame
	Detect(ctx context.Context, frame Frame) (scoring.RawDetection, error)

	// Close releases detector resources. It is idempotent.
	Close() error
}
