//go:build !capture

package camera

import (
	"fmt"

	"survey-capture/domain/capture"
	"survey-capture/infrastructure/config"
)

// WebmRecorder is a stub when GoCV/OpenCV is not available
type WebmRecorder struct {
	config config.RecordingConfig
}

// NewWebmRecorder creates a stub recorder (requires building with -tags=capture)
func NewWebmRecorder(cfg config.RecordingConfig) *WebmRecorder {
	return &WebmRecorder{config: cfg}
}

// Start returns an error indicating capture is not available
func (r *WebmRecorder) Start() error {
	return fmt.Errorf("recording not available: build with '-tags=capture' and install OpenCV/GoCV")
}

// WriteFrame returns an error indicating capture is not available
func (r *WebmRecorder) WriteFrame(frame capture.Frame) error {
	return fmt.Errorf("recording not available: build with '-tags=capture' and install OpenCV/GoCV")
}

// Stop returns an error indicating capture is not available
func (r *WebmRecorder) Stop() (capture.MediaArtifact, error) {
	return capture.MediaArtifact{}, fmt.Errorf("recording not available: build with '-tags=capture' and install OpenCV/GoCV")
}

// Ensure WebmRecorder implements capture.Recorder
var _ capture.Recorder = (*WebmRecorder)(nil)
