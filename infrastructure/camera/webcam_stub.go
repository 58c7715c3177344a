//go:build !capture

package camera

import (
	"context"
	"fmt"

	"survey-capture/domain/capture"
	"survey-capture/infrastructure/config"
)

// Webcam is a stub when GoCV/OpenCV is not available
type Webcam struct {
	config config.CameraConfig
}

// NewWebcam creates a stub camera source (requires building with -tags=capture)
func NewWebcam(cfg config.CameraConfig) *Webcam {
	return &Webcam{config: cfg}
}

// Open returns an error indicating capture is not available
func (w *Webcam) Open(ctx context.Context) error {
	return fmt.Errorf("camera capture not available: build with '-tags=capture' and install OpenCV/GoCV")
}

// ReadFrame returns an error indicating capture is not available
func (w *Webcam) ReadFrame(ctx context.Context) (capture.Frame, error) {
	return capture.Frame{}, fmt.Errorf("camera capture not available: build with '-tags=capture' and install OpenCV/GoCV")
}

// Close is a no-op in stub mode
func (w *Webcam) Close() error {
	return nil
}

// Ensure Webcam implements capture.CameraSource
var _ capture.CameraSource = (*Webcam)(nil)
