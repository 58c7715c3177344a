//go:build capture

package camera

import (
	"context"
	"fmt"
	"sync"

	"survey-capture/domain/capture"
	"survey-capture/infrastructure/config"

	"gocv.io/x/gocv"
)

// Webcam implements capture.CameraSource using a GoCV video capture device
type Webcam struct {
	config config.CameraConfig

	mu     sync.Mutex
	device *gocv.VideoCapture
	mat    gocv.Mat
	closed bool
}

// NewWebcam creates a camera source for the configured device
func NewWebcam(cfg config.CameraConfig) *Webcam {
	return &Webcam{config: cfg}
}

// Open acquires the camera device. A failure to open is treated as the
// respondent denying camera access.
func (w *Webcam) Open(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.device != nil {
		return nil
	}

	device, err := gocv.OpenVideoCapture(w.config.DeviceID)
	if err != nil {
		return fmt.Errorf("%w: device %d: %v", capture.ErrCameraDenied, w.config.DeviceID, err)
	}

	device.Set(gocv.VideoCaptureFrameWidth, float64(w.config.Width))
	device.Set(gocv.VideoCaptureFrameHeight, float64(w.config.Height))

	w.device = device
	w.mat = gocv.NewMat()
	w.closed = false
	return nil
}

// ReadFrame reads the next frame from the device and returns it PNG-encoded
func (w *Webcam) ReadFrame(ctx context.Context) (capture.Frame, error) {
	if err := ctx.Err(); err != nil {
		return capture.Frame{}, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.device == nil {
		return capture.Frame{}, capture.ErrNoStream
	}
	if !w.device.Read(&w.mat) || w.mat.Empty() {
		return capture.Frame{}, fmt.Errorf("camera device %d returned no frame", w.config.DeviceID)
	}

	data, err := gocv.IMEncode(gocv.PNGFileExt, w.mat)
	if err != nil {
		return capture.Frame{}, fmt.Errorf("encoding frame: %w", err)
	}

	return capture.Frame{
		PNG:    data,
		Width:  w.mat.Cols(),
		Height: w.mat.Rows(),
	}, nil
}

// Close releases the camera device. Safe to call multiple times.
func (w *Webcam) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed || w.device == nil {
		w.closed = true
		return nil
	}
	w.closed = true

	w.mat.Close()
	if err := w.device.Close(); err != nil {
		return fmt.Errorf("releasing camera device: %w", err)
	}
	w.device = nil
	return nil
}

// Ensure Webcam implements capture.CameraSource
var _ capture.CameraSource = (*Webcam)(nil)
