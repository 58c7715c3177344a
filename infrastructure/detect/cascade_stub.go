//go:build !capture

package detect

import (
	"context"
	"fmt"

	"survey-capture/domain/capture"
	"survey-capture/domain/scoring"
	"survey-capture/infrastructure/config"
)

// CascadeDetector is a stub when GoCV/OpenCV is not available
type CascadeDetector struct{}

// NewCascadeDetector creates a stub detector (requires building with -tags=capture)
func NewCascadeDetector(cfg config.DetectionConfig) (*CascadeDetector, error) {
	return &CascadeDetector{}, nil
}

// Detect returns an error indicating detection is not available
func (d *CascadeDetector) Detect(ctx context.Context, frame capture.Frame) (scoring.RawDetection, error) {
	return scoring.RawDetection{}, fmt.Errorf("face detection not available: build with '-tags=capture' and install OpenCV/GoCV")
}

// Close is a no-op in stub mode
func (d *CascadeDetector) Close() error {
	return nil
}

// Ensure CascadeDetector implements capture.Detector
var _ capture.Detector = (*CascadeDetector)(nil)
