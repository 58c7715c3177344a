//go:build capture

package detect

import (
	"context"
	"fmt"
	"sync"

	"survey-capture/domain/capture"
	"survey-capture/domain/scoring"
	"survey-capture/infrastructure/config"

	"gocv.io/x/gocv"
)

// CascadeDetector implements capture.Detector using a GoCV Haar cascade
// classifier. Cascade detection reports bounding boxes only, so downstream
// scoring always takes the geometric path.
type CascadeDetector struct {
	mu         sync.Mutex
	classifier gocv.CascadeClassifier
	closeOnce  sync.Once
	closeErr   error
}

// NewCascadeDetector loads the configured cascade file
func NewCascadeDetector(cfg config.DetectionConfig) (*CascadeDetector, error) {
	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(cfg.CascadeFile) {
		classifier.Close()
		return nil, fmt.Errorf("failed to load cascade file: %s", cfg.CascadeFile)
	}
	return &CascadeDetector{classifier: classifier}, nil
}

// Detect runs face detection against one frame and reports normalized
// bounding boxes
func (d *CascadeDetector) Detect(ctx context.Context, frame capture.Frame) (scoring.RawDetection, error) {
	if err := ctx.Err(); err != nil {
		return scoring.RawDetection{}, err
	}

	mat, err := gocv.IMDecode(frame.PNG, gocv.IMReadGrayScale)
	if err != nil {
		return scoring.RawDetection{}, fmt.Errorf("decoding frame: %w", err)
	}
	defer mat.Close()

	if mat.Empty() {
		return scoring.RawDetection{}, fmt.Errorf("frame decoded to an empty image")
	}

	width := float64(mat.Cols())
	height := float64(mat.Rows())

	d.mu.Lock()
	rects := d.classifier.DetectMultiScale(mat)
	d.mu.Unlock()

	var detection scoring.RawDetection
	for _, rect := range rects {
		box := scoring.BoundingBox{
			XCenter: (float64(rect.Min.X) + float64(rect.Dx())/2) / width,
			YCenter: (float64(rect.Min.Y) + float64(rect.Dy())/2) / height,
			Width:   float64(rect.Dx()) / width,
			Height:  float64(rect.Dy()) / height,
		}
		detection.Faces = append(detection.Faces, scoring.RawFace{Box: &box})
	}

	return detection, nil
}

// Close releases the classifier. It is idempotent.
func (d *CascadeDetector) Close() error {
	d.closeOnce.Do(func() {
		d.closeErr = d.classifier.Close()
	})
	return d.closeErr
}

// Ensure CascadeDetector implements capture.Detector
var _ capture.Detector = (*CascadeDetector)(nil)
