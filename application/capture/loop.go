package capture

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"survey-capture/domain/capture"
	"survey-capture/domain/scoring"
)

// frameWaitDelay is the pause when no frame is available yet; detection
// itself runs at the detector's native cadence without throttling
const frameWaitDelay = 20 * time.Millisecond

// FrameSource supplies the most recent live frame
type FrameSource interface {
	LatestFrame() (capture.Frame, bool)
}

// DetectionLoop drives per-frame face detection against the live stream.
// Each raw detector output is passed through the scoring engine and the
// result replaces the previously published one in a single-slot cell.
type DetectionLoop struct {
	detector capture.Detector
	frames   FrameSource
	cell     *ResultCell
	logger   *slog.Logger

	mu         sync.Mutex
	started    bool
	cancelLoop context.CancelFunc
	loopDone   chan struct{}
	stopOnce   sync.Once
}

// NewDetectionLoop creates a loop over a detector and a frame source
func NewDetectionLoop(detector capture.Detector, frames FrameSource, logger *slog.Logger) *DetectionLoop {
	if logger == nil {
		logger = slog.Default()
	}
	return &DetectionLoop{
		detector: detector,
		frames:   frames,
		cell:     &ResultCell{},
		logger:   logger,
	}
}

// Start runs one detection pass synchronously, so that a result is
// published before Start returns, then continues detecting in the
// background until Stop.
func (l *DetectionLoop) Start(ctx context.Context) error {
	l.mu.Lock()
	if l.started {
		l.mu.Unlock()
		return fmt.Errorf("detection loop already started")
	}
	l.started = true
	l.mu.Unlock()

	frame, ok := l.frames.LatestFrame()
	if !ok {
		return capture.ErrNoStream
	}
	l.detectOne(ctx, frame)

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	l.mu.Lock()
	l.cancelLoop = cancel
	l.loopDone = make(chan struct{})
	l.mu.Unlock()
	go l.run(loopCtx)

	return nil
}

func (l *DetectionLoop) run(ctx context.Context) {
	defer close(l.loopDone)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		frame, ok := l.frames.LatestFrame()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-time.After(frameWaitDelay):
			}
			continue
		}

		l.detectOne(ctx, frame)
	}
}

// detectOne runs detection on one frame and publishes the scored result,
// publishing an unavailable verdict when the detector errors
func (l *DetectionLoop) detectOne(ctx context.Context, frame capture.Frame) {
	raw, err := l.detector.Detect(ctx, frame)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		l.logger.Warn("detector failed on frame", "error", err)
		l.cell.Publish(scoring.Unavailable())
		return
	}
	l.cell.Publish(scoring.Score(raw))
}

// Latest returns the most recent detection result, if any has been
// published yet
func (l *DetectionLoop) Latest() (scoring.Result, bool) {
	return l.cell.Latest()
}

// Stop halts the per-frame loop and releases the detector. It is
// idempotent: stopping an already-stopped loop is a no-op.
func (l *DetectionLoop) Stop() {
	l.stopOnce.Do(func() {
		l.mu.Lock()
		cancel, done := l.cancelLoop, l.loopDone
		l.mu.Unlock()

		if cancel != nil {
			cancel()
			<-done
		}
		if err := l.detector.Close(); err != nil {
			l.logger.Warn("detector close failed", "error", err)
		}
	})
}
