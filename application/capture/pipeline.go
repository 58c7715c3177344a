package capture

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"survey-capture/domain/capture"
)

// readRetryDelay is the pause after a transient frame-read failure before
// the pump tries again
const readRetryDelay = 50 * time.Millisecond

// Pipeline manages the camera stream for one session: the live stream, the
// single continuous recorder spanning the session, and on-demand snapshot
// capture. The stream and its tracks are exclusively owned by the pipeline
// and are released on every exit path via Close.
type Pipeline struct {
	camera   capture.CameraSource
	recorder capture.Recorder
	logger   *slog.Logger

	mu              sync.Mutex
	live            bool
	closed          bool
	latest          capture.Frame
	hasFrame        bool
	pumpRunning     bool
	recorderStopped bool

	cancelPump context.CancelFunc
	pumpDone   chan struct{}
}

// NewPipeline creates a pipeline over a camera and recorder
func NewPipeline(camera capture.CameraSource, recorder capture.Recorder, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		camera:   camera,
		recorder: recorder,
		logger:   logger,
	}
}

// OpenStream acquires the camera and waits for the first frame, the signal
// that the stream is live. Failure to acquire is a permission error.
func (p *Pipeline) OpenStream(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return capture.ErrNoStream
	}
	if p.live {
		return nil
	}

	if err := p.camera.Open(ctx); err != nil {
		return fmt.Errorf("%w: %v", capture.ErrCameraDenied, err)
	}

	frame, err := p.camera.ReadFrame(ctx)
	if err != nil {
		p.camera.Close()
		return fmt.Errorf("waiting for first frame: %w", err)
	}

	p.latest = frame
	p.hasFrame = true
	p.live = true
	return nil
}

// StartRecorder starts the continuous session recorder and the frame pump
// feeding it. Starting twice fails fast.
func (p *Pipeline) StartRecorder(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.live {
		return capture.ErrNoStream
	}
	if p.pumpRunning {
		return capture.ErrRecorderAlreadyStarted
	}

	if err := p.recorder.Start(); err != nil {
		return fmt.Errorf("starting recorder: %w", err)
	}

	pumpCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	p.cancelPump = cancel
	p.pumpDone = make(chan struct{})
	p.pumpRunning = true
	go p.pump(pumpCtx)

	return nil
}

// pump continuously reads camera frames, feeding the recorder and the
// latest-frame slot, until cancelled
func (p *Pipeline) pump(ctx context.Context) {
	defer close(p.pumpDone)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		frame, err := p.camera.ReadFrame(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Warn("frame read failed", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(readRetryDelay):
			}
			continue
		}

		if err := p.recorder.WriteFrame(frame); err != nil {
			p.logger.Warn("recorder dropped frame", "error", err)
		}

		p.mu.Lock()
		p.latest = frame
		p.hasFrame = true
		p.mu.Unlock()
	}
}

// LatestFrame returns the most recent frame seen on the stream
func (p *Pipeline) LatestFrame() (capture.Frame, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.latest, p.hasFrame
}

// Snapshot captures the current frame as a still image artifact
func (p *Pipeline) Snapshot() (capture.MediaArtifact, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.hasFrame {
		return capture.MediaArtifact{}, capture.ErrNoStream
	}

	data := make([]byte, len(p.latest.PNG))
	copy(data, p.latest.PNG)
	return capture.NewArtifact(capture.KindImage, "image/png", data), nil
}

// StopRecorder halts the frame pump and finalizes the recording, returning
// the full-session video artifact. Stopping before a start, or after a
// successful stop, fails fast; a stop whose finalization failed may be
// retried.
func (p *Pipeline) StopRecorder() (capture.MediaArtifact, error) {
	p.mu.Lock()
	if p.recorderStopped {
		p.mu.Unlock()
		return capture.MediaArtifact{}, capture.ErrRecorderStopped
	}
	if !p.pumpRunning && p.cancelPump == nil {
		p.mu.Unlock()
		return capture.MediaArtifact{}, capture.ErrRecorderNotStarted
	}
	p.mu.Unlock()

	p.haltPump()

	artifact, err := p.recorder.Stop()
	if err != nil {
		return capture.MediaArtifact{}, fmt.Errorf("stopping recorder: %w", err)
	}

	p.mu.Lock()
	p.recorderStopped = true
	p.mu.Unlock()
	return artifact, nil
}

// haltPump cancels the frame pump and waits for it to drain
func (p *Pipeline) haltPump() {
	p.mu.Lock()
	if !p.pumpRunning {
		p.mu.Unlock()
		return
	}
	p.pumpRunning = false
	cancel, done := p.cancelPump, p.pumpDone
	p.mu.Unlock()

	cancel()
	<-done
}

// Close releases the camera stream and all its tracks. It is safe to call
// on every exit path, including after StopRecorder and repeatedly. If the
// recorder is still running its output is discarded.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	wasLive := p.live
	p.live = false
	stopRecorder := p.cancelPump != nil && !p.recorderStopped
	p.mu.Unlock()

	p.haltPump()

	if stopRecorder {
		if _, err := p.recorder.Stop(); err != nil {
			p.logger.Warn("discarding recorder output on close", "error", err)
		}
		p.mu.Lock()
		p.recorderStopped = true
		p.mu.Unlock()
	}

	if !wasLive {
		return nil
	}
	if err := p.camera.Close(); err != nil {
		return fmt.Errorf("releasing camera: %w", err)
	}
	return nil
}
