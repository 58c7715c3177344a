//go:build capture

package camera

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"survey-capture/domain/capture"
	"survey-capture/infrastructure/config"

	"gocv.io/x/gocv"
)

// Codecs tried in preference order when opening the session recording.
// All of them produce a WebM-family stream.
var webmCodecs = []string{"VP90", "VP80"}

// WebmRecorder implements capture.Recorder using a GoCV video writer. The
// writer is opened lazily on the first frame because the container needs
// the frame dimensions up front.
type WebmRecorder struct {
	config config.RecordingConfig

	mu       sync.Mutex
	started  bool
	stopped  bool
	filePath string
	writer   *gocv.VideoWriter
}

// NewWebmRecorder creates a recorder that accumulates the continuous
// session video as a WebM file
func NewWebmRecorder(cfg config.RecordingConfig) *WebmRecorder {
	return &WebmRecorder{config: cfg}
}

// Start begins a recording. Starting twice is a programming error.
func (r *WebmRecorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return capture.ErrRecorderAlreadyStarted
	}

	dir := r.config.TempDir
	if dir == "" {
		dir = os.TempDir()
	}
	r.filePath = filepath.Join(dir, fmt.Sprintf("session-%s.webm", uuid.NewString()))
	r.started = true
	return nil
}

// WriteFrame appends one frame to the recording
func (r *WebmRecorder) WriteFrame(frame capture.Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.started {
		return capture.ErrRecorderNotStarted
	}
	if r.stopped {
		return capture.ErrRecorderStopped
	}

	mat, err := gocv.IMDecode(frame.PNG, gocv.IMReadColor)
	if err != nil {
		return fmt.Errorf("decoding frame: %w", err)
	}
	defer mat.Close()

	if r.writer == nil {
		writer, err := r.openWriter(mat.Cols(), mat.Rows())
		if err != nil {
			return err
		}
		r.writer = writer
	}

	if err := r.writer.Write(mat); err != nil {
		return fmt.Errorf("writing frame: %w", err)
	}
	return nil
}

// openWriter tries each WebM codec in preference order
func (r *WebmRecorder) openWriter(width, height int) (*gocv.VideoWriter, error) {
	for _, codec := range webmCodecs {
		writer, err := gocv.VideoWriterFile(r.filePath, codec, r.config.FPS, width, height, true)
		if err != nil {
			continue
		}
		if !writer.IsOpened() {
			writer.Close()
			continue
		}
		return writer, nil
	}
	return nil, fmt.Errorf("no WebM codec available for recording")
}

// Stop finalizes the recording and returns the full-session video bytes.
// A Stop that fails leaves the recording on disk so it can be retried.
func (r *WebmRecorder) Stop() (capture.MediaArtifact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.started {
		return capture.MediaArtifact{}, capture.ErrRecorderNotStarted
	}
	if r.stopped {
		return capture.MediaArtifact{}, capture.ErrRecorderStopped
	}

	if r.writer != nil {
		if err := r.writer.Close(); err != nil {
			return capture.MediaArtifact{}, fmt.Errorf("finalizing recording: %w", err)
		}
		r.writer = nil
	}

	data, err := os.ReadFile(r.filePath)
	if err != nil {
		return capture.MediaArtifact{}, fmt.Errorf("reading recording: %w", err)
	}

	r.stopped = true
	os.Remove(r.filePath)

	return capture.NewArtifact(capture.KindVideo, "video/webm", data), nil
}

// Ensure WebmRecorder implements capture.Recorder
var _ capture.Recorder = (*WebmRecorder)(nil)
