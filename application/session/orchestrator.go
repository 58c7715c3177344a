package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"survey-capture/domain/capture"
	"survey-capture/domain/scoring"
	"survey-capture/domain/session"
	"survey-capture/domain/survey"
)

// MediaPipeline abstracts the media capture pipeline the orchestrator
// drives
type MediaPipeline interface {
	OpenStream(ctx context.Context) error
	StartRecorder(ctx context.Context) error
	Snapshot() (capture.MediaArtifact, error)
	StopRecorder() (capture.MediaArtifact, error)
	Close() error
}

// DetectionSource abstracts the detection loop: it begins publishing
// results on Start and exposes only the latest result
type DetectionSource interface {
	Start(ctx context.Context) error
	Latest() (scoring.Result, bool)
	Stop()
}

// Orchestrator owns one session's lifecycle: camera acquisition, live
// detection, continuous recording, per-question answer submission with
// best-effort snapshot upload, and completion with score aggregation.
// Answer submissions are serialized; questions are always submitted and
// acknowledged in ascending order.
type Orchestrator struct {
	api    session.ResponseAPI
	media  MediaPipeline
	detect DetectionSource
	logger *slog.Logger
	now    func() time.Time

	mu        sync.Mutex
	state     session.State
	reason    session.FailureReason
	svy       survey.Survey
	sessionID int64
	current   int // 0-based question index
	answers   []session.Answer
	scores    []int
	video     *capture.MediaArtifact
	busy      bool
	cancelled bool
	startedAt time.Time

	recorderReady bool
	detectReady   bool
}

// New creates an orchestrator for one pass through the given survey.
// The survey is validated here, before any camera or network interaction:
// anything but exactly five ordered questions is refused.
func New(api session.ResponseAPI, media MediaPipeline, detect DetectionSource, svy survey.Survey, logger *slog.Logger) (*Orchestrator, error) {
	if err := svy.Validate(); err != nil {
		return nil, err
	}
	svy.SortQuestions()

	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		api:    api,
		media:  media,
		detect: detect,
		logger: logger,
		now:    time.Now,
		svy:    svy,
		state:  session.StateAwaitingPermission,
	}, nil
}

// State returns the session's lifecycle state
func (o *Orchestrator) State() session.State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// FailureReason returns the reason the session failed, if it did
func (o *Orchestrator) FailureReason() session.FailureReason {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.reason
}

// SessionID returns the identity assigned by the remote service, zero
// until the session has started
func (o *Orchestrator) SessionID() int64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sessionID
}

// Question returns the current question while the session is active
func (o *Orchestrator) Question() (survey.Question, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != session.StateActive {
		return survey.Question{}, false
	}
	return o.svy.Questions[o.current], true
}

// QuestionNumber returns the 1-based number of the current question
func (o *Orchestrator) QuestionNumber() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current + 1
}

// Answers returns a copy of the answers recorded so far, in question order
func (o *Orchestrator) Answers() []session.Answer {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]session.Answer, len(o.answers))
	copy(out, o.answers)
	return out
}

// LatestDetection returns the most recent detection result, if any
func (o *Orchestrator) LatestDetection() (scoring.Result, bool) {
	return o.detect.Latest()
}

// Elapsed returns how long the session has been active. Session duration
// is unbounded; callers surface an advisory warning past their configured
// threshold, never an automatic submit or cancel.
func (o *Orchestrator) Elapsed() time.Duration {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.startedAt.IsZero() {
		return 0
	}
	return o.now().Sub(o.startedAt)
}

// Start takes the session from AwaitingPermission to Active: it confirms
// camera access, registers the session with the remote service, then joins
// the three readiness conditions (live stream, running recorder, publishing
// detector). After a failure the caller may call Start again to retry from
// scratch.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.cancelled {
		o.mu.Unlock()
		return session.ErrCancelled
	}
	if o.state != session.StateAwaitingPermission && o.state != session.StateFailed {
		o.mu.Unlock()
		return fmt.Errorf("%w: start from %s", session.ErrInvalidState, o.state)
	}
	o.state = session.StateAwaitingPermission
	o.reason = ""
	sessionID := o.sessionID
	recorderReady := o.recorderReady
	detectReady := o.detectReady
	o.mu.Unlock()

	// Permission gate: the stream opening is the confirmation. The
	// stream stays open across retries; it is only released on cancel
	// or completion.
	if err := o.media.OpenStream(ctx); err != nil {
		o.fail(session.ReasonPermissionDenied)
		return err
	}

	o.setState(session.StateStarting)

	if sessionID == 0 {
		id, err := o.api.StartSession(ctx, o.svy.ID)
		if err != nil {
			o.fail(session.ReasonStartError)
			return fmt.Errorf("starting session: %w", err)
		}
		sessionID = id
		o.mu.Lock()
		o.sessionID = id
		o.mu.Unlock()
	}

	// All three readiness conditions must hold before Active: the stream
	// is already live; recorder start and first detection are joined.
	// A retry only redoes the conditions that have not held yet.
	g, gctx := errgroup.WithContext(ctx)
	if !recorderReady {
		g.Go(func() error {
			if err := o.media.StartRecorder(gctx); err != nil {
				return err
			}
			o.mu.Lock()
			o.recorderReady = true
			o.mu.Unlock()
			return nil
		})
	}
	if !detectReady {
		g.Go(func() error {
			if err := o.detect.Start(gctx); err != nil {
				return err
			}
			o.mu.Lock()
			o.detectReady = true
			o.mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		o.fail(session.ReasonStartError)
		return fmt.Errorf("media readiness: %w", err)
	}

	o.mu.Lock()
	o.current = 0
	o.startedAt = o.now()
	o.state = session.StateActive
	o.mu.Unlock()
	return nil
}

// Answer reacts to the respondent's decision for the current question.
// The answer submission must succeed for the session to advance; the
// snapshot branch is captured concurrently and its upload failure is
// logged and swallowed, never blocking progression.
func (o *Orchestrator) Answer(ctx context.Context, yes bool) error {
	o.mu.Lock()
	if o.cancelled {
		o.mu.Unlock()
		return session.ErrCancelled
	}
	if o.state != session.StateActive {
		o.mu.Unlock()
		return fmt.Errorf("%w: answer in %s", session.ErrInvalidState, o.state)
	}
	if o.busy {
		o.mu.Unlock()
		return session.ErrSubmissionInFlight
	}

	result, ok := o.detect.Latest()
	if !ok {
		o.mu.Unlock()
		return session.ErrNoDetectionResult
	}

	o.busy = true
	question := o.svy.Questions[o.current]
	sessionID := o.sessionID
	last := o.current == len(o.svy.Questions)-1
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.busy = false
		o.mu.Unlock()
	}()

	// Fork: capture the snapshot while the answer submission is in
	// flight, but only when a face is currently detected.
	type snapshotOutcome struct {
		artifact capture.MediaArtifact
		err      error
	}
	var snapshotCh chan snapshotOutcome
	if result.Detected {
		snapshotCh = make(chan snapshotOutcome, 1)
		go func() {
			artifact, err := o.media.Snapshot()
			snapshotCh <- snapshotOutcome{artifact, err}
		}()
	}

	submission := session.AnswerSubmission{
		QuestionID: question.ID,
		Verdict:    yes,
		Detected:   result.Detected,
		Score:      result.Score,
	}
	if err := o.api.SubmitAnswer(ctx, sessionID, submission); err != nil {
		if snapshotCh != nil {
			<-snapshotCh // the branch still runs to completion
		}
		return fmt.Errorf("submitting answer for question %d: %w", question.Order, err)
	}

	// Join: the snapshot is awaited before this question's slot closes,
	// but its failure never aborts the transition.
	snapshotID := ""
	if snapshotCh != nil {
		outcome := <-snapshotCh
		snapshotID = o.uploadSnapshot(ctx, sessionID, question.Order, outcome.artifact, outcome.err)
	}

	o.mu.Lock()
	if result.Score != nil {
		o.scores = append(o.scores, *result.Score)
	}
	o.answers = append(o.answers, session.Answer{
		QuestionID: question.ID,
		Order:      question.Order,
		Verdict:    yes,
		Detected:   result.Detected,
		Score:      result.Score,
		SnapshotID: snapshotID,
	})
	if last {
		o.state = session.StateCompleting
	} else {
		o.current++
	}
	o.mu.Unlock()
	return nil
}

// uploadSnapshot uploads a captured snapshot tagged with the question
// order. Failures are logged only; an empty ID means no snapshot reference
// was recorded.
func (o *Orchestrator) uploadSnapshot(ctx context.Context, sessionID int64, order int, artifact capture.MediaArtifact, captureErr error) string {
	if captureErr != nil {
		o.logger.Warn("snapshot capture failed", "question", order, "error", captureErr)
		return ""
	}

	artifact.Status = capture.UploadInFlight
	upload := session.MediaUpload{
		Artifact:      artifact,
		FileName:      fmt.Sprintf("q%d_face.png", order),
		QuestionOrder: order,
	}
	if err := o.api.UploadMedia(ctx, sessionID, upload); err != nil {
		o.logger.Warn("snapshot upload failed", "question", order, "error", err)
		return ""
	}
	return artifact.ID
}

// Complete runs the completion sequence: stop the continuous recorder,
// upload the full-session video, aggregate the per-question scores, and
// finalize with the remote service. Any failure leaves the session in
// Completing and the whole sequence may be retried; the recorder is never
// restarted, the already-captured video is retried.
func (o *Orchestrator) Complete(ctx context.Context) error {
	o.mu.Lock()
	if o.cancelled {
		o.mu.Unlock()
		return session.ErrCancelled
	}
	if o.state != session.StateCompleting {
		o.mu.Unlock()
		return fmt.Errorf("%w: complete in %s", session.ErrInvalidState, o.state)
	}
	if o.busy {
		o.mu.Unlock()
		return session.ErrSubmissionInFlight
	}
	o.busy = true
	sessionID := o.sessionID
	video := o.video
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.busy = false
		o.mu.Unlock()
	}()

	if video == nil {
		artifact, err := o.media.StopRecorder()
		if err != nil {
			return fmt.Errorf("stopping session recorder: %w", err)
		}
		o.mu.Lock()
		o.video = &artifact
		video = o.video
		o.mu.Unlock()
	}

	video.Status = capture.UploadInFlight
	upload := session.MediaUpload{
		Artifact: *video,
		FileName: "full_session.webm",
	}
	if err := o.api.UploadMedia(ctx, sessionID, upload); err != nil {
		video.Status = capture.UploadFailed
		return fmt.Errorf("uploading session video: %w", err)
	}
	video.Status = capture.UploadDone

	o.mu.Lock()
	aggregate := session.AggregateScore(o.scores)
	o.mu.Unlock()

	if err := o.api.CompleteSession(ctx, sessionID, aggregate); err != nil {
		return fmt.Errorf("completing session: %w", err)
	}

	o.mu.Lock()
	o.state = session.StateCompleted
	o.mu.Unlock()

	o.detect.Stop()
	if err := o.media.Close(); err != nil {
		o.logger.Warn("releasing media after completion", "error", err)
	}
	return nil
}

// AggregateScore returns the score that was, or would be, reported at
// completion
func (o *Orchestrator) AggregateScore() *int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return session.AggregateScore(o.scores)
}

// Cancel abandons the session: the camera stream, detector and recorder
// are released and no further network calls are issued. Calls already in
// flight are not retracted. Cancelling a completed or already-cancelled
// session is a no-op.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	if o.cancelled || o.state == session.StateCompleted {
		o.mu.Unlock()
		return
	}
	o.cancelled = true
	o.state = session.StateFailed
	o.reason = session.ReasonCancelled
	o.mu.Unlock()

	o.detect.Stop()
	if err := o.media.Close(); err != nil {
		o.logger.Warn("releasing media on cancel", "error", err)
	}
}

func (o *Orchestrator) setState(s session.State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

func (o *Orchestrator) fail(reason session.FailureReason) {
	o.mu.Lock()
	o.state = session.StateFailed
	o.reason = reason
	o.mu.Unlock()
}
