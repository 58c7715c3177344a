//go:build integration

package steps

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	appsession "survey-capture/application/session"
	"survey-capture/domain/capture"
	"survey-capture/domain/scoring"
	"survey-capture/domain/session"
	"survey-capture/domain/survey"

	"github.com/cucumber/godog"
)

// sessionContext holds test state for one session scenario
type sessionContext struct {
	svy survey.Survey
	api *fakeResponseAPI
	med *fakeMediaPipeline
	det *fakeDetectionSource
	orc *appsession.Orchestrator
	err error
}

var sharedSessionContext *sessionContext

func getSessionContext() *sessionContext {
	return sharedSessionContext
}

// --- Fakes driving the real orchestrator ---

type fakeResponseAPI struct {
	mu sync.Mutex

	rejectOrders    map[int]bool
	snapshotsFail   bool
	videoFailures   int
	submissions     []session.AnswerSubmission
	imageUploads    []session.MediaUpload
	videoUploads    int
	completed       bool
	reportedScore   *int
	startedSessions int
}

func (f *fakeResponseAPI) GetSurvey(ctx context.Context, surveyID int64) (survey.Survey, error) {
	return getSessionContext().svy, nil
}

func (f *fakeResponseAPI) StartSession(ctx context.Context, surveyID int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startedSessions++
	return 41, nil
}

func (f *fakeResponseAPI) SubmitAnswer(ctx context.Context, sessionID int64, answer session.AnswerSubmission) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	order := int(answer.QuestionID - 100)
	if f.rejectOrders[order] {
		return fmt.Errorf("service rejected the answer")
	}
	f.submissions = append(f.submissions, answer)
	return nil
}

func (f *fakeResponseAPI) UploadMedia(ctx context.Context, sessionID int64, upload session.MediaUpload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if upload.Artifact.Kind == capture.KindImage {
		if f.snapshotsFail {
			return fmt.Errorf("snapshot storage unavailable")
		}
		f.imageUploads = append(f.imageUploads, upload)
		return nil
	}
	if f.videoFailures > 0 {
		f.videoFailures--
		return fmt.Errorf("video storage unavailable")
	}
	f.videoUploads++
	return nil
}

func (f *fakeResponseAPI) CompleteSession(ctx context.Context, sessionID int64, aggregateScore *int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = true
	f.reportedScore = aggregateScore
	return nil
}

type fakeMediaPipeline struct {
	mu sync.Mutex

	cameraAvailable bool
	streamOpen      bool
	recording       bool
	openCalls       int
	stopCalls       int
	closed          bool
}

func (f *fakeMediaPipeline) OpenStream(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.openCalls++
	if !f.cameraAvailable {
		return fmt.Errorf("%w: no camera device", capture.ErrCameraDenied)
	}
	f.streamOpen = true
	return nil
}

func (f *fakeMediaPipeline) StartRecorder(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.streamOpen {
		return capture.ErrNoStream
	}
	f.recording = true
	return nil
}

func (f *fakeMediaPipeline) Snapshot() (capture.MediaArtifact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.streamOpen {
		return capture.MediaArtifact{}, capture.ErrNoStream
	}
	return capture.NewArtifact(capture.KindImage, "image/png", []byte("png")), nil
}

func (f *fakeMediaPipeline) StopRecorder() (capture.MediaArtifact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopCalls++
	f.recording = false
	return capture.NewArtifact(capture.KindVideo, "video/webm", []byte("webm")), nil
}

func (f *fakeMediaPipeline) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.streamOpen = false
	return nil
}

type fakeDetectionSource struct {
	mu      sync.Mutex
	result  scoring.Result
	has     bool
	stopped bool
}

func (f *fakeDetectionSource) Start(ctx context.Context) error { return nil }

func (f *fakeDetectionSource) Latest() (scoring.Result, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.result, f.has
}

func (f *fakeDetectionSource) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
}

// --- Step definitions ---

func aPublishedSurveyWithQuestions(count int) error {
	c := getSessionContext()
	c.svy = survey.Survey{ID: 3, Title: "Check-in", Published: true}
	for order := 1; order <= count; order++ {
		c.svy.Questions = append(c.svy.Questions, survey.Question{
			ID:    int64(100 + order),
			Text:  fmt.Sprintf("Question number %d?", order),
			Order: order,
		})
	}
	return nil
}

func theCameraIsAvailable() error {
	getSessionContext().med.cameraAvailable = true
	return nil
}

func theCameraIsUnavailable() error {
	getSessionContext().med.cameraAvailable = false
	return nil
}

func aFaceIsVisibleWithScore(score int) error {
	c := getSessionContext()
	c.det.result = scoring.Result{Detected: true, FaceCount: 1, Score: &score}
	c.det.has = true
	return nil
}

func noFaceIsVisible() error {
	c := getSessionContext()
	c.det.result = scoring.Result{Detected: false, Err: scoring.ErrCodeNoFace}
	c.det.has = true
	return nil
}

func theServiceRejectsTheAnswerToQuestion(order int) error {
	getSessionContext().api.rejectOrders[order] = true
	return nil
}

func theServiceAcceptsAnswersAgain() error {
	c := getSessionContext()
	c.api.rejectOrders = map[int]bool{}
	return nil
}

func snapshotUploadsFail() error {
	getSessionContext().api.snapshotsFail = true
	return nil
}

func theVideoUploadFailsOnce() error {
	getSessionContext().api.videoFailures = 1
	return nil
}

func theRespondentStartsASession() error {
	c := getSessionContext()
	orc, err := appsession.New(c.api, c.med, c.det, c.svy, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		c.err = err
		return nil
	}
	c.orc = orc
	c.err = c.orc.Start(context.Background())
	return nil
}

func startingTheSessionIsRefused() error {
	c := getSessionContext()
	if c.orc != nil || c.err == nil {
		return fmt.Errorf("expected the session to be refused, got error %v", c.err)
	}
	return nil
}

func noSessionWasRegistered() error {
	c := getSessionContext()
	if c.api.startedSessions != 0 {
		return fmt.Errorf("expected no registrations, got %d", c.api.startedSessions)
	}
	return nil
}

func theCameraWasNeverTouched() error {
	c := getSessionContext()
	if c.med.openCalls != 0 {
		return fmt.Errorf("expected no camera opens, got %d", c.med.openCalls)
	}
	return nil
}

func theRespondentAnswersToEveryQuestion(verdict string) error {
	c := getSessionContext()
	yes := verdict == "Yes"
	for c.orc.State() == session.StateActive {
		if err := c.orc.Answer(context.Background(), yes); err != nil {
			c.err = err
			return nil
		}
	}
	return nil
}

func theSessionIsCompleted() error {
	c := getSessionContext()
	c.err = c.orc.Complete(context.Background())
	return nil
}

func theSessionStateIs(state string) error {
	c := getSessionContext()
	if got := string(c.orc.State()); got != state {
		return fmt.Errorf("expected state %q, got %q (last error: %v)", state, got, c.err)
	}
	return nil
}

func theFailureReasonIs(reason string) error {
	c := getSessionContext()
	if got := string(c.orc.FailureReason()); got != reason {
		return fmt.Errorf("expected failure reason %q, got %q", reason, got)
	}
	return nil
}

func theCurrentQuestionIs(number int) error {
	c := getSessionContext()
	if got := c.orc.QuestionNumber(); got != number {
		return fmt.Errorf("expected question %d, got %d", number, got)
	}
	return nil
}

func answersWereSubmittedInOrder(count int) error {
	c := getSessionContext()
	if len(c.api.submissions) != count {
		return fmt.Errorf("expected %d submissions, got %d", count, len(c.api.submissions))
	}
	for i, submission := range c.api.submissions {
		if submission.QuestionID != int64(100+i+1) {
			return fmt.Errorf("submission %d out of order: question %d", i, submission.QuestionID)
		}
	}
	return nil
}

func noAnswersWereSubmitted() error {
	c := getSessionContext()
	if len(c.api.submissions) != 0 {
		return fmt.Errorf("expected no submissions, got %d", len(c.api.submissions))
	}
	return nil
}

func aSnapshotWasUploadedForEveryQuestion() error {
	c := getSessionContext()
	if len(c.api.imageUploads) != len(c.svy.Questions) {
		return fmt.Errorf("expected %d snapshots, got %d", len(c.svy.Questions), len(c.api.imageUploads))
	}
	for i, upload := range c.api.imageUploads {
		want := fmt.Sprintf("q%d_face.png", i+1)
		if upload.FileName != want {
			return fmt.Errorf("snapshot %d named %q, expected %q", i, upload.FileName, want)
		}
	}
	return nil
}

func noSnapshotsWereUploaded() error {
	c := getSessionContext()
	if len(c.api.imageUploads) != 0 {
		return fmt.Errorf("expected no snapshots, got %d", len(c.api.imageUploads))
	}
	return nil
}

func theSessionVideoWasUploadedExactlyOnce() error {
	c := getSessionContext()
	if c.api.videoUploads != 1 {
		return fmt.Errorf("expected 1 video upload, got %d", c.api.videoUploads)
	}
	return nil
}

func theRecorderWasStoppedExactlyOnce() error {
	c := getSessionContext()
	if c.med.stopCalls != 1 {
		return fmt.Errorf("expected 1 recorder stop, got %d", c.med.stopCalls)
	}
	return nil
}

func theOverallScoreWasReported(score int) error {
	c := getSessionContext()
	if !c.api.completed {
		return fmt.Errorf("session was never finalized")
	}
	if c.api.reportedScore == nil {
		return fmt.Errorf("expected overall score %d, got none", score)
	}
	if *c.api.reportedScore != score {
		return fmt.Errorf("expected overall score %d, got %d", score, *c.api.reportedScore)
	}
	return nil
}

func theOverallScoreIsAbsent() error {
	c := getSessionContext()
	if !c.api.completed {
		return fmt.Errorf("session was never finalized")
	}
	if c.api.reportedScore != nil {
		return fmt.Errorf("expected no overall score, got %d", *c.api.reportedScore)
	}
	return nil
}

// InitializeSessionScenario registers session steps with godog
func InitializeSessionScenario(ctx *godog.ScenarioContext) {
	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		sharedSessionContext = &sessionContext{
			api: &fakeResponseAPI{rejectOrders: map[int]bool{}},
			med: &fakeMediaPipeline{},
			det: &fakeDetectionSource{},
		}
		return ctx, nil
	})

	ctx.Step(`^a published survey with (\d+) questions$`, aPublishedSurveyWithQuestions)
	ctx.Step(`^the camera is available$`, theCameraIsAvailable)
	ctx.Step(`^the camera is unavailable$`, theCameraIsUnavailable)
	ctx.Step(`^a face is visible with score (\d+)$`, aFaceIsVisibleWithScore)
	ctx.Step(`^no face is visible$`, noFaceIsVisible)
	ctx.Step(`^the service rejects the answer to question (\d+)$`, theServiceRejectsTheAnswerToQuestion)
	ctx.Step(`^the service accepts answers again$`, theServiceAcceptsAnswersAgain)
	ctx.Step(`^snapshot uploads fail$`, snapshotUploadsFail)
	ctx.Step(`^the video upload fails once$`, theVideoUploadFailsOnce)
	ctx.Step(`^the respondent starts a session$`, theRespondentStartsASession)
	ctx.Step(`^starting the session is refused$`, startingTheSessionIsRefused)
	ctx.Step(`^no session was registered$`, noSessionWasRegistered)
	ctx.Step(`^the camera was never touched$`, theCameraWasNeverTouched)
	ctx.Step(`^the respondent answers "(Yes|No)" to every question$`, theRespondentAnswersToEveryQuestion)
	ctx.Step(`^the session is completed$`, theSessionIsCompleted)
	ctx.Step(`^the session state is "([^"]+)"$`, theSessionStateIs)
	ctx.Step(`^the failure reason is "([^"]+)"$`, theFailureReasonIs)
	ctx.Step(`^the current question is (\d+)$`, theCurrentQuestionIs)
	ctx.Step(`^(\d+) answers were submitted in order$`, answersWereSubmittedInOrder)
	ctx.Step(`^no answers were submitted$`, noAnswersWereSubmitted)
	ctx.Step(`^a snapshot was uploaded for every question$`, aSnapshotWasUploadedForEveryQuestion)
	ctx.Step(`^no snapshots were uploaded$`, noSnapshotsWereUploaded)
	ctx.Step(`^the session video was uploaded exactly once$`, theSessionVideoWasUploadedExactlyOnce)
	ctx.Step(`^the recorder was stopped exactly once$`, theRecorderWasStoppedExactlyOnce)
	ctx.Step(`^the overall score (\d+) was reported$`, theOverallScoreWasReported)
	ctx.Step(`^the overall score is absent$`, theOverallScoreIsAbsent)
}
