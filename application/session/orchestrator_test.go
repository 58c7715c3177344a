package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"survey-capture/domain/capture"
	"survey-capture/domain/scoring"
	"survey-capture/domain/session"
	"survey-capture/domain/survey"
)

// --- Mock implementations for testing ---

// mockAPI implements session.ResponseAPI for testing
type mockAPI struct {
	mu sync.Mutex

	startErr    error
	submitErrs  map[int64]error  // keyed by question ID, consumed on use
	uploadErrs  map[string]error // keyed by file name, consumed on use
	completeErr error

	nextSessionID int64
	startCalls    int
	submissions   []session.AnswerSubmission
	uploads       []session.MediaUpload
	callOrder     []string
	completed     bool
	reportedScore *int

	submitBlock   chan struct{} // when set, SubmitAnswer waits on it
	submitStarted chan struct{} // when set, receives once a submission enters
}

func newMockAPI() *mockAPI {
	return &mockAPI{
		nextSessionID: 77,
		submitErrs:    make(map[int64]error),
		uploadErrs:    make(map[string]error),
	}
}

func (m *mockAPI) GetSurvey(ctx context.Context, surveyID int64) (survey.Survey, error) {
	return survey.Survey{}, nil
}

func (m *mockAPI) StartSession(ctx context.Context, surveyID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startCalls++
	if m.startErr != nil {
		err := m.startErr
		m.startErr = nil
		return 0, err
	}
	m.callOrder = append(m.callOrder, "start")
	return m.nextSessionID, nil
}

func (m *mockAPI) SubmitAnswer(ctx context.Context, sessionID int64, answer session.AnswerSubmission) error {
	m.mu.Lock()
	block := m.submitBlock
	started := m.submitStarted
	m.mu.Unlock()
	if started != nil {
		started <- struct{}{}
	}
	if block != nil {
		<-block
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.submitErrs[answer.QuestionID]; ok {
		delete(m.submitErrs, answer.QuestionID)
		return err
	}
	m.submissions = append(m.submissions, answer)
	m.callOrder = append(m.callOrder, fmt.Sprintf("submit:%d", answer.QuestionID))
	return nil
}

func (m *mockAPI) UploadMedia(ctx context.Context, sessionID int64, upload session.MediaUpload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.uploadErrs[upload.FileName]; ok {
		delete(m.uploadErrs, upload.FileName)
		return err
	}
	m.uploads = append(m.uploads, upload)
	m.callOrder = append(m.callOrder, "upload:"+upload.FileName)
	return nil
}

func (m *mockAPI) CompleteSession(ctx context.Context, sessionID int64, aggregateScore *int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.completeErr != nil {
		err := m.completeErr
		m.completeErr = nil
		return err
	}
	m.completed = true
	m.reportedScore = aggregateScore
	m.callOrder = append(m.callOrder, "complete")
	return nil
}

func (m *mockAPI) imageUploads() []session.MediaUpload {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []session.MediaUpload
	for _, u := range m.uploads {
		if u.Artifact.Kind == capture.KindImage {
			out = append(out, u)
		}
	}
	return out
}

// mockMedia implements MediaPipeline for testing
type mockMedia struct {
	mu sync.Mutex

	openErr     error
	recorderErr error
	snapshotErr error
	stopErr     error

	streamOpen    bool
	recorderRuns  int
	stopCalls     int
	snapshotCalls int
	closeCalls    int
}

func (m *mockMedia) OpenStream(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.openErr != nil {
		err := m.openErr
		m.openErr = nil
		return err
	}
	m.streamOpen = true
	return nil
}

func (m *mockMedia) StartRecorder(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.recorderErr != nil {
		err := m.recorderErr
		m.recorderErr = nil
		return err
	}
	if m.recorderRuns > 0 {
		return capture.ErrRecorderAlreadyStarted
	}
	m.recorderRuns++
	return nil
}

func (m *mockMedia) Snapshot() (capture.MediaArtifact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshotCalls++
	if m.snapshotErr != nil {
		return capture.MediaArtifact{}, m.snapshotErr
	}
	return capture.NewArtifact(capture.KindImage, "image/png", []byte("png")), nil
}

func (m *mockMedia) StopRecorder() (capture.MediaArtifact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopCalls++
	if m.recorderRuns == 0 {
		return capture.MediaArtifact{}, capture.ErrRecorderNotStarted
	}
	if m.stopErr != nil {
		err := m.stopErr
		m.stopErr = nil
		return capture.MediaArtifact{}, err
	}
	return capture.NewArtifact(capture.KindVideo, "video/webm", []byte("webm")), nil
}

func (m *mockMedia) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeCalls++
	m.streamOpen = false
	return nil
}

// mockDetect implements DetectionSource for testing
type mockDetect struct {
	mu sync.Mutex

	startErr  error
	result    scoring.Result
	published bool
	stopCalls int
}

func (m *mockDetect) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.startErr != nil {
		err := m.startErr
		m.startErr = nil
		return err
	}
	m.published = true
	return nil
}

func (m *mockDetect) Latest() (scoring.Result, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.result, m.published
}

func (m *mockDetect) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopCalls++
}

func (m *mockDetect) set(result scoring.Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.result = result
	m.published = true
}

// --- Helpers ---

func intPtr(v int) *int { return &v }

func detected(score int) scoring.Result {
	return scoring.Result{Detected: true, FaceCount: 1, Score: intPtr(score)}
}

func noFace() scoring.Result {
	return scoring.Result{Detected: false, FaceCount: 0, Err: scoring.ErrCodeNoFace}
}

func testSurvey() survey.Survey {
	return survey.Survey{
		ID:        3,
		Title:     "Daily check-in",
		Published: true,
		Questions: []survey.Question{
			{ID: 101, Text: "Q1", Order: 1},
			{ID: 102, Text: "Q2", Order: 2},
			{ID: 103, Text: "Q3", Order: 3},
			{ID: 104, Text: "Q4", Order: 4},
			{ID: 105, Text: "Q5", Order: 5},
		},
	}
}

func newTestOrchestrator(t *testing.T, api *mockAPI, media *mockMedia, detect *mockDetect) *Orchestrator {
	t.Helper()
	orch, err := New(api, media, detect, testSurvey(), nil)
	if err != nil {
		t.Fatalf("unexpected constructor error: %v", err)
	}
	return orch
}

func startActive(t *testing.T, orch *Orchestrator) {
	t.Helper()
	if err := orch.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if orch.State() != session.StateActive {
		t.Fatalf("expected active state, got %s", orch.State())
	}
}

// --- Tests ---

func TestNewRejectsWrongQuestionCount(t *testing.T) {
	for _, count := range []int{4, 6} {
		t.Run(fmt.Sprintf("%d questions", count), func(t *testing.T) {
			svy := testSurvey()
			if count < len(svy.Questions) {
				svy.Questions = svy.Questions[:count]
			} else {
				svy.Questions = append(svy.Questions, survey.Question{ID: 106, Text: "Q6", Order: 6})
			}

			api := newMockAPI()
			media := &mockMedia{}
			_, err := New(api, media, &mockDetect{}, svy, nil)

			if !errors.Is(err, survey.ErrQuestionCount) {
				t.Fatalf("expected ErrQuestionCount, got %v", err)
			}
			// Rejected before any camera or network interaction.
			if api.startCalls != 0 {
				t.Error("expected no network calls")
			}
			if media.streamOpen {
				t.Error("expected no camera interaction")
			}
		})
	}
}

func TestFullSessionReachesCompleted(t *testing.T) {
	api := newMockAPI()
	media := &mockMedia{}
	detect := &mockDetect{}
	orch := newTestOrchestrator(t, api, media, detect)

	scores := []int{80, 0, 60, 90, 70} // 0 marks the unscored slot
	ctx := context.Background()

	startActive(t, orch)

	for i := 0; i < 5; i++ {
		if scores[i] == 0 {
			detect.set(noFace())
		} else {
			detect.set(detected(scores[i]))
		}
		if err := orch.Answer(ctx, i%2 == 0); err != nil {
			t.Fatalf("answer %d failed: %v", i+1, err)
		}
	}

	if orch.State() != session.StateCompleting {
		t.Fatalf("expected completing after last answer, got %s", orch.State())
	}

	if err := orch.Complete(ctx); err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if orch.State() != session.StateCompleted {
		t.Fatalf("expected completed, got %s", orch.State())
	}

	// Exactly five answers, orders 1..5 strictly increasing.
	answers := orch.Answers()
	if len(answers) != 5 {
		t.Fatalf("expected 5 answers, got %d", len(answers))
	}
	for i, a := range answers {
		if a.Order != i+1 {
			t.Errorf("answer %d has order %d", i, a.Order)
		}
	}

	// Submissions acknowledged strictly in question order.
	if len(api.submissions) != 5 {
		t.Fatalf("expected 5 submissions, got %d", len(api.submissions))
	}
	for i, sub := range api.submissions {
		if sub.QuestionID != int64(101+i) {
			t.Errorf("submission %d for question %d, expected %d", i, sub.QuestionID, 101+i)
		}
	}

	// Aggregate is the rounded mean of non-null scores: (80+60+90+70)/4.
	if api.reportedScore == nil || *api.reportedScore != 75 {
		t.Errorf("expected aggregate 75, got %v", api.reportedScore)
	}

	// One video upload, after all answers, before completion.
	last := api.callOrder[len(api.callOrder)-1]
	secondToLast := api.callOrder[len(api.callOrder)-2]
	if last != "complete" || secondToLast != "upload:full_session.webm" {
		t.Errorf("unexpected tail of call order: %v", api.callOrder)
	}

	// Resources released exactly once on completion.
	if detect.stopCalls != 1 {
		t.Errorf("expected detector stopped once, got %d", detect.stopCalls)
	}
	if media.closeCalls != 1 {
		t.Errorf("expected media closed once, got %d", media.closeCalls)
	}
	if media.stopCalls != 1 {
		t.Errorf("expected recorder stopped once, got %d", media.stopCalls)
	}
}

func TestAnswerRejectedWithoutDetectionResult(t *testing.T) {
	api := newMockAPI()
	detect := &mockDetect{} // never publishes
	orch := newTestOrchestrator(t, api, &mockMedia{}, detect)

	startActive(t, orch)
	detect.published = false

	err := orch.Answer(context.Background(), true)
	if !errors.Is(err, session.ErrNoDetectionResult) {
		t.Fatalf("expected ErrNoDetectionResult, got %v", err)
	}
	if len(api.submissions) != 0 {
		t.Error("expected no submission")
	}
	if orch.QuestionNumber() != 1 {
		t.Errorf("expected to stay on question 1, got %d", orch.QuestionNumber())
	}
}

func TestAnswerSubmissionFailureKeepsState(t *testing.T) {
	api := newMockAPI()
	detect := &mockDetect{}
	orch := newTestOrchestrator(t, api, &mockMedia{}, detect)

	startActive(t, orch)
	detect.set(detected(64))

	api.submitErrs[101] = errors.New("network down")

	err := orch.Answer(context.Background(), true)
	if err == nil {
		t.Fatal("expected submission error")
	}
	if orch.State() != session.StateActive {
		t.Errorf("expected state to stay active, got %s", orch.State())
	}
	if orch.QuestionNumber() != 1 {
		t.Errorf("expected to stay on question 1, got %d", orch.QuestionNumber())
	}
	if len(orch.Answers()) != 0 {
		t.Error("expected no answer recorded")
	}

	// Retry is the recovery path.
	if err := orch.Answer(context.Background(), true); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if orch.QuestionNumber() != 2 {
		t.Errorf("expected question 2 after retry, got %d", orch.QuestionNumber())
	}
}

func TestSnapshotUploadFailureNeverBlocksCompletion(t *testing.T) {
	api := newMockAPI()
	media := &mockMedia{}
	detect := &mockDetect{}
	orch := newTestOrchestrator(t, api, media, detect)

	ctx := context.Background()
	startActive(t, orch)
	detect.set(detected(70))

	// Question 3's snapshot upload is rejected; everything else succeeds.
	api.uploadErrs["q3_face.png"] = errors.New("storage rejected upload")

	for i := 0; i < 5; i++ {
		if err := orch.Answer(ctx, true); err != nil {
			t.Fatalf("answer %d failed: %v", i+1, err)
		}
	}
	if err := orch.Complete(ctx); err != nil {
		t.Fatalf("complete failed: %v", err)
	}

	if orch.State() != session.StateCompleted {
		t.Fatalf("expected completed, got %s", orch.State())
	}

	answers := orch.Answers()
	if answers[2].SnapshotID != "" {
		t.Error("expected answer 3 to have no snapshot reference")
	}
	for _, i := range []int{0, 1, 3, 4} {
		if answers[i].SnapshotID == "" {
			t.Errorf("expected answer %d to have a snapshot reference", i+1)
		}
	}
	if got := len(api.imageUploads()); got != 4 {
		t.Errorf("expected 4 successful image uploads, got %d", got)
	}
}

func TestNoSnapshotWhenFaceNotDetected(t *testing.T) {
	api := newMockAPI()
	media := &mockMedia{}
	detect := &mockDetect{}
	orch := newTestOrchestrator(t, api, media, detect)

	startActive(t, orch)
	detect.set(noFace())

	if err := orch.Answer(context.Background(), false); err != nil {
		t.Fatalf("answer failed: %v", err)
	}

	if media.snapshotCalls != 0 {
		t.Errorf("expected no snapshot capture, got %d", media.snapshotCalls)
	}
	if len(api.imageUploads()) != 0 {
		t.Error("expected no image upload")
	}

	answer := orch.Answers()[0]
	if answer.Detected {
		t.Error("expected detected=false on answer")
	}
	if answer.Score != nil {
		t.Errorf("expected nil score, got %d", *answer.Score)
	}
}

func TestVideoUploadFailureStaysCompletingAndRetries(t *testing.T) {
	api := newMockAPI()
	media := &mockMedia{}
	detect := &mockDetect{}
	orch := newTestOrchestrator(t, api, media, detect)

	ctx := context.Background()
	startActive(t, orch)
	detect.set(detected(55))
	for i := 0; i < 5; i++ {
		if err := orch.Answer(ctx, true); err != nil {
			t.Fatalf("answer %d failed: %v", i+1, err)
		}
	}

	api.uploadErrs["full_session.webm"] = errors.New("gateway timeout")

	if err := orch.Complete(ctx); err == nil {
		t.Fatal("expected completion to fail")
	}
	if orch.State() != session.StateCompleting {
		t.Fatalf("expected to stay completing, got %s", orch.State())
	}
	if api.completed {
		t.Error("complete call must not have been issued")
	}

	// Retry of the whole sequence: the recorder is not stopped again,
	// the already-captured blob is retried.
	if err := orch.Complete(ctx); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if orch.State() != session.StateCompleted {
		t.Fatalf("expected completed after retry, got %s", orch.State())
	}
	if media.stopCalls != 1 {
		t.Errorf("expected recorder stopped exactly once, got %d", media.stopCalls)
	}
}

func TestCompleteSessionCallFailureStaysCompleting(t *testing.T) {
	api := newMockAPI()
	detect := &mockDetect{}
	orch := newTestOrchestrator(t, api, &mockMedia{}, detect)

	ctx := context.Background()
	startActive(t, orch)
	detect.set(detected(55))
	for i := 0; i < 5; i++ {
		if err := orch.Answer(ctx, true); err != nil {
			t.Fatalf("answer %d failed: %v", i+1, err)
		}
	}

	api.completeErr = errors.New("validation failed")

	if err := orch.Complete(ctx); err == nil {
		t.Fatal("expected completion to fail")
	}
	if orch.State() != session.StateCompleting {
		t.Fatalf("expected to stay completing, got %s", orch.State())
	}

	if err := orch.Complete(ctx); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if orch.State() != session.StateCompleted {
		t.Fatalf("expected completed, got %s", orch.State())
	}
}

func TestAggregateNilWhenNoScores(t *testing.T) {
	api := newMockAPI()
	detect := &mockDetect{}
	orch := newTestOrchestrator(t, api, &mockMedia{}, detect)

	ctx := context.Background()
	startActive(t, orch)
	detect.set(noFace())
	for i := 0; i < 5; i++ {
		if err := orch.Answer(ctx, false); err != nil {
			t.Fatalf("answer %d failed: %v", i+1, err)
		}
	}
	if err := orch.Complete(ctx); err != nil {
		t.Fatalf("complete failed: %v", err)
	}

	if api.reportedScore != nil {
		t.Errorf("expected nil aggregate, got %d", *api.reportedScore)
	}
}

func TestStartPermissionDenied(t *testing.T) {
	api := newMockAPI()
	media := &mockMedia{openErr: capture.ErrCameraDenied}
	orch := newTestOrchestrator(t, api, media, &mockDetect{})

	err := orch.Start(context.Background())
	if !errors.Is(err, capture.ErrCameraDenied) {
		t.Fatalf("expected ErrCameraDenied, got %v", err)
	}
	if orch.State() != session.StateFailed {
		t.Errorf("expected failed state, got %s", orch.State())
	}
	if orch.FailureReason() != session.ReasonPermissionDenied {
		t.Errorf("expected permission_denied reason, got %s", orch.FailureReason())
	}
	if api.startCalls != 0 {
		t.Error("no session must be registered without permission")
	}

	// The user may grant permission and retry.
	if err := orch.Start(context.Background()); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if orch.State() != session.StateActive {
		t.Errorf("expected active after retry, got %s", orch.State())
	}
}

func TestStartRegistrationFailureAllowsRetry(t *testing.T) {
	api := newMockAPI()
	api.startErr = errors.New("service unavailable")
	orch := newTestOrchestrator(t, api, &mockMedia{}, &mockDetect{})

	err := orch.Start(context.Background())
	if err == nil {
		t.Fatal("expected start error")
	}
	if orch.FailureReason() != session.ReasonStartError {
		t.Errorf("expected start_error reason, got %s", orch.FailureReason())
	}

	if err := orch.Start(context.Background()); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if api.startCalls != 2 {
		t.Errorf("expected 2 registration attempts, got %d", api.startCalls)
	}
}

func TestStartReadinessFailureRetryDoesNotDuplicate(t *testing.T) {
	api := newMockAPI()
	media := &mockMedia{}
	detect := &mockDetect{startErr: errors.New("cascade missing")}
	orch := newTestOrchestrator(t, api, media, detect)

	if err := orch.Start(context.Background()); err == nil {
		t.Fatal("expected readiness failure")
	}
	if orch.State() != session.StateFailed {
		t.Fatalf("expected failed, got %s", orch.State())
	}

	if err := orch.Start(context.Background()); err != nil {
		t.Fatalf("retry failed: %v", err)
	}

	// The session was registered once and the recorder started once.
	if api.startCalls != 1 {
		t.Errorf("expected a single registration, got %d", api.startCalls)
	}
	if media.recorderRuns != 1 {
		t.Errorf("expected recorder started once, got %d", media.recorderRuns)
	}
}

func TestCancelReleasesResourcesAndBlocksFurtherCalls(t *testing.T) {
	api := newMockAPI()
	media := &mockMedia{}
	detect := &mockDetect{}
	orch := newTestOrchestrator(t, api, media, detect)

	startActive(t, orch)
	detect.set(detected(50))

	orch.Cancel()

	if media.closeCalls != 1 {
		t.Errorf("expected media released, got %d closes", media.closeCalls)
	}
	if detect.stopCalls != 1 {
		t.Errorf("expected detector stopped, got %d stops", detect.stopCalls)
	}

	if err := orch.Answer(context.Background(), true); !errors.Is(err, session.ErrCancelled) {
		t.Errorf("expected ErrCancelled from Answer, got %v", err)
	}
	if err := orch.Complete(context.Background()); !errors.Is(err, session.ErrCancelled) {
		t.Errorf("expected ErrCancelled from Complete, got %v", err)
	}
	if len(api.submissions) != 0 {
		t.Error("no network calls may be issued after cancel")
	}

	// Cancelling again is a no-op.
	orch.Cancel()
	if media.closeCalls != 1 || detect.stopCalls != 1 {
		t.Error("expected second cancel to be a no-op")
	}
}

func TestAnswerSubmissionsAreSerialized(t *testing.T) {
	api := newMockAPI()
	detect := &mockDetect{}
	orch := newTestOrchestrator(t, api, &mockMedia{}, detect)

	startActive(t, orch)
	detect.set(noFace()) // no snapshot branch, keeps the flow simple

	block := make(chan struct{})
	started := make(chan struct{}, 1)
	api.submitBlock = block
	api.submitStarted = started

	firstDone := make(chan error, 1)
	go func() {
		firstDone <- orch.Answer(context.Background(), true)
	}()

	// Wait until the first submission is in flight, then try a second
	// decision: it must be rejected, not queued.
	<-started
	if err := orch.Answer(context.Background(), false); !errors.Is(err, session.ErrSubmissionInFlight) {
		t.Fatalf("expected ErrSubmissionInFlight, got %v", err)
	}

	close(block)
	api.mu.Lock()
	api.submitBlock = nil
	api.submitStarted = nil
	api.mu.Unlock()

	if err := <-firstDone; err != nil {
		t.Fatalf("first answer failed: %v", err)
	}
	if got := len(api.submissions); got != 1 {
		t.Fatalf("expected exactly one submission, got %d", got)
	}
	if orch.QuestionNumber() != 2 {
		t.Errorf("expected question 2, got %d", orch.QuestionNumber())
	}
}
