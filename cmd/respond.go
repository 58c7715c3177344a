package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	appcapture "survey-capture/application/capture"
	appsession "survey-capture/application/session"
	"survey-capture/domain/scoring"
	"survey-capture/domain/session"
	"survey-capture/domain/survey"
	"survey-capture/infrastructure/camera"
	"survey-capture/infrastructure/detect"
	"survey-capture/infrastructure/surveyapi"

	"github.com/spf13/cobra"
)

var respondSurveyID int64

var respondCmd = &cobra.Command{
	Use:   "respond",
	Short: "Answer a survey in a camera-monitored session",
	Long: `Answer a survey interactively while the webcam records the session.

The camera is acquired after you grant permission. While you answer each
question, face visibility is scored from the live camera feed, a snapshot
is captured at the moment of each answer, and a continuous video of the
whole session is recorded. Answers, snapshots, and the video are submitted
to the survey service as you go.

Example:
  survey-capture respond --survey 3`,
	RunE: runRespond,
}

func init() {
	rootCmd.AddCommand(respondCmd)
	respondCmd.Flags().Int64Var(&respondSurveyID, "survey", 0, "Survey ID to respond to (required)")
	respondCmd.MarkFlagRequired("survey")
}

// SessionRunner is the orchestrator surface the interactive loop drives
// (allows mocking in tests)
type SessionRunner interface {
	State() session.State
	FailureReason() session.FailureReason
	Question() (survey.Question, bool)
	QuestionNumber() int
	Answers() []session.Answer
	LatestDetection() (scoring.Result, bool)
	Elapsed() time.Duration
	AggregateScore() *int
	Start(ctx context.Context) error
	Answer(ctx context.Context, yes bool) error
	Complete(ctx context.Context) error
	Cancel()
}

func runRespond(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	if cfg == nil {
		return fmt.Errorf("configuration not loaded; ensure config/config.yaml exists")
	}

	ctx := cmd.Context()
	logger := newLogger()

	client := surveyapi.NewClient(cfg.API)
	svy, err := client.GetSurvey(ctx, respondSurveyID)
	if err != nil {
		return err
	}

	detector, err := detect.NewCascadeDetector(cfg.Detection)
	if err != nil {
		return err
	}

	pipeline := appcapture.NewPipeline(
		camera.NewWebcam(cfg.Camera),
		camera.NewWebmRecorder(cfg.Recording),
		logger,
	)
	loop := appcapture.NewDetectionLoop(detector, pipeline, logger)

	orc, err := appsession.New(client, pipeline, loop, svy, logger)
	if err != nil {
		return err
	}

	warnAfter := time.Duration(cfg.Session.DurationWarningSeconds) * time.Second
	return RunRespondSession(ctx, orc, svy, DefaultPrompter, warnAfter, os.Stdout)
}

// RunRespondSession drives a full response session through the interactive
// prompt loop
func RunRespondSession(
	ctx context.Context,
	runner SessionRunner,
	svy survey.Survey,
	prompter Prompter,
	warnAfter time.Duration,
	out io.Writer,
) error {
	completed := false
	defer func() {
		if !completed {
			runner.Cancel()
		}
	}()

	fmt.Fprintf(out, "Survey: %s (%d questions)\n\n", svy.Title, len(svy.Questions))

	granted, err := prompter.Confirm("This session records your camera. Allow camera access?", false)
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	if !granted {
		fmt.Fprintln(out, "Camera access is required to respond. Session cancelled.")
		return nil
	}

	if err := startSession(ctx, runner, prompter, out); err != nil {
		return err
	}

	warned := false
	for runner.State() == session.StateActive {
		question, ok := runner.Question()
		if !ok {
			return session.ErrInvalidState
		}

		if !warned && warnAfter > 0 && runner.Elapsed() >= warnAfter {
			fmt.Fprintf(out, "Note: this session has been running for over %s. Take your time; nothing is cut off.\n", warnAfter)
			warned = true
		}
		fmt.Fprintln(out, detectionStatus(runner))

		yes, err := prompter.Confirm(
			fmt.Sprintf("Question %d of %d: %s", runner.QuestionNumber(), len(svy.Questions), question.Text),
			true,
		)
		if err != nil {
			return fmt.Errorf("prompt cancelled")
		}

		if err := runner.Answer(ctx, yes); err != nil {
			if errors.Is(err, session.ErrNoDetectionResult) {
				fmt.Fprintln(out, "Waiting for the camera to produce a reading...")
				time.Sleep(200 * time.Millisecond)
				continue
			}
			fmt.Fprintf(out, "Submitting the answer failed: %v\n", err)
			retry, perr := prompter.Confirm("Retry this question?", true)
			if perr != nil || !retry {
				return err
			}
			continue
		}
	}

	for runner.State() == session.StateCompleting {
		fmt.Fprintln(out, "All questions answered. Uploading the session video...")
		if err := runner.Complete(ctx); err != nil {
			fmt.Fprintf(out, "Completing the session failed: %v\n", err)
			retry, perr := prompter.Confirm("Retry completion?", true)
			if perr != nil || !retry {
				return err
			}
			continue
		}
	}

	if runner.State() != session.StateCompleted {
		return fmt.Errorf("session ended in state %s", runner.State())
	}
	completed = true

	printSummary(runner, out)
	return nil
}

// startSession starts the session, offering a retry prompt on transient
// failures. Permission denial is final.
func startSession(ctx context.Context, runner SessionRunner, prompter Prompter, out io.Writer) error {
	for {
		err := runner.Start(ctx)
		if err == nil {
			return nil
		}
		if runner.FailureReason() == session.ReasonPermissionDenied {
			fmt.Fprintln(out, "The camera could not be acquired. Session cancelled.")
			return err
		}

		fmt.Fprintf(out, "Starting the session failed: %v\n", err)
		retry, perr := prompter.Confirm("Retry starting the session?", true)
		if perr != nil || !retry {
			return err
		}
	}
}

func detectionStatus(runner SessionRunner) string {
	result, ok := runner.LatestDetection()
	if !ok {
		return "Face visibility: no reading yet"
	}
	if result.Detected && result.Score != nil {
		return fmt.Sprintf("Face visibility: %d/100", *result.Score)
	}

	switch result.Err {
	case scoring.ErrCodeMultipleFaces:
		return fmt.Sprintf("Face visibility: %d faces in view, expected one", result.FaceCount)
	case scoring.ErrCodeDetectorUnavailable:
		return "Face visibility: detector unavailable"
	default:
		return "Face visibility: no face detected"
	}
}

func printSummary(runner SessionRunner, out io.Writer) {
	fmt.Fprintln(out, "\nSession complete. Thank you for responding!")

	for _, answer := range runner.Answers() {
		score := "no score"
		if answer.Score != nil {
			score = fmt.Sprintf("%d/100", *answer.Score)
		}
		verdict := "No"
		if answer.Verdict {
			verdict = "Yes"
		}
		fmt.Fprintf(out, "  Q%d: %s (face visibility %s)\n", answer.Order, verdict, score)
	}

	if aggregate := runner.AggregateScore(); aggregate != nil {
		fmt.Fprintf(out, "Overall face visibility: %d/100\n", *aggregate)
	}
}
