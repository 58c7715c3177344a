package session

import (
	"context"

	"survey-capture/domain/capture"
	"survey-capture/domain/survey"
)

// AnswerSubmission is the payload persisted for one answered question
type AnswerSubmission struct {
	QuestionID int64
	Verdict    bool
	Detected   bool
	Score      *int
}

// MediaUpload attaches one media artifact to a session. QuestionOrder is
// required for image artifacts and must be zero for video.
type MediaUpload struct {
	Artifact      capture.MediaArtifact
	FileName      string
	QuestionOrder int
}

// ResponseAPI defines the interface to the remote survey/response service.
// This is a port implemented by the infrastructure layer; idempotency of
// repeated calls is the remote side's concern.
type ResponseAPI interface {
	// GetSurvey fetches a survey with its ordered questions
	GetSurvey(ctx context.Context, surveyID int64) (survey.Survey, error)

	// StartSession registers a new session server-side and returns its
	// identity
	StartSession(ctx context.Context, surveyID int64) (int64, error)

	// SubmitAnswer persists one answer; at most once per question per
	// session
	SubmitAnswer(ctx context.Context, sessionID int64, answer AnswerSubmission) error

	// UploadMedia attaches a media artifact to the session
	UploadMedia(ctx context.Context, sessionID int64, upload MediaUpload) error

	// CompleteSession finalizes the session with its aggregate score
	CompleteSession(ctx context.Context, sessionID int64, aggregateScore *int) error
}
