package surveyapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"survey-capture/domain/capture"
	"survey-capture/domain/session"
	"survey-capture/domain/survey"
	"survey-capture/infrastructure/config"
)

// Upload size limits enforced client-side, matching the server's
const (
	MaxVideoBytes = 100 * 1024 * 1024
	MaxImageBytes = 10 * 1024 * 1024
)

// Client implements session.ResponseAPI against the survey service's REST
// interface
type Client struct {
	baseURL string
	http    *http.Client
}

// ClientOption is a functional option for configuring Client
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client (for testing)
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) {
		c.http = h
	}
}

// NewClient creates a client for the survey service at the configured
// base URL
func NewClient(cfg config.APIConfig, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

type questionPayload struct {
	ID    int64  `json:"id"`
	Text  string `json:"question_text"`
	Order int    `json:"order"`
}

type surveyPayload struct {
	ID        int64             `json:"id"`
	Title     string            `json:"title"`
	IsActive  bool              `json:"is_active"`
	Questions []questionPayload `json:"questions"`
}

type startPayload struct {
	SubmissionID int64 `json:"submission_id"`
	SurveyID     int64 `json:"survey_id"`
}

type answerPayload struct {
	QuestionID   int64  `json:"question_id"`
	Answer       string `json:"answer"`
	FaceDetected bool   `json:"face_detected"`
	FaceScore    *int   `json:"face_score"`
}

type completePayload struct {
	OverallScore *int `json:"overall_score"`
}

type errorPayload struct {
	Detail string `json:"detail"`
}

// GetSurvey implements session.ResponseAPI
func (c *Client) GetSurvey(ctx context.Context, surveyID int64) (survey.Survey, error) {
	var payload surveyPayload
	if err := c.getJSON(ctx, fmt.Sprintf("/api/surveys/%d", surveyID), &payload); err != nil {
		return survey.Survey{}, fmt.Errorf("fetching survey %d: %w", surveyID, err)
	}

	result := survey.Survey{
		ID:        payload.ID,
		Title:     payload.Title,
		Published: payload.IsActive,
	}
	for _, q := range payload.Questions {
		result.Questions = append(result.Questions, survey.Question{
			ID:    q.ID,
			Text:  q.Text,
			Order: q.Order,
		})
	}
	result.SortQuestions()
	return result, nil
}

// StartSession implements session.ResponseAPI
func (c *Client) StartSession(ctx context.Context, surveyID int64) (int64, error) {
	var payload startPayload
	err := c.postJSON(ctx, fmt.Sprintf("/api/surveys/%d/start", surveyID), nil, &payload)
	if err != nil {
		return 0, fmt.Errorf("starting submission for survey %d: %w", surveyID, err)
	}
	return payload.SubmissionID, nil
}

// SubmitAnswer implements session.ResponseAPI
func (c *Client) SubmitAnswer(ctx context.Context, sessionID int64, answer session.AnswerSubmission) error {
	verdict := "No"
	if answer.Verdict {
		verdict = "Yes"
	}
	body := answerPayload{
		QuestionID:   answer.QuestionID,
		Answer:       verdict,
		FaceDetected: answer.Detected,
		FaceScore:    answer.Score,
	}
	if err := c.postJSON(ctx, fmt.Sprintf("/api/submissions/%d/answers", sessionID), body, nil); err != nil {
		return fmt.Errorf("submitting answer for question %d: %w", answer.QuestionID, err)
	}
	return nil
}

// UploadMedia implements session.ResponseAPI. The artifact is sent as a
// multipart form with its kind and, for images, the question order.
func (c *Client) UploadMedia(ctx context.Context, sessionID int64, upload session.MediaUpload) error {
	if err := checkSize(upload.Artifact); err != nil {
		return err
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := createFilePart(writer, upload.FileName, upload.Artifact.MIME)
	if err != nil {
		return fmt.Errorf("encoding upload: %w", err)
	}
	if _, err := part.Write(upload.Artifact.Data); err != nil {
		return fmt.Errorf("encoding upload: %w", err)
	}
	if err := writer.WriteField("type", string(upload.Artifact.Kind)); err != nil {
		return fmt.Errorf("encoding upload: %w", err)
	}
	if upload.Artifact.Kind == capture.KindImage {
		if err := writer.WriteField("question_number", strconv.Itoa(upload.QuestionOrder)); err != nil {
			return fmt.Errorf("encoding upload: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("encoding upload: %w", err)
	}

	url := fmt.Sprintf("%s/api/submissions/%d/media", c.baseURL, sessionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return fmt.Errorf("building upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("uploading %s: %w", upload.Artifact.Kind, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return fmt.Errorf("uploading %s: %w", upload.Artifact.Kind, err)
	}
	return nil
}

// CompleteSession implements session.ResponseAPI
func (c *Client) CompleteSession(ctx context.Context, sessionID int64, aggregateScore *int) error {
	body := completePayload{OverallScore: aggregateScore}
	if err := c.postJSON(ctx, fmt.Sprintf("/api/submissions/%d/complete", sessionID), body, nil); err != nil {
		return fmt.Errorf("completing submission %d: %w", sessionID, err)
	}
	return nil
}

func checkSize(artifact capture.MediaArtifact) error {
	limit := MaxImageBytes
	if artifact.Kind == capture.KindVideo {
		limit = MaxVideoBytes
	}
	if len(artifact.Data) > limit {
		return fmt.Errorf("%s of %d bytes: %w", artifact.Kind, len(artifact.Data), capture.ErrArtifactTooLarge)
	}
	return nil
}

func createFilePart(writer *multipart.Writer, fileName, mimeType string) (io.Writer, error) {
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, fileName))
	header.Set("Content-Type", mimeType)
	return writer.CreatePart(header)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// checkStatus turns a non-2xx response into an error carrying the
// service's detail message
func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var payload errorPayload
	if json.Unmarshal(data, &payload) == nil && payload.Detail != "" {
		return fmt.Errorf("service returned %d: %s", resp.StatusCode, payload.Detail)
	}
	return fmt.Errorf("service returned %d", resp.StatusCode)
}

// Ensure Client implements session.ResponseAPI
var _ session.ResponseAPI = (*Client)(nil)
