package survey

import "errors"

var (
	// ErrNotPublished is returned when a session is requested against an
	// unpublished survey
	ErrNotPublished = errors.New("survey is not published")

	// ErrQuestionCount is returned when a survey does not have exactly
	// the required number of questions
	ErrQuestionCount = errors.New("survey must have exactly 5 questions")

	// ErrQuestionOrder is returned when question orders are not unique
	// and contiguous
	ErrQuestionOrder = errors.New("question orders must be unique and contiguous")
)
