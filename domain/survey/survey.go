package survey

import (
	"fmt"
	"sort"
)

// RequiredQuestionCount is the number of questions every capturable survey
// must have. A session is never started against any other count.
const RequiredQuestionCount = 5

// Question is one Yes/No question in a survey
type Question struct {
	ID    int64
	Text  string
	Order int // 1-based, unique and contiguous within a survey
}

// Survey is a fixed set of questions a respondent answers on camera.
// It is immutable for the duration of a session.
type Survey struct {
	ID        int64
	Title     string
	Published bool
	Questions []Question
}

// SortQuestions orders the questions by their 1-based order field
func (s *Survey) SortQuestions() {
	sort.Slice(s.Questions, func(i, j int) bool {
		return s.Questions[i].Order < s.Questions[j].Order
	})
}

// Validate checks that the survey can back a capture session: it must be
// published and carry exactly RequiredQuestionCount questions with unique
// contiguous orders 1..RequiredQuestionCount.
func (s Survey) Validate() error {
	if !s.Published {
		return fmt.Errorf("survey %d: %w", s.ID, ErrNotPublished)
	}
	if len(s.Questions) != RequiredQuestionCount {
		return fmt.Errorf("survey %d has %d questions: %w", s.ID, len(s.Questions), ErrQuestionCount)
	}

	seen := make(map[int]bool, len(s.Questions))
	for _, q := range s.Questions {
		if q.Order < 1 || q.Order > RequiredQuestionCount {
			return fmt.Errorf("question %d has order %d: %w", q.ID, q.Order, ErrQuestionOrder)
		}
		if seen[q.Order] {
			return fmt.Errorf("duplicate question order %d: %w", q.Order, ErrQuestionOrder)
		}
		seen[q.Order] = true
	}

	return nil
}
