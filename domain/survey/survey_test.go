package survey

import (
	"errors"
	"testing"
)

func validSurvey() Survey {
	return Survey{
		ID:        1,
		Title:     "Wellbeing check",
		Published: true,
		Questions: []Question{
			{ID: 10, Text: "Do you feel rested?", Order: 1},
			{ID: 11, Text: "Did you eat breakfast?", Order: 2},
			{ID: 12, Text: "Have you exercised today?", Order: 3},
			{ID: 13, Text: "Are you indoors?", Order: 4},
			{ID: 14, Text: "Is it daytime where you are?", Order: 5},
		},
	}
}

func TestValidate(t *testing.T) {
	t.Run("accepts a published five-question survey", func(t *testing.T) {
		if err := validSurvey().Validate(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("rejects unpublished survey", func(t *testing.T) {
		s := validSurvey()
		s.Published = false

		if err := s.Validate(); !errors.Is(err, ErrNotPublished) {
			t.Errorf("expected ErrNotPublished, got %v", err)
		}
	})

	t.Run("rejects four questions", func(t *testing.T) {
		s := validSurvey()
		s.Questions = s.Questions[:4]

		if err := s.Validate(); !errors.Is(err, ErrQuestionCount) {
			t.Errorf("expected ErrQuestionCount, got %v", err)
		}
	})

	t.Run("rejects six questions", func(t *testing.T) {
		s := validSurvey()
		s.Questions = append(s.Questions, Question{ID: 15, Text: "Extra?", Order: 6})

		if err := s.Validate(); !errors.Is(err, ErrQuestionCount) {
			t.Errorf("expected ErrQuestionCount, got %v", err)
		}
	})

	t.Run("rejects duplicate orders", func(t *testing.T) {
		s := validSurvey()
		s.Questions[4].Order = 4

		if err := s.Validate(); !errors.Is(err, ErrQuestionOrder) {
			t.Errorf("expected ErrQuestionOrder, got %v", err)
		}
	})

	t.Run("rejects out-of-range order", func(t *testing.T) {
		s := validSurvey()
		s.Questions[0].Order = 0

		if err := s.Validate(); !errors.Is(err, ErrQuestionOrder) {
			t.Errorf("expected ErrQuestionOrder, got %v", err)
		}
	})
}

func TestSortQuestions(t *testing.T) {
	s := validSurvey()
	s.Questions[0], s.Questions[3] = s.Questions[3], s.Questions[0]

	s.SortQuestions()

	for i, q := range s.Questions {
		if q.Order != i+1 {
			t.Errorf("position %d: expected order %d, got %d", i, i+1, q.Order)
		}
	}
}
