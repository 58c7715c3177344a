package capture

import (
	"testing"

	"survey-capture/domain/scoring"
)

func TestResultCell(t *testing.T) {
	t.Run("empty until first publish", func(t *testing.T) {
		cell := &ResultCell{}

		if _, ok := cell.Latest(); ok {
			t.Error("expected no value before first publish")
		}
	})

	t.Run("each publish overwrites, readers see only the latest", func(t *testing.T) {
		cell := &ResultCell{}
		score1, score2 := 40, 90

		cell.Publish(scoring.Result{Detected: true, FaceCount: 1, Score: &score1})
		cell.Publish(scoring.Result{Detected: false, FaceCount: 0, Err: scoring.ErrCodeNoFace})
		cell.Publish(scoring.Result{Detected: true, FaceCount: 1, Score: &score2})

		got, ok := cell.Latest()
		if !ok {
			t.Fatal("expected a value")
		}
		if !got.Detected || *got.Score != 90 {
			t.Errorf("expected the last published result, got %+v", got)
		}
	})

	t.Run("reading does not consume", func(t *testing.T) {
		cell := &ResultCell{}
		cell.Publish(scoring.Result{Detected: false, Err: scoring.ErrCodeNoFace})

		cell.Latest()
		if _, ok := cell.Latest(); !ok {
			t.Error("expected the value to remain readable")
		}
	})
}
