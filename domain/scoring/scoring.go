package scoring

import "math"

// ErrorCode classifies why a frame produced no usable visibility score
type ErrorCode string

const (
	// ErrCodeNoFace indicates no face was found in the frame
	ErrCodeNoFace ErrorCode = "no_face"

	// ErrCodeMultipleFaces indicates more than one face was found
	ErrCodeMultipleFaces ErrorCode = "multiple_faces"

	// ErrCodeDetectorUnavailable indicates the detector itself failed
	ErrCodeDetectorUnavailable ErrorCode = "detector_unavailable"
)

// BoundingBox is a face bounding box normalized to frame dimensions (0.0-1.0)
type BoundingBox struct {
	XCenter float64
	YCenter float64
	Width   float64
	Height  float64
}

// RawFace is one face as reported by a detector. Confidence fields are
// optional because different detector backends expose them in different
// places, or not at all.
type RawFace struct {
	// Confidence is the detector's top-level confidence value, if any
	Confidence *float64

	// InnerConfidence is a confidence value nested inside the detection
	// payload, checked when the top-level one is absent
	InnerConfidence *float64

	// ConfidenceList is a confidence array; its first element is used
	// when no scalar confidence is present
	ConfidenceList []float64

	// Box is the normalized bounding box, if the detector reports one
	Box *BoundingBox
}

// RawDetection is the unprocessed output of one detector frame
type RawDetection struct {
	Faces []RawFace
}

// Result is the scored verdict for one frame. Score is nil exactly when
// Detected is false.
type Result struct {
	Detected  bool
	FaceCount int
	Score     *int
	Err       ErrorCode
}

const (
	// fullScoreArea is the bounding-box area fraction that maps to a
	// full area score (15% of the frame)
	fullScoreArea = 0.15

	// minDetectedScore is the floor applied to geometric scores; a
	// detected face never scores below it
	minDetectedScore = 20

	// defaultScore is used when a face is detected but the detector
	// provides neither a confidence value nor a bounding box
	defaultScore = 50
)

// Score turns one raw detector frame result into a bounded visibility
// verdict. It is pure and deterministic: identical input always yields an
// identical result.
func Score(raw RawDetection) Result {
	switch {
	case len(raw.Faces) == 0:
		return Result{Detected: false, FaceCount: 0, Score: nil, Err: ErrCodeNoFace}
	case len(raw.Faces) > 1:
		return Result{Detected: false, FaceCount: len(raw.Faces), Score: nil, Err: ErrCodeMultipleFaces}
	}

	face := raw.Faces[0]
	score := scoreFace(face)
	return Result{Detected: true, FaceCount: 1, Score: &score}
}

// Unavailable is the result published when the detector itself cannot
// produce a frame verdict
func Unavailable() Result {
	return Result{Detected: false, FaceCount: 0, Score: nil, Err: ErrCodeDetectorUnavailable}
}

func scoreFace(face RawFace) int {
	if conf, ok := confidence(face); ok {
		return int(math.Round(conf * 100))
	}

	if face.Box != nil {
		return geometricScore(*face.Box)
	}

	return defaultScore
}

// confidence resolves the detector confidence value, preferring the
// top-level value, then the nested one, then the first array element
func confidence(face RawFace) (float64, bool) {
	if face.Confidence != nil {
		return *face.Confidence, true
	}
	if face.InnerConfidence != nil {
		return *face.InnerConfidence, true
	}
	if len(face.ConfidenceList) > 0 {
		return face.ConfidenceList[0], true
	}
	return 0, false
}

// geometricScore estimates visibility from bounding-box geometry alone:
// 60% face area (normalized against the full-score reference) and 40%
// centering, clamped to [minDetectedScore, 100]
func geometricScore(box BoundingBox) int {
	area := box.Width * box.Height
	areaTerm := math.Min(1.0, area/fullScoreArea)

	centerDistance := math.Sqrt(
		math.Pow(box.XCenter-0.5, 2) + math.Pow(box.YCenter-0.5, 2),
	)
	centerTerm := math.Max(0, 1-centerDistance*2)

	visibility := areaTerm*0.6 + centerTerm*0.4
	score := int(math.Round(visibility * 100))

	if score < minDetectedScore {
		score = minDetectedScore
	}
	if score > 100 {
		score = 100
	}
	return score
}
