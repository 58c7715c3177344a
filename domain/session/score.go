package session

import "math"

// AggregateScore computes the session-level visibility score: the rounded
// arithmetic mean of all recorded per-question scores, or nil when no
// question produced a score.
func AggregateScore(scores []int) *int {
	if len(scores) == 0 {
		return nil
	}

	sum := 0
	for _, s := range scores {
		sum += s
	}

	mean := float64(sum) / float64(len(scores))
	rounded := int(math.Round(mean))
	return &rounded
}
