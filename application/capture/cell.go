package capture

import (
	"sync"

	"survey-capture/domain/scoring"
)

// ResultCell is a single-slot mailbox for detection results. Each publish
// overwrites the previous value; readers only ever observe the most recent
// result at the moment they read. There is no queue and no history.
type ResultCell struct {
	mu  sync.Mutex
	set bool
	val scoring.Result
}

// Publish replaces the current value, whether or not it was ever read
func (c *ResultCell) Publish(result scoring.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.val = result
	c.set = true
}

// Latest returns the most recently published result. The second return
// value is false until the first publish.
func (c *ResultCell) Latest() (scoring.Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.val, c.set
}
