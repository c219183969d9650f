package synth

import "sync/atomic"

// FrameCounter hands out frame indices.
// The index is only consumed once a frame has been exported successfully, so a failed
// export reuses the same index for the next attempt.
type FrameCounter struct {
	next atomic.Int64
}

func NewFrameCounter(first int) *FrameCounter {
	c := &FrameCounter{}
	c.next.Store(int64(first))
	return c
}

// Peek returns the index that the next exported frame will use
func (c *FrameCounter) Peek() int {
	return int(c.next.Load())
}

// Advance consumes the current index
func (c *FrameCounter) Advance() {
	c.next.Add(1)
}

// Reset makes 'next' the index of the next exported frame
func (c *FrameCounter) Reset(next int) {
	c.next.Store(int64(next))
}
