package supervisor

import (
	"bytes"
	"sync"
)

// captureBuffer collects the child's combined output. It keeps the first
// limit bytes and the most recent limit bytes, dropping the middle, so the
// result marker on the last line survives a noisy child. It never returns a
// short write, so the copy goroutine keeps draining the pipe and the child
// cannot block on it.
type captureBuffer struct {
	mu      sync.Mutex
	head    bytes.Buffer
	tail    []byte
	limit   int
	dropped int
}

func newCaptureBuffer(limit int) *captureBuffer {
	return &captureBuffer{limit: limit}
}

func (c *captureBuffer) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(p)
	if remaining := c.limit - c.head.Len(); remaining > 0 {
		if len(p) <= remaining {
			return c.head.Write(p)
		}
		c.head.Write(p[:remaining])
		p = p[remaining:]
	}

	c.tail = append(c.tail, p...)
	if over := len(c.tail) - c.limit; over > 0 {
		c.dropped += over
		c.tail = append(c.tail[:0], c.tail[over:]...)
	}
	return n, nil
}

// snapshot returns a copy of what has been captured so far and whether any
// bytes were dropped.
func (c *captureBuffer) snapshot() ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]byte, 0, c.head.Len()+len(c.tail)+1)
	out = append(out, c.head.Bytes()...)
	if c.dropped > 0 {
		// Start the tail on its own line.
		out = append(out, '\n')
	}
	out = append(out, c.tail...)
	return out, c.dropped > 0
}
