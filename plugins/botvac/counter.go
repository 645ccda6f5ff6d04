package botvac

import "sync/atomic"

// RequestCounter issues command request ids. The device-command service expects
// ids to be unique across every robot driven by one process.
type RequestCounter interface {
	Next() uint64
}

// AtomicCounter is a monotonic counter safe for concurrent use. The first id is 1.
type AtomicCounter struct {
	last atomic.Uint64
}

func (c *AtomicCounter) Next() uint64 {
	return c.last.Add(1)
}

var processCounter = &AtomicCounter{}

// DefaultCounter returns the process-wide counter shared by clients that do not
// inject their own.
func DefaultCounter() RequestCounter {
	return processCounter
}
