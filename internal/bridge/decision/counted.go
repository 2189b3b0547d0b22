package decision

import (
	"context"
	"sync"
)

// CountedReject rejects the first Limit decisions it is asked for and
// accepts every one after that. One instance is one action class; the
// composition root owns it for the process lifetime.
type CountedReject struct {
	mu    sync.Mutex
	limit int
	calls int
}

// NewCountedReject builds a provider rejecting the first limit calls
func NewCountedReject(limit int) *CountedReject {
	if limit < 0 {
		limit = 0
	}
	return &CountedReject{limit: limit}
}

func (c *CountedReject) Decide(context.Context, Request) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return c.calls > c.limit
}

// Calls returns how many decisions were made so far
func (c *CountedReject) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// Reset starts counting from zero again
func (c *CountedReject) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = 0
}
