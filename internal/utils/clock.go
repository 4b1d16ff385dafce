package utils

import (
	"sync"
	"time"
)

// Clock abstracts the current time so services can be tested against a fixed instant.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}

type MockClock struct {
	mu       sync.Mutex
	FixedNow time.Time
}

func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.FixedNow
}

func (c *MockClock) SetNow(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.FixedNow = now
}
