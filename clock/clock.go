package clock

import (
	"fmt"
	"time"
)

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

func NewClock() Clock {
	return &realClock{}
}

type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	return c.now
}

// NewFixedClock always reports the given time. Used by tests.
func NewFixedClock(now time.Time) Clock {
	return &fixedClock{now: now}
}

// HumanizedDateTime formats a time the way generated image files are named, e.g. "2024-3-9@14h05m07s".
func HumanizedDateTime(t time.Time) string {
	return fmt.Sprintf("%d-%d-%d@%02dh%02dm%02ds",
		t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), t.Second())
}
