package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHumanizedDateTime(t *testing.T) {
	ts := time.Date(2024, time.March, 9, 14, 5, 7, 0, time.UTC)

	assert.Equal(t, "2024-3-9@14h05m07s", HumanizedDateTime(ts))
}

func TestFixedClock(t *testing.T) {
	ts := time.Date(2023, time.December, 31, 23, 59, 59, 0, time.UTC)

	assert.Equal(t, ts, NewFixedClock(ts).Now())
}
