package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMonth(t *testing.T) {
	ts := time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, "2024-03", Month(ts))
}

func TestMonthBounds(t *testing.T) {
	ts := time.Date(2024, time.January, 20, 23, 59, 0, 0, time.UTC)
	start, end := MonthBounds(ts)
	assert.Equal(t, time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC), end)
}

func TestIsMonthEnd(t *testing.T) {
	assert.True(t, IsMonthEnd(time.Date(2024, time.February, 29, 12, 0, 0, 0, time.UTC)))
	assert.False(t, IsMonthEnd(time.Date(2024, time.February, 28, 12, 0, 0, 0, time.UTC)))
}

func TestVirtualClock(t *testing.T) {
	c := NewVirtualClock()
	pin := time.Date(2024, time.June, 3, 0, 0, 0, 0, time.UTC)
	c.Set(pin)
	assert.Equal(t, pin, c.Now())

	c.Advance(48 * time.Hour)
	assert.Equal(t, pin.Add(48*time.Hour), c.Now())

	c.Reset()
	assert.WithinDuration(t, time.Now().UTC(), c.Now(), time.Minute)
}

func TestFakeClock(t *testing.T) {
	pin := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
	c := NewFakeClock(pin)
	c.Advance(time.Hour)
	assert.Equal(t, pin.Add(time.Hour), c.Now())
	c.SetTime(pin.AddDate(0, 1, 0))
	assert.Equal(t, "2024-07", Month(c.Now()))
}
