package breaker

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestOpensAtThreshold(t *testing.T) {
	b := New(3, time.Minute, zerolog.Nop())

	b.RecordFailure("429")
	b.RecordFailure("429")
	assert.True(t, b.Allow(), "below threshold")

	b.RecordFailure("429")
	assert.False(t, b.Allow(), "threshold reached")
}

func TestSuccessResetsCounter(t *testing.T) {
	b := New(3, time.Minute, zerolog.Nop())

	b.RecordFailure("429")
	b.RecordFailure("429")
	b.RecordSuccess()
	b.RecordFailure("429")
	b.RecordFailure("429")
	assert.True(t, b.Allow(), "counter was reset by success")
}

func TestCooldownReopens(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	b := New(2, 300*time.Second, zerolog.Nop())
	b.SetClock(func() time.Time { return now })

	b.RecordFailure("503")
	b.RecordFailure("503")
	assert.False(t, b.Allow())

	now = now.Add(299 * time.Second)
	assert.False(t, b.Allow(), "cooldown not yet elapsed")

	now = now.Add(2 * time.Second)
	assert.True(t, b.Allow(), "cooldown elapsed, breaker closed")
	assert.True(t, b.Allow(), "stays closed")

	// Counter was reset on close; a single failure must not reopen.
	b.RecordFailure("503")
	assert.True(t, b.Allow())
}

func TestTripForcesOpen(t *testing.T) {
	b := New(5, time.Minute, zerolog.Nop())

	b.Trip("418")
	assert.False(t, b.Allow(), "ban signal opens immediately")
}

func TestSuccessDoesNotCloseOpenBreaker(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	b := New(1, time.Minute, zerolog.Nop())
	b.SetClock(func() time.Time { return now })

	b.RecordFailure("503")
	assert.False(t, b.Allow())

	b.RecordSuccess()
	assert.False(t, b.Allow(), "only the cooldown closes an open breaker")
}

func TestDefaults(t *testing.T) {
	b := New(0, 0, zerolog.Nop())
	assert.Equal(t, DefaultThreshold, b.threshold)
	assert.Equal(t, DefaultCooldown, b.cooldown)
}
