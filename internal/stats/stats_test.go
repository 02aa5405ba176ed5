package stats

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	r := New(5, zerolog.Nop())

	done := r.RequestStarted()
	r.RecordSuccess(1024, 2*time.Second)
	done()

	done = r.RequestStarted()
	r.RecordNotFound()
	done()

	done = r.RequestStarted()
	r.RecordFailure()
	done()

	s := r.Snapshot()
	assert.Equal(t, int64(3), s.Attempts)
	assert.Equal(t, int64(1), s.Successes)
	assert.Equal(t, int64(1), s.NotFound)
	assert.Equal(t, int64(1), s.Failures)
	assert.Equal(t, int64(1024), s.BytesDownloaded)
	assert.Equal(t, int64(0), s.ActiveRequests)
	assert.Equal(t, 5, s.ConfiguredMax)
	assert.False(t, s.StartedAt.IsZero())
}

func TestGaugeTracksPeak(t *testing.T) {
	r := New(3, zerolog.Nop())

	d1 := r.RequestStarted()
	d2 := r.RequestStarted()
	d3 := r.RequestStarted()
	assert.Equal(t, int64(3), r.Snapshot().ActiveRequests)
	d2()
	d1()
	d3()

	assert.Equal(t, int64(0), r.Snapshot().ActiveRequests)
	assert.Equal(t, int64(3), r.PeakConcurrent())
}

func TestDoneIsIdempotent(t *testing.T) {
	r := New(1, zerolog.Nop())
	done := r.RequestStarted()
	done()
	done()
	assert.Equal(t, int64(0), r.Snapshot().ActiveRequests)
}

func TestReset(t *testing.T) {
	r := New(1, zerolog.Nop())
	id := r.ID

	done := r.RequestStarted()
	r.RecordSuccess(10, time.Second)
	done()

	r.Reset()
	s := r.Snapshot()
	assert.Zero(t, s.Attempts)
	assert.Zero(t, s.BytesDownloaded)
	assert.Zero(t, s.PeakConcurrent)
	assert.NotEqual(t, id, r.ID, "reset assigns a new run id")
}

func TestConcurrentUpdates(t *testing.T) {
	r := New(10, zerolog.Nop())

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			done := r.RequestStarted()
			r.RecordSuccess(1, time.Millisecond)
			done()
		}()
	}
	wg.Wait()

	s := r.Snapshot()
	assert.Equal(t, int64(100), s.Attempts)
	assert.Equal(t, int64(100), s.Successes)
	assert.Equal(t, int64(100), s.BytesDownloaded)
	assert.Equal(t, int64(0), s.ActiveRequests)
	assert.LessOrEqual(t, s.PeakConcurrent, int64(100))
	assert.GreaterOrEqual(t, s.PeakConcurrent, int64(1))
}
