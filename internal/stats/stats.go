// Package stats accumulates per-run counters and timings for the fetch
// pipeline and renders the end-of-run benchmark summary. All counters are
// updated atomically: they are shared by every worker of a symbol's pool,
// and a race here would corrupt the reported numbers.
package stats

import (
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/process"
	"gonum.org/v1/gonum/stat"
)

// Run accumulates statistics for one synchronization run. Create with New,
// reset with Reset at the start of each top-level call.
type Run struct {
	ID      uuid.UUID
	started atomic.Int64 // unix nanos of first request, 0 until then

	attempts  atomic.Int64
	successes atomic.Int64
	notFound  atomic.Int64
	failures  atomic.Int64
	bytes     atomic.Int64

	active atomic.Int64
	peak   atomic.Int64

	configuredMax int

	mu        sync.Mutex
	durations []float64 // seconds per completed request

	log zerolog.Logger
}

// New creates a run-statistics accumulator. configuredMax is the configured
// download concurrency, reported alongside the observed peak.
func New(configuredMax int, log zerolog.Logger) *Run {
	return &Run{
		ID:            uuid.New(),
		configuredMax: configuredMax,
		log:           log.With().Str("component", "stats").Logger(),
	}
}

// Reset zeroes all counters and assigns a fresh run ID.
func (r *Run) Reset() {
	r.ID = uuid.New()
	r.started.Store(0)
	r.attempts.Store(0)
	r.successes.Store(0)
	r.notFound.Store(0)
	r.failures.Store(0)
	r.bytes.Store(0)
	r.active.Store(0)
	r.peak.Store(0)

	r.mu.Lock()
	r.durations = nil
	r.mu.Unlock()
}

// RequestStarted records one attempt entering the network path and raises
// the active-connection gauge. Returns a done func that must run on every
// exit path, including error paths.
func (r *Run) RequestStarted() (done func()) {
	r.started.CompareAndSwap(0, time.Now().UnixNano())
	r.attempts.Add(1)

	active := r.active.Add(1)
	for {
		peak := r.peak.Load()
		if active <= peak || r.peak.CompareAndSwap(peak, active) {
			break
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() { r.active.Add(-1) })
	}
}

// RecordSuccess records a completed download.
func (r *Run) RecordSuccess(bytes int64, duration time.Duration) {
	r.successes.Add(1)
	r.bytes.Add(bytes)

	r.mu.Lock()
	r.durations = append(r.durations, duration.Seconds())
	r.mu.Unlock()
}

// RecordNotFound records an expected-absence response. Not a failure.
func (r *Run) RecordNotFound() {
	r.notFound.Add(1)
}

// RecordFailure records a request that exhausted its retries.
func (r *Run) RecordFailure() {
	r.failures.Add(1)
}

// Snapshot is an immutable view of the counters, used by the report and the
// HTTP stats endpoint.
type Snapshot struct {
	RunID          string    `json:"run_id"`
	StartedAt      time.Time `json:"started_at,omitempty"`
	Attempts       int64     `json:"attempts"`
	Successes      int64     `json:"successes"`
	NotFound       int64     `json:"not_found"`
	Failures       int64     `json:"failures"`
	BytesDownloaded int64    `json:"bytes_downloaded"`
	ActiveRequests int64     `json:"active_requests"`
	PeakConcurrent int64     `json:"peak_concurrent"`
	ConfiguredMax  int       `json:"configured_max"`
}

// Snapshot returns the current counter values.
func (r *Run) Snapshot() Snapshot {
	s := Snapshot{
		RunID:           r.ID.String(),
		Attempts:        r.attempts.Load(),
		Successes:       r.successes.Load(),
		NotFound:        r.notFound.Load(),
		Failures:        r.failures.Load(),
		BytesDownloaded: r.bytes.Load(),
		ActiveRequests:  r.active.Load(),
		PeakConcurrent:  r.peak.Load(),
		ConfiguredMax:   r.configuredMax,
	}
	if ns := r.started.Load(); ns != 0 {
		s.StartedAt = time.Unix(0, ns).UTC()
	}
	return s
}

// PeakConcurrent returns the highest observed active-connection count.
func (r *Run) PeakConcurrent() int64 {
	return r.peak.Load()
}

// Report renders the benchmark summary for the run. Percentages are of
// total attempts; duration statistics come from per-request samples.
func (r *Run) Report() {
	s := r.Snapshot()
	if s.Attempts == 0 {
		r.log.Info().Str("run_id", s.RunID).Msg("No requests sent")
		return
	}

	total := float64(s.Attempts)
	elapsed := time.Duration(0)
	if !s.StartedAt.IsZero() {
		elapsed = time.Since(s.StartedAt)
	}

	event := r.log.Info().
		Str("run_id", s.RunID).
		Int64("requests", s.Attempts).
		Int64("successful", s.Successes).
		Int64("not_found", s.NotFound).
		Int64("failed", s.Failures).
		Float64("success_pct", float64(s.Successes)/total*100).
		Float64("failed_pct", float64(s.Failures)/total*100).
		Int64("peak_concurrent", s.PeakConcurrent).
		Int("configured_max", s.ConfiguredMax).
		Dur("elapsed", elapsed)

	if elapsed > 0 {
		event = event.Float64("requests_per_sec", total/elapsed.Seconds())
	}

	r.mu.Lock()
	samples := make([]float64, len(r.durations))
	copy(samples, r.durations)
	r.mu.Unlock()

	if len(samples) > 0 {
		sort.Float64s(samples)
		event = event.
			Float64("duration_mean_s", stat.Mean(samples, nil)).
			Float64("duration_min_s", samples[0]).
			Float64("duration_max_s", samples[len(samples)-1]).
			Float64("duration_p95_s", stat.Quantile(0.95, stat.Empirical, samples, nil))
	}

	if s.BytesDownloaded > 0 {
		mb := float64(s.BytesDownloaded) / (1024 * 1024)
		event = event.Float64("downloaded_mb", mb)
		if elapsed > 0 {
			event = event.Float64("throughput_mbit_s", mb*8/elapsed.Seconds())
		}
	}

	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if mem, err := proc.MemoryInfo(); err == nil && mem != nil {
			event = event.Uint64("rss_mb", mem.RSS/(1024*1024))
		}
		if cpu, err := proc.CPUPercent(); err == nil {
			event = event.Float64("cpu_pct", cpu)
		}
	}

	event.Msg("Request benchmark")
}
