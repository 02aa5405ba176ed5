// Package breaker implements the fail-fast guard that protects the fetch
// pipeline from hammering a rate-limiting remote. After a run of
// consecutive failures the breaker opens and all fetch attempts are
// short-circuited until a cooldown has elapsed. The open state is
// re-evaluated lazily on each query; there is no background timer.
package breaker

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultThreshold is the number of consecutive failures that opens
	// the breaker.
	DefaultThreshold = 5
	// DefaultCooldown is how long the breaker stays open before downloads
	// resume.
	DefaultCooldown = 300 * time.Second
)

// Breaker tracks consecutive download failures. Safe for concurrent use by
// all workers of a symbol's pool.
type Breaker struct {
	mu        sync.Mutex
	failures  int
	threshold int
	cooldown  time.Duration
	open      bool
	openedAt  time.Time
	now       func() time.Time
	log       zerolog.Logger
}

// New creates a breaker with the given threshold and cooldown. Zero values
// select the defaults.
func New(threshold int, cooldown time.Duration, log zerolog.Logger) *Breaker {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &Breaker{
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
		log:       log.With().Str("component", "circuit-breaker").Logger(),
	}
}

// Allow reports whether a fetch attempt may proceed. When the breaker is
// open and the cooldown has elapsed it closes again and resets the failure
// counter.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.open {
		return true
	}

	elapsed := b.now().Sub(b.openedAt)
	if elapsed >= b.cooldown {
		b.log.Info().
			Dur("open_for", elapsed).
			Msg("Circuit breaker reset, resuming downloads")
		b.open = false
		b.failures = 0
		return true
	}
	return false
}

// RecordFailure counts one failure and opens the breaker when the
// consecutive-failure threshold is reached.
func (b *Breaker) RecordFailure(reason string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.openedAt = b.now()

	if b.failures >= b.threshold && !b.open {
		b.open = true
		b.log.Error().
			Int("failures", b.failures).
			Str("reason", reason).
			Dur("cooldown", b.cooldown).
			Msg("Circuit breaker opened, pausing downloads")
	}
}

// RecordSuccess resets the consecutive-failure counter. It does not close
// an open breaker; only the cooldown check in Allow does that.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
}

// Trip forces the breaker open immediately, regardless of the counter.
// Used for the remote's ban signal, where continuing would extend the ban.
func (b *Breaker) Trip(reason string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = b.threshold
	b.openedAt = b.now()
	if !b.open {
		b.open = true
		b.log.Error().
			Str("reason", reason).
			Dur("cooldown", b.cooldown).
			Msg("Circuit breaker tripped, all downloads stopped")
	}
}

// Open reports the current open/closed state without re-evaluating the
// cooldown. Status reporting only; fetch paths must use Allow.
func (b *Breaker) Open() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.open
}

// SetClock replaces the time source. Test hook.
func (b *Breaker) SetClock(now func() time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.now = now
}
