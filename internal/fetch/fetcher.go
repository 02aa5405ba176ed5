// Package fetch downloads one archive bucket at a time: breaker gate,
// bounded retry loop with per-class exponential backoff, header spoofing,
// extraction, and telemetry. All policy decisions go through Classify; the
// retry loop itself is generic.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/halcyondata/visionsync/internal/archive"
	"github.com/halcyondata/visionsync/internal/breaker"
	"github.com/halcyondata/visionsync/internal/dataset"
	"github.com/halcyondata/visionsync/internal/stats"
)

const (
	// DefaultBaseURL is the public download endpoint for the archive bucket.
	DefaultBaseURL = "https://data.binance.vision/data"

	// DefaultMaxAttempts bounds the per-bucket retry loop.
	DefaultMaxAttempts = 3

	// requestTimeout caps one whole request, connect through body read.
	requestTimeout = 60 * time.Second

	// userAgent is a browser User-Agent. The CDN's WAF blocks the default
	// Go client string.
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
)

// Status is the terminal disposition of one bucket fetch.
type Status int

const (
	// Saved means the payload was downloaded and extracted.
	Saved Status = iota
	// NotFound means the remote has no such object.
	NotFound
	// Skipped means no network attempt was made (breaker open).
	Skipped
	// Failed means all attempts were exhausted or a fatal error occurred.
	Failed
)

// String returns a short label for logs.
func (s Status) String() string {
	switch s {
	case Saved:
		return "saved"
	case NotFound:
		return "not-found"
	case Skipped:
		return "skipped"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is the result of one bucket fetch, consumed by the orchestrator
// and the statistics aggregator.
type Outcome struct {
	Bucket dataset.Bucket
	Status Status
	// Reason carries the failure class or skip reason for non-Saved outcomes.
	Reason string
}

// Fetcher downloads archive buckets over HTTP.
type Fetcher struct {
	baseURL     string
	baseDir     string
	client      *http.Client
	breaker     *breaker.Breaker
	stats       *stats.Run
	maxAttempts int
	sleep       func(time.Duration)
	log         zerolog.Logger
}

// New creates a fetcher writing under baseDir.
func New(baseDir string, brk *breaker.Breaker, run *stats.Run, log zerolog.Logger) *Fetcher {
	return &Fetcher{
		baseURL:     DefaultBaseURL,
		baseDir:     baseDir,
		client:      &http.Client{Timeout: requestTimeout},
		breaker:     brk,
		stats:       run,
		maxAttempts: DefaultMaxAttempts,
		sleep:       time.Sleep,
		log:         log.With().Str("component", "fetcher").Logger(),
	}
}

// SetBaseURL overrides the download endpoint. Test hook.
func (f *Fetcher) SetBaseURL(url string) { f.baseURL = url }

// SetSleep replaces the backoff sleep function. Test hook.
func (f *Fetcher) SetSleep(sleep func(time.Duration)) { f.sleep = sleep }

// Fetch downloads one bucket's archive, extracts the payload next to it and
// deletes the archive. The breaker is consulted before any network work;
// while it is open no request leaves the process.
func (f *Fetcher) Fetch(ctx context.Context, b dataset.Bucket) Outcome {
	if !f.breaker.Allow() {
		f.log.Warn().Str("key", b.RemoteKey()).Msg("Circuit breaker open, skipping download")
		return Outcome{Bucket: b, Status: Skipped, Reason: "circuit-open"}
	}

	if err := os.MkdirAll(b.LocalDir(f.baseDir), 0755); err != nil {
		f.log.Error().Err(err).Str("dir", b.LocalDir(f.baseDir)).Msg("Failed to create local directory")
		return Outcome{Bucket: b, Status: Failed, Reason: "local-io"}
	}

	url := f.baseURL + "/" + b.RemoteKey()
	start := time.Now()

	for attempt := 0; attempt < f.maxAttempts; attempt++ {
		done := f.stats.RequestStarted()
		status, bytes, err := f.download(ctx, url, b.ArchivePath(f.baseDir))
		done()

		class := Classify(status, err)
		switch class {
		case ClassOK:
			return f.finish(b, bytes, time.Since(start))

		case ClassNotFound:
			f.stats.RecordNotFound()
			f.log.Debug().Str("url", url).Msg("File not found (404)")
			return Outcome{Bucket: b, Status: NotFound, Reason: class.String()}

		case ClassBanned:
			f.breaker.Trip("418")
			f.stats.RecordFailure()
			f.log.Error().Str("url", url).
				Msg("HTTP 418: IP banned by remote, all downloads stopped")
			return Outcome{Bucket: b, Status: Failed, Reason: class.String()}

		case ClassRateLimited:
			f.breaker.RecordFailure(class.String())
			if attempt < f.maxAttempts-1 {
				wait := time.Duration(5*(1<<attempt)) * time.Second
				f.log.Warn().
					Int("status", status).
					Err(err).
					Str("key", b.RemoteKey()).
					Dur("wait", wait).
					Int("attempt", attempt+1).
					Int("max_attempts", f.maxAttempts).
					Msg("Rate limited, backing off")
				f.sleep(wait)
				continue
			}

		case ClassTransport:
			f.breaker.RecordFailure(class.String())
			if attempt < f.maxAttempts-1 {
				wait := time.Duration(1<<attempt) * time.Second
				f.log.Warn().
					Int("status", status).
					Err(err).
					Str("key", b.RemoteKey()).
					Dur("wait", wait).
					Msg("Transport error, backing off")
				f.sleep(wait)
				continue
			}
		}

		f.stats.RecordFailure()
		f.log.Error().Int("status", status).Err(err).Str("url", url).Msg("Max retries reached")
		return Outcome{Bucket: b, Status: Failed, Reason: class.String()}
	}

	f.stats.RecordFailure()
	return Outcome{Bucket: b, Status: Failed, Reason: "exhausted"}
}

// download performs one HTTP attempt, streaming the body to archivePath on
// 200. It returns the HTTP status (0 on transport error) and bytes written.
func (f *Fetcher) download(ctx context.Context, url, archivePath string) (int, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return resp.StatusCode, 0, nil
	}

	out, err := os.Create(archivePath)
	if err != nil {
		return resp.StatusCode, 0, fmt.Errorf("failed to create %s: %w", archivePath, err)
	}

	bytes, err := io.Copy(out, resp.Body)
	closeErr := out.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		// A truncated archive must not survive the attempt.
		_ = os.Remove(archivePath)
		return resp.StatusCode, bytes, fmt.Errorf("failed to write body: %w", err)
	}
	return resp.StatusCode, bytes, nil
}

// finish extracts the downloaded archive, removes it, and records success.
// Extraction or deletion failure marks the bucket Failed; the archive tree
// must never hold a payload the archive step did not complete.
func (f *Fetcher) finish(b dataset.Bucket, bytes int64, duration time.Duration) Outcome {
	archivePath := b.ArchivePath(f.baseDir)

	if err := archive.Unzip(archivePath, b.LocalDir(f.baseDir)); err != nil {
		f.log.Warn().Err(err).Str("archive", archivePath).Msg("Unable to extract archive")
		f.stats.RecordFailure()
		_ = os.Remove(archivePath)
		return Outcome{Bucket: b, Status: Failed, Reason: "local-io"}
	}

	if err := os.Remove(archivePath); err != nil {
		f.log.Warn().Err(err).Str("archive", archivePath).Msg("Unable to delete archive")
		f.stats.RecordFailure()
		return Outcome{Bucket: b, Status: Failed, Reason: "local-io"}
	}

	f.breaker.RecordSuccess()
	f.stats.RecordSuccess(bytes, duration)
	f.log.Debug().
		Str("key", b.RemoteKey()).
		Int64("bytes", bytes).
		Dur("duration", duration).
		Msg("Saved bucket")
	return Outcome{Bucket: b, Status: Saved}
}
