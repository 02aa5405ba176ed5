// Package catalog queries the remote object-storage catalog: given a key
// prefix it lists the object keys beneath it, and on top of that it derives
// each symbol's availability floor, the earliest date for which the remote
// has any data. Requesting dates before the floor is a guaranteed miss, so
// the orchestrator clamps its start date to it.
package catalog

import (
	"context"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/halcyondata/visionsync/internal/dataset"
)

// Lister returns the full object keys under a key prefix. The production
// implementation is an S3 bucket listing; tests substitute fakes.
type Lister interface {
	ListKeys(ctx context.Context, prefix string) ([]string, error)
}

// Catalog derives availability information for one dataset from a Lister.
type Catalog struct {
	lister Lister
	ds     dataset.Dataset
	log    zerolog.Logger
	now    func() time.Time
}

// New creates a catalog for the given dataset.
func New(lister Lister, ds dataset.Dataset, log zerolog.Logger) *Catalog {
	return &Catalog{
		lister: lister,
		ds:     ds,
		log:    log.With().Str("component", "catalog").Logger(),
		now:    time.Now,
	}
}

// SetClock replaces the time source. Test hook.
func (c *Catalog) SetClock(now func() time.Time) { c.now = now }

// Floor returns the earliest date the remote exposes for the symbol: the
// earliest monthly key if any, otherwise the earliest daily key, otherwise
// today. "Today" is a sentinel meaning nothing is available; combined with
// the orchestrator's clamp of the end date to yesterday it yields an empty
// plan. Catalog errors are logged and degrade to the sentinel so an outage
// skips the symbol instead of crashing the run.
func (c *Catalog) Floor(ctx context.Context, symbol string) time.Time {
	today := c.today()

	if floor, ok := c.earliest(ctx, symbol, dataset.Monthly, today); ok {
		return floor
	}
	if floor, ok := c.earliest(ctx, symbol, dataset.Daily, today); ok {
		return floor
	}

	c.log.Debug().Str("symbol", symbol).Msg("No remote data found, floor defaults to today")
	return today
}

func (c *Catalog) earliest(ctx context.Context, symbol string, g dataset.Granularity, today time.Time) (time.Time, bool) {
	prefix := "data/" + c.ds.KeySuffix(symbol, g) + "/"

	keys, err := c.lister.ListKeys(ctx, prefix)
	if err != nil {
		c.log.Warn().
			Err(err).
			Str("symbol", symbol).
			Str("prefix", prefix).
			Msg("Catalog listing failed, floor defaults to today")
		return time.Time{}, false
	}

	min := today
	found := false
	for _, key := range keys {
		date, ok := parseKeyDate(key, g)
		if !ok {
			continue
		}
		if date.Before(min) {
			min = date
			found = true
		}
	}
	if !found {
		return time.Time{}, false
	}
	return min, true
}

// parseKeyDate extracts the trailing date from an object key. Monthly keys
// end in -YYYY-MM, daily keys in -YYYY-MM-DD, before the extension.
func parseKeyDate(key string, g dataset.Granularity) (time.Time, bool) {
	base := path.Base(key)
	if idx := strings.Index(base, "."); idx >= 0 {
		base = base[:idx]
	}

	parts := strings.Split(base, "-")
	n := 2
	if g == dataset.Daily {
		n = 3
	}
	if len(parts) < n {
		return time.Time{}, false
	}

	raw := strings.Join(parts[len(parts)-n:], "-")
	date, err := time.ParseInLocation(g.DateFormat(), raw, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return date, true
}

func (c *Catalog) today() time.Time {
	now := c.now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
