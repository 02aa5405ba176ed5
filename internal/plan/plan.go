// Package plan produces the ordered sequence of calendar buckets spanning a
// date interval. It is pure date arithmetic: no I/O, deterministic, and safe
// to call repeatedly with the same inputs.
package plan

import (
	"errors"
	"time"

	"github.com/halcyondata/visionsync/internal/dataset"
)

// ErrInvalidRange is returned when the start date is after the end date.
// It signals caller misuse and is never retried.
var ErrInvalidRange = errors.New("plan: start date after end date")

// Range returns the increasing sequence of bucket anchor dates from start to
// end inclusive. Monthly granularity steps one calendar month from the given
// start date; daily steps one calendar day.
func Range(start, end time.Time, g dataset.Granularity) ([]time.Time, error) {
	start = truncate(start)
	end = truncate(end)
	if start.After(end) {
		return nil, ErrInvalidRange
	}

	var dates []time.Time
	for d := start; !d.After(end); {
		dates = append(dates, d)
		if g == dataset.Monthly {
			d = d.AddDate(0, 1, 0)
		} else {
			d = d.AddDate(0, 0, 1)
		}
	}
	return dates, nil
}

func truncate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
