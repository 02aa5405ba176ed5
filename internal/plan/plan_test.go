package plan

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halcyondata/visionsync/internal/dataset"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestRange_Monthly(t *testing.T) {
	dates, err := Range(date(2023, 1, 1), date(2023, 3, 1), dataset.Monthly)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{
		date(2023, 1, 1),
		date(2023, 2, 1),
		date(2023, 3, 1),
	}, dates)
}

func TestRange_Daily(t *testing.T) {
	dates, err := Range(date(2023, 2, 27), date(2023, 3, 2), dataset.Daily)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{
		date(2023, 2, 27),
		date(2023, 2, 28),
		date(2023, 3, 1),
		date(2023, 3, 2),
	}, dates)
}

func TestRange_SingleDay(t *testing.T) {
	dates, err := Range(date(2023, 5, 10), date(2023, 5, 10), dataset.Daily)
	require.NoError(t, err)
	assert.Len(t, dates, 1)
	assert.Equal(t, date(2023, 5, 10), dates[0])
}

func TestRange_InvalidRange(t *testing.T) {
	_, err := Range(date(2023, 3, 1), date(2023, 1, 1), dataset.Monthly)
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestRange_TruncatesTimeOfDay(t *testing.T) {
	dates, err := Range(
		time.Date(2023, 1, 1, 13, 45, 0, 0, time.UTC),
		time.Date(2023, 1, 2, 1, 0, 0, 0, time.UTC),
		dataset.Daily,
	)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{date(2023, 1, 1), date(2023, 1, 2)}, dates)
}

func TestRange_Idempotent(t *testing.T) {
	a, err := Range(date(2021, 6, 1), date(2022, 6, 1), dataset.Monthly)
	require.NoError(t, err)
	b, err := Range(date(2021, 6, 1), date(2022, 6, 1), dataset.Monthly)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 13)
}
