package catalog

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halcyondata/visionsync/internal/dataset"
)

type fakeLister struct {
	keysByPrefix map[string][]string
	err          error
	calls        []string
}

func (f *fakeLister) ListKeys(_ context.Context, prefix string) ([]string, error) {
	f.calls = append(f.calls, prefix)
	if f.err != nil {
		return nil, f.err
	}
	for p, keys := range f.keysByPrefix {
		if strings.HasPrefix(prefix, p) || p == prefix {
			return keys, nil
		}
	}
	return nil, nil
}

func newCatalog(t *testing.T, lister Lister) *Catalog {
	t.Helper()
	ds, err := dataset.New("spot", "klines", "1m")
	require.NoError(t, err)
	c := New(lister, ds, zerolog.Nop())
	c.SetClock(func() time.Time {
		return time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC)
	})
	return c
}

func TestFloor_Monthly(t *testing.T) {
	lister := &fakeLister{keysByPrefix: map[string][]string{
		"data/spot/monthly/klines/BTCUSDT/1m/": {
			"data/spot/monthly/klines/BTCUSDT/1m/BTCUSDT-1m-2017-08.zip",
			"data/spot/monthly/klines/BTCUSDT/1m/BTCUSDT-1m-2017-08.zip.CHECKSUM",
			"data/spot/monthly/klines/BTCUSDT/1m/BTCUSDT-1m-2017-09.zip",
		},
	}}

	floor := newCatalog(t, lister).Floor(context.Background(), "BTCUSDT")
	assert.Equal(t, time.Date(2017, 8, 1, 0, 0, 0, 0, time.UTC), floor)
	assert.Len(t, lister.calls, 1, "daily prefix not queried when monthly data exists")
}

func TestFloor_FallsBackToDaily(t *testing.T) {
	lister := &fakeLister{keysByPrefix: map[string][]string{
		"data/spot/daily/klines/NEWUSDT/1m/": {
			"data/spot/daily/klines/NEWUSDT/1m/NEWUSDT-1m-2024-06-01.zip",
			"data/spot/daily/klines/NEWUSDT/1m/NEWUSDT-1m-2024-06-02.zip",
		},
	}}

	floor := newCatalog(t, lister).Floor(context.Background(), "NEWUSDT")
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), floor)
	assert.Len(t, lister.calls, 2)
}

func TestFloor_NothingAvailableReturnsToday(t *testing.T) {
	floor := newCatalog(t, &fakeLister{}).Floor(context.Background(), "NOPEUSDT")
	assert.Equal(t, time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC), floor)
}

func TestFloor_ErrorDegradesToToday(t *testing.T) {
	lister := &fakeLister{err: errors.New("catalog unreachable")}
	floor := newCatalog(t, lister).Floor(context.Background(), "BTCUSDT")
	assert.Equal(t, time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC), floor)
}

func TestParseKeyDate(t *testing.T) {
	date, ok := parseKeyDate("data/spot/monthly/klines/BTCUSDT/1m/BTCUSDT-1m-2020-03.zip", dataset.Monthly)
	require.True(t, ok)
	assert.Equal(t, time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC), date)

	date, ok = parseKeyDate("data/spot/daily/klines/BTCUSDT/1m/BTCUSDT-1m-2020-03-15.zip", dataset.Daily)
	require.True(t, ok)
	assert.Equal(t, time.Date(2020, 3, 15, 0, 0, 0, 0, time.UTC), date)

	_, ok = parseKeyDate("data/spot/monthly/klines/BTCUSDT/1m/", dataset.Monthly)
	assert.False(t, ok)

	_, ok = parseKeyDate("data/spot/monthly/klines/BTCUSDT/1m/README", dataset.Monthly)
	assert.False(t, ok)
}
