package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setSaneEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATA_DIR", t.TempDir())
	t.Setenv("ASSET_CLASS", "spot")
	t.Setenv("DATA_TYPE", "klines")
	t.Setenv("DATA_FREQUENCY", "1m")
}

func TestLoad_Defaults(t *testing.T) {
	setSaneEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "spot", cfg.Dataset.AssetClass)
	assert.Equal(t, "klines", cfg.Dataset.DataType)
	assert.Equal(t, "1m", cfg.Dataset.Frequency)
	assert.Empty(t, cfg.Tickers)
	assert.True(t, cfg.DateStart.IsZero())
	assert.True(t, cfg.DateEnd.IsZero())
	assert.False(t, cfg.UpdateExisting)
	assert.True(t, cfg.PruneDaily)
	assert.Equal(t, 0, cfg.MaxConcurrentDownloads)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.SyncSchedule)
}

func TestLoad_InvalidDatasetFailsFast(t *testing.T) {
	setSaneEnv(t)
	t.Setenv("DATA_TYPE", "bookDepth") // not available for spot

	_, err := Load()
	assert.ErrorContains(t, err, "invalid dataset configuration")
}

func TestLoad_TickersAndDates(t *testing.T) {
	setSaneEnv(t)
	t.Setenv("TICKERS", "BTCUSDT, ETHUSDT,,ADAUSDT")
	t.Setenv("TICKERS_EXCLUDE", "ADAUSDT")
	t.Setenv("DATE_START", "2023-01-01")
	t.Setenv("DATE_END", "2023-06-30")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT", "ADAUSDT"}, cfg.Tickers)
	assert.Equal(t, []string{"ADAUSDT"}, cfg.TickersExclude)
	assert.Equal(t, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), cfg.DateStart)
	assert.Equal(t, time.Date(2023, 6, 30, 0, 0, 0, 0, time.UTC), cfg.DateEnd)
}

func TestLoad_MalformedDate(t *testing.T) {
	setSaneEnv(t)
	t.Setenv("DATE_START", "01/02/2023")

	_, err := Load()
	assert.ErrorContains(t, err, "DATE_START")
}

func TestLoad_ReversedDateWindow(t *testing.T) {
	setSaneEnv(t)
	t.Setenv("DATE_START", "2023-06-30")
	t.Setenv("DATE_END", "2023-01-01")

	_, err := Load()
	assert.ErrorContains(t, err, "before DATE_START")
}

func TestValidate_NegativeConcurrency(t *testing.T) {
	setSaneEnv(t)
	t.Setenv("MAX_CONCURRENT_DOWNLOADS", "-1")

	_, err := Load()
	assert.ErrorContains(t, err, "MAX_CONCURRENT_DOWNLOADS")
}
