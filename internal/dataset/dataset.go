// Package dataset defines the vocabulary of the Binance Vision archive
// layout: asset classes, data types, kline frequencies, and the mapping from
// a (symbol, date, granularity) bucket to its remote object key and local
// file path. The layout is bit-exact with the remote service; both the
// download URL and the local directory tree are derived from it.
package dataset

import (
	"fmt"
	"path"
	"path/filepath"
	"time"
)

// Granularity is the calendar period one archive file spans.
type Granularity int

const (
	// Monthly archives are keyed by year-month.
	Monthly Granularity = iota
	// Daily archives are keyed by year-month-day.
	Daily
)

// String returns the path segment used by the remote layout.
func (g Granularity) String() string {
	if g == Monthly {
		return "monthly"
	}
	return "daily"
}

// DateFormat returns the Go time layout for filenames of this granularity.
func (g Granularity) DateFormat() string {
	if g == Monthly {
		return "2006-01"
	}
	return "2006-01-02"
}

// Asset classes. Spot is the only non-derivative class; um (USD-margined)
// and cm (coin-margined) futures live under the futures/ key prefix.
const (
	Spot         = "spot"
	USDMargined  = "um"
	CoinMargined = "cm"
)

// dataTypesByAssetClass mirrors the remote directory tree exactly.
var dataTypesByAssetClass = map[string][]string{
	Spot: {"aggTrades", "klines", "trades"},
	CoinMargined: {
		"aggTrades", "fundingRate", "klines", "trades",
		"indexPriceKlines", "markPriceKlines", "premiumIndexKlines",
	},
	USDMargined: {
		"aggTrades", "bookDepth", "bookTicker", "fundingRate",
		"indexPriceKlines", "klines", "liquidationSnapshot",
		"markPriceKlines", "metrics", "premiumIndexKlines", "trades",
	},
}

// frequencyRequired lists the kline-family data types whose key layout
// carries an extra <frequency> path segment.
var frequencyRequired = map[string]bool{
	"klines":             true,
	"indexPriceKlines":   true,
	"markPriceKlines":    true,
	"premiumIndexKlines": true,
}

// validFrequencies is the remote service's kline interval enum.
var validFrequencies = map[string]bool{
	"1s": true, "1m": true, "3m": true, "5m": true, "15m": true,
	"30m": true, "1h": true, "2h": true, "4h": true, "6h": true,
	"8h": true, "12h": true, "1d": true, "3d": true, "1w": true, "1mo": true,
}

// Dataset identifies one remote data collection: an asset class, a data
// type, and (for kline-family types) a frequency. All key and path
// derivations hang off it.
type Dataset struct {
	AssetClass string
	DataType   string
	// Frequency is empty for data types that do not require one.
	Frequency string
}

// New validates the combination and returns a Dataset. Unknown asset
// classes, data types, or frequencies are configuration errors that must
// abort the caller immediately.
func New(assetClass, dataType, frequency string) (Dataset, error) {
	types, ok := dataTypesByAssetClass[assetClass]
	if !ok {
		return Dataset{}, fmt.Errorf("unknown asset class %q", assetClass)
	}

	found := false
	for _, t := range types {
		if t == dataType {
			found = true
			break
		}
	}
	if !found {
		return Dataset{}, fmt.Errorf("unknown data type %q for asset class %q", dataType, assetClass)
	}

	if frequencyRequired[dataType] {
		if !validFrequencies[frequency] {
			return Dataset{}, fmt.Errorf("unknown data frequency %q for data type %q", frequency, dataType)
		}
	} else {
		// fundingRate and friends are fixed-interval snapshots; the layout
		// carries no frequency segment for them.
		frequency = ""
	}

	return Dataset{AssetClass: assetClass, DataType: dataType, Frequency: frequency}, nil
}

// IsFutures reports whether the dataset lives under the futures/ prefix.
func (d Dataset) IsFutures() bool {
	return d.AssetClass == USDMargined || d.AssetClass == CoinMargined
}

// HasMonthlyArchives reports whether the remote publishes monthly files for
// this data type. The metrics type is daily-only.
func (d Dataset) HasMonthlyArchives() bool {
	return d.DataType != "metrics"
}

// DefaultConcurrency is the per-symbol download pool size policy: 1 for the
// high-volume trades type, 5 otherwise. Callers may override.
func (d Dataset) DefaultConcurrency() int {
	if d.DataType == "trades" {
		return 1
	}
	return 5
}

// KeySuffix returns the directory part of the remote key for one symbol and
// granularity, relative to the data/ root:
//
//	[futures/]<assetClass>/<granularity>/<dataType>/<symbol>[/<frequency>]
func (d Dataset) KeySuffix(symbol string, g Granularity) string {
	parts := make([]string, 0, 6)
	if d.IsFutures() {
		parts = append(parts, "futures")
	}
	parts = append(parts, d.AssetClass, g.String(), d.DataType, symbol)
	if d.Frequency != "" {
		parts = append(parts, d.Frequency)
	}
	return path.Join(parts...)
}

// Filename returns the archive file name as named on the remote:
// <symbol>-<freqOrType>-<date>.<ext>. The middle segment is the frequency
// for kline-family types and the data type otherwise.
func (d Dataset) Filename(symbol string, date time.Time, g Granularity, ext string) string {
	mid := d.Frequency
	if mid == "" {
		mid = d.DataType
	}
	return fmt.Sprintf("%s-%s-%s.%s", symbol, mid, date.Format(g.DateFormat()), ext)
}

// Bucket is one (symbol, date, granularity) unit of data, mapping 1:1 to a
// remote object and a local file.
type Bucket struct {
	Dataset     Dataset
	Symbol      string
	Date        time.Time
	Granularity Granularity
}

// RemoteKey returns the object key relative to the bucket's data/ root.
func (b Bucket) RemoteKey() string {
	return path.Join(
		b.Dataset.KeySuffix(b.Symbol, b.Granularity),
		b.Dataset.Filename(b.Symbol, b.Date, b.Granularity, "zip"),
	)
}

// LocalDir returns the directory the bucket's files live in under baseDir.
// It mirrors the remote key suffix so the directory tree doubles as the
// downloaded-inventory record.
func (b Bucket) LocalDir(baseDir string) string {
	return filepath.Join(baseDir, filepath.FromSlash(b.Dataset.KeySuffix(b.Symbol, b.Granularity)))
}

// ArchivePath returns the local path the compressed archive is written to.
func (b Bucket) ArchivePath(baseDir string) string {
	return filepath.Join(b.LocalDir(baseDir), b.Dataset.Filename(b.Symbol, b.Date, b.Granularity, "zip"))
}

// PayloadPath returns the local path of the decompressed tabular file whose
// presence marks the bucket as downloaded.
func (b Bucket) PayloadPath(baseDir string) string {
	return filepath.Join(b.LocalDir(baseDir), b.Dataset.Filename(b.Symbol, b.Date, b.Granularity, "csv"))
}
