// Package inventory answers "which buckets are already on disk" by
// inspecting the local directory tree. The tree itself is the durable
// record of what has been downloaded; there is no separate manifest. All
// queries are read-only probes recomputed at the start of each pass.
package inventory

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/halcyondata/visionsync/internal/dataset"
)

// Probe is the read side of the local inventory plus the single mutation
// the pruning pass needs. The orchestrator goes through this interface so
// the directory-tree store could be swapped for an indexed one without
// touching sync logic.
type Probe interface {
	// Dates returns the dates for which a decompressed payload file exists.
	Dates(symbol string, g dataset.Granularity) []time.Time
	// Symbols returns the symbols that have any data at the given granularity.
	Symbols(g dataset.Granularity) []string
	// Remove deletes the payload file for one bucket.
	Remove(symbol string, g dataset.Granularity, date time.Time) error
}

// DirProbe is the directory-tree Probe implementation.
type DirProbe struct {
	baseDir string
	ds      dataset.Dataset
	log     zerolog.Logger
}

// NewDirProbe creates a probe rooted at baseDir for one dataset.
func NewDirProbe(baseDir string, ds dataset.Dataset, log zerolog.Logger) *DirProbe {
	return &DirProbe{
		baseDir: baseDir,
		ds:      ds,
		log:     log.With().Str("component", "inventory").Logger(),
	}
}

// Dates lists the symbol's directory and parses each payload filename back
// into its date. Malformed or foreign filenames are skipped silently; a
// missing directory means an empty inventory, not an error.
func (p *DirProbe) Dates(symbol string, g dataset.Granularity) []time.Time {
	dir := filepath.Join(p.baseDir, filepath.FromSlash(p.ds.KeySuffix(symbol, g)))
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	mid := p.ds.Frequency
	if mid == "" {
		mid = p.ds.DataType
	}
	prefix := symbol + "-" + mid + "-"

	var dates []time.Time
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".csv") {
			continue
		}
		raw := strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".csv")
		date, err := time.ParseInLocation(g.DateFormat(), raw, time.UTC)
		if err != nil {
			continue
		}
		dates = append(dates, date)
	}
	return dates
}

// Symbols returns the symbol directories under the data-type root for the
// given granularity.
func (p *DirProbe) Symbols(g dataset.Granularity) []string {
	parts := []string{p.baseDir}
	if p.ds.IsFutures() {
		parts = append(parts, "futures")
	}
	parts = append(parts, p.ds.AssetClass, g.String(), p.ds.DataType)
	root := filepath.Join(parts...)

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil
	}

	var symbols []string
	for _, entry := range entries {
		if entry.IsDir() {
			symbols = append(symbols, entry.Name())
		}
	}
	return symbols
}

// Remove deletes the payload file for one bucket.
func (p *DirProbe) Remove(symbol string, g dataset.Granularity, date time.Time) error {
	b := dataset.Bucket{Dataset: p.ds, Symbol: symbol, Date: date, Granularity: g}
	path := b.PayloadPath(p.baseDir)
	if err := os.Remove(path); err != nil {
		return err
	}
	p.log.Debug().Str("path", path).Msg("Removed payload file")
	return nil
}
