// Package symbols discovers which trading pairs to synchronize by querying
// the exchange-information endpoint of the matching API (spot, USD-margined
// or coin-margined futures). An explicit include list bypasses the remote
// call entirely.
package symbols

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/halcyondata/visionsync/internal/dataset"
)

const (
	spotEndpoint   = "https://api.binance.com/api/v3/exchangeInfo"
	spotUSEndpoint = "https://api.binance.us/api/v3/exchangeInfo"
	umEndpoint     = "https://fapi.binance.com/fapi/v1/exchangeInfo"
	cmEndpoint     = "https://dapi.binance.com/dapi/v1/exchangeInfo"

	// countryLookupURL returns the caller's ISO country code. The global
	// spot API refuses US clients, which must use the .us domain instead.
	countryLookupURL = "https://ipinfo.io/country"

	requestTimeout = 30 * time.Second

	// DefaultQuoteAsset filters the listing to the dominant quote currency.
	DefaultQuoteAsset = "USDT"
)

// Filter narrows the discovered symbol list.
type Filter struct {
	// Include, when non-empty, is used verbatim instead of the remote listing.
	Include []string
	// Exclude removes symbols from the result, whatever their origin.
	Exclude []string
	// QuoteAsset keeps only pairs quoted in this asset. Empty means USDT.
	QuoteAsset string
	// Max caps the result length. Zero means unlimited.
	Max int
}

// Client lists tradable symbols for one dataset's asset class.
type Client struct {
	ds        dataset.Dataset
	client    *http.Client
	endpoint  string
	lookupURL string
	log       zerolog.Logger
}

// NewClient creates a symbol listing client for the dataset's asset class.
// For spot datasets the endpoint is resolved lazily on first use, since it
// depends on a region lookup.
func NewClient(ds dataset.Dataset, log zerolog.Logger) *Client {
	c := &Client{
		ds:        ds,
		client:    &http.Client{Timeout: requestTimeout},
		lookupURL: countryLookupURL,
		log:       log.With().Str("component", "symbols").Logger(),
	}
	switch ds.AssetClass {
	case dataset.USDMargined:
		c.endpoint = umEndpoint
	case dataset.CoinMargined:
		c.endpoint = cmEndpoint
	}
	return c
}

// SetEndpoint overrides the exchange-info endpoint. Test hook.
func (c *Client) SetEndpoint(url string) { c.endpoint = url }

// SetLookupURL overrides the country lookup endpoint. Test hook.
func (c *Client) SetLookupURL(url string) { c.lookupURL = url }

type exchangeInfo struct {
	Symbols []struct {
		Symbol     string `json:"symbol"`
		Status     string `json:"status"`
		QuoteAsset string `json:"quoteAsset"`
	} `json:"symbols"`
}

// List returns the symbols to synchronize, sorted and filtered. With a
// non-empty include list no network call is made.
func (c *Client) List(ctx context.Context, f Filter) ([]string, error) {
	excluded := make(map[string]bool, len(f.Exclude))
	for _, s := range f.Exclude {
		excluded[strings.ToUpper(s)] = true
	}

	if len(f.Include) > 0 {
		symbols := make([]string, 0, len(f.Include))
		for _, s := range f.Include {
			s = strings.ToUpper(s)
			if !excluded[s] {
				symbols = append(symbols, s)
			}
		}
		return truncate(symbols, f.Max), nil
	}

	quote := f.QuoteAsset
	if quote == "" {
		quote = DefaultQuoteAsset
	}

	info, err := c.fetchExchangeInfo(ctx)
	if err != nil {
		return nil, err
	}

	var symbols []string
	for _, s := range info.Symbols {
		if s.Status != "TRADING" || s.QuoteAsset != quote {
			continue
		}
		if excluded[s.Symbol] {
			continue
		}
		symbols = append(symbols, s.Symbol)
	}
	sort.Strings(symbols)

	c.log.Info().
		Int("count", len(symbols)).
		Str("quote_asset", quote).
		Msg("Discovered trading symbols")
	return truncate(symbols, f.Max), nil
}

func truncate(symbols []string, max int) []string {
	if max > 0 && len(symbols) > max {
		return symbols[:max]
	}
	return symbols
}

func (c *Client) fetchExchangeInfo(ctx context.Context) (*exchangeInfo, error) {
	endpoint := c.endpoint
	if endpoint == "" {
		endpoint = c.resolveSpotEndpoint(ctx)
		c.endpoint = endpoint
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("exchange info request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("exchange info returned status %d", resp.StatusCode)
	}

	var info exchangeInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("failed to decode exchange info: %w", err)
	}
	return &info, nil
}

// resolveSpotEndpoint picks the global or US spot API based on the caller's
// country. Lookup failures fall back to the global endpoint.
func (c *Client) resolveSpotEndpoint(ctx context.Context) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.lookupURL, nil)
	if err != nil {
		return spotEndpoint
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.log.Warn().Err(err).Msg("Country lookup failed, assuming non-US region")
		return spotEndpoint
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16))
	if err != nil {
		return spotEndpoint
	}

	if strings.TrimSpace(string(body)) == "US" {
		c.log.Info().Msg("US region detected, using binance.us spot API")
		return spotUSEndpoint
	}
	return spotEndpoint
}
