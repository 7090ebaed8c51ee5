package provider

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rustyeddy/tradegate/market"
)

const TwelveDataURL = "https://api.twelvedata.com"

// TwelveDataOptions configures the Twelve Data source used for forex and
// stocks.
type TwelveDataOptions struct {
	BaseURL  string        `json:"base_url" yaml:"base_url" default:"https://api.twelvedata.com"`
	APIKey   string        `json:"-" yaml:"-"`
	Interval string        `json:"interval" yaml:"interval" default:"1h"`
	Client   ClientOptions `json:"client" yaml:"client"`
}

type TwelveData struct {
	baseURL  string
	apiKey   string
	interval string
	c        *client
}

func NewTwelveData(opts TwelveDataOptions) *TwelveData {
	if opts.BaseURL == "" {
		opts.BaseURL = TwelveDataURL
	}
	if opts.Interval == "" {
		opts.Interval = "1h"
	}
	// free plan allows 8 requests per minute
	if opts.Client.RequestsPerSec == 0 {
		opts.Client.RequestsPerSec = 8.0 / 60.0
		opts.Client.Burst = 2
	}
	return &TwelveData{
		baseURL:  opts.BaseURL,
		apiKey:   opts.APIKey,
		interval: opts.Interval,
		c:        newClient("twelvedata", opts.Client),
	}
}

// twelveSymbol maps catalog symbols to Twelve Data's: EURUSD -> EUR/USD.
func twelveSymbol(asset market.Asset) string {
	if asset.Type == market.Forex && len(asset.Symbol) == 6 {
		return asset.Symbol[:3] + "/" + asset.Symbol[3:]
	}
	return asset.Symbol
}

type twelveValue struct {
	Datetime string `json:"datetime"`
	Close    string `json:"close"`
	Volume   string `json:"volume"`
}

type twelveSeries struct {
	Status  string        `json:"status"`
	Message string        `json:"message"`
	Values  []twelveValue `json:"values"`
}

type twelvePrice struct {
	Price   string `json:"price"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (td *TwelveData) query(asset market.Asset) url.Values {
	q := url.Values{}
	q.Set("symbol", twelveSymbol(asset))
	q.Set("apikey", td.apiKey)
	return q
}

// History returns the time series oldest first. The API answers newest
// first.
func (td *TwelveData) History(ctx context.Context, asset market.Asset, limit int) ([]market.PriceSample, error) {
	q := td.query(asset)
	q.Set("interval", td.interval)
	q.Set("outputsize", strconv.Itoa(limit))

	var ts twelveSeries
	if err := td.c.getJSON(ctx, td.baseURL+"/time_series?"+q.Encode(), &ts); err != nil {
		return nil, fmt.Errorf("twelvedata time_series %s: %w", asset.Symbol, err)
	}
	if ts.Status == "error" {
		return nil, fmt.Errorf("twelvedata time_series %s: %s", asset.Symbol, ts.Message)
	}

	out := make([]market.PriceSample, len(ts.Values))
	for i, v := range ts.Values {
		t, err := parseTwelveTime(v.Datetime)
		if err != nil {
			return nil, fmt.Errorf("twelvedata %s: %w", asset.Symbol, err)
		}
		px, err := strconv.ParseFloat(v.Close, 64)
		if err != nil {
			return nil, fmt.Errorf("twelvedata %s: close %q: %w", asset.Symbol, v.Close, err)
		}
		var vol float64
		if v.Volume != "" {
			vol, _ = strconv.ParseFloat(v.Volume, 64)
		}
		out[len(out)-1-i] = market.PriceSample{Time: t, Price: px, Volume: vol}
	}
	return out, nil
}

func parseTwelveTime(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, strings.TrimSpace(s), time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("bad datetime %q", s)
}

// Quote returns the real-time price. Twelve Data's price endpoint carries
// no 24h change, so those fields stay zero.
func (td *TwelveData) Quote(ctx context.Context, asset market.Asset) (market.Quote, error) {
	var p twelvePrice
	if err := td.c.getJSON(ctx, td.baseURL+"/price?"+td.query(asset).Encode(), &p); err != nil {
		return market.Quote{}, fmt.Errorf("twelvedata price %s: %w", asset.Symbol, err)
	}
	if p.Status == "error" {
		return market.Quote{}, fmt.Errorf("twelvedata price %s: %s", asset.Symbol, p.Message)
	}
	px, err := strconv.ParseFloat(p.Price, 64)
	if err != nil {
		return market.Quote{}, fmt.Errorf("twelvedata price %s: %w", asset.Symbol, err)
	}
	return market.Quote{Symbol: asset.Symbol, Price: px}, nil
}
