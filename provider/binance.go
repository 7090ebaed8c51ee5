package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/rustyeddy/tradegate/market"
)

const BinanceURL = "https://api.binance.com"

// BinanceOptions configures the Binance public market data source.
type BinanceOptions struct {
	BaseURL  string        `json:"base_url" yaml:"base_url" default:"https://api.binance.com"`
	Interval string        `json:"interval" yaml:"interval" default:"1h"`
	Client   ClientOptions `json:"client" yaml:"client"`
}

// Binance reads klines and 24h tickers. No API key is needed.
type Binance struct {
	baseURL  string
	interval string
	c        *client
}

func NewBinance(opts BinanceOptions) *Binance {
	if opts.BaseURL == "" {
		opts.BaseURL = BinanceURL
	}
	if opts.Interval == "" {
		opts.Interval = "1h"
	}
	return &Binance{
		baseURL:  opts.BaseURL,
		interval: opts.Interval,
		c:        newClient("binance", opts.Client),
	}
}

// History returns the last limit klines as close/volume samples.
func (b *Binance) History(ctx context.Context, asset market.Asset, limit int) ([]market.PriceSample, error) {
	q := url.Values{}
	q.Set("symbol", asset.Symbol)
	q.Set("interval", b.interval)
	q.Set("limit", strconv.Itoa(limit))

	var rows [][]json.RawMessage
	if err := b.c.getJSON(ctx, b.baseURL+"/api/v3/klines?"+q.Encode(), &rows); err != nil {
		return nil, fmt.Errorf("binance klines %s: %w", asset.Symbol, err)
	}

	out := make([]market.PriceSample, 0, len(rows))
	for i, row := range rows {
		s, err := parseKline(row)
		if err != nil {
			return nil, fmt.Errorf("binance kline %d: %w", i, err)
		}
		out = append(out, s)
	}
	return out, nil
}

// kline layout: [openTime, open, high, low, close, volume, closeTime, ...]
func parseKline(row []json.RawMessage) (market.PriceSample, error) {
	if len(row) < 6 {
		return market.PriceSample{}, fmt.Errorf("short row (%d fields)", len(row))
	}
	var openMs int64
	if err := json.Unmarshal(row[0], &openMs); err != nil {
		return market.PriceSample{}, fmt.Errorf("open time: %w", err)
	}
	closePx, err := rawFloat(row[4])
	if err != nil {
		return market.PriceSample{}, fmt.Errorf("close: %w", err)
	}
	vol, err := rawFloat(row[5])
	if err != nil {
		return market.PriceSample{}, fmt.Errorf("volume: %w", err)
	}
	return market.PriceSample{Time: time.UnixMilli(openMs).UTC(), Price: closePx, Volume: vol}, nil
}

func rawFloat(raw json.RawMessage) (float64, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, err
	}
	return strconv.ParseFloat(s, 64)
}

type binanceTicker struct {
	Symbol             string `json:"symbol"`
	LastPrice          string `json:"lastPrice"`
	PriceChange        string `json:"priceChange"`
	PriceChangePercent string `json:"priceChangePercent"`
	CloseTime          int64  `json:"closeTime"`
}

// Quote returns the 24h rolling ticker.
func (b *Binance) Quote(ctx context.Context, asset market.Asset) (market.Quote, error) {
	var t binanceTicker
	u := b.baseURL + "/api/v3/ticker/24hr?symbol=" + url.QueryEscape(asset.Symbol)
	if err := b.c.getJSON(ctx, u, &t); err != nil {
		return market.Quote{}, fmt.Errorf("binance ticker %s: %w", asset.Symbol, err)
	}

	price, err := strconv.ParseFloat(t.LastPrice, 64)
	if err != nil {
		return market.Quote{}, fmt.Errorf("binance ticker %s: lastPrice: %w", asset.Symbol, err)
	}
	chg, _ := strconv.ParseFloat(t.PriceChange, 64)
	pct, _ := strconv.ParseFloat(t.PriceChangePercent, 64)

	q := market.Quote{
		Symbol:        asset.Symbol,
		Price:         price,
		Change24h:     chg,
		ChangePercent: pct,
	}
	if t.CloseTime > 0 {
		q.Time = time.UnixMilli(t.CloseTime).UTC()
	}
	return q, nil
}
